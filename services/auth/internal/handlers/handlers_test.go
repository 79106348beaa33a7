package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diagnosis/kabataan-portal/pkg/auth"
	"github.com/diagnosis/kabataan-portal/pkg/config"
	"github.com/diagnosis/kabataan-portal/services/auth/internal/domain"
	"github.com/diagnosis/kabataan-portal/services/auth/internal/handlers"
)

// ---------- Mocks ----------

type mockAuthService struct {
	loginResult  *domain.LoginResult
	secondFactor *domain.SecondFactorResult
	verifyResult *domain.VerifyResult
	resendResult *domain.ResendResult
	status       *domain.CodeStatus
	issueResult  *domain.IssueResult
	err          error

	lastClass   domain.AccountClass
	lastPurpose domain.Purpose
	activated   string
}

func (m *mockAuthService) MemberLogin(context.Context, *domain.LoginRequest) (*domain.LoginResult, error) {
	m.lastClass = domain.ClassMember
	return m.loginResult, m.err
}

func (m *mockAuthService) OfficerLogin(context.Context, *domain.LoginRequest) (*domain.LoginResult, error) {
	m.lastClass = domain.ClassOfficer
	return m.loginResult, m.err
}

func (m *mockAuthService) CompleteSecondFactor(context.Context, *domain.CodeRequest) (*domain.SecondFactorResult, error) {
	return m.secondFactor, m.err
}

func (m *mockAuthService) VerifyEmail(_ context.Context, class domain.AccountClass, _ *domain.CodeRequest) (*domain.VerifyResult, error) {
	m.lastClass = class
	return m.verifyResult, m.err
}

func (m *mockAuthService) ResendCode(_ context.Context, class domain.AccountClass, req *domain.ResendRequest) (*domain.ResendResult, error) {
	m.lastClass, m.lastPurpose = class, req.Purpose
	return m.resendResult, m.err
}

func (m *mockAuthService) CodeStatus(_ context.Context, class domain.AccountClass, _ string, purpose domain.Purpose) (*domain.CodeStatus, error) {
	m.lastClass, m.lastPurpose = class, purpose
	return m.status, m.err
}

func (m *mockAuthService) RequestPasswordReset(_ context.Context, class domain.AccountClass, _ *domain.EmailRequest) (*domain.IssueResult, error) {
	m.lastClass = class
	return m.issueResult, m.err
}

func (m *mockAuthService) ConfirmPasswordReset(_ context.Context, class domain.AccountClass, _ *domain.CodeRequest) (*domain.VerifyResult, error) {
	m.lastClass = class
	return m.verifyResult, m.err
}

func (m *mockAuthService) CompletePasswordReset(_ context.Context, class domain.AccountClass, _ *domain.ResetCompleteRequest) (*domain.VerifyResult, error) {
	m.lastClass = class
	return m.verifyResult, m.err
}

func (m *mockAuthService) ActivateOfficer(_ context.Context, req *domain.EmailRequest) error {
	m.activated = req.Email
	return m.err
}

type mockRateLimit struct {
	allow bool
	keys  []string
}

func (m *mockRateLimit) CheckRateLimit(_ context.Context, key string, _ int, _ time.Duration) (bool, error) {
	m.keys = append(m.keys, key)
	return m.allow, nil
}

func (m *mockRateLimit) CleanupExpired(context.Context) (int64, error) { return 0, nil }

// ---------- Helpers ----------

const testSecret = "test-secret"

func newRouter(svc *mockAuthService, rl *mockRateLimit) http.Handler {
	cfg := &config.Config{
		Auth:      config.AuthConfig{JWTSecret: testSecret, SessionTTL: time.Hour},
		RateLimit: config.RateLimitConfig{Enabled: true, Requests: 5, Window: time.Minute},
	}
	h := handlers.New(svc, rl, cfg)
	r := chi.NewRouter()
	h.Routes(r)
	return r
}

func do(t *testing.T, router http.Handler, method, path string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

// ---------- Tests ----------

func TestLogin_StatesMapToStatus(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		result *domain.LoginResult
		status int
	}{
		{"rejected", "/members/login", &domain.LoginResult{State: domain.StateCredentialRejected}, http.StatusUnauthorized},
		{"member session", "/members/login", &domain.LoginResult{State: domain.StateSessionEstablished, Session: &domain.Session{Token: "t", ID: "s"}}, http.StatusOK},
		{"ineligible", "/officers/login", &domain.LoginResult{State: domain.StateIneligible, Reasons: []domain.IneligibilityReason{domain.ReasonOverAge}}, http.StatusForbidden},
		{"awaiting admin", "/officers/login", &domain.LoginResult{State: domain.StateAwaitingAdminAuthentication}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAuthService{loginResult: tt.result}
			rec := do(t, newRouter(svc, &mockRateLimit{allow: true}), http.MethodPost, tt.path,
				map[string]string{"email": "a@x.com", "password": "pw"})

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, string(tt.result.State), decode(t, rec)["state"])
		})
	}
}

func TestOfficerLogin_IneligibleListsReasons(t *testing.T) {
	svc := &mockAuthService{loginResult: &domain.LoginResult{
		State:   domain.StateIneligible,
		Reasons: []domain.IneligibilityReason{domain.ReasonTermExpired, domain.ReasonTermLimitExceeded},
	}}
	rec := do(t, newRouter(svc, &mockRateLimit{allow: true}), http.MethodPost, "/officers/login",
		map[string]string{"email": "a@x.com", "password": "pw"})

	body := decode(t, rec)
	assert.Equal(t, []any{"TermExpired", "TermLimitExceeded"}, body["reasons"])
	assert.Equal(t, "INELIGIBLE", body["code"])
}

func TestLogin_InvalidJSON(t *testing.T) {
	router := newRouter(&mockAuthService{}, &mockRateLimit{allow: true})
	req := httptest.NewRequest(http.MethodPost, "/members/login", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServiceErrorsMapped(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{domain.ErrValidation, http.StatusBadRequest, "INVALID_INPUT"},
		{domain.ErrPurposeMismatch, http.StatusBadRequest, "INVALID_PURPOSE"},
		{domain.ErrInvalidCredentials, http.StatusUnauthorized, "LOGIN_FAILED"},
		{domain.ErrStorage, http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			svc := &mockAuthService{err: tt.err}
			rec := do(t, newRouter(svc, &mockRateLimit{allow: true}), http.MethodPost, "/members/resend",
				map[string]any{"email": "a@x.com", "purpose": "member_verify"})
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decode(t, rec)["code"])
		})
	}
}

func TestStorageErrorDoesNotLeakDetail(t *testing.T) {
	svc := &mockAuthService{err: domain.ErrStorage}
	rec := do(t, newRouter(svc, &mockRateLimit{allow: true}), http.MethodPost, "/officers/verify-2fa",
		map[string]string{"email": "a@x.com", "code": "123456"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "storage")
}

func TestVerifyEmail_InvalidCarriesExpiryHint(t *testing.T) {
	svc := &mockAuthService{verifyResult: &domain.VerifyResult{Valid: false, Expired: true, Failure: domain.FailureExpired}}
	rec := do(t, newRouter(svc, &mockRateLimit{allow: true}), http.MethodPost, "/officers/verify-email",
		map[string]string{"email": "a@x.com", "code": "123456"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["valid"])
	assert.Equal(t, true, body["is_otp_expired"])
	assert.Equal(t, "INVALID_CODE", body["code"])
	assert.NotContains(t, body, "failure")
	assert.Equal(t, domain.ClassOfficer, svc.lastClass)
}

func TestVerifySecondFactor_Session(t *testing.T) {
	svc := &mockAuthService{secondFactor: &domain.SecondFactorResult{
		VerifyResult: domain.VerifyResult{Valid: true},
		State:        domain.StateSessionEstablished,
		Session:      &domain.Session{Token: "tok", ID: "sid", ExpiresIn: 60},
	}}
	rec := do(t, newRouter(svc, &mockRateLimit{allow: true}), http.MethodPost, "/officers/verify-2fa",
		map[string]string{"email": "a@x.com", "code": "123456"})

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "session_established", body["state"])
	assert.Equal(t, "sid", body["session"].(map[string]any)["session_id"])
}

func TestResend_Response(t *testing.T) {
	svc := &mockAuthService{resendResult: &domain.ResendResult{Success: true, IsNew: false, RemainingSeconds: 120}}
	rec := do(t, newRouter(svc, &mockRateLimit{allow: true}), http.MethodPost, "/members/resend",
		map[string]any{"email": "a@x.com", "purpose": "member_verify", "force": false})

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, false, body["is_new"])
	assert.Equal(t, float64(120), body["remaining_seconds"])
	assert.Equal(t, domain.PurposeMemberVerify, svc.lastPurpose)
}

func TestCodeStatus_NeverReturnsCode(t *testing.T) {
	svc := &mockAuthService{status: &domain.CodeStatus{Exists: true, Code: "123456", RemainingSeconds: 42}}
	rec := do(t, newRouter(svc, &mockRateLimit{allow: true}), http.MethodGet,
		"/officers/code-status?email=a@x.com&purpose=officer_reset", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "123456")
	assert.Equal(t, domain.PurposeOfficerReset, svc.lastPurpose)
}

func TestCodeStatus_UnknownPurpose(t *testing.T) {
	rec := do(t, newRouter(&mockAuthService{}, &mockRateLimit{allow: true}), http.MethodGet,
		"/members/code-status?email=a@x.com&purpose=anything", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPasswordResetRoutes(t *testing.T) {
	svc := &mockAuthService{
		issueResult:  &domain.IssueResult{Delivered: true, RemainingSeconds: 300},
		verifyResult: &domain.VerifyResult{Valid: true},
	}
	router := newRouter(svc, &mockRateLimit{allow: true})

	rec := do(t, router, http.MethodPost, "/officers/password-reset/request", map[string]string{"email": "a@x.com"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.ClassOfficer, svc.lastClass)

	rec = do(t, router, http.MethodPost, "/members/password-reset/confirm", map[string]string{"email": "a@x.com", "code": "123456"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.ClassMember, svc.lastClass)

	rec = do(t, router, http.MethodPost, "/members/password-reset/complete",
		map[string]string{"email": "a@x.com", "code": "123456", "new_password": "long-enough"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit_Blocks(t *testing.T) {
	rl := &mockRateLimit{allow: false}
	rec := do(t, newRouter(&mockAuthService{}, rl), http.MethodPost, "/officers/login",
		map[string]string{"email": "a@x.com", "password": "pw"}, "X-Forwarded-For", "10.0.0.7, 10.0.0.1")

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, []string{"officer_login:10.0.0.7"}, rl.keys)
}

func TestAdminActivate_RequiresAdminToken(t *testing.T) {
	svc := &mockAuthService{}
	router := newRouter(svc, &mockRateLimit{allow: true})
	body := map[string]string{"email": "o@x.com"}

	rec := do(t, router, http.MethodPost, "/admin/officers/activate", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	kagawad, _, err := auth.NewSessionToken(2, "k@x.com", "Kagawad", "officer", testSecret, time.Hour, time.Now())
	require.NoError(t, err)
	rec = do(t, router, http.MethodPost, "/admin/officers/activate", body, "Authorization", "Bearer "+kagawad)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	admin, _, err := auth.NewSessionToken(1, "admin@x.com", domain.RoleAdmin, "officer", testSecret, time.Hour, time.Now())
	require.NoError(t, err)
	rec = do(t, router, http.MethodPost, "/admin/officers/activate", body, "Authorization", "Bearer "+admin)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "o@x.com", svc.activated)
}

func TestAdminActivate_NotFound(t *testing.T) {
	svc := &mockAuthService{err: domain.ErrAccountNotFound}
	admin, _, err := auth.NewSessionToken(1, "admin@x.com", domain.RoleAdmin, "officer", testSecret, time.Hour, time.Now())
	require.NoError(t, err)

	rec := do(t, newRouter(svc, &mockRateLimit{allow: true}), http.MethodPost, "/admin/officers/activate",
		map[string]string{"email": "ghost@x.com"}, "Authorization", "Bearer "+admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
