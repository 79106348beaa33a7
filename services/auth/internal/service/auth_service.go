package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alexedwards/argon2id"

	"github.com/diagnosis/kabataan-portal/pkg/events"
	"github.com/diagnosis/kabataan-portal/pkg/logger"
	"github.com/diagnosis/kabataan-portal/pkg/metrics"
	"github.com/diagnosis/kabataan-portal/services/auth/internal/domain"
	"github.com/diagnosis/kabataan-portal/services/auth/internal/repository"
)

const memberRole = "member"

// dummyHash is compared against when an email has no account, so both paths
// run argon2 with the parameters real hashes use.
var dummyHash = sync.OnceValue(func() string {
	h, err := argon2id.CreateHash("kabataan-portal-no-account", argon2id.DefaultParams)
	if err != nil {
		return ""
	}
	return h
})

// AuthService runs the member and officer login state machines and the
// code-driven transitions around them.
type AuthService interface {
	MemberLogin(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResult, error)
	OfficerLogin(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResult, error)
	CompleteSecondFactor(ctx context.Context, req *domain.CodeRequest) (*domain.SecondFactorResult, error)
	VerifyEmail(ctx context.Context, class domain.AccountClass, req *domain.CodeRequest) (*domain.VerifyResult, error)
	ResendCode(ctx context.Context, class domain.AccountClass, req *domain.ResendRequest) (*domain.ResendResult, error)
	CodeStatus(ctx context.Context, class domain.AccountClass, email string, purpose domain.Purpose) (*domain.CodeStatus, error)
	RequestPasswordReset(ctx context.Context, class domain.AccountClass, req *domain.EmailRequest) (*domain.IssueResult, error)
	ConfirmPasswordReset(ctx context.Context, class domain.AccountClass, req *domain.CodeRequest) (*domain.VerifyResult, error)
	CompletePasswordReset(ctx context.Context, class domain.AccountClass, req *domain.ResetCompleteRequest) (*domain.VerifyResult, error)
	ActivateOfficer(ctx context.Context, req *domain.EmailRequest) error
}

type authService struct {
	accounts *accounts
	officers repository.OfficerRepository
	codes    CodeService
	sessions SessionIssuer
	eventBus events.Publisher
	codeTTL  time.Duration
	now      func() time.Time
	compare  func(password, hash string) (bool, error)
}

func NewAuthService(
	members repository.MemberRepository,
	officers repository.OfficerRepository,
	codes CodeService,
	sessions SessionIssuer,
	eventBus events.Publisher,
	codeTTL time.Duration,
	now func() time.Time,
) AuthService {
	if now == nil {
		now = time.Now
	}
	if codeTTL <= 0 {
		codeTTL = domain.CodeTTL
	}
	return &authService{
		accounts: &accounts{members: members, officers: officers},
		officers: officers,
		codes:    codes,
		sessions: sessions,
		eventBus: eventBus,
		codeTTL:  codeTTL,
		now:      now,
		compare:  argon2id.ComparePasswordAndHash,
	}
}

// MemberLogin checks the password and opens a session. Verification status
// does not gate members.
func (s *authService) MemberLogin(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResult, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ref, ok, err := s.checkCredentials(ctx, domain.ClassMember, req)
	if err != nil {
		return nil, err
	}
	if !ok {
		return s.loginResult(domain.ClassMember, &domain.LoginResult{State: domain.StateCredentialRejected}), nil
	}

	session, err := s.openSession(ctx, ref.Account, memberRole, domain.ClassMember)
	if err != nil {
		return nil, err
	}
	return s.loginResult(domain.ClassMember, &domain.LoginResult{
		State:   domain.StateSessionEstablished,
		Session: session,
	}), nil
}

// OfficerLogin walks credential, eligibility, verification and activation
// checks in that order. Past the password check the outcome is disclosed.
func (s *authService) OfficerLogin(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResult, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ref, ok, err := s.checkCredentials(ctx, domain.ClassOfficer, req)
	if err != nil {
		return nil, err
	}
	if !ok {
		return s.loginResult(domain.ClassOfficer, &domain.LoginResult{State: domain.StateCredentialRejected}), nil
	}
	officer := ref.officer
	now := s.now()

	if reasons := domain.Evaluate(officer, now); len(reasons) > 0 {
		names := make([]string, len(reasons))
		for i, r := range reasons {
			names[i] = string(r)
		}
		logger.InfoContext(ctx, "Officer login refused: ineligible",
			"identity", logger.HashIdentity(officer.Email), "reasons", names)
		s.publish(ctx, events.OfficerIneligible, events.OfficerIneligibleEvent{
			Identity: logger.HashIdentity(officer.Email),
			Reasons:  names,
			At:       now,
		})
		return s.loginResult(domain.ClassOfficer, &domain.LoginResult{
			State:   domain.StateIneligible,
			Reasons: reasons,
		}), nil
	}

	switch {
	case !officer.IsVerified():
		return s.issueForLogin(ctx, officer, domain.PurposeOfficerVerify, domain.StateAwaitingEmailVerification)
	case !officer.IsActive():
		return s.loginResult(domain.ClassOfficer, &domain.LoginResult{
			State: domain.StateAwaitingAdminAuthentication,
		}), nil
	default:
		return s.issueForLogin(ctx, officer, domain.PurposeOfficer2FA, domain.StateAwaitingSecondFactor)
	}
}

func (s *authService) issueForLogin(ctx context.Context, officer *domain.Officer, purpose domain.Purpose, state domain.LoginState) (*domain.LoginResult, error) {
	issued, err := s.codes.Issue(ctx, officer.Email, officer.DisplayName(), purpose)
	if err != nil {
		return nil, err
	}
	delivered := issued.Delivered
	return s.loginResult(domain.ClassOfficer, &domain.LoginResult{
		State:            state,
		CodeDelivered:    &delivered,
		RemainingSeconds: issued.RemainingSeconds,
	}), nil
}

// CompleteSecondFactor consumes the officer_2fa code and, on success,
// re-reads the officer and opens a brand new session.
func (s *authService) CompleteSecondFactor(ctx context.Context, req *domain.CodeRequest) (*domain.SecondFactorResult, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	res, err := s.codes.Verify(ctx, req.Email, req.Code, domain.PurposeOfficer2FA, true)
	if err != nil {
		return nil, err
	}
	if !res.Valid {
		return &domain.SecondFactorResult{VerifyResult: *res}, nil
	}

	officer, err := s.officers.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStorage, err)
	}
	if officer == nil {
		return nil, domain.ErrInvalidCredentials
	}

	session, err := s.openSession(ctx, &officer.Account, officer.Role, domain.ClassOfficer)
	if err != nil {
		return nil, err
	}
	metrics.LoginsTotal.WithLabelValues(string(domain.ClassOfficer), string(domain.StateSessionEstablished)).Inc()
	return &domain.SecondFactorResult{
		VerifyResult: *res,
		State:        domain.StateSessionEstablished,
		Session:      session,
	}, nil
}

func (s *authService) VerifyEmail(ctx context.Context, class domain.AccountClass, req *domain.CodeRequest) (*domain.VerifyResult, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.codes.Verify(ctx, req.Email, req.Code, class.VerifyPurpose(), true)
}

// ResendCode re-sends a code of the caller's class. Unknown emails follow
// the same rules through a decoy row, so repeated calls answer alike. A
// second factor code is always replaced, and only while one is pending, so
// the answer never shows whether an officer has just passed the password
// check.
func (s *authService) ResendCode(ctx context.Context, class domain.AccountClass, req *domain.ResendRequest) (*domain.ResendResult, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Purpose.Class() != class {
		return nil, domain.ErrPurposeMismatch
	}

	if req.Purpose == domain.PurposeOfficer2FA {
		return s.resendSecondFactor(ctx, req.Email)
	}

	ref, err := s.accounts.lookup(ctx, class, req.Email)
	if err != nil {
		return nil, err
	}
	if ref == nil {
		return s.codes.DecoyResend(ctx, req.Email, req.Purpose, req.Force)
	}
	return s.codes.Resend(ctx, req.Email, ref.DisplayName(), req.Purpose, req.Force, req.Purpose.Channel())
}

func (s *authService) resendSecondFactor(ctx context.Context, email string) (*domain.ResendResult, error) {
	status, err := s.codes.Current(ctx, email, domain.PurposeOfficer2FA)
	if err != nil {
		return nil, err
	}
	if !status.Exists {
		logger.InfoContext(ctx, "Second factor resend without prior login", "identity", logger.HashIdentity(email))
		return s.silentResend(), nil
	}

	officer, err := s.officers.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStorage, err)
	}
	if officer == nil {
		return s.silentResend(), nil
	}
	return s.codes.Resend(ctx, email, officer.DisplayName(), domain.PurposeOfficer2FA, true, domain.PurposeOfficer2FA.Channel())
}

// silentResend is what a resend looks like when nothing was sent.
func (s *authService) silentResend() *domain.ResendResult {
	return &domain.ResendResult{Success: true, IsNew: true, RemainingSeconds: int(s.codeTTL / time.Second)}
}

// CodeStatus reports whether a code exists and how long it has left. The
// code value itself is dropped before it leaves the service.
func (s *authService) CodeStatus(ctx context.Context, class domain.AccountClass, email string, purpose domain.Purpose) (*domain.CodeStatus, error) {
	q := domain.EmailRequest{Email: email}
	q.Normalize()
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if !purpose.Valid() {
		return nil, fmt.Errorf("%w: unknown purpose %q", domain.ErrValidation, purpose)
	}
	if purpose.Class() != class {
		return nil, domain.ErrPurposeMismatch
	}
	if purpose == domain.PurposeOfficer2FA {
		return nil, fmt.Errorf("%w: status of %s codes is not available", domain.ErrValidation, purpose)
	}

	status, err := s.codes.Current(ctx, q.Email, purpose)
	if err != nil {
		return nil, err
	}
	status.Code = ""
	return status, nil
}

func (s *authService) RequestPasswordReset(ctx context.Context, class domain.AccountClass, req *domain.EmailRequest) (*domain.IssueResult, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ref, err := s.accounts.lookup(ctx, class, req.Email)
	if err != nil {
		return nil, err
	}
	if ref == nil {
		logger.InfoContext(ctx, "Password reset requested for unknown account",
			"identity", logger.HashIdentity(req.Email), "class", string(class))
		return s.codes.DecoyIssue(ctx, req.Email, class.ResetPurpose())
	}
	return s.codes.Issue(ctx, req.Email, ref.DisplayName(), class.ResetPurpose())
}

// ConfirmPasswordReset checks the reset code without using it up.
func (s *authService) ConfirmPasswordReset(ctx context.Context, class domain.AccountClass, req *domain.CodeRequest) (*domain.VerifyResult, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.codes.Verify(ctx, req.Email, req.Code, class.ResetPurpose(), false)
}

func (s *authService) CompletePasswordReset(ctx context.Context, class domain.AccountClass, req *domain.ResetCompleteRequest) (*domain.VerifyResult, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	// Hash first: a consumed code cannot be retried.
	hash, err := argon2id.CreateHash(req.NewPassword, argon2id.DefaultParams)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	res, err := s.codes.Verify(ctx, req.Email, req.Code, class.ResetPurpose(), true)
	if err != nil {
		return nil, err
	}
	if !res.Valid {
		return res, nil
	}

	if err := s.accounts.setPasswordHash(ctx, class, req.Email, hash); err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "Password reset completed", "identity", logger.HashIdentity(req.Email), "class", string(class))
	s.publish(ctx, events.PasswordReset, events.PasswordResetEvent{
		Identity: logger.HashIdentity(req.Email),
		Class:    string(class),
		At:       s.now(),
	})
	return res, nil
}

// ActivateOfficer is the administrator's approval of an officer account.
func (s *authService) ActivateOfficer(ctx context.Context, req *domain.EmailRequest) error {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return err
	}

	if err := s.officers.Activate(ctx, req.Email); err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return err
		}
		return fmt.Errorf("%w: %w", domain.ErrStorage, err)
	}
	logger.InfoContext(ctx, "Officer activated", "identity", logger.HashIdentity(req.Email))
	return nil
}

// checkCredentials reports ok=false for both an unknown email and a wrong
// password so callers cannot tell them apart.
func (s *authService) checkCredentials(ctx context.Context, class domain.AccountClass, req *domain.LoginRequest) (*accountRef, bool, error) {
	ref, err := s.accounts.lookup(ctx, class, req.Email)
	if err != nil {
		return nil, false, err
	}
	if ref == nil {
		// Pay the same hashing cost as a real account.
		_, _ = s.compare(req.Password, dummyHash())
		return nil, false, nil
	}

	valid, err := s.compare(req.Password, ref.PasswordHash)
	if err != nil {
		logger.WarnContext(ctx, "Stored password hash unreadable",
			"error", err, "identity", logger.HashIdentity(req.Email), "class", string(class))
		return nil, false, nil
	}
	return ref, valid, nil
}

func (s *authService) openSession(ctx context.Context, account *domain.Account, role string, class domain.AccountClass) (*domain.Session, error) {
	session, err := s.sessions.Open(account, role, class)
	if err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}
	s.publish(ctx, events.SessionEstablished, events.SessionEstablishedEvent{
		Identity:  logger.HashIdentity(account.Email),
		Class:     string(class),
		SessionID: session.ID,
		At:        s.now(),
	})
	return session, nil
}

func (s *authService) loginResult(class domain.AccountClass, res *domain.LoginResult) *domain.LoginResult {
	metrics.LoginsTotal.WithLabelValues(string(class), string(res.State)).Inc()
	return res
}

func (s *authService) publish(ctx context.Context, subject string, payload any) {
	if err := s.eventBus.Publish(ctx, subject, payload); err != nil {
		logger.WarnContext(ctx, "Failed to publish event", "error", err, "subject", subject)
	}
}
