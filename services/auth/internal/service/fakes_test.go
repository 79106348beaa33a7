package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/stretchr/testify/require"

	"github.com/diagnosis/kabataan-portal/pkg/config"
	"github.com/diagnosis/kabataan-portal/services/auth/internal/domain"
	"github.com/diagnosis/kabataan-portal/services/auth/internal/repository"
	"github.com/diagnosis/kabataan-portal/services/auth/internal/service"
)

// ---------- Fakes ----------

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 5, 12, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type sentMail struct {
	to, name, code string
	channel        domain.Channel
	ttl            time.Duration
}

type fakeMailer struct {
	mu      sync.Mutex
	sent    []sentMail
	sendErr error
}

func (m *fakeMailer) SendCode(_ context.Context, toEmail, toName, code string, channel domain.Channel, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, sentMail{to: toEmail, name: toName, code: code, channel: channel, ttl: ttl})
	return nil
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func (m *fakeMailer) last() sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent[len(m.sent)-1]
}

type fakeBus struct {
	mu       sync.Mutex
	subjects []string
}

func (b *fakeBus) Publish(_ context.Context, subject string, _ any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subjects = append(b.subjects, subject)
	return nil
}

func (b *fakeBus) Close() error { return nil }

func (b *fakeBus) has(subject string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subjects {
		if s == subject {
			return true
		}
	}
	return false
}

// onFind, when set, runs after a read returns and before the caller can
// write, standing in for a concurrent request.
type fakeMembers struct {
	mu      sync.Mutex
	byEmail map[string]domain.Account
	findErr error
	onFind  func(email string)
}

func (f *fakeMembers) FindByEmail(_ context.Context, email string) (*domain.Account, error) {
	f.mu.Lock()
	if f.findErr != nil {
		f.mu.Unlock()
		return nil, f.findErr
	}
	m, ok := f.byEmail[email]
	hook := f.onFind
	f.mu.Unlock()
	if hook != nil {
		hook(email)
	}
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (f *fakeMembers) MarkVerified(_ context.Context, email string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.byEmail[email]
	if !ok || m.IsVerified() {
		return false, nil
	}
	m.VerificationStatus = domain.StatusVerified
	m.VerifiedAt = &at
	f.byEmail[email] = m
	return true, nil
}

func (f *fakeMembers) SetPasswordHash(_ context.Context, email, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.byEmail[email]
	if !ok {
		return domain.ErrAccountNotFound
	}
	m.PasswordHash = hash
	f.byEmail[email] = m
	return nil
}

func (f *fakeMembers) get(email string) domain.Account {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byEmail[email]
}

type fakeOfficers struct {
	mu      sync.Mutex
	byEmail map[string]domain.Officer
	onFind  func(email string)
}

func (f *fakeOfficers) FindByEmail(_ context.Context, email string) (*domain.Officer, error) {
	f.mu.Lock()
	o, ok := f.byEmail[email]
	hook := f.onFind
	f.mu.Unlock()
	if hook != nil {
		hook(email)
	}
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (f *fakeOfficers) update(email string, fn func(o *domain.Officer) bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.byEmail[email]
	if !ok {
		return false
	}
	changed := fn(&o)
	f.byEmail[email] = o
	return changed
}

func (f *fakeOfficers) MarkVerified(_ context.Context, email string, at time.Time) (bool, error) {
	return f.update(email, func(o *domain.Officer) bool {
		if o.IsVerified() {
			return false
		}
		o.VerificationStatus = domain.StatusVerified
		o.VerifiedAt = &at
		return true
	}), nil
}

func (f *fakeOfficers) SetPasswordHash(_ context.Context, email, hash string) error {
	if !f.update(email, func(o *domain.Officer) bool { o.PasswordHash = hash; return true }) {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (f *fakeOfficers) Activate(_ context.Context, email string) error {
	if !f.update(email, func(o *domain.Officer) bool { o.AuthenticationStatus = domain.AuthStatusActive; return true }) {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (f *fakeOfficers) get(email string) domain.Officer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byEmail[email]
}

// failingStore fails every call once broken is set.
type failingStore struct {
	repository.CodeRepository
	broken bool
}

var errStoreDown = errors.New("store down")

func (f *failingStore) Upsert(ctx context.Context, c *domain.VerificationCode) error {
	if f.broken {
		return errStoreDown
	}
	return f.CodeRepository.Upsert(ctx, c)
}

func (f *failingStore) Find(ctx context.Context, identity string, purpose domain.Purpose) (*domain.VerificationCode, error) {
	if f.broken {
		return nil, errStoreDown
	}
	return f.CodeRepository.Find(ctx, identity, purpose)
}

type fakeSessions struct {
	mu sync.Mutex
	n  int
}

func (s *fakeSessions) Open(account *domain.Account, role string, class domain.AccountClass) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return &domain.Session{
		Token:     "token-" + account.Email,
		ID:        fmt.Sprintf("%s-session-%d", class, s.n),
		ExpiresIn: 3600,
	}, nil
}

// ---------- Harness ----------

const testPassword = "correct horse battery"

var cheapParams = &argon2id.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

func hashPassword(t *testing.T, pw string) string {
	t.Helper()
	h, err := argon2id.CreateHash(pw, cheapParams)
	require.NoError(t, err)
	return h
}

type harness struct {
	clock    *fakeClock
	store    *failingStore
	members  *fakeMembers
	officers *fakeOfficers
	mailer   *fakeMailer
	bus      *fakeBus
	sessions *fakeSessions
	codes    service.CodeService
	auth     service.AuthService
	nextCode string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		clock:    newFakeClock(),
		store:    &failingStore{CodeRepository: repository.NewMemoryCodeStore()},
		members:  &fakeMembers{byEmail: map[string]domain.Account{}},
		officers: &fakeOfficers{byEmail: map[string]domain.Officer{}},
		mailer:   &fakeMailer{},
		bus:      &fakeBus{},
		sessions: &fakeSessions{},
	}

	opts := []service.CodeOption{service.WithClock(h.clock.Now)}
	opts = append(opts, service.WithCodeGenerator(func() (string, error) {
		if h.nextCode != "" {
			c := h.nextCode
			h.nextCode = ""
			return c, nil
		}
		return randomDigits(), nil
	}))

	h.codes = service.NewCodeService(h.store, h.members, h.officers, h.mailer, h.bus,
		config.OTPConfig{TTL: 5 * time.Minute}, opts...)
	h.auth = service.NewAuthService(h.members, h.officers, h.codes, h.sessions, h.bus, 5*time.Minute, h.clock.Now)
	return h
}

var (
	digitsMu sync.Mutex
	digitsN  = 100000
)

// randomDigits hands out distinct codes so tests can tell them apart.
func randomDigits() string {
	digitsMu.Lock()
	defer digitsMu.Unlock()
	digitsN += 7919
	return fmt.Sprintf("%06d", digitsN%1000000)
}

func (h *harness) addMember(t *testing.T, email string, verified bool) {
	t.Helper()
	status := domain.StatusNotVerified
	if verified {
		status = domain.StatusVerified
	}
	h.members.byEmail[email] = domain.Account{
		ID: int64(len(h.members.byEmail) + 1), Email: email, FirstName: "Ana", LastName: "Santos",
		PasswordHash: hashPassword(t, testPassword), VerificationStatus: status,
	}
}

func (h *harness) addOfficer(t *testing.T, o domain.Officer) {
	t.Helper()
	if o.ID == 0 {
		o.ID = int64(len(h.officers.byEmail) + 1)
	}
	if o.PasswordHash == "" {
		o.PasswordHash = hashPassword(t, testPassword)
	}
	if o.Role == "" {
		o.Role = "Kagawad"
	}
	h.officers.byEmail[o.Email] = o
}

func (h *harness) storedCode(t *testing.T, identity string, purpose domain.Purpose) *domain.VerificationCode {
	t.Helper()
	c, err := h.store.CodeRepository.Find(context.Background(), identity, purpose)
	require.NoError(t, err)
	return c
}
