package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/diagnosis/kabataan-portal/pkg/config"
	"github.com/diagnosis/kabataan-portal/pkg/events"
	"github.com/diagnosis/kabataan-portal/pkg/logger"
	"github.com/diagnosis/kabataan-portal/pkg/metrics"
	"github.com/diagnosis/kabataan-portal/services/auth/internal/domain"
	"github.com/diagnosis/kabataan-portal/services/auth/internal/mailer"
	"github.com/diagnosis/kabataan-portal/services/auth/internal/repository"
)

// CodeService owns every read and write of verification codes.
type CodeService interface {
	Generate(ctx context.Context, identity string, purpose domain.Purpose) (string, error)
	Deliver(ctx context.Context, identity, displayName, code string, channel domain.Channel) bool
	Verify(ctx context.Context, identity, code string, purpose domain.Purpose, consume bool) (*domain.VerifyResult, error)
	RemainingSeconds(ctx context.Context, identity string, purpose domain.Purpose) (int, error)
	Current(ctx context.Context, identity string, purpose domain.Purpose) (*domain.CodeStatus, error)
	Resend(ctx context.Context, identity, displayName string, purpose domain.Purpose, force bool, channel domain.Channel) (*domain.ResendResult, error)
	Issue(ctx context.Context, identity, displayName string, purpose domain.Purpose) (*domain.IssueResult, error)
	DecoyResend(ctx context.Context, identity string, purpose domain.Purpose, force bool) (*domain.ResendResult, error)
	DecoyIssue(ctx context.Context, identity string, purpose domain.Purpose) (*domain.IssueResult, error)
	PurgeExpired(ctx context.Context) (int64, error)
}

type codeService struct {
	store    repository.CodeRepository
	accounts *accounts
	mailer   mailer.Service
	eventBus events.Publisher
	ttl      time.Duration
	now      func() time.Time
	newCode  func() (string, error)
}

type CodeOption func(*codeService)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) CodeOption {
	return func(s *codeService) { s.now = now }
}

// WithCodeGenerator replaces the random six-digit generator.
func WithCodeGenerator(gen func() (string, error)) CodeOption {
	return func(s *codeService) { s.newCode = gen }
}

func NewCodeService(
	store repository.CodeRepository,
	members repository.MemberRepository,
	officers repository.OfficerRepository,
	mailer mailer.Service,
	eventBus events.Publisher,
	cfg config.OTPConfig,
	opts ...CodeOption,
) CodeService {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = domain.CodeTTL
	}
	s := &codeService{
		store:    store,
		accounts: &accounts{members: members, officers: officers},
		mailer:   mailer,
		eventBus: eventBus,
		ttl:      ttl,
		now:      time.Now,
		newCode:  randomCode,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// randomCode draws uniformly from 000000-999999.
func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", domain.CodeLength, n.Int64()), nil
}

func (s *codeService) Generate(ctx context.Context, identity string, purpose domain.Purpose) (string, error) {
	code, err := s.newCode()
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}

	err = s.store.Upsert(ctx, &domain.VerificationCode{
		Identity:  identity,
		Purpose:   purpose,
		Code:      code,
		ExpiresAt: s.now().Add(s.ttl),
	})
	if err != nil {
		logger.ErrorContext(ctx, "Failed to store verification code",
			"error", err, "identity", logger.HashIdentity(identity), "purpose", purpose.String())
		return "", fmt.Errorf("%w: %w", domain.ErrStorage, err)
	}
	return code, nil
}

func (s *codeService) Deliver(ctx context.Context, identity, displayName, code string, channel domain.Channel) bool {
	if err := s.mailer.SendCode(ctx, identity, displayName, code, channel, s.ttl); err != nil {
		logger.ErrorContext(ctx, "Failed to deliver verification code",
			"error", err, "identity", logger.HashIdentity(identity), "channel", string(channel))
		return false
	}
	return true
}

// Issue generates a fresh code and sends it on the purpose's channel.
// A failed send leaves the stored code usable.
func (s *codeService) Issue(ctx context.Context, identity, displayName string, purpose domain.Purpose) (*domain.IssueResult, error) {
	return s.issue(ctx, identity, displayName, purpose, true)
}

// DecoyIssue stores a code for an identity that has no account and sends
// nothing. Later resend and status answers for that identity then match
// those of a real account.
func (s *codeService) DecoyIssue(ctx context.Context, identity string, purpose domain.Purpose) (*domain.IssueResult, error) {
	return s.issue(ctx, identity, "", purpose, false)
}

func (s *codeService) issue(ctx context.Context, identity, displayName string, purpose domain.Purpose, deliver bool) (*domain.IssueResult, error) {
	code, err := s.Generate(ctx, identity, purpose)
	if err != nil {
		return nil, err
	}
	delivered := s.send(ctx, identity, displayName, code, purpose, purpose.Channel(), deliver)

	return &domain.IssueResult{
		Delivered:        delivered,
		RemainingSeconds: int(s.ttl / time.Second),
	}, nil
}

// send delivers and records a freshly generated code. Decoys are reported
// as delivered and leave no metric or event behind.
func (s *codeService) send(ctx context.Context, identity, displayName, code string, purpose domain.Purpose, channel domain.Channel, deliver bool) bool {
	if !deliver {
		logger.DebugContext(ctx, "Stored decoy code", "identity", logger.HashIdentity(identity), "purpose", purpose.String())
		return true
	}
	delivered := s.Deliver(ctx, identity, displayName, code, channel)
	s.recordIssued(ctx, identity, purpose, delivered)
	return delivered
}

func (s *codeService) Verify(ctx context.Context, identity, code string, purpose domain.Purpose, consume bool) (*domain.VerifyResult, error) {
	now := s.now()

	row, err := s.store.Find(ctx, identity, purpose)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to read verification code",
			"error", err, "identity", logger.HashIdentity(identity), "purpose", purpose.String())
		return nil, fmt.Errorf("%w: %w", domain.ErrStorage, err)
	}

	switch {
	case row == nil:
		return s.reject(purpose, domain.FailureNotFound, metrics.OutcomeNotFound), nil
	case row.IsExpired(now):
		return s.reject(purpose, domain.FailureExpired, metrics.OutcomeExpired), nil
	case subtle.ConstantTimeCompare([]byte(row.Code), []byte(code)) != 1:
		return s.reject(purpose, domain.FailureMismatch, metrics.OutcomeMismatch), nil
	}

	if !consume {
		metrics.CodeVerificationsTotal.WithLabelValues(purpose.String(), metrics.OutcomeValid).Inc()
		return &domain.VerifyResult{Valid: true}, nil
	}

	ok, err := s.store.Consume(ctx, identity, purpose, code, now)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to consume verification code",
			"error", err, "identity", logger.HashIdentity(identity), "purpose", purpose.String())
		return nil, fmt.Errorf("%w: %w", domain.ErrStorage, err)
	}
	if !ok {
		// Another request consumed or replaced the row first.
		return s.reject(purpose, domain.FailureNotFound, metrics.OutcomeLost), nil
	}
	metrics.CodeVerificationsTotal.WithLabelValues(purpose.String(), metrics.OutcomeValid).Inc()

	if purpose.IsVerify() {
		if err := s.markVerified(ctx, identity, purpose.Class(), now); err != nil {
			return nil, err
		}
	}
	return &domain.VerifyResult{Valid: true}, nil
}

func (s *codeService) reject(purpose domain.Purpose, failure domain.VerifyFailure, outcome string) *domain.VerifyResult {
	metrics.CodeVerificationsTotal.WithLabelValues(purpose.String(), outcome).Inc()
	return &domain.VerifyResult{
		Valid:   false,
		Expired: failure == domain.FailureExpired,
		Failure: failure,
	}
}

// markVerified writes only the verification columns, so a concurrent
// activation or password change on the same account is never overwritten.
func (s *codeService) markVerified(ctx context.Context, identity string, class domain.AccountClass, now time.Time) error {
	changed, err := s.accounts.markVerified(ctx, class, identity, now)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to mark account verified",
			"error", err, "identity", logger.HashIdentity(identity), "class", string(class))
		return err
	}
	if !changed {
		logger.DebugContext(ctx, "Verified code left account unchanged",
			"identity", logger.HashIdentity(identity), "class", string(class))
		return nil
	}

	logger.InfoContext(ctx, "Account verified", "identity", logger.HashIdentity(identity), "class", string(class))
	s.publish(ctx, events.AccountVerified, events.AccountVerifiedEvent{
		Identity:   logger.HashIdentity(identity),
		Class:      string(class),
		VerifiedAt: now,
	})
	return nil
}

func (s *codeService) RemainingSeconds(ctx context.Context, identity string, purpose domain.Purpose) (int, error) {
	status, err := s.Current(ctx, identity, purpose)
	if err != nil {
		return 0, err
	}
	return status.RemainingSeconds, nil
}

func (s *codeService) Current(ctx context.Context, identity string, purpose domain.Purpose) (*domain.CodeStatus, error) {
	row, err := s.store.Find(ctx, identity, purpose)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStorage, err)
	}
	if row == nil {
		return &domain.CodeStatus{}, nil
	}
	return &domain.CodeStatus{
		Exists:           true,
		Code:             row.Code,
		RemainingSeconds: row.RemainingSeconds(s.now()),
	}, nil
}

// Resend without force leaves a still-live code alone and sends nothing; the
// caller is only told the code is still valid.
func (s *codeService) Resend(ctx context.Context, identity, displayName string, purpose domain.Purpose, force bool, channel domain.Channel) (*domain.ResendResult, error) {
	return s.resend(ctx, identity, displayName, purpose, force, channel, true)
}

// DecoyResend follows the Resend rules for an identity with no account,
// storing codes but never sending them.
func (s *codeService) DecoyResend(ctx context.Context, identity string, purpose domain.Purpose, force bool) (*domain.ResendResult, error) {
	return s.resend(ctx, identity, "", purpose, force, purpose.Channel(), false)
}

func (s *codeService) resend(ctx context.Context, identity, displayName string, purpose domain.Purpose, force bool, channel domain.Channel, deliver bool) (*domain.ResendResult, error) {
	status, err := s.Current(ctx, identity, purpose)
	if err != nil {
		return nil, err
	}
	if !force && status.Exists && status.RemainingSeconds > 0 {
		return &domain.ResendResult{
			Success:          true,
			IsNew:            false,
			RemainingSeconds: status.RemainingSeconds,
		}, nil
	}

	code, err := s.Generate(ctx, identity, purpose)
	if err != nil {
		return nil, err
	}
	delivered := s.send(ctx, identity, displayName, code, purpose, channel, deliver)

	return &domain.ResendResult{
		Success:          delivered,
		IsNew:            true,
		RemainingSeconds: int(s.ttl / time.Second),
	}, nil
}

func (s *codeService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.store.PurgeExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrStorage, err)
	}
	return n, nil
}

func (s *codeService) recordIssued(ctx context.Context, identity string, purpose domain.Purpose, delivered bool) {
	metrics.CodesIssuedTotal.WithLabelValues(purpose.String(), strconv.FormatBool(delivered)).Inc()
	s.publish(ctx, events.CodeIssued, events.CodeIssuedEvent{
		Identity:  logger.HashIdentity(identity),
		Purpose:   purpose.String(),
		Delivered: delivered,
		ExpiresAt: s.now().Add(s.ttl),
	})
}

func (s *codeService) publish(ctx context.Context, subject string, payload any) {
	if err := s.eventBus.Publish(ctx, subject, payload); err != nil {
		logger.WarnContext(ctx, "Failed to publish event", "error", err, "subject", subject)
	}
}
