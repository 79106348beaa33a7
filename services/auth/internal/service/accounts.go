package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/diagnosis/kabataan-portal/services/auth/internal/domain"
	"github.com/diagnosis/kabataan-portal/services/auth/internal/repository"
)

// accounts resolves an identity to the account of a given class.
type accounts struct {
	members  repository.MemberRepository
	officers repository.OfficerRepository
}

// accountRef is a read-only view of either account class.
type accountRef struct {
	*domain.Account
	officer *domain.Officer
}

// lookup returns (nil, nil) when no account of that class has the email.
func (a *accounts) lookup(ctx context.Context, class domain.AccountClass, email string) (*accountRef, error) {
	switch class {
	case domain.ClassMember:
		m, err := a.members.FindByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrStorage, err)
		}
		if m == nil {
			return nil, nil
		}
		return &accountRef{Account: m}, nil
	case domain.ClassOfficer:
		o, err := a.officers.FindByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrStorage, err)
		}
		if o == nil {
			return nil, nil
		}
		return &accountRef{Account: &o.Account, officer: o}, nil
	}
	return nil, fmt.Errorf("%w: unknown account class %q", domain.ErrValidation, class)
}

// markVerified updates only the verification columns. changed is false when
// the account was already verified or has gone away.
func (a *accounts) markVerified(ctx context.Context, class domain.AccountClass, email string, at time.Time) (changed bool, err error) {
	switch class {
	case domain.ClassMember:
		changed, err = a.members.MarkVerified(ctx, email, at)
	case domain.ClassOfficer:
		changed, err = a.officers.MarkVerified(ctx, email, at)
	default:
		return false, fmt.Errorf("%w: unknown account class %q", domain.ErrValidation, class)
	}
	if err != nil {
		return false, fmt.Errorf("%w: %w", domain.ErrStorage, err)
	}
	return changed, nil
}

// setPasswordHash updates only the password hash.
func (a *accounts) setPasswordHash(ctx context.Context, class domain.AccountClass, email, hash string) error {
	var err error
	switch class {
	case domain.ClassMember:
		err = a.members.SetPasswordHash(ctx, email, hash)
	case domain.ClassOfficer:
		err = a.officers.SetPasswordHash(ctx, email, hash)
	default:
		return fmt.Errorf("%w: unknown account class %q", domain.ErrValidation, class)
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrAccountNotFound):
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrStorage, err)
}
