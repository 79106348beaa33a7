package repository

import (
	"context"
	"time"

	"github.com/diagnosis/kabataan-portal/services/auth/internal/domain"
)

// CodeRepository stores at most one code per (identity, purpose). Find
// returns (nil, nil) when no row exists; expiry is left to the caller.
type CodeRepository interface {
	// Upsert replaces any existing row for the pair in a single statement.
	Upsert(ctx context.Context, code *domain.VerificationCode) error
	Find(ctx context.Context, identity string, purpose domain.Purpose) (*domain.VerificationCode, error)
	// Consume deletes the row only if code matches and it has not expired at
	// now. Exactly one concurrent caller can observe true.
	Consume(ctx context.Context, identity string, purpose domain.Purpose, code string, now time.Time) (bool, error)
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}
