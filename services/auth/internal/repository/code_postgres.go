package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/diagnosis/kabataan-portal/services/auth/internal/domain"
)

// DBTX is the subset of pgxpool.Pool the repositories use.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type postgresCodeStore struct {
	db DBTX
}

func NewPostgresCodeStore(db DBTX) CodeRepository {
	return &postgresCodeStore{db: db}
}

func (r *postgresCodeStore) Upsert(ctx context.Context, c *domain.VerificationCode) error {
	const q = `
		INSERT INTO verification_codes (identity, purpose, code, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (identity, purpose) DO UPDATE SET
			code = EXCLUDED.code,
			expires_at = EXCLUDED.expires_at`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if _, err := r.db.Exec(ctx, q, c.Identity, string(c.Purpose), c.Code, c.ExpiresAt); err != nil {
		return fmt.Errorf("upsert code: %w", err)
	}
	return nil
}

func (r *postgresCodeStore) Find(ctx context.Context, identity string, purpose domain.Purpose) (*domain.VerificationCode, error) {
	const q = `
		SELECT code, expires_at
		FROM verification_codes
		WHERE identity = $1 AND purpose = $2`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	c := domain.VerificationCode{Identity: identity, Purpose: purpose}
	err := r.db.QueryRow(ctx, q, identity, string(purpose)).Scan(&c.Code, &c.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find code: %w", err)
	}
	return &c, nil
}

func (r *postgresCodeStore) Consume(ctx context.Context, identity string, purpose domain.Purpose, code string, now time.Time) (bool, error) {
	const q = `
		DELETE FROM verification_codes
		WHERE identity = $1
		  AND purpose = $2
		  AND code = $3
		  AND expires_at >= $4`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tag, err := r.db.Exec(ctx, q, identity, string(purpose), code, now)
	if err != nil {
		return false, fmt.Errorf("consume code: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *postgresCodeStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	const q = `DELETE FROM verification_codes WHERE expires_at < $1`

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tag, err := r.db.Exec(ctx, q, now)
	if err != nil {
		return 0, fmt.Errorf("purge codes: %w", err)
	}
	return tag.RowsAffected(), nil
}
