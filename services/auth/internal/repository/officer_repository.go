package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/diagnosis/kabataan-portal/services/auth/internal/domain"
)

type OfficerRepository interface {
	FindByEmail(ctx context.Context, email string) (*domain.Officer, error)
	MarkVerified(ctx context.Context, email string, at time.Time) (bool, error)
	SetPasswordHash(ctx context.Context, email, hash string) error
	Activate(ctx context.Context, email string) error
}

type officerRepository struct {
	db DBTX
}

func NewOfficerRepository(db DBTX) OfficerRepository {
	return &officerRepository{db: db}
}

const officerCols = `id, email, first_name, last_name, password_hash, verification_status, verified_at,
	authentication_status, role, term_start, term_end, terms_served, age, created_at, updated_at`

func (r *officerRepository) FindByEmail(ctx context.Context, email string) (*domain.Officer, error) {
	const q = `SELECT ` + officerCols + ` FROM officers WHERE email = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var o domain.Officer
	err := r.db.QueryRow(ctx, q, email).Scan(
		&o.ID, &o.Email, &o.FirstName, &o.LastName, &o.PasswordHash, &o.VerificationStatus, &o.VerifiedAt,
		&o.AuthenticationStatus, &o.Role, &o.TermStart, &o.TermEnd, &o.TermsServed, &o.Age, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find officer: %w", err)
	}
	return &o, nil
}

// MarkVerified sets verification_status and verified_at and nothing else.
// It reports false when the officer was already verified or does not exist.
func (r *officerRepository) MarkVerified(ctx context.Context, email string, at time.Time) (bool, error) {
	const q = `
		UPDATE officers
		SET verification_status = $2, verified_at = $3, updated_at = now()
		WHERE email = $1 AND verification_status <> $2`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tag, err := r.db.Exec(ctx, q, email, domain.StatusVerified, at)
	if err != nil {
		return false, fmt.Errorf("mark officer verified: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *officerRepository) SetPasswordHash(ctx context.Context, email, hash string) error {
	const q = `UPDATE officers SET password_hash = $2, updated_at = now() WHERE email = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tag, err := r.db.Exec(ctx, q, email, hash)
	if err != nil {
		return fmt.Errorf("set officer password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

// Activate records the administrator's approval. Activating an active
// officer is a no-op.
func (r *officerRepository) Activate(ctx context.Context, email string) error {
	const q = `UPDATE officers SET authentication_status = $2, updated_at = now() WHERE email = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tag, err := r.db.Exec(ctx, q, email, domain.AuthStatusActive)
	if err != nil {
		return fmt.Errorf("activate officer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}
