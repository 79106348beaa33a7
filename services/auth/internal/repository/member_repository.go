package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/diagnosis/kabataan-portal/services/auth/internal/domain"
)

type MemberRepository interface {
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	MarkVerified(ctx context.Context, email string, at time.Time) (bool, error)
	SetPasswordHash(ctx context.Context, email, hash string) error
}

type memberRepository struct {
	db DBTX
}

func NewMemberRepository(db DBTX) MemberRepository {
	return &memberRepository{db: db}
}

const memberCols = `id, email, first_name, last_name, password_hash, verification_status, verified_at, created_at, updated_at`

func (r *memberRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	const q = `SELECT ` + memberCols + ` FROM members WHERE email = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var m domain.Account
	err := r.db.QueryRow(ctx, q, email).Scan(
		&m.ID, &m.Email, &m.FirstName, &m.LastName, &m.PasswordHash,
		&m.VerificationStatus, &m.VerifiedAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find member: %w", err)
	}
	return &m, nil
}

// MarkVerified sets verification_status and verified_at and nothing else.
// It reports false when the member was already verified or does not exist.
func (r *memberRepository) MarkVerified(ctx context.Context, email string, at time.Time) (bool, error) {
	const q = `
		UPDATE members
		SET verification_status = $2, verified_at = $3, updated_at = now()
		WHERE email = $1 AND verification_status <> $2`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tag, err := r.db.Exec(ctx, q, email, domain.StatusVerified, at)
	if err != nil {
		return false, fmt.Errorf("mark member verified: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *memberRepository) SetPasswordHash(ctx context.Context, email, hash string) error {
	const q = `UPDATE members SET password_hash = $2, updated_at = now() WHERE email = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tag, err := r.db.Exec(ctx, q, email, hash)
	if err != nil {
		return fmt.Errorf("set member password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}
