package mailer

import (
	"context"
	"time"

	"github.com/diagnosis/kabataan-portal/services/auth/internal/domain"
)

// Service delivers a one-time code that stays valid for ttl. Ordinary delivery failures come back as
// errors; callers decide what to tell the user.
type Service interface {
	SendCode(ctx context.Context, toEmail, toName, code string, channel domain.Channel, ttl time.Duration) error
}
