package service

import (
	"time"

	"github.com/diagnosis/kabataan-portal/pkg/auth"
	"github.com/diagnosis/kabataan-portal/pkg/config"
	"github.com/diagnosis/kabataan-portal/services/auth/internal/domain"
)

// SessionIssuer opens a session. Each call must mint a new session id.
type SessionIssuer interface {
	Open(account *domain.Account, role string, class domain.AccountClass) (*domain.Session, error)
}

type jwtSessions struct {
	secret string
	ttl    time.Duration
	now    func() time.Time
}

func NewJWTSessions(cfg config.AuthConfig) SessionIssuer {
	return &jwtSessions{secret: cfg.JWTSecret, ttl: cfg.SessionTTL, now: time.Now}
}

func (j *jwtSessions) Open(account *domain.Account, role string, class domain.AccountClass) (*domain.Session, error) {
	token, id, err := auth.NewSessionToken(account.ID, account.Email, role, string(class), j.secret, j.ttl, j.now())
	if err != nil {
		return nil, err
	}
	return &domain.Session{Token: token, ID: id, ExpiresIn: int64(j.ttl.Seconds())}, nil
}
