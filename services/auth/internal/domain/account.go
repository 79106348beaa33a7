package domain

import (
	"strings"
	"time"
)

const (
	StatusNotVerified = "not_verified"
	StatusVerified    = "verified"

	AuthStatusActive    = "active"
	AuthStatusNotActive = "not_active"

	RoleAdmin = "Admin"
)

// Account holds the fields shared by members and officers.
type Account struct {
	ID                 int64      `json:"id"`
	Email              string     `json:"email"`
	FirstName          string     `json:"first_name"`
	LastName           string     `json:"last_name"`
	PasswordHash       string     `json:"-"`
	VerificationStatus string     `json:"verification_status"`
	VerifiedAt         *time.Time `json:"verified_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func (a *Account) IsVerified() bool {
	return a.VerificationStatus == StatusVerified
}

func (a *Account) DisplayName() string {
	name := strings.TrimSpace(a.FirstName + " " + a.LastName)
	if name == "" {
		return a.Email
	}
	return name
}

type Officer struct {
	Account
	AuthenticationStatus string     `json:"authentication_status"`
	Role                 string     `json:"role"`
	TermStart            *time.Time `json:"term_start,omitempty"`
	TermEnd              *time.Time `json:"term_end,omitempty"`
	TermsServed          int        `json:"terms_served"`
	Age                  int        `json:"age"`
}

func (o *Officer) IsActive() bool {
	return o.AuthenticationStatus == AuthStatusActive
}

func (o *Officer) IsAdmin() bool {
	return o.Role == RoleAdmin
}
