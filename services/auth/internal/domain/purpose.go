package domain

import (
	"fmt"
	"time"
)

// Purpose tags which flow a verification code belongs to. Exactly one code
// may be live per (identity, purpose).
type Purpose string

const (
	PurposeMemberVerify  Purpose = "member_verify"
	PurposeOfficerVerify Purpose = "officer_verify"
	PurposeMemberReset   Purpose = "member_reset"
	PurposeOfficerReset  Purpose = "officer_reset"
	PurposeOfficer2FA    Purpose = "officer_2fa"
)

var purposes = map[Purpose]AccountClass{
	PurposeMemberVerify:  ClassMember,
	PurposeMemberReset:   ClassMember,
	PurposeOfficerVerify: ClassOfficer,
	PurposeOfficerReset:  ClassOfficer,
	PurposeOfficer2FA:    ClassOfficer,
}

func ParsePurpose(s string) (Purpose, error) {
	p := Purpose(s)
	if _, ok := purposes[p]; !ok {
		return "", fmt.Errorf("%w: unknown purpose %q", ErrValidation, s)
	}
	return p, nil
}

func (p Purpose) Valid() bool {
	_, ok := purposes[p]
	return ok
}

// Class is the account class whose account the code belongs to.
func (p Purpose) Class() AccountClass {
	return purposes[p]
}

// IsVerify reports whether a consuming verify flips the account to verified.
func (p Purpose) IsVerify() bool {
	return p == PurposeMemberVerify || p == PurposeOfficerVerify
}

// Channel selects the message template used when delivering the code.
func (p Purpose) Channel() Channel {
	if p == PurposeMemberReset || p == PurposeOfficerReset {
		return ChannelReset
	}
	return ChannelVerification
}

func (p Purpose) String() string { return string(p) }

type Channel string

const (
	ChannelVerification Channel = "verification"
	ChannelReset        Channel = "reset"
)

type AccountClass string

const (
	ClassMember  AccountClass = "member"
	ClassOfficer AccountClass = "officer"
)

// VerifyPurpose and ResetPurpose return the class-specific purpose.
func (c AccountClass) VerifyPurpose() Purpose {
	if c == ClassOfficer {
		return PurposeOfficerVerify
	}
	return PurposeMemberVerify
}

func (c AccountClass) ResetPurpose() Purpose {
	if c == ClassOfficer {
		return PurposeOfficerReset
	}
	return PurposeMemberReset
}

const (
	CodeLength = 6
	CodeTTL    = 5 * time.Minute
)

type VerificationCode struct {
	Identity  string    `json:"identity"`
	Purpose   Purpose   `json:"purpose"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpired applies the lazy expiry rule: a code is live while now <= expires_at.
func (c *VerificationCode) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// RemainingSeconds is the time left rounded up to whole seconds. A code that
// still verifies reports at least 1; an expired or missing one reports 0.
func (c *VerificationCode) RemainingSeconds(now time.Time) int {
	if c == nil || c.IsExpired(now) {
		return 0
	}
	secs := int((c.ExpiresAt.Sub(now) + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
