package domain

import "time"

type IneligibilityReason string

const (
	ReasonTermExpired       IneligibilityReason = "TermExpired"
	ReasonOverAge           IneligibilityReason = "OverAge"
	ReasonTermLimitExceeded IneligibilityReason = "TermLimitExceeded"
)

const (
	MaxOfficerAge = 25 // exclusive: an officer aged 25 is over age
	MaxTerms      = 3
)

func TermExpired(o *Officer, now time.Time) bool {
	return o.TermEnd != nil && now.After(*o.TermEnd)
}

func OverAge(o *Officer) bool {
	return o.Age >= MaxOfficerAge
}

func TermLimitExceeded(o *Officer) bool {
	return o.TermsServed > MaxTerms
}

// Evaluate lists every reason the officer may not log in, in a fixed order.
// Admins are never gated.
func Evaluate(o *Officer, now time.Time) []IneligibilityReason {
	reasons := []IneligibilityReason{}
	if o.IsAdmin() {
		return reasons
	}
	if TermExpired(o, now) {
		reasons = append(reasons, ReasonTermExpired)
	}
	if OverAge(o) {
		reasons = append(reasons, ReasonOverAge)
	}
	if TermLimitExceeded(o) {
		reasons = append(reasons, ReasonTermLimitExceeded)
	}
	return reasons
}
