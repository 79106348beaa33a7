package domain

type LoginState string

const (
	StateCredentialRejected          LoginState = "credential_rejected"
	StateIneligible                  LoginState = "ineligible"
	StateAwaitingSecondFactor        LoginState = "awaiting_second_factor"
	StateAwaitingEmailVerification   LoginState = "awaiting_email_verification"
	StateAwaitingAdminAuthentication LoginState = "awaiting_admin_authentication"
	StateSessionEstablished          LoginState = "session_established"
)

type Session struct {
	Token     string `json:"session_token"`
	ID        string `json:"session_id"`
	ExpiresIn int64  `json:"expires_in"`
}

// LoginResult tells the client what it must do next.
type LoginResult struct {
	State            LoginState            `json:"state"`
	Reasons          []IneligibilityReason `json:"reasons,omitempty"`
	CodeDelivered    *bool                 `json:"code_delivered,omitempty"`
	RemainingSeconds int                   `json:"remaining_seconds,omitempty"`
	Session          *Session              `json:"session,omitempty"`
}

type VerifyFailure string

const (
	FailureNone     VerifyFailure = ""
	FailureNotFound VerifyFailure = "not_found"
	FailureMismatch VerifyFailure = "mismatch"
	FailureExpired  VerifyFailure = "expired"
)

// VerifyResult is the outcome of a code check. Failure is kept server side;
// callers only ever see Valid and the expiry hint.
type VerifyResult struct {
	Valid   bool          `json:"valid"`
	Expired bool          `json:"is_otp_expired"`
	Failure VerifyFailure `json:"-"`
}

type ResendResult struct {
	Success          bool `json:"success"`
	IsNew            bool `json:"is_new"`
	RemainingSeconds int  `json:"remaining_seconds"`
}

// CodeStatus is the read-only status answer. Code never leaves the process.
type CodeStatus struct {
	Exists           bool   `json:"exists"`
	Code             string `json:"-"`
	RemainingSeconds int    `json:"remaining_seconds"`
}

// SecondFactorResult is returned when an officer submits the 2FA code.
type SecondFactorResult struct {
	VerifyResult
	State   LoginState `json:"state,omitempty"`
	Session *Session   `json:"session,omitempty"`
}

type IssueResult struct {
	Delivered        bool `json:"delivered"`
	RemainingSeconds int  `json:"remaining_seconds"`
}
