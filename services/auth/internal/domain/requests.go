package domain

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	codeRegex  = regexp.MustCompile(`^\d{6}$`)
)

const MinPasswordLength = 8

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type CodeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type ResendRequest struct {
	Email   string  `json:"email"`
	Purpose Purpose `json:"purpose"`
	Force   bool    `json:"force"`
}

type EmailRequest struct {
	Email string `json:"email"`
}

type ResetCompleteRequest struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

func (r *LoginRequest) Normalize() {
	r.Email = normalizeEmail(r.Email)
}

func (r *LoginRequest) Validate() error {
	if err := validateEmail(r.Email); err != nil {
		return err
	}
	if r.Password == "" {
		return invalid("password is required")
	}
	return nil
}

func (r *CodeRequest) Normalize() {
	r.Email = normalizeEmail(r.Email)
	r.Code = strings.TrimSpace(r.Code)
}

func (r *CodeRequest) Validate() error {
	if err := validateEmail(r.Email); err != nil {
		return err
	}
	return validateCode(r.Code)
}

func (r *ResendRequest) Normalize() {
	r.Email = normalizeEmail(r.Email)
	r.Purpose = Purpose(strings.TrimSpace(string(r.Purpose)))
}

func (r *ResendRequest) Validate() error {
	if err := validateEmail(r.Email); err != nil {
		return err
	}
	_, err := ParsePurpose(string(r.Purpose))
	return err
}

func (r *EmailRequest) Normalize() {
	r.Email = normalizeEmail(r.Email)
}

func (r *EmailRequest) Validate() error {
	return validateEmail(r.Email)
}

func (r *ResetCompleteRequest) Normalize() {
	r.Email = normalizeEmail(r.Email)
	r.Code = strings.TrimSpace(r.Code)
}

func (r *ResetCompleteRequest) Validate() error {
	if err := validateEmail(r.Email); err != nil {
		return err
	}
	if err := validateCode(r.Code); err != nil {
		return err
	}
	if len(r.NewPassword) < MinPasswordLength {
		return invalid(fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if email == "" {
		return invalid("email is required")
	}
	if !emailRegex.MatchString(email) {
		return invalid("invalid email format")
	}
	return nil
}

func validateCode(code string) error {
	if code == "" {
		return invalid("code is required")
	}
	if !codeRegex.MatchString(code) {
		return invalid("code must be 6 digits")
	}
	return nil
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}
