package domain

import "errors"

var (
	ErrStorage            = errors.New("storage failure")
	ErrInvalidCredentials = errors.New("incorrect email or password")
	ErrAccountNotFound    = errors.New("account not found")
	ErrPurposeMismatch    = errors.New("purpose does not belong to this account class")
	ErrValidation         = errors.New("invalid input")
	ErrInvalidCode        = errors.New("invalid or expired code")
)
