package handlers

import (
	"net/http"

	"github.com/diagnosis/kabataan-portal/pkg/logger"
	"github.com/diagnosis/kabataan-portal/services/auth/internal/domain"
)

type loginResponse struct {
	*domain.LoginResult
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
}

type verifyResponse struct {
	*domain.VerifyResult
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
}

func writeLogin(w http.ResponseWriter, res *domain.LoginResult) {
	switch res.State {
	case domain.StateCredentialRejected:
		writeJSON(w, http.StatusUnauthorized, loginResponse{
			LoginResult: res,
			Error:       domain.ErrInvalidCredentials.Error(),
			Code:        "LOGIN_FAILED",
		})
	case domain.StateIneligible:
		writeJSON(w, http.StatusForbidden, loginResponse{
			LoginResult: res,
			Error:       "Account is not eligible to sign in",
			Code:        "INELIGIBLE",
		})
	default:
		writeJSON(w, http.StatusOK, loginResponse{LoginResult: res})
	}
}

func writeVerify(w http.ResponseWriter, res *domain.VerifyResult) {
	if res.Valid {
		writeJSON(w, http.StatusOK, verifyResponse{VerifyResult: res})
		return
	}
	writeJSON(w, http.StatusBadRequest, verifyResponse{
		VerifyResult: res,
		Error:        domain.ErrInvalidCode.Error(),
		Code:         "INVALID_CODE",
	})
}

// MemberLogin handles member sign in
func (h *Handlers) MemberLogin(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.authService.MemberLogin(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeLogin(w, res)
}

// OfficerLogin handles the first step of officer sign in
func (h *Handlers) OfficerLogin(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.authService.OfficerLogin(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeLogin(w, res)
}

// VerifySecondFactor completes officer sign in
func (h *Handlers) VerifySecondFactor(w http.ResponseWriter, r *http.Request) {
	var req domain.CodeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.authService.CompleteSecondFactor(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if !res.Valid {
		writeVerify(w, &res.VerifyResult)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) VerifyEmail(class domain.AccountClass) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.CodeRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		res, err := h.authService.VerifyEmail(r.Context(), class, &req)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeVerify(w, res)
	}
}

func (h *Handlers) Resend(class domain.AccountClass) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.ResendRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		res, err := h.authService.ResendCode(r.Context(), class, &req)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// CodeStatus reports whether a code is pending and its remaining lifetime
func (h *Handlers) CodeStatus(class domain.AccountClass) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		purpose, err := domain.ParsePurpose(q.Get("purpose"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		res, err := h.authService.CodeStatus(r.Context(), class, q.Get("email"), purpose)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func (h *Handlers) RequestPasswordReset(class domain.AccountClass) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.EmailRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		res, err := h.authService.RequestPasswordReset(r.Context(), class, &req)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"message":           "If an account exists for this email, a reset code has been sent.",
			"delivered":         res.Delivered,
			"remaining_seconds": res.RemainingSeconds,
		})
	}
}

func (h *Handlers) ConfirmPasswordReset(class domain.AccountClass) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.CodeRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		res, err := h.authService.ConfirmPasswordReset(r.Context(), class, &req)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeVerify(w, res)
	}
}

func (h *Handlers) CompletePasswordReset(class domain.AccountClass) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.ResetCompleteRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		res, err := h.authService.CompletePasswordReset(r.Context(), class, &req)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeVerify(w, res)
	}
}

// Admin handlers

// ActivateOfficer approves an officer account (admin only)
func (h *Handlers) ActivateOfficer(w http.ResponseWriter, r *http.Request) {
	var req domain.EmailRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.authService.ActivateOfficer(r.Context(), &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	if claims := getClaims(r); claims != nil {
		logger.InfoContext(r.Context(), "Officer activation by admin",
			"admin", logger.HashIdentity(claims.Email), "identity", logger.HashIdentity(req.Email))
	}
	w.WriteHeader(http.StatusNoContent)
}
