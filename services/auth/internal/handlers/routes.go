package handlers

import (
	"github.com/go-chi/chi/v5"

	"github.com/diagnosis/kabataan-portal/services/auth/internal/domain"
)

// Routes registers the auth endpoints on r.
func (h *Handlers) Routes(r chi.Router) {
	r.Route("/members", func(r chi.Router) {
		r.With(h.RateLimit("member_login")).Post("/login", h.MemberLogin)
		h.classRoutes(r, domain.ClassMember)
	})

	r.Route("/officers", func(r chi.Router) {
		r.With(h.RateLimit("officer_login")).Post("/login", h.OfficerLogin)
		r.With(h.RateLimit("officer_2fa")).Post("/verify-2fa", h.VerifySecondFactor)
		h.classRoutes(r, domain.ClassOfficer)
	})

	// Admin routes (require admin JWT)
	r.Route("/admin", func(r chi.Router) {
		r.Use(h.RequireJWT(domain.RoleAdmin))
		r.Post("/officers/activate", h.ActivateOfficer)
	})
}

// classRoutes are the code endpoints both account classes share.
func (h *Handlers) classRoutes(r chi.Router, class domain.AccountClass) {
	scope := string(class)
	r.With(h.RateLimit(scope+"_verify")).Post("/verify-email", h.VerifyEmail(class))
	r.With(h.RateLimit(scope+"_resend")).Post("/resend", h.Resend(class))
	r.Get("/code-status", h.CodeStatus(class))

	r.Route("/password-reset", func(r chi.Router) {
		r.Use(h.RateLimit(scope + "_reset"))
		r.Post("/request", h.RequestPasswordReset(class))
		r.Post("/confirm", h.ConfirmPasswordReset(class))
		r.Post("/complete", h.CompletePasswordReset(class))
	})
}
