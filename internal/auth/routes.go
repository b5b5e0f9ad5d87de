package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/stationdesk/casedesk-backend/internal/middleware"
)

func SetupRoutes(h *Handler) http.Handler {
	r := chi.NewRouter()
	sessionFetcher := SessionInfo{DB: h.DB}

	r.Post("/login", h.LoginHandler)

	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionMiddleware(sessionFetcher))
		r.Post("/logout", h.LogoutHandler)
		r.Get("/me", h.MeHandler)
		r.Post("/password", h.UpdatePasswordHandler)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(RoleAdmin))
			r.Post("/register", h.RegisterHandler)
		})
	})

	return r
}
