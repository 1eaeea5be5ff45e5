package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/username/esopfolio/backend/src/security"
)

// Handlers bundles everything the API router dispatches to.
type Handlers struct {
	Auth      *security.AuthService
	Upload    *UploadHandler
	Grants    *GrantHandler
	Portfolio *PortfolioHandler
}

// NewRouter builds the API routes. Routes touching stored grants require a
// bearer token.
func NewRouter(h Handlers) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "ESOPfolio Backend is running"})
	})

	r.Route("/api", func(r chi.Router) {
		// Stateless checks need no account.
		r.Post("/grants/validate", h.Upload.HandleValidate)
		r.Post("/analytics", h.Portfolio.HandleAnalyzeUpload)

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(h.Auth))
			r.Post("/grants/upload", h.Upload.HandleUpload)
			r.Get("/grants", h.Grants.HandleGetGrants)
			r.Delete("/grants", h.Grants.HandleDeleteGrants)
			r.Get("/analytics", h.Portfolio.HandleGetAnalytics)
			r.Get("/analytics/export", h.Portfolio.HandleExport)
		})
	})
	return r
}
