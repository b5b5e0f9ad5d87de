package casework

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// SetupRoutes mounts the casework API. Extra middleware (session, rate
// limit) is applied by the caller around the whole group.
func SetupRoutes(h *Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(mws...)

	r.Post("/assign-case", h.AssignCase)

	r.Get("/reports", h.ListReports)
	r.Get("/reports/nearby", h.NearbyReports)
	r.Get("/reports/{id}", h.GetReport)
	r.Get("/reports/{id}/evidence", h.ListEvidence)
	r.Post("/reports/{id}/evidence", h.AddEvidence)

	r.Get("/officers", h.ListOfficers)
	r.Get("/officers/{id}", h.GetOfficer)

	r.Get("/locations", h.Locations)

	return r
}
