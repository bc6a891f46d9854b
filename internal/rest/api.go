package rest

import (
	"github.com/dfryer1193/shift/internal/rest/handlers"
	"github.com/go-chi/chi/v5"
)

// SetupRoutes mounts the migration status surface on the supplied router.
func SetupRoutes(r chi.Router, status *handlers.StatusHandler) {
	r.Route("/migrations/v1", func(r chi.Router) {
		r.Get("/status", status.GetStatus)
		r.Get("/records", status.GetRecords)
		r.Post("/rollback", status.PostRollback)
	})
	r.Route("/health/v1", func(r chi.Router) {
		r.Get("/", status.GetHealth)
	})
}
