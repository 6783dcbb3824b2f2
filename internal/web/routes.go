package web

import (
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/kozaktomas/library-sorter/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	operationsHandler := handlers.NewOperationsHandler(s.service, s.supervisor)
	profilesHandler := handlers.NewProfilesHandler(s.service, s.supervisor)
	systemHandler := handlers.NewSystemHandler(s.service, s.supervisor)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Event streams must outlive the request timeout
		r.Get("/operations/{opId}/events", operationsHandler.Events)

		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.Timeout(5 * time.Minute))

			r.Get("/health", systemHandler.Health)

			// Long-running operations
			r.Post("/operations/match", operationsHandler.Match)
			r.Post("/operations/apply", operationsHandler.Apply)
			r.Post("/operations/generate", operationsHandler.Generate)
			r.Post("/operations/auto-create", operationsHandler.AutoCreate)
			r.Post("/operations/dedup", operationsHandler.Dedup)
			r.Get("/operations/current", operationsHandler.Current)
			r.Delete("/operations/current", operationsHandler.Cancel)
			r.Get("/operations/{opId}", operationsHandler.Get)
			r.Get("/proposals", operationsHandler.Proposals)

			// Profiles
			r.Get("/profiles", profilesHandler.List)
			r.Post("/profiles/rank", profilesHandler.Rank)
			r.Get("/profiles/{name}", profilesHandler.Get)
			r.Post("/profiles/{name}/rebuild", profilesHandler.Rebuild)
			r.Post("/profiles/{name}/split", profilesHandler.Split)

			// Feature cache
			r.Get("/cache", systemHandler.CacheStats)
			r.Delete("/cache", systemHandler.ClearCache)
		})
	})
}
