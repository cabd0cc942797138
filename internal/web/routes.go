package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/recallapp/recall/internal/encounter"
	"github.com/recallapp/recall/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	personsHandler := handlers.NewPersonsHandler(s.store)
	matchHandler := handlers.NewMatchHandler(s.store, s.index, s.config.Matching)
	encountersHandler := handlers.NewEncountersHandler(s.store, encounter.OptionsFromConfig(s.config.Clustering), s.pipeline)
	scanHandler := handlers.NewScanHandler(s.store, s.pipeline)
	auditHandler := handlers.NewAuditHandler(s.auditor)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handlers.HealthCheck)

		// Persons
		r.Get("/persons", personsHandler.List)
		r.Post("/persons", personsHandler.Create)
		r.Get("/persons/{id}", personsHandler.Get)
		r.Delete("/persons/{id}", personsHandler.Delete)
		r.Get("/persons/{id}/embeddings", personsHandler.Embeddings)

		// Matching
		r.Post("/match", matchHandler.Match)

		// Encounters and face boxes
		r.Get("/encounters", encountersHandler.List)
		r.Post("/encounters/cluster", encountersHandler.Cluster)
		r.Get("/encounters/{id}", encountersHandler.Get)
		r.Put("/encounters/{id}/boxes/{boxID}/label", encountersHandler.LabelBox)
		r.Delete("/encounters/{id}/boxes/{boxID}/label", encountersHandler.ClearBoxLabel)

		// Scanning and integrity
		r.Post("/scan", scanHandler.Scan)
		r.Post("/audit", auditHandler.Audit)
	})
}
