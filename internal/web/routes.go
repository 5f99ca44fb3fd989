package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/facelog/internal/web/handlers"
	"github.com/kozaktomas/facelog/internal/web/middleware"
)

func (s *Server) setupRoutes() {
	authHandler := handlers.NewAuthHandler(s.faces, s.sessionManager, s.logger)
	facesHandler := handlers.NewFacesHandler(s.faces, s.logger)

	// Health check and metrics (no auth required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)
	s.router.Handle("/metrics", s.metrics.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/face-login", authHandler.FaceLogin)
		r.Post("/auth/logout", authHandler.Logout)
		r.Get("/auth/status", authHandler.Status)

		// Detection lets the login page check a capture before submitting it
		r.Post("/faces/detect", facesHandler.Detect)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuthOrToken(s.sessionManager, s.config.Web.EnrollToken))

			r.Post("/faces/enroll", facesHandler.Enroll)
			r.Get("/identities", facesHandler.ListIdentities)
			r.Get("/recognition-logs", facesHandler.ListRecognitionLogs)
		})
	})
}
