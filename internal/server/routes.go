package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/soyeahso/agentcanvas/internal/version"
)

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Uptime  string `json:"uptime,omitempty"`
}

// Handler builds the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.log.Sub("http")))
	r.Use(middleware.Recoverer)
	if len(s.cfg.Server.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.cfg.Server.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(bearerAuth(s.cfg.Server.Auth.Token))

		r.Get("/gateway", s.handleGateway)
		r.Get("/events", s.handleEvents)

		r.Get("/projects", s.handleListProjects)
		r.Post("/projects", s.handleCreateProject)
		r.Put("/projects", s.handleReplaceProjects)
		r.Post("/projects/open", s.handleOpenProject)

		r.Route("/projects/{projectId}", func(r chi.Router) {
			r.Delete("/", s.handleDeleteProject)
			r.Post("/activate", s.handleActivateProject)
			r.Post("/discord", s.handleDiscordChannel)
			r.Get("/history", s.handleProjectHistory)
			r.Post("/tiles", s.handleCreateTile)

			r.Route("/tiles/{tileId}", func(r chi.Router) {
				r.Patch("/", s.handleUpdateTile)
				r.Delete("/", s.handleDeleteTile)
				r.Get("/workspace-files", s.handleGetWorkspaceFiles)
				r.Put("/workspace-files", s.handlePutWorkspaceFiles)
				r.Get("/heartbeat", s.handleGetHeartbeat)
				r.Put("/heartbeat", s.handlePutHeartbeat)
				r.Post("/send", s.handleSend)
				r.Get("/history", s.handleTileHistory)
				r.Get("/runs", s.handleTileRuns)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		sendError(w, http.StatusNotFound, "Not found.")
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Version: version.Version}
	if !s.startedAt.IsZero() {
		resp.Uptime = time.Since(s.startedAt).Round(time.Second).String()
	}
	sendJSON(w, http.StatusOK, resp)
}
