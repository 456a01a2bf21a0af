package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with the build routes mounted.
// sseHandler, if non-nil, is mounted at GET /events behind the same auth.
func NewRouter(builds Builds, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(builds)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/builds", h.ListBuilds)
	r.Get("/builds/latest", h.LatestBuild)
	r.Post("/builds", h.TriggerBuild)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}
	return r
}
