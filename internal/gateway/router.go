package gateway

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"imagebot/internal/middleware"
)

// NewRouter assembles the gateway's HTTP surface.
func NewRouter(app *App, rateLimitPerMin int) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(app.Log))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(rateLimitPerMin, time.Minute))
		r.Post("/chat/command", app.Command)
		r.Post("/chat/interact", app.Interact)
	})

	r.Get("/files/*", app.ServeFile)
	r.Get("/requests/{request_id}/archive", app.Archive)

	return r
}
