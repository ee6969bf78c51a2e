package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter wires the endpoints and middleware. metricsHandler may be nil.
func NewRouter(h *Handlers, metricsHandler http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestMetadata)
	r.Use(Logging(h.logger))
	r.Use(Metrics(h.metrics))
	r.Use(Recovery(h.logger))

	r.Post("/api/save", h.SaveImage)
	r.Get("/f/{id}", h.ServeImage)
	r.Head("/f/{id}", h.ServeImage)

	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, messageResponse{Error: "Not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, messageResponse{Error: "Method not allowed"})
	})

	return r
}
