package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"imagesaver/domain/image"
	"imagesaver/domain/token"
	"imagesaver/internal/usecase"
)

// ServeImage handles GET /f/{id}
func (h *Handlers) ServeImage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	served, err := h.server.Execute(r.Context(), id, token.ParseBearer(r.Header.Get("Authorization")))
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrInvalidIdentifier):
			writeJSON(w, http.StatusBadRequest, messageResponse{Error: "Invalid file id"})
		case errors.Is(err, image.ErrUnauthorized):
			writeJSON(w, http.StatusUnauthorized, messageResponse{Error: "Unauthorized"})
		case errors.Is(err, image.ErrNotFound):
			writeJSON(w, http.StatusNotFound, messageResponse{Error: "File not found"})
		default:
			h.logger.Error("Serve request failed",
				"request_id", RequestID(r.Context()),
				"fid", id,
				"error", err)
			writeJSON(w, http.StatusInternalServerError, messageResponse{Error: "Internal server error"})
		}
		return
	}
	defer served.File.Close()

	// Stored files never change once published
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	http.ServeContent(w, r, served.Name, served.ModTime, served.File)
}
