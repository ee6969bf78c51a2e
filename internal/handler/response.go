package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"imagesaver/domain/image"
)

type errorResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

type messageResponse struct {
	Error string `json:"error"`
}

// publicError maps a save failure to its HTTP status and the message shown
// to the caller. Internal causes stay in the logs.
func publicError(err error) (int, string) {
	switch image.KindOf(err) {
	case image.KindInvalidURL:
		return http.StatusBadRequest, "Invalid URL"
	case image.KindNotAnImage:
		return http.StatusBadRequest, "URL does not point to an image"
	case image.KindUpstreamError:
		if code := image.StatusCodeOf(err); code != 0 {
			return http.StatusBadRequest, fmt.Sprintf("Failed to download image: upstream responded with status %d", code)
		}
		return http.StatusBadRequest, "Failed to download image"
	case image.KindImageTooLarge:
		return http.StatusBadRequest, "Image exceeds the maximum allowed size"
	case image.KindUnauthorized:
		return http.StatusUnauthorized, "Unauthorized"
	case image.KindDownloadTimeout:
		return http.StatusInternalServerError, "Download timed out"
	case image.KindTransferFailed:
		return http.StatusInternalServerError, "Failed to download image"
	case image.KindWriteFailed:
		return http.StatusInternalServerError, "Failed to save image"
	case image.KindNotFound:
		return http.StatusNotFound, "File not found"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
