package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"

	"imagesaver/domain/image"
	"imagesaver/domain/observability"
	"imagesaver/domain/token"
)

const maxURLLength = 2048

type saveImageReq struct {
	URL string `json:"url"`
}

func (req *saveImageReq) Validate() error {
	return validation.ValidateStruct(req,
		validation.Field(&req.URL, validation.Required, validation.Length(1, maxURLLength)),
	)
}

type saveImageResp struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	FID     string `json:"fid"`
	URL     string `json:"url"`
}

// SaveImage handles POST /api/save
func (h *Handlers) SaveImage(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.WithFields(map[string]interface{}{"request_id": RequestID(r.Context())})

	callerToken := token.ParseBearer(r.Header.Get("Authorization"))
	auth, err := h.saver.Authorize(r.Context(), callerToken)
	if err != nil {
		h.writeSaveError(w, logger, err)
		return
	}

	var req saveImageReq
	body := http.MaxBytesReader(w, r.Body, h.opts.MaxRequestSize)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		logger.Info("Rejected request body", "error", err)
		writeJSON(w, http.StatusBadRequest, errorResponse{Status: "error", Error: "Invalid request body"})
		return
	}
	req.URL = strings.TrimSpace(req.URL)

	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Status: "error", Error: "Invalid URL: " + err.Error()})
		return
	}

	stored, err := h.saver.Save(r.Context(), auth, image.DownloadRequest{
		SourceURL:   req.URL,
		CallerToken: callerToken,
	})
	if err != nil {
		h.writeSaveError(w, logger, err)
		return
	}

	writeJSON(w, http.StatusOK, saveImageResp{
		Status:  "success",
		Message: "Image saved successfully",
		FID:     stored.Identifier,
		URL:     h.opts.PublicHost + "/f/" + stored.Identifier,
	})
}

func (h *Handlers) writeSaveError(w http.ResponseWriter, logger observability.Logger, err error) {
	status, message := publicError(err)
	if status >= http.StatusInternalServerError {
		logger.Error("Save request failed", "status", status, "error", err)
	} else {
		logger.Info("Save request rejected", "status", status, "error", err)
	}
	writeJSON(w, status, errorResponse{Status: "error", Error: message})
}
