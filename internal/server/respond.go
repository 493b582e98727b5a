package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"cardreader/internal/logger"
	"cardreader/internal/ocr"
	"cardreader/internal/preprocess"
	"cardreader/internal/store"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeErr maps err to a status code and user-facing message and logs it.
func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := classify(err)

	log := logger.WithContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Msg("Request failed")
	} else {
		log.Debug().Err(err).Int("status", status).Msg("Request rejected")
	}
	writeError(w, status, msg)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ocr.ErrEmptyDocument):
		return http.StatusUnprocessableEntity, "No text found in the image"
	case errors.Is(err, ocr.ErrImageTooLarge):
		return http.StatusRequestEntityTooLarge, "Image is larger than 20MB"
	case errors.Is(err, ocr.ErrInvalidImage), errors.Is(err, preprocess.ErrUnsupportedImage):
		return http.StatusBadRequest, "Unsupported or corrupt image"
	case errors.Is(err, store.ErrIndexOutOfRange):
		return http.StatusNotFound, "No contact at that index"
	case errors.Is(err, store.ErrImageMissing):
		return http.StatusNotFound, "No card image for that contact"
	case errors.Is(err, ocr.ErrMissingCredentials):
		return http.StatusServiceUnavailable, "OCR service credentials are not configured"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Processing timed out"
	default:
		return http.StatusInternalServerError, "Internal error"
	}
}
