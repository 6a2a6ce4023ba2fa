package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/island-mesh/island/internal/errors"
)

// StatusFor maps an error kind to the HTTP status returned for it.
func StatusFor(kind errors.Kind) int {
	switch kind {
	case errors.KindMalformedInput:
		return http.StatusBadRequest
	case errors.KindInvalidValue:
		return http.StatusUnprocessableEntity
	case errors.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, logger zerolog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn().Err(err).Msg("Failed to write response body")
	}
}

// writeError logs err and writes {"error": msg}. Untagged errors never leak their text.
func writeError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	kind := errors.KindOf(err)
	status := StatusFor(kind)

	event := logger.Warn()
	if status >= http.StatusInternalServerError {
		event = logger.Error()
	}
	event.Err(err).Str("kind", kind.String()).Int("status", status).Msg("Request failed")

	writeJSON(w, logger, status, errorBody{Error: errors.Message(err)})
}

func writeStatus(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: msg})
}
