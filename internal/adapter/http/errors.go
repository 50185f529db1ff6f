package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/couchcryptid/eonet-explorer/internal/domain"
	"github.com/couchcryptid/eonet-explorer/internal/explorer"
)

var errPopupNotFound = errors.New("popup not found")

type badRequest string

func (e badRequest) Error() string { return string(e) }

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps explorer and domain errors onto HTTP status codes. Anything
// unrecognised came from an upstream API call.
func statusFor(err error) int {
	var br badRequest
	switch {
	case errors.As(err, &br),
		errors.Is(err, domain.ErrInvalidDate),
		errors.Is(err, domain.ErrInvalidLimit),
		errors.Is(err, domain.ErrInvalidTheme):
		return http.StatusBadRequest
	case errors.Is(err, explorer.ErrSessionNotFound),
		errors.Is(err, explorer.ErrMarkerNotFound),
		errors.Is(err, errPopupNotFound):
		return http.StatusNotFound
	case errors.Is(err, explorer.ErrNoActiveCategory),
		errors.Is(err, explorer.ErrStaleResponse):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
