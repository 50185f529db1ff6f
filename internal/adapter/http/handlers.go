package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/couchcryptid/eonet-explorer/internal/domain"
	"github.com/couchcryptid/eonet-explorer/internal/explorer"
)

const maxBodyBytes = 64 << 10

type handlers struct {
	explorer *explorer.Explorer
	sessions *explorer.Registry
	logger   *slog.Logger
}

type sessionKey struct{}

func (h *handlers) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, err := h.sessions.Get(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, s)))
	})
}

func sessionFrom(r *http.Request) *explorer.Session {
	return r.Context().Value(sessionKey{}).(*explorer.Session)
}

// createSession opens a session and loads its category list. A catalog
// failure still yields the session, carrying the notice.
func (h *handlers) createSession(w http.ResponseWriter, r *http.Request) {
	s := h.sessions.Create()
	if err := h.explorer.ListCategories(r.Context(), s); err != nil {
		h.logger.Warn("initial category load failed", "session_id", s.ID(), "error", err)
	}
	w.Header().Set("Location", "/api/sessions/"+s.ID())
	writeJSON(w, http.StatusCreated, s.View())
}

func (h *handlers) getSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionFrom(r).View())
}

func (h *handlers) deleteSession(w http.ResponseWriter, r *http.Request) {
	h.sessions.Delete(sessionFrom(r).ID())
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) reset(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	h.explorer.Reset(s)
	writeJSON(w, http.StatusOK, s.View())
}

func (h *handlers) refreshCategories(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	if err := h.explorer.ListCategories(r.Context(), s); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.View())
}

func (h *handlers) selectCategory(w http.ResponseWriter, r *http.Request) {
	var sel explorer.Selection
	if err := decodeBody(w, r, &sel); err != nil {
		writeError(w, err)
		return
	}
	s := sessionFrom(r)
	if err := h.explorer.SelectCategory(r.Context(), s, sel); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.View())
}

type searchRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Limit int    `json:"limit"`
}

func (h *handlers) search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	s := sessionFrom(r)
	if err := h.explorer.SearchByDate(r.Context(), s, req.Start, req.End, req.Limit); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.View())
}

type markerRequest struct {
	Coordinates []float64 `json:"coordinates"`
}

func (req markerRequest) at() (domain.Coordinates, error) {
	if len(req.Coordinates) != 2 {
		return domain.Coordinates{}, badRequest("coordinates must be [lng, lat]")
	}
	return domain.Coordinates{req.Coordinates[0], req.Coordinates[1]}, nil
}

func (h *handlers) focusMarker(w http.ResponseWriter, r *http.Request) {
	var req markerRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	at, err := req.at()
	if err != nil {
		writeError(w, err)
		return
	}
	popup, err := h.explorer.FocusMarker(sessionFrom(r), at)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, popup)
}

func (h *handlers) openMarker(w http.ResponseWriter, r *http.Request) {
	var req markerRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	at, err := req.at()
	if err != nil {
		writeError(w, err)
		return
	}
	popup, err := h.explorer.OpenMarker(r.Context(), sessionFrom(r), at)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, popup)
}

func (h *handlers) markersGeoJSON(w http.ResponseWriter, r *http.Request) {
	data, err := markersFeatureCollection(sessionFrom(r).Markers()).MarshalJSON()
	if err != nil {
		h.logger.Error("failed to encode markers", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "encode markers"})
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	w.Write(data) //nolint:errcheck // client gone
}

func (h *handlers) popupHTML(w http.ResponseWriter, r *http.Request) {
	popups := sessionFrom(r).Popups()
	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || i < 0 || i >= len(popups) {
		writeError(w, errPopupNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderPopup(w, popups[i]); err != nil {
		h.logger.Error("failed to render popup", "index", i, "error", err)
	}
}

type themeResponse struct {
	Color       string `json:"color"`
	Declaration string `json:"declaration"`
}

type themeUpdateResponse struct {
	themeResponse
	Persisted bool `json:"persisted"`
}

type themeRequest struct {
	Color string `json:"color"`
}

func (h *handlers) getTheme(w http.ResponseWriter, _ *http.Request) {
	color := h.explorer.Theme()
	writeJSON(w, http.StatusOK, themeResponse{
		Color:       color,
		Declaration: domain.ThemeDeclaration(color),
	})
}

// putTheme applies the colour. A failed save still applies it for this
// process and is reported through Persisted.
func (h *handlers) putTheme(w http.ResponseWriter, r *http.Request) {
	var req themeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	decl, err := h.explorer.ApplyTheme(req.Color)
	if errors.Is(err, domain.ErrInvalidTheme) {
		writeError(w, err)
		return
	}
	if err != nil {
		h.logger.Error("failed to persist theme", "theme", req.Color, "error", err)
	}
	writeJSON(w, http.StatusOK, themeUpdateResponse{
		themeResponse: themeResponse{Color: h.explorer.Theme(), Declaration: decl},
		Persisted:     err == nil,
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest("invalid request body: " + err.Error())
	}
	return nil
}
