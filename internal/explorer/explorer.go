// Package explorer implements the EONET event explorer: category listing,
// category selection with date and limit filters, marker rendering, popups,
// and the theme preference.
package explorer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/couchcryptid/eonet-explorer/internal/domain"
	"github.com/couchcryptid/eonet-explorer/internal/observability"
)

var (
	// ErrNoActiveCategory is returned when a query names no category and none is active.
	ErrNoActiveCategory = errors.New("no active category")
	// ErrStaleResponse is returned when a newer query superseded this one before it completed.
	ErrStaleResponse = errors.New("response superseded by a newer query")
	// ErrMarkerNotFound is returned when no placed marker matches the given coordinates.
	ErrMarkerNotFound = errors.New("no marker at coordinates")
)

// Catalog is the natural-event catalog the explorer reads from.
type Catalog interface {
	ListCategories(ctx context.Context) ([]domain.Category, error)
	ListEvents(ctx context.Context, link string, q domain.EventQuery) ([]domain.Event, error)
}

// ThemeStore persists the theme colour across restarts.
type ThemeStore interface {
	LoadTheme() (string, bool, error)
	SaveTheme(color string) error
}

// LayerSetPublisher receives every applied query result.
type LayerSetPublisher interface {
	PublishLayerSet(ctx context.Context, set domain.LayerSet) error
}

// Selection is the input of SelectCategory. Empty Title and Link reuse the
// active category; a zero Limit uses the configured default.
type Selection struct {
	Title string `json:"title"`
	Link  string `json:"link"`
	Start string `json:"start"`
	End   string `json:"end"`
	Limit int    `json:"limit"`
}

// Options configures an Explorer. Geocoder, Themes and Publisher may be nil.
type Options struct {
	Catalog      Catalog
	Geocoder     domain.ReverseGeocoder
	Themes       ThemeStore
	Publisher    LayerSetPublisher
	DefaultLimit int
	DefaultTheme string
	Logger       *slog.Logger
	Metrics      *observability.Metrics
}

// Explorer runs the explorer operations against sessions.
type Explorer struct {
	catalog      Catalog
	geocoder     domain.ReverseGeocoder
	themes       ThemeStore
	publisher    LayerSetPublisher
	defaultLimit int
	defaultTheme string
	logger       *slog.Logger
	metrics      *observability.Metrics

	ready atomic.Bool

	themeMu sync.RWMutex
	theme   string
}

// New creates an Explorer.
func New(opts Options) *Explorer {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = domain.DefaultLimit
	}
	if opts.DefaultTheme == "" {
		opts.DefaultTheme = domain.DefaultTheme
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = observability.NewMetricsForTesting()
	}

	geocodeEnabled := 0.0
	if opts.Geocoder != nil {
		geocodeEnabled = 1
	}
	opts.Metrics.GeocodeEnabled.Set(geocodeEnabled)

	return &Explorer{
		catalog:      opts.Catalog,
		geocoder:     opts.Geocoder,
		themes:       opts.Themes,
		publisher:    opts.Publisher,
		defaultLimit: opts.DefaultLimit,
		defaultTheme: opts.DefaultTheme,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
		theme:        opts.DefaultTheme,
	}
}

// NewSession creates a session with the explorer's default limit.
func (x *Explorer) NewSession(id string) *Session {
	return NewSession(id, x.defaultLimit)
}

// CheckReadiness returns nil once the catalog has answered at least once.
func (x *Explorer) CheckReadiness(_ context.Context) error {
	if !x.ready.Load() {
		return errors.New("event catalog has not been reached yet")
	}
	return nil
}

// ListCategories fetches the catalog's categories and keeps the allow-listed
// ones in upstream order. On failure the previous list stays and the session
// shows a notice.
func (x *Explorer) ListCategories(ctx context.Context, s *Session) error {
	s.mu.Lock()
	s.catSeq++
	seq := s.catSeq
	s.mu.Unlock()

	categories, err := x.catalog.ListCategories(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if seq != s.catSeq {
		x.metrics.StaleResponses.Inc()
		x.logger.Info("discarding stale categories response", "session_id", s.id, "seq", seq)
		return ErrStaleResponse
	}
	if err != nil {
		x.logger.Error("failed to fetch categories", "session_id", s.id, "error", err)
		s.notice = NoticeCategoriesFailed
		return fmt.Errorf("list categories: %w", err)
	}

	s.categories = domain.FilterCategories(categories)
	if s.notice == NoticeCategoriesFailed {
		s.notice = ""
	}
	x.ready.Store(true)
	x.logger.Debug("categories loaded", "session_id", s.id, "received", len(categories), "kept", len(s.categories))
	return nil
}

// Reset returns the session to the category list. Any in-flight event query
// is invalidated.
func (x *Explorer) Reset(s *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.panel = PanelCategories
	s.title = ""
	s.link = ""
	s.query = domain.EventQuery{Limit: x.defaultLimit}
	s.layers = nil
	s.markers = nil
	s.popups = nil
	s.notice = ""
	s.seq++
}

// SelectCategory makes a category active and loads its events with the given
// filters. The result is applied only if no newer query or reset happened in
// the meantime; otherwise ErrStaleResponse is returned and nothing changes.
func (x *Explorer) SelectCategory(ctx context.Context, s *Session, sel Selection) error {
	q := domain.EventQuery{Start: sel.Start, End: sel.End, Limit: sel.Limit}
	if q.Limit == 0 {
		q.Limit = x.defaultLimit
	}
	q = q.Normalize()
	if err := q.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	title := firstNonEmpty(sel.Title, s.title)
	link := firstNonEmpty(sel.Link, s.link)
	if link == "" {
		s.mu.Unlock()
		return ErrNoActiveCategory
	}
	s.title = title
	s.link = link
	s.query = q
	s.panel = PanelLayers
	s.notice = ""
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	events, err := x.catalog.ListEvents(ctx, link, q)

	set, applied, err := x.applyEvents(s, seq, title, link, q, events, err)
	if err != nil {
		return err
	}
	if applied {
		x.publish(ctx, set)
	}
	return nil
}

// SearchByDate re-runs the active category's query with new filters.
func (x *Explorer) SearchByDate(ctx context.Context, s *Session, start, end string, limit int) error {
	return x.SelectCategory(ctx, s, Selection{Start: start, End: end, Limit: limit})
}

func (x *Explorer) applyEvents(s *Session, seq uint64, title, link string, q domain.EventQuery, events []domain.Event, fetchErr error) (domain.LayerSet, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq != s.seq {
		x.metrics.StaleResponses.Inc()
		x.logger.Info("discarding stale events response",
			"session_id", s.id,
			"category", title,
			"seq", seq,
			"latest_seq", s.seq,
		)
		return domain.LayerSet{}, false, ErrStaleResponse
	}

	if fetchErr != nil {
		x.logger.Error("failed to fetch events", "session_id", s.id, "category", title, "error", fetchErr)
		s.layers = nil
		s.markers = nil
		s.popups = nil
		s.notice = NoticeEventsFailed
		return domain.LayerSet{}, false, fmt.Errorf("list events for %q: %w", title, fetchErr)
	}

	layers, skipped := domain.ExtractLayers(events)
	for _, err := range skipped {
		x.logger.Warn("event has no usable geometry, skipping", "session_id", s.id, "category", title, "error", err)
	}

	s.layers = layers
	s.popups = nil
	n := x.renderMarkersLocked(s)
	x.logger.Info("layers applied", "session_id", s.id, "category", title, "seq", seq, "markers", n)

	return domain.NewLayerSet(s.id, title, link, q, seq, layers), true, nil
}

// RenderMarkers replaces the session's markers with one per current layer
// and returns how many were placed.
func (x *Explorer) RenderMarkers(s *Session) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return x.renderMarkersLocked(s)
}

func (x *Explorer) renderMarkersLocked(s *Session) int {
	s.markers = domain.BuildMarkers(s.layers)
	x.metrics.MarkersRendered.Observe(float64(len(s.markers)))
	return len(s.markers)
}

// FocusMarker closes every popup and opens one at the marker matching at,
// showing its title, coordinate label and source link. A miss is logged and
// leaves the popups untouched.
func (x *Explorer) FocusMarker(s *Session, at domain.Coordinates) (domain.Popup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := domain.FindMarker(s.markers, at)
	if !ok {
		x.markerMiss(s, at, "focus")
		return domain.Popup{}, ErrMarkerNotFound
	}

	popup := domain.FocusPopup(m)
	s.popups = []domain.Popup{popup}
	return popup, nil
}

// OpenMarker handles a marker click: it reverse-geocodes the marker position
// and adds a popup with the place name, title and source link. Geocoding
// failures degrade to an empty place name and a notice.
func (x *Explorer) OpenMarker(ctx context.Context, s *Session, at domain.Coordinates) (domain.Popup, error) {
	s.mu.Lock()
	m, ok := domain.FindMarker(s.markers, at)
	if !ok {
		x.markerMiss(s, at, "open")
		s.mu.Unlock()
		return domain.Popup{}, ErrMarkerNotFound
	}
	seq := s.seq
	s.mu.Unlock()

	placeName, lookupErr := x.placeName(ctx, at)
	if lookupErr != nil {
		x.logger.Warn("reverse geocoding failed",
			"session_id", s.id,
			"lat", at.Lat(),
			"lon", at.Lng(),
			"error", lookupErr,
		)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// A query or reset issued during the lookup owns the popups now.
	if seq != s.seq {
		x.metrics.StaleResponses.Inc()
		x.logger.Info("discarding stale place lookup",
			"session_id", s.id,
			"seq", seq,
			"latest_seq", s.seq,
		)
		return domain.Popup{}, ErrStaleResponse
	}
	m, ok = domain.FindMarker(s.markers, at)
	if !ok {
		x.markerMiss(s, at, "open")
		return domain.Popup{}, ErrMarkerNotFound
	}

	popup := domain.PlacePopup(m, placeName)
	s.popups = append(s.popups, popup)
	if lookupErr != nil {
		s.notice = NoticePlaceLookupFailed
	}
	return popup, nil
}

func (x *Explorer) placeName(ctx context.Context, at domain.Coordinates) (string, error) {
	if x.geocoder == nil {
		return "", nil
	}
	result, err := x.geocoder.ReverseGeocode(ctx, at.Lat(), at.Lng())
	if err != nil {
		return "", err
	}
	return result.FormattedAddress, nil
}

func (x *Explorer) markerMiss(s *Session, at domain.Coordinates, op string) {
	x.metrics.MarkerMisses.Inc()
	x.logger.Warn("no marker at coordinates",
		"session_id", s.id,
		"op", op,
		"lat", at.Lat(),
		"lon", at.Lng(),
	)
}

// LoadTheme reads the stored theme, falling back to the default when nothing
// is stored or the store fails, and applies it.
func (x *Explorer) LoadTheme() string {
	color := x.defaultTheme
	if x.themes != nil {
		stored, ok, err := x.themes.LoadTheme()
		switch {
		case err != nil:
			x.logger.Warn("failed to read stored theme, using default", "error", err)
		case ok && domain.ValidateTheme(stored) == nil:
			color = stored
		case ok:
			x.logger.Warn("stored theme is invalid, using default", "theme", stored)
		}
	}

	if _, err := x.ApplyTheme(color); err != nil {
		x.logger.Warn("failed to persist theme", "theme", color, "error", err)
	}
	return x.Theme()
}

// ApplyTheme sets and persists the theme colour and returns the CSS
// declaration that binds it. The in-memory theme changes even when
// persisting fails.
func (x *Explorer) ApplyTheme(color string) (string, error) {
	if err := domain.ValidateTheme(color); err != nil {
		return "", err
	}

	x.themeMu.Lock()
	x.theme = color
	x.themeMu.Unlock()

	decl := domain.ThemeDeclaration(color)
	if x.themes == nil {
		return decl, nil
	}
	if err := x.themes.SaveTheme(color); err != nil {
		return decl, fmt.Errorf("save theme: %w", err)
	}
	return decl, nil
}

// Theme returns the current theme colour.
func (x *Explorer) Theme() string {
	x.themeMu.RLock()
	defer x.themeMu.RUnlock()
	return x.theme
}

func (x *Explorer) publish(ctx context.Context, set domain.LayerSet) {
	if x.publisher == nil {
		return
	}
	if err := x.publisher.PublishLayerSet(ctx, set); err != nil {
		x.metrics.FeedRejected.Inc()
		x.logger.Warn("failed to publish layer set", "session_id", set.SessionID, "category", set.Category, "error", err)
		return
	}
	x.metrics.FeedQueued.Inc()
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
