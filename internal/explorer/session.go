package explorer

import (
	"slices"
	"sync"

	"github.com/couchcryptid/eonet-explorer/internal/domain"
)

// Panel names the visible half of the page.
type Panel string

const (
	// PanelCategories shows the category list.
	PanelCategories Panel = "categories"
	// PanelLayers shows the layer list next to the map.
	PanelLayers Panel = "layers"
)

// Inline notices shown in place of stale content after a failure.
const (
	NoticeCategoriesFailed  = "failed to load categories"
	NoticeEventsFailed      = "failed to load events"
	NoticePlaceLookupFailed = "place lookup failed"
)

// Session is the selection state of one explorer page: the active category,
// its query filters, the rendered layers, markers and popups. All fields are
// guarded by mu; network calls never run with mu held.
type Session struct {
	id string

	mu         sync.Mutex
	panel      Panel
	title      string
	link       string
	query      domain.EventQuery
	categories []domain.Category
	layers     []domain.Layer
	markers    []domain.Marker
	popups     []domain.Popup
	notice     string

	// seq is bumped by every event query and every reset; a response is
	// applied only while its seq is still the latest.
	seq    uint64
	catSeq uint64
}

// NewSession creates a session showing the category panel.
func NewSession(id string, defaultLimit int) *Session {
	return &Session{
		id:    id,
		panel: PanelCategories,
		query: domain.EventQuery{Limit: defaultLimit},
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// CategoryView is a category list entry with its icon.
type CategoryView struct {
	domain.Category
	Icon string `json:"icon"`
}

// View is a point-in-time copy of a session, safe to serialize.
type View struct {
	ID         string             `json:"id"`
	Panel      Panel              `json:"panel"`
	Title      string             `json:"title"`
	Link       string             `json:"link,omitempty"`
	Query      domain.EventQuery  `json:"query"`
	Categories []CategoryView     `json:"categories"`
	Layers     []domain.Layer     `json:"layers"`
	Markers    []domain.Marker    `json:"markers"`
	Popups     []domain.Popup     `json:"popups"`
	Notice     string             `json:"notice,omitempty"`
	Seq        uint64             `json:"seq"`
	Map        domain.MapSettings `json:"map"`
}

// View snapshots the session.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	categories := make([]CategoryView, len(s.categories))
	for i, c := range s.categories {
		categories[i] = CategoryView{Category: c, Icon: c.IconPath()}
	}

	return View{
		ID:         s.id,
		Panel:      s.panel,
		Title:      s.title,
		Link:       s.link,
		Query:      s.query,
		Categories: categories,
		Layers:     nonNil(slices.Clone(s.layers)),
		Markers:    nonNil(slices.Clone(s.markers)),
		Popups:     nonNil(slices.Clone(s.popups)),
		Notice:     s.notice,
		Seq:        s.seq,
		Map:        domain.DefaultMapSettings,
	}
}

// Markers returns a copy of the currently placed markers.
func (s *Session) Markers() []domain.Marker {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.markers)
}

// Popups returns a copy of the currently open popups.
func (s *Session) Popups() []domain.Popup {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.popups)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
