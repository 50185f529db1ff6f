package explorer

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"

	"github.com/couchcryptid/eonet-explorer/internal/domain"
	"github.com/couchcryptid/eonet-explorer/internal/observability"
)

const (
	linkWildfires = "https://eonet.test/api/v3/categories/wildfires"
	linkVolcanoes = "https://eonet.test/api/v3/categories/volcanoes"
)

// fakeCatalog serves canned categories and events. Links listed in hold block
// until their channel is closed; entered receives one value per held call.
type fakeCatalog struct {
	mu            sync.Mutex
	categories    []domain.Category
	categoriesErr error
	events        map[string][]domain.Event
	eventsErr     error
	hold          map[string]chan struct{}
	entered       chan string
	links         []string
	queries       []domain.EventQuery
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{events: map[string][]domain.Event{}}
}

func (f *fakeCatalog) ListCategories(_ context.Context) ([]domain.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.categories, f.categoriesErr
}

func (f *fakeCatalog) ListEvents(_ context.Context, link string, q domain.EventQuery) ([]domain.Event, error) {
	f.mu.Lock()
	f.links = append(f.links, link)
	f.queries = append(f.queries, q)
	gate := f.hold[link]
	events, err := f.events[link], f.eventsErr
	f.mu.Unlock()

	if gate != nil {
		if f.entered != nil {
			f.entered <- link
		}
		<-gate
	}
	return events, err
}

func (f *fakeCatalog) lastQuery() (string, domain.EventQuery) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.links[len(f.links)-1], f.queries[len(f.queries)-1]
}

// fakeGeocoder answers with result and err. A non-nil hold blocks each call
// until it is closed, after signalling entered.
type fakeGeocoder struct {
	mu      sync.Mutex
	result  domain.GeocodingResult
	err     error
	calls   int
	hold    chan struct{}
	entered chan struct{}
}

func (g *fakeGeocoder) ReverseGeocode(_ context.Context, _, _ float64) (domain.GeocodingResult, error) {
	g.mu.Lock()
	g.calls++
	result, err, hold := g.result, g.err, g.hold
	g.mu.Unlock()

	if hold != nil {
		g.entered <- struct{}{}
		<-hold
	}
	return result, err
}

type memoryThemes struct {
	color   string
	saveErr error
	loadErr error
}

func (m *memoryThemes) LoadTheme() (string, bool, error) {
	return m.color, m.color != "", m.loadErr
}

func (m *memoryThemes) SaveTheme(color string) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.color = color
	return nil
}

type recordingPublisher struct {
	mu   sync.Mutex
	sets []domain.LayerSet
	err  error
}

func (p *recordingPublisher) PublishLayerSet(_ context.Context, set domain.LayerSet) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sets = append(p.sets, set)
	return nil
}

func pointEvent(id, title string, lng, lat float64, url string) domain.Event {
	coords, _ := json.Marshal([]float64{lng, lat})
	return domain.Event{
		ID:       id,
		Title:    title,
		Geometry: []domain.Geometry{{Type: "Point", Coordinates: coords}},
		Sources:  []domain.Source{{ID: "EO", URL: url}},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestExplorer(cat Catalog, opts ...func(*Options)) *Explorer {
	o := Options{
		Catalog: cat,
		Logger:  discardLogger(),
		Metrics: observability.NewMetricsForTesting(),
	}
	for _, fn := range opts {
		fn(&o)
	}
	return New(o)
}
