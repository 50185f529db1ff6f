package explorer

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/eonet-explorer/internal/adapter/themestore"
	"github.com/couchcryptid/eonet-explorer/internal/domain"
)

func twoFires() []domain.Event {
	return []domain.Event{
		pointEvent("EONET_1", "Fire at 10,20", 10, 20, "https://example.com/1"),
		pointEvent("EONET_2", "Fire at 30,40", 30, 40, "https://example.com/2"),
	}
}

func TestListCategories_FiltersToAllowList(t *testing.T) {
	cat := newFakeCatalog()
	cat.categories = []domain.Category{
		{ID: "wildfires", Title: "Wildfires", Link: linkWildfires},
		{ID: "earthquakes", Title: "Earthquakes"},
	}
	x := newTestExplorer(cat)
	s := x.NewSession("s1")

	require.NoError(t, x.ListCategories(context.Background(), s))

	view := s.View()
	require.Len(t, view.Categories, 1)
	assert.Equal(t, "Wildfires", view.Categories[0].Title)
	assert.Equal(t, "assets/img/categories/wildfires.png", view.Categories[0].Icon)
	assert.NoError(t, x.CheckReadiness(context.Background()))
}

func TestListCategories_FailureKeepsPreviousList(t *testing.T) {
	cat := newFakeCatalog()
	cat.categories = []domain.Category{{Title: "Volcanoes", Link: linkVolcanoes}}
	x := newTestExplorer(cat)
	s := x.NewSession("s1")
	require.NoError(t, x.ListCategories(context.Background(), s))

	cat.categoriesErr = errors.New("connection refused")
	err := x.ListCategories(context.Background(), s)

	require.Error(t, err)
	view := s.View()
	require.Len(t, view.Categories, 1)
	assert.Equal(t, NoticeCategoriesFailed, view.Notice)

	// A later success clears the notice.
	cat.categoriesErr = nil
	require.NoError(t, x.ListCategories(context.Background(), s))
	assert.Empty(t, s.View().Notice)
}

func TestCheckReadiness_BeforeFirstFetch(t *testing.T) {
	x := newTestExplorer(newFakeCatalog())
	assert.Error(t, x.CheckReadiness(context.Background()))
}

func TestSelectCategory_RendersOneMarkerPerEvent(t *testing.T) {
	cat := newFakeCatalog()
	cat.events[linkWildfires] = twoFires()
	x := newTestExplorer(cat)
	s := x.NewSession("s1")

	err := x.SelectCategory(context.Background(), s, Selection{Title: "Wildfires", Link: linkWildfires})
	require.NoError(t, err)

	view := s.View()
	assert.Equal(t, PanelLayers, view.Panel)
	assert.Equal(t, "Wildfires", view.Title)
	require.Len(t, view.Layers, 2)
	require.Len(t, view.Markers, 2)
	assert.Equal(t, domain.Coordinates{10, 20}, view.Markers[0].Coordinates)
	assert.Equal(t, domain.Coordinates{30, 40}, view.Markers[1].Coordinates)
	for i := range view.Layers {
		assert.Equal(t, view.Layers[i].Coordinates, view.Markers[i].Coordinates)
	}

	link, q := cat.lastQuery()
	assert.Equal(t, linkWildfires, link)
	assert.Equal(t, domain.EventQuery{Limit: 10}, q)
}

func TestSelectCategory_SecondQueryReplacesMarkers(t *testing.T) {
	cat := newFakeCatalog()
	cat.events[linkWildfires] = twoFires()
	x := newTestExplorer(cat)
	s := x.NewSession("s1")
	ctx := context.Background()

	require.NoError(t, x.SelectCategory(ctx, s, Selection{Title: "Wildfires", Link: linkWildfires, Start: "2024-01-01"}))
	_, err := x.FocusMarker(s, domain.Coordinates{10, 20})
	require.NoError(t, err)

	cat.events[linkWildfires] = []domain.Event{pointEvent("EONET_3", "Only fire", 50, 60, "https://example.com/3")}
	require.NoError(t, x.SelectCategory(ctx, s, Selection{Title: "Wildfires", Link: linkWildfires, Start: "2024-06-01"}))

	view := s.View()
	require.Len(t, view.Markers, 1)
	assert.Equal(t, domain.Coordinates{50, 60}, view.Markers[0].Coordinates)
	assert.Empty(t, view.Popups, "popups from the previous query are discarded")
}

func TestSelectCategory_SkipsEventsWithoutGeometry(t *testing.T) {
	cat := newFakeCatalog()
	cat.events[linkWildfires] = append(twoFires(), domain.Event{ID: "EONET_X", Title: "No geometry"})
	x := newTestExplorer(cat)
	s := x.NewSession("s1")

	require.NoError(t, x.SelectCategory(context.Background(), s, Selection{Title: "Wildfires", Link: linkWildfires}))
	assert.Len(t, s.View().Markers, 2)
}

func TestSelectCategory_PassesFilters(t *testing.T) {
	cat := newFakeCatalog()
	x := newTestExplorer(cat)
	s := x.NewSession("s1")

	err := x.SelectCategory(context.Background(), s, Selection{
		Title: "Volcanoes", Link: linkVolcanoes, Start: "2024-01-01", End: "2024-03-31", Limit: 25,
	})
	require.NoError(t, err)

	_, q := cat.lastQuery()
	assert.Equal(t, domain.EventQuery{Start: "2024-01-01", End: "2024-03-31", Limit: 25}, q)
	assert.Equal(t, q, s.View().Query)
}

func TestSelectCategory_DefaultLimitFromOptions(t *testing.T) {
	cat := newFakeCatalog()
	x := newTestExplorer(cat, func(o *Options) { o.DefaultLimit = 40 })
	s := x.NewSession("s1")

	require.NoError(t, x.SelectCategory(context.Background(), s, Selection{Title: "Volcanoes", Link: linkVolcanoes}))
	_, q := cat.lastQuery()
	assert.Equal(t, 40, q.Limit)
}

func TestSelectCategory_ValidationLeavesStateAlone(t *testing.T) {
	cat := newFakeCatalog()
	x := newTestExplorer(cat)
	s := x.NewSession("s1")

	err := x.SelectCategory(context.Background(), s, Selection{Title: "Wildfires", Link: linkWildfires, Start: "2024-13-01"})
	require.ErrorIs(t, err, domain.ErrInvalidDate)

	err = x.SelectCategory(context.Background(), s, Selection{Title: "Wildfires", Link: linkWildfires, Limit: -3})
	require.ErrorIs(t, err, domain.ErrInvalidLimit)

	view := s.View()
	assert.Equal(t, PanelCategories, view.Panel)
	assert.Empty(t, view.Title)
	assert.Empty(t, cat.links)
}

func TestSelectCategory_NoActiveCategory(t *testing.T) {
	x := newTestExplorer(newFakeCatalog())
	s := x.NewSession("s1")

	err := x.SearchByDate(context.Background(), s, "2024-01-01", "", 0)
	require.ErrorIs(t, err, ErrNoActiveCategory)
}

func TestSelectCategory_FetchFailureShowsNotice(t *testing.T) {
	cat := newFakeCatalog()
	cat.events[linkWildfires] = twoFires()
	x := newTestExplorer(cat)
	s := x.NewSession("s1")
	ctx := context.Background()
	require.NoError(t, x.SelectCategory(ctx, s, Selection{Title: "Wildfires", Link: linkWildfires}))

	cat.eventsErr = errors.New("status 500")
	err := x.SelectCategory(ctx, s, Selection{Start: "2024-01-01"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Wildfires")
	view := s.View()
	assert.Equal(t, PanelLayers, view.Panel)
	assert.Equal(t, NoticeEventsFailed, view.Notice)
	assert.Empty(t, view.Markers, "no stale markers after a failed query")
	assert.Empty(t, view.Layers)
}

func TestSearchByDate_ReusesActiveCategory(t *testing.T) {
	cat := newFakeCatalog()
	cat.events[linkVolcanoes] = twoFires()
	x := newTestExplorer(cat)
	s := x.NewSession("s1")
	ctx := context.Background()

	require.NoError(t, x.SelectCategory(ctx, s, Selection{Title: "Volcanoes", Link: linkVolcanoes}))
	require.NoError(t, x.SearchByDate(ctx, s, "2024-02-01", "2024-02-28", 5))

	link, q := cat.lastQuery()
	assert.Equal(t, linkVolcanoes, link)
	assert.Equal(t, domain.EventQuery{Start: "2024-02-01", End: "2024-02-28", Limit: 5}, q)
	assert.Equal(t, "Volcanoes", s.View().Title)
}

func TestSelectCategory_StaleResponseDiscarded(t *testing.T) {
	cat := newFakeCatalog()
	cat.events[linkWildfires] = twoFires()
	cat.events[linkVolcanoes] = []domain.Event{pointEvent("EONET_9", "Etna", 15, 37.75, "https://example.com/etna")}
	release := make(chan struct{})
	cat.hold = map[string]chan struct{}{linkWildfires: release}
	cat.entered = make(chan string, 1)

	x := newTestExplorer(cat)
	s := x.NewSession("s1")
	ctx := context.Background()

	errCh := make(chan error, 1)
	go func() {
		errCh <- x.SelectCategory(ctx, s, Selection{Title: "Wildfires", Link: linkWildfires})
	}()
	<-cat.entered

	require.NoError(t, x.SelectCategory(ctx, s, Selection{Title: "Volcanoes", Link: linkVolcanoes}))
	close(release)

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, ErrStaleResponse)
	case <-time.After(2 * time.Second):
		t.Fatal("first query never returned")
	}

	view := s.View()
	assert.Equal(t, "Volcanoes", view.Title)
	require.Len(t, view.Markers, 1)
	assert.Equal(t, "Etna", view.Markers[0].Properties.Message)
	assert.InDelta(t, 1, testutil.ToFloat64(x.metrics.StaleResponses), 0)
}

func TestReset_InvalidatesInFlightQuery(t *testing.T) {
	cat := newFakeCatalog()
	cat.events[linkWildfires] = twoFires()
	release := make(chan struct{})
	cat.hold = map[string]chan struct{}{linkWildfires: release}
	cat.entered = make(chan string, 1)

	x := newTestExplorer(cat)
	s := x.NewSession("s1")

	errCh := make(chan error, 1)
	go func() {
		errCh <- x.SelectCategory(context.Background(), s, Selection{Title: "Wildfires", Link: linkWildfires})
	}()
	<-cat.entered
	x.Reset(s)
	close(release)

	require.ErrorIs(t, <-errCh, ErrStaleResponse)
	view := s.View()
	assert.Equal(t, PanelCategories, view.Panel)
	assert.Empty(t, view.Markers)
}

func TestReset_ClearsSelection(t *testing.T) {
	cat := newFakeCatalog()
	cat.events[linkWildfires] = twoFires()
	x := newTestExplorer(cat)
	s := x.NewSession("s1")
	ctx := context.Background()
	require.NoError(t, x.SelectCategory(ctx, s, Selection{Title: "Wildfires", Link: linkWildfires, Start: "2024-01-01"}))

	x.Reset(s)

	view := s.View()
	assert.Equal(t, PanelCategories, view.Panel)
	assert.Empty(t, view.Title)
	assert.Equal(t, domain.EventQuery{Limit: 10}, view.Query)
	assert.Empty(t, view.Markers)
	assert.Empty(t, view.Popups)
	require.ErrorIs(t, x.SearchByDate(ctx, s, "", "", 0), ErrNoActiveCategory)
}

func TestFocusMarker(t *testing.T) {
	cat := newFakeCatalog()
	cat.events[linkWildfires] = twoFires()
	x := newTestExplorer(cat)
	s := x.NewSession("s1")
	require.NoError(t, x.SelectCategory(context.Background(), s, Selection{Title: "Wildfires", Link: linkWildfires}))

	t.Run("found replaces all popups", func(t *testing.T) {
		_, err := x.FocusMarker(s, domain.Coordinates{30, 40})
		require.NoError(t, err)
		popup, err := x.FocusMarker(s, domain.Coordinates{10, 20})
		require.NoError(t, err)

		want := domain.Popup{
			Kind:        domain.PopupFocus,
			Coordinates: domain.Coordinates{10, 20},
			Title:       "Fire at 10,20",
			Subtitle:    "20, 10",
			URL:         "https://example.com/1",
			Offset:      25,
		}
		if diff := cmp.Diff(want, popup); diff != "" {
			t.Fatalf("popup mismatch (-want +got):\n%s", diff)
		}
		assert.Equal(t, []domain.Popup{want}, s.Popups())
	})

	t.Run("miss is a no-op", func(t *testing.T) {
		before := s.Popups()
		_, err := x.FocusMarker(s, domain.Coordinates{0, 0})
		require.ErrorIs(t, err, ErrMarkerNotFound)
		assert.Equal(t, before, s.Popups())
		assert.InDelta(t, 1, testutil.ToFloat64(x.metrics.MarkerMisses), 0)
	})
}

func TestOpenMarker_ShowsPlaceName(t *testing.T) {
	cat := newFakeCatalog()
	cat.events[linkWildfires] = twoFires()
	geo := &fakeGeocoder{result: domain.GeocodingResult{FormattedAddress: "Somewhere, Chad"}}
	x := newTestExplorer(cat, func(o *Options) { o.Geocoder = geo })
	s := x.NewSession("s1")
	require.NoError(t, x.SelectCategory(context.Background(), s, Selection{Title: "Wildfires", Link: linkWildfires}))

	popup, err := x.OpenMarker(context.Background(), s, domain.Coordinates{10, 20})
	require.NoError(t, err)

	assert.Equal(t, domain.PopupMarker, popup.Kind)
	assert.Equal(t, "Fire at 10,20", popup.Title)
	assert.Equal(t, "Somewhere, Chad", popup.Subtitle)
	assert.Equal(t, "https://example.com/1", popup.URL)
	assert.Len(t, s.Popups(), 1)
	assert.Empty(t, s.View().Notice)

	// Marker popups accumulate.
	_, err = x.OpenMarker(context.Background(), s, domain.Coordinates{30, 40})
	require.NoError(t, err)
	assert.Len(t, s.Popups(), 2)
}

func TestOpenMarker_GeocodeFailureDegrades(t *testing.T) {
	cat := newFakeCatalog()
	cat.events[linkWildfires] = twoFires()
	geo := &fakeGeocoder{err: errors.New("mapbox API error: status 401")}
	x := newTestExplorer(cat, func(o *Options) { o.Geocoder = geo })
	s := x.NewSession("s1")
	require.NoError(t, x.SelectCategory(context.Background(), s, Selection{Title: "Wildfires", Link: linkWildfires}))

	popup, err := x.OpenMarker(context.Background(), s, domain.Coordinates{10, 20})
	require.NoError(t, err)

	assert.Empty(t, popup.Subtitle)
	assert.Equal(t, "Fire at 10,20", popup.Title)
	assert.Equal(t, NoticePlaceLookupFailed, s.View().Notice)
}

func TestOpenMarker_NoGeocoder(t *testing.T) {
	cat := newFakeCatalog()
	cat.events[linkWildfires] = twoFires()
	x := newTestExplorer(cat)
	s := x.NewSession("s1")
	require.NoError(t, x.SelectCategory(context.Background(), s, Selection{Title: "Wildfires", Link: linkWildfires}))

	popup, err := x.OpenMarker(context.Background(), s, domain.Coordinates{30, 40})
	require.NoError(t, err)
	assert.Empty(t, popup.Subtitle)
	assert.Empty(t, s.View().Notice)
}

func TestOpenMarker_LookupSupersededByNewerQuery(t *testing.T) {
	tests := []struct {
		name      string
		lookupErr error
		interrupt func(t *testing.T, x *Explorer, s *Session)
	}{
		{
			name: "date search on the same category",
			interrupt: func(t *testing.T, x *Explorer, s *Session) {
				require.NoError(t, x.SearchByDate(context.Background(), s, "2024-01-01", "", 5))
			},
		},
		{
			name:      "reset with a failed lookup",
			lookupErr: errors.New("mapbox API error: status 503"),
			interrupt: func(_ *testing.T, x *Explorer, s *Session) { x.Reset(s) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat := newFakeCatalog()
			cat.events[linkWildfires] = twoFires()
			geo := &fakeGeocoder{
				result:  domain.GeocodingResult{FormattedAddress: "Old Place"},
				err:     tt.lookupErr,
				hold:    make(chan struct{}),
				entered: make(chan struct{}, 1),
			}
			x := newTestExplorer(cat, func(o *Options) { o.Geocoder = geo })
			s := x.NewSession("s1")
			require.NoError(t, x.SelectCategory(context.Background(), s, Selection{Title: "Wildfires", Link: linkWildfires}))

			errCh := make(chan error, 1)
			go func() {
				_, err := x.OpenMarker(context.Background(), s, domain.Coordinates{10, 20})
				errCh <- err
			}()
			<-geo.entered

			tt.interrupt(t, x, s)
			close(geo.hold)

			select {
			case err := <-errCh:
				require.ErrorIs(t, err, ErrStaleResponse)
			case <-time.After(2 * time.Second):
				t.Fatal("OpenMarker never returned")
			}
			assert.Empty(t, s.Popups())
			assert.Empty(t, s.View().Notice)
			assert.InDelta(t, 1, testutil.ToFloat64(x.metrics.StaleResponses), 0)
		})
	}
}

func TestOpenMarker_Miss(t *testing.T) {
	geo := &fakeGeocoder{}
	x := newTestExplorer(newFakeCatalog(), func(o *Options) { o.Geocoder = geo })
	s := x.NewSession("s1")

	_, err := x.OpenMarker(context.Background(), s, domain.Coordinates{10, 20})
	require.ErrorIs(t, err, ErrMarkerNotFound)
	assert.Equal(t, 0, geo.calls, "no lookup for a missing marker")
}

func TestRenderMarkers_RebuildsFromLayers(t *testing.T) {
	cat := newFakeCatalog()
	cat.events[linkWildfires] = twoFires()
	x := newTestExplorer(cat)
	s := x.NewSession("s1")
	require.NoError(t, x.SelectCategory(context.Background(), s, Selection{Title: "Wildfires", Link: linkWildfires}))

	assert.Equal(t, 2, x.RenderMarkers(s))
	assert.Equal(t, 2, x.RenderMarkers(s), "re-rendering never accumulates")
	assert.Len(t, s.Markers(), 2)
}

func TestSelectCategory_PublishesLayerSet(t *testing.T) {
	cat := newFakeCatalog()
	cat.events[linkWildfires] = twoFires()
	pub := &recordingPublisher{}
	x := newTestExplorer(cat, func(o *Options) { o.Publisher = pub })
	s := x.NewSession("s1")

	require.NoError(t, x.SelectCategory(context.Background(), s, Selection{Title: "Wildfires", Link: linkWildfires, End: "2024-05-01"}))

	require.Len(t, pub.sets, 1)
	set := pub.sets[0]
	assert.Equal(t, "s1", set.SessionID)
	assert.Equal(t, "Wildfires", set.Category)
	assert.Equal(t, "2024-05-01", set.Query.End)
	assert.Len(t, set.Layers, 2)
	assert.Equal(t, s.View().Seq, set.Seq)
}

func TestSelectCategory_PublishFailureIsNotFatal(t *testing.T) {
	cat := newFakeCatalog()
	cat.events[linkWildfires] = twoFires()
	pub := &recordingPublisher{err: errors.New("broker down")}
	x := newTestExplorer(cat, func(o *Options) { o.Publisher = pub })
	s := x.NewSession("s1")

	require.NoError(t, x.SelectCategory(context.Background(), s, Selection{Title: "Wildfires", Link: linkWildfires}))
	assert.Len(t, s.View().Markers, 2)
	assert.InDelta(t, 1, testutil.ToFloat64(x.metrics.FeedRejected), 0)
}

func TestApplyTheme_PersistsAcrossStartups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "theme.json")

	first := newTestExplorer(newFakeCatalog(), func(o *Options) { o.Themes = themestore.NewFileStore(path) })
	assert.Equal(t, domain.DefaultTheme, first.LoadTheme())

	decl, err := first.ApplyTheme("#FF5500")
	require.NoError(t, err)
	assert.Equal(t, "--primary-color: #FF5500", decl)

	second := newTestExplorer(newFakeCatalog(), func(o *Options) { o.Themes = themestore.NewFileStore(path) })
	assert.Equal(t, "#FF5500", second.LoadTheme())
}

func TestApplyTheme_Invalid(t *testing.T) {
	store := &memoryThemes{}
	x := newTestExplorer(newFakeCatalog(), func(o *Options) { o.Themes = store })

	_, err := x.ApplyTheme("red; display:none")
	require.ErrorIs(t, err, domain.ErrInvalidTheme)
	assert.Empty(t, store.color)
	assert.Equal(t, domain.DefaultTheme, x.Theme())
}

func TestApplyTheme_SaveFailureKeepsInMemoryTheme(t *testing.T) {
	store := &memoryThemes{saveErr: errors.New("read-only filesystem")}
	x := newTestExplorer(newFakeCatalog(), func(o *Options) { o.Themes = store })

	_, err := x.ApplyTheme("#000000")
	require.Error(t, err)
	assert.Equal(t, "#000000", x.Theme())
}

func TestLoadTheme_Fallbacks(t *testing.T) {
	t.Run("load error uses default", func(t *testing.T) {
		store := &memoryThemes{loadErr: errors.New("corrupt")}
		x := newTestExplorer(newFakeCatalog(), func(o *Options) { o.Themes = store })
		assert.Equal(t, domain.DefaultTheme, x.LoadTheme())
	})

	t.Run("invalid stored value uses configured default", func(t *testing.T) {
		store := &memoryThemes{color: "}"}
		x := newTestExplorer(newFakeCatalog(), func(o *Options) {
			o.Themes = store
			o.DefaultTheme = "#333333"
		})
		assert.Equal(t, "#333333", x.LoadTheme())
		assert.Equal(t, "#333333", store.color, "startup writes the applied theme back")
	})

	t.Run("no store", func(t *testing.T) {
		x := newTestExplorer(newFakeCatalog())
		assert.Equal(t, domain.DefaultTheme, x.LoadTheme())
	})
}
