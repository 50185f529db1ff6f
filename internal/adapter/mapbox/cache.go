package mapbox

import (
	"container/list"
	"context"
	"math"
	"sync"

	"github.com/couchcryptid/eonet-explorer/internal/domain"
	"github.com/couchcryptid/eonet-explorer/internal/observability"
)

// placeKey identifies a coordinate pair at micro-degree resolution, which is
// finer than any EONET geometry and coarse enough to absorb float noise.
type placeKey struct {
	lat, lng int64
}

func keyFor(lat, lng float64) placeKey {
	return placeKey{
		lat: int64(math.Round(lat * 1e6)),
		lng: int64(math.Round(lng * 1e6)),
	}
}

// CachedGeocoder remembers resolved place names so reopening a marker does not
// hit Mapbox again.
type CachedGeocoder struct {
	inner   domain.ReverseGeocoder
	places  *lru[placeKey, domain.GeocodingResult]
	metrics *observability.Metrics
}

// NewCachedGeocoder wraps inner with a cache holding at most maxEntries places.
func NewCachedGeocoder(inner domain.ReverseGeocoder, maxEntries int, metrics *observability.Metrics) *CachedGeocoder {
	return &CachedGeocoder{
		inner:   inner,
		places:  newLRU[placeKey, domain.GeocodingResult](maxEntries),
		metrics: metrics,
	}
}

func (c *CachedGeocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.GeocodingResult, error) {
	key := keyFor(lat, lon)
	if result, ok := c.places.get(key); ok {
		c.metrics.GeocodeCache.WithLabelValues("hit").Inc()
		return result, nil
	}
	c.metrics.GeocodeCache.WithLabelValues("miss").Inc()

	result, err := c.inner.ReverseGeocode(ctx, lat, lon)
	if err != nil {
		return result, err
	}
	// Empty answers stay uncached; open water often resolves later.
	if result.FormattedAddress != "" {
		c.places.put(key, result)
	}
	return result, nil
}

// lru is a mutex-guarded least-recently-used map. The front of order is the
// most recently touched item.
type lru[K comparable, V any] struct {
	mu    sync.Mutex
	limit int
	order *list.List
	items map[K]*list.Element
}

type lruItem[K comparable, V any] struct {
	key K
	val V
}

func newLRU[K comparable, V any](limit int) *lru[K, V] {
	return &lru[K, V]{
		limit: max(limit, 1),
		order: list.New(),
		items: make(map[K]*list.Element),
	}
}

func (l *lru[K, V]) get(key K) (V, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	el, ok := l.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	l.order.MoveToFront(el)
	return el.Value.(*lruItem[K, V]).val, true
}

func (l *lru[K, V]) put(key K, val V) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if el, ok := l.items[key]; ok {
		el.Value.(*lruItem[K, V]).val = val
		l.order.MoveToFront(el)
		return
	}
	l.items[key] = l.order.PushFront(&lruItem[K, V]{key: key, val: val})

	for l.order.Len() > l.limit {
		oldest := l.order.Back()
		l.order.Remove(oldest)
		delete(l.items, oldest.Value.(*lruItem[K, V]).key)
	}
}

func (l *lru[K, V]) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.order.Len()
}
