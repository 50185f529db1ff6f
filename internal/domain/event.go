package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// errNoPosition is returned when a geometry carries no usable [lng, lat] pair.
var errNoPosition = errors.New("geometry has no position")

// Coordinates is a WGS-84 position in GeoJSON order: [lng, lat].
type Coordinates [2]float64

// Lng returns the longitude.
func (c Coordinates) Lng() float64 { return c[0] }

// Lat returns the latitude.
func (c Coordinates) Lat() float64 { return c[1] }

// Label renders the position as "lat, lng" for popup subtitles.
func (c Coordinates) Label() string {
	return strconv.FormatFloat(c.Lat(), 'f', -1, 64) + ", " + strconv.FormatFloat(c.Lng(), 'f', -1, 64)
}

// Geometry is one dated observation of an event. Coordinates stay raw because
// their nesting depends on Type (Point vs Polygon).
type Geometry struct {
	Date        string          `json:"date"`
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// Source is an upstream provider reference for an event.
type Source struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Event is a natural event as returned by a category's event list.
type Event struct {
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	Geometry []Geometry `json:"geometry"`
	Sources  []Source   `json:"sources"`
}

// Layer is one event instance as the layer list and the map show it.
type Layer struct {
	EventID     string      `json:"event_id,omitempty"`
	Title       string      `json:"title"`
	Coordinates Coordinates `json:"coordinates"`
	URL         string      `json:"url"`
	Date        string      `json:"date,omitempty"`
}

// ToLayer derives a layer from the event's first geometry and first source.
// Events without a first source get an empty URL.
func (e Event) ToLayer() (Layer, error) {
	if len(e.Geometry) == 0 {
		return Layer{}, fmt.Errorf("event %q: %w", e.ID, errNoPosition)
	}
	pos, err := firstPosition(e.Geometry[0].Coordinates)
	if err != nil {
		return Layer{}, fmt.Errorf("event %q: %w", e.ID, err)
	}

	layer := Layer{
		EventID:     e.ID,
		Title:       e.Title,
		Coordinates: pos,
		Date:        e.Geometry[0].Date,
	}
	if len(e.Sources) > 0 {
		layer.URL = e.Sources[0].URL
	}
	return layer, nil
}

// ExtractLayers converts events to layers in upstream order. Events that
// cannot be placed on the map are left out and reported in skipped.
func ExtractLayers(events []Event) (layers []Layer, skipped []error) {
	layers = make([]Layer, 0, len(events))
	for _, e := range events {
		layer, err := e.ToLayer()
		if err != nil {
			skipped = append(skipped, err)
			continue
		}
		layers = append(layers, layer)
	}
	return layers, skipped
}

// firstPosition descends into nested coordinate arrays until it reaches a
// position, so Point, LineString and Polygon all resolve to their first vertex.
func firstPosition(raw json.RawMessage) (Coordinates, error) {
	if len(raw) == 0 {
		return Coordinates{}, errNoPosition
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return Coordinates{}, fmt.Errorf("decode coordinates: %w", err)
	}

	for {
		arr, ok := v.([]any)
		if !ok || len(arr) == 0 {
			return Coordinates{}, errNoPosition
		}
		if _, nested := arr[0].([]any); nested {
			v = arr[0]
			continue
		}
		if len(arr) < 2 {
			return Coordinates{}, errNoPosition
		}
		lng, okLng := arr[0].(float64)
		lat, okLat := arr[1].(float64)
		if !okLng || !okLat {
			return Coordinates{}, errNoPosition
		}
		return Coordinates{lng, lat}, nil
	}
}
