package domain

// Marker icon sizes in pixels, [width, height].
var (
	MarkerIconSize      = [2]int{60, 60}
	MarkerIconHoverSize = [2]int{70, 70}
)

// MarkerProperties are the display properties attached to a marker feature.
type MarkerProperties struct {
	Message          string `json:"message"`
	URL              string `json:"url"`
	CoordinatesLabel string `json:"coordinatesData"`
	IconSize         [2]int `json:"iconSize"`
	IconHoverSize    [2]int `json:"iconHoverSize"`
}

// Marker is a point feature placed on the map for one layer.
type Marker struct {
	Coordinates Coordinates      `json:"coordinates"`
	Properties  MarkerProperties `json:"properties"`
}

// NewMarker builds the marker for a layer.
func NewMarker(l Layer) Marker {
	return Marker{
		Coordinates: l.Coordinates,
		Properties: MarkerProperties{
			Message:          l.Title,
			URL:              l.URL,
			CoordinatesLabel: l.Coordinates.Label(),
			IconSize:         MarkerIconSize,
			IconHoverSize:    MarkerIconHoverSize,
		},
	}
}

// BuildMarkers returns one marker per layer, in layer order.
func BuildMarkers(layers []Layer) []Marker {
	markers := make([]Marker, len(layers))
	for i, l := range layers {
		markers[i] = NewMarker(l)
	}
	return markers
}

// FindMarker returns the first marker at exactly the given coordinates.
func FindMarker(markers []Marker, at Coordinates) (Marker, bool) {
	for _, m := range markers {
		if m.Coordinates == at {
			return m, true
		}
	}
	return Marker{}, false
}
