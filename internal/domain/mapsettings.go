package domain

// MapSettings configures the client-side map widget.
type MapSettings struct {
	Style      string `json:"style"`
	Zoom       int    `json:"zoom"`
	Projection string `json:"projection"`
}

// DefaultMapSettings is a whole-world view in an equirectangular projection.
var DefaultMapSettings = MapSettings{
	Style:      "mapbox://styles/mapbox/streets-v12",
	Zoom:       1,
	Projection: "equirectangular",
}
