package http

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/couchcryptid/eonet-explorer/internal/domain"
)

// markersFeatureCollection renders markers as point features whose properties
// are the marker display properties, ready for a map source.
func markersFeatureCollection(markers []domain.Marker) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, m := range markers {
		f := geojson.NewFeature(orb.Point{m.Coordinates.Lng(), m.Coordinates.Lat()})
		f.Properties["message"] = m.Properties.Message
		f.Properties["url"] = m.Properties.URL
		f.Properties["coordinatesData"] = m.Properties.CoordinatesLabel
		f.Properties["iconSize"] = m.Properties.IconSize
		f.Properties["iconHoverSize"] = m.Properties.IconHoverSize
		fc.Append(f)
	}
	return fc
}
