// Package domain models NASA EONET natural-event data as the explorer shows it.
//
// # Data Source
//
// Categories and events come from the Earth Observatory Natural Event Tracker
// (EONET) v3 API at https://eonet.gsfc.nasa.gov/api/v3. A category carries a
// link to its own event-list endpoint; the explorer never builds event URLs
// itself, it appends query parameters to that link.
//
// # EONET Data Conventions
//
// Category allow-list:
//
//	Only "Sea and Lake Ice", "Volcanoes" and "Wildfires" are offered. Other
//	categories either have no point geometry or no provider in the source
//	allow-list. Matching is on the exact title.
//
// Source allow-list:
//
//	Every event query is scoped to a fixed set of provider codes passed as a
//	comma-separated "source" parameter, e.g. "AVO,ABFIRE,AU_BOM,...". See
//	[Sources].
//
// Coordinates:
//
//	GeoJSON order, longitude first: [lng, lat]. A Point geometry holds a
//	single position; a Polygon holds rings of positions, and the explorer uses
//	the first vertex of the outer ring. Only an event's first geometry entry
//	is used, which for multi-day events is the earliest observation.
//
// Dates:
//
//	Query bounds use "YYYY-MM-DD" (the date picker format). Years are
//	restricted to 1900 through the current year.
//
// # Markers and Layers
//
// A layer is one event instance in the layer list; a marker is the map-side
// rendering of the same layer. Both are rebuilt from scratch on every query
// and are matched by exact coordinate equality, so two events at the same
// position resolve to the first one in upstream order.
package domain
