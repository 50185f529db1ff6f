package domain

// PopupOffset is the pixel distance between a popup and its anchor.
const PopupOffset = 25

// PopupKind records which interaction opened a popup.
type PopupKind string

const (
	// PopupFocus is opened from the layer list and shows the coordinate label.
	PopupFocus PopupKind = "focus"
	// PopupMarker is opened by clicking a marker and shows the resolved place name.
	PopupMarker PopupKind = "marker"
)

// Popup is an info window anchored at a marker.
type Popup struct {
	Kind        PopupKind   `json:"kind"`
	Coordinates Coordinates `json:"coordinates"`
	Title       string      `json:"title"`
	Subtitle    string      `json:"subtitle"`
	URL         string      `json:"url"`
	Offset      int         `json:"offset"`
}

// FocusPopup builds the popup opened when a layer entry is focused.
func FocusPopup(m Marker) Popup {
	return Popup{
		Kind:        PopupFocus,
		Coordinates: m.Coordinates,
		Title:       m.Properties.Message,
		Subtitle:    m.Properties.CoordinatesLabel,
		URL:         m.Properties.URL,
		Offset:      PopupOffset,
	}
}

// PlacePopup builds the popup opened by a marker click. placeName may be empty
// when reverse geocoding found nothing or failed.
func PlacePopup(m Marker, placeName string) Popup {
	return Popup{
		Kind:        PopupMarker,
		Coordinates: m.Coordinates,
		Title:       m.Properties.Message,
		Subtitle:    placeName,
		URL:         m.Properties.URL,
		Offset:      PopupOffset,
	}
}
