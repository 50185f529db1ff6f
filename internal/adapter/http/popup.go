package http

import (
	"html/template"
	"io"

	"github.com/couchcryptid/eonet-explorer/internal/domain"
)

var popupTemplate = template.Must(template.New("popup").Parse(`<div class="{{ .Width }}">
	<h5>{{ .Popup.Title }}</h5>
	<h6>{{ .Popup.Subtitle }}</h6>
	<a class="a-ellips" target="_blank" rel="noopener" href="{{ .Popup.URL }}">{{ .Popup.URL }}</a>
</div>
`))

// renderPopup writes the popup's HTML fragment. Marker popups use the
// narrower w-90 box.
func renderPopup(w io.Writer, p domain.Popup) error {
	width := "w-100"
	if p.Kind == domain.PopupMarker {
		width = "w-90"
	}
	return popupTemplate.Execute(w, struct {
		Width string
		Popup domain.Popup
	}{width, p})
}
