package services

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"strconv"

	"github.com/Guram12/starmap/internal/domain/entities"
)

const defaultMarkerIcon = "📍"

var markerIcons = map[string]string{
	"restaurant":         "🍽️",
	"lodging":            "🏨",
	"tourist_attraction": "🏛️",
	"shopping_mall":      "🛍️",
	"hospital":           "🏥",
}

// MarkerIcon returns the pin glyph for a place type
func MarkerIcon(placeType string) string {
	if icon, ok := markerIcons[entities.NormalizePlaceType(placeType)]; ok {
		return icon
	}
	return defaultMarkerIcon
}

// GoogleMapsURL links to the place on Google Maps
func GoogleMapsURL(place entities.Place) string {
	return "https://www.google.com/maps/search/?api=1&query=" +
		strconv.FormatFloat(place.Location.Lat, 'f', -1, 64) + "," +
		strconv.FormatFloat(place.Location.Lng, 'f', -1, 64) +
		"&query_place_id=" + url.QueryEscape(place.ID)
}

var popupTemplate = template.Must(template.New("popup").Parse(`<div class="starmap-popup" style="max-width:220px;padding:10px;background:#059669;color:#fff;border-radius:10px;font-family:'Inter',sans-serif;">
{{- if .PhotoURL}}<img src="{{.PhotoURL}}" alt="{{.Name}}" style="width:100%;height:120px;object-fit:cover;border-radius:6px;margin-bottom:8px;"/>{{end -}}
<h3 style="margin:0 0 4px 0;font-size:15px;">{{.Name}}</h3>
<div style="margin-bottom:4px;"><span style="color:#fbbf24;">⭐</span> <span style="font-weight:600;">{{.Rating}}</span></div>
<p style="margin:0 0 8px 0;font-size:12px;">{{.Address}}</p>
<a href="{{.MapsURL}}" target="_blank" rel="noopener noreferrer" style="display:block;background:#fff;color:#059669;padding:8px 12px;border-radius:6px;font-size:12px;font-weight:600;text-align:center;text-decoration:none;">🗺️ Open in Google Maps</a>
</div>`))

type popupView struct {
	PhotoURL string
	Name     string
	Rating   string
	Address  string
	MapsURL  string
}

// RenderPopupHTML builds the info card shown when a marker is selected.
// All place values are escaped.
func RenderPopupHTML(place entities.Place) (string, error) {
	view := popupView{
		PhotoURL: place.PhotoURL,
		Name:     place.DisplayName,
		Rating:   "N/A",
		Address:  place.FormattedAddress,
		MapsURL:  GoogleMapsURL(place),
	}
	if place.Rating != nil && *place.Rating > 0 {
		view.Rating = strconv.FormatFloat(*place.Rating, 'f', -1, 64)
	}
	if view.Address == "" {
		view.Address = "Address not available"
	}

	var buf bytes.Buffer
	if err := popupTemplate.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("render popup for %s: %w", place.ID, err)
	}
	return buf.String(), nil
}
