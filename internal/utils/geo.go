package utils

import (
	"fmt"
	"math"
)

func IsValidCoordinates(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

func FormatCoordinates(lat, lng float64) string {
	return fmt.Sprintf("%.6f,%.6f", lat, lng)
}

// MapsLink returns a link an SMS recipient can open on any phone.
func MapsLink(lat, lng float64) string {
	return "https://maps.google.com/?q=" + FormatCoordinates(lat, lng)
}
