package maps

import "context"

type MapsProvider interface {
	ReverseGeocode(ctx context.Context, lat, lng float64) (*GeocodeResponse, error)
	Geolocate(ctx context.Context, request *GeolocationRequest) (*GeolocationResponse, error)
}

type GeocodeResponse struct {
	Results []GeocodeResult `json:"results"`
}

type GeocodeResult struct {
	PlaceID     string   `json:"place_id"`
	Address     string   `json:"formatted_address"`
	Coordinates Location `json:"geometry"`
	Types       []string `json:"types"`
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type GeolocationRequest struct {
	ConsiderIP bool           `json:"consider_ip"`
	WiFi       []WiFiObserved `json:"wifi,omitempty"`
}

type WiFiObserved struct {
	MACAddress     string `json:"mac_address"`
	SignalStrength int    `json:"signal_strength"`
}

type GeolocationResponse struct {
	Location Location `json:"location"`
	Accuracy float64  `json:"accuracy"` // meters
}

// FormattedAddress returns the first result's address, or "" when there is none.
func (r *GeocodeResponse) FormattedAddress() string {
	if r == nil || len(r.Results) == 0 {
		return ""
	}
	return r.Results[0].Address
}
