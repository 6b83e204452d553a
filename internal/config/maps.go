package config

type MapsConfig struct {
	Provider   string            `yaml:"provider"`
	GoogleMaps *GoogleMapsConfig `yaml:"google_maps"`
}

type GoogleMapsConfig struct {
	APIKey         string `yaml:"api_key"`
	ReverseGeocode bool   `yaml:"reverse_geocode"`
}

func loadMapsConfig() *MapsConfig {
	return &MapsConfig{
		Provider: getEnv("MAPS_PROVIDER", "google"),
		GoogleMaps: &GoogleMapsConfig{
			APIKey:         getEnv("GOOGLE_MAPS_API_KEY", ""),
			ReverseGeocode: getEnvAsBool("GOOGLE_MAPS_REVERSE_GEOCODE", true),
		},
	}
}
