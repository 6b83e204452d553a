package config

import (
	"fmt"
	"time"
)

type DrainPolicy string

const (
	// DrainPolicyClearAll removes every item of a drain pass, delivered or not.
	DrainPolicyClearAll DrainPolicy = "clear_all"
	// DrainPolicyRetainFailed keeps undelivered items for the next pass.
	DrainPolicyRetainFailed DrainPolicy = "retain_failed"
)

type EmergencyConfig struct {
	APIBaseURL string        `yaml:"api_base_url"`
	APIToken   string        `yaml:"api_token"`
	APITimeout time.Duration `yaml:"api_timeout"`

	LocationSource           string        `yaml:"location_source"`
	LocationConsent          bool          `yaml:"location_consent"`
	StaticLatitude           float64       `yaml:"static_latitude"`
	StaticLongitude          float64       `yaml:"static_longitude"`
	StaticAccuracy           float64       `yaml:"static_accuracy"`
	LiveLocationTimeout      time.Duration `yaml:"live_location_timeout"`
	EmergencyLocationTimeout time.Duration `yaml:"emergency_location_timeout"`
	CachedLocationMaxAge     time.Duration `yaml:"cached_location_max_age"`
	ReverseGeocodeTimeout    time.Duration `yaml:"reverse_geocode_timeout"`

	SingleAlertDwell        time.Duration `yaml:"single_alert_dwell"`
	CriticalEscalationDwell time.Duration `yaml:"critical_escalation_dwell"`
	FallbackTimeout         time.Duration `yaml:"fallback_timeout"`

	DrainPolicy   DrainPolicy `yaml:"drain_policy"`
	DrainSchedule string      `yaml:"drain_schedule"`

	UserID          string `yaml:"user_id"`
	UserName        string `yaml:"user_name"`
	UserPhone       string `yaml:"user_phone"`
	BloodGroup      string `yaml:"blood_group"`
	DeviceID        string `yaml:"device_id"`
	Platform        string `yaml:"platform"`
	DevicePushToken string `yaml:"device_push_token"`
}

func loadEmergencyConfig() *EmergencyConfig {
	return &EmergencyConfig{
		APIBaseURL: getEnv("EMERGENCY_API_BASE_URL", "http://localhost:8080/api"),
		APIToken:   getEnv("EMERGENCY_API_TOKEN", ""),
		APITimeout: getEnvAsDuration("EMERGENCY_API_TIMEOUT", 15*time.Second),

		LocationSource:           getEnv("EMERGENCY_LOCATION_SOURCE", "maps"),
		LocationConsent:          getEnvAsBool("EMERGENCY_LOCATION_CONSENT", true),
		StaticLatitude:           getEnvAsFloat64("EMERGENCY_STATIC_LATITUDE", 0),
		StaticLongitude:          getEnvAsFloat64("EMERGENCY_STATIC_LONGITUDE", 0),
		StaticAccuracy:           getEnvAsFloat64("EMERGENCY_STATIC_ACCURACY", 50),
		LiveLocationTimeout:      getEnvAsDuration("EMERGENCY_LIVE_LOCATION_TIMEOUT", 10*time.Second),
		EmergencyLocationTimeout: getEnvAsDuration("EMERGENCY_LOCATION_TIMEOUT", 8*time.Second),
		CachedLocationMaxAge:     getEnvAsDuration("EMERGENCY_CACHED_LOCATION_MAX_AGE", time.Hour),
		ReverseGeocodeTimeout:    getEnvAsDuration("EMERGENCY_REVERSE_GEOCODE_TIMEOUT", 2*time.Second),

		SingleAlertDwell:        getEnvAsDuration("EMERGENCY_SINGLE_ALERT_DWELL", 10*time.Second),
		CriticalEscalationDwell: getEnvAsDuration("EMERGENCY_CRITICAL_ESCALATION_DWELL", 30*time.Second),
		FallbackTimeout:         getEnvAsDuration("EMERGENCY_FALLBACK_TIMEOUT", 30*time.Second),

		DrainPolicy:   DrainPolicy(getEnv("EMERGENCY_QUEUE_DRAIN_POLICY", string(DrainPolicyClearAll))),
		DrainSchedule: getEnv("EMERGENCY_QUEUE_DRAIN_SCHEDULE", "@every 1m"),

		UserID:          getEnv("EMERGENCY_USER_ID", ""),
		UserName:        getEnv("EMERGENCY_USER_NAME", ""),
		UserPhone:       getEnv("EMERGENCY_USER_PHONE", ""),
		BloodGroup:      getEnv("EMERGENCY_USER_BLOOD_GROUP", ""),
		DeviceID:        getEnv("EMERGENCY_DEVICE_ID", ""),
		Platform:        getEnv("EMERGENCY_PLATFORM", "android"),
		DevicePushToken: getEnv("EMERGENCY_DEVICE_PUSH_TOKEN", ""),
	}
}

// DefaultEmergencyConfig returns the built-in timings without reading the
// environment.
func DefaultEmergencyConfig() *EmergencyConfig {
	return &EmergencyConfig{
		APITimeout:               15 * time.Second,
		LocationSource:           "static",
		LiveLocationTimeout:      10 * time.Second,
		EmergencyLocationTimeout: 8 * time.Second,
		CachedLocationMaxAge:     time.Hour,
		ReverseGeocodeTimeout:    2 * time.Second,
		SingleAlertDwell:         10 * time.Second,
		CriticalEscalationDwell:  30 * time.Second,
		FallbackTimeout:          30 * time.Second,
		DrainPolicy:              DrainPolicyClearAll,
		DrainSchedule:            "@every 1m",
		Platform:                 "android",
	}
}

func (c *EmergencyConfig) Validate() error {
	switch c.DrainPolicy {
	case DrainPolicyClearAll, DrainPolicyRetainFailed:
	default:
		return fmt.Errorf("invalid queue drain policy %q", c.DrainPolicy)
	}
	switch c.LocationSource {
	case "maps", "static":
	default:
		return fmt.Errorf("invalid location source %q", c.LocationSource)
	}
	if c.LiveLocationTimeout <= 0 || c.EmergencyLocationTimeout <= 0 {
		return fmt.Errorf("location timeouts must be positive")
	}
	if c.SingleAlertDwell <= 0 || c.CriticalEscalationDwell <= 0 {
		return fmt.Errorf("sos dwell durations must be positive")
	}
	return nil
}
