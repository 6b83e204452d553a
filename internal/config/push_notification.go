package config

// PushConfig selects how the device is told that an SOS was queued offline:
// "fcm", "apns" or "log". An unconfigured FCM or APNs provider falls back to
// the log notifier.
type PushConfig struct {
	Provider string      `yaml:"provider"`
	FCM      *FCMConfig  `yaml:"fcm"`
	APNS     *APNSConfig `yaml:"apns"`
}

type FCMConfig struct {
	ProjectID   string `yaml:"project_id"`
	Credentials string `yaml:"credentials_file"`
}

// Configured reports whether a firebase app can be initialised.
func (c *FCMConfig) Configured() bool {
	return c != nil && (c.ProjectID != "" || c.Credentials != "")
}

type APNSConfig struct {
	KeyID      string `yaml:"key_id"`
	TeamID     string `yaml:"team_id"`
	Topic      string `yaml:"topic"`
	KeyFile    string `yaml:"key_file"`
	Production bool   `yaml:"production"`
}

// Configured reports whether a token-based APNs client can be built.
func (c *APNSConfig) Configured() bool {
	return c != nil && c.KeyFile != "" && c.KeyID != "" && c.TeamID != ""
}

func loadPushConfig() *PushConfig {
	return &PushConfig{
		Provider: getEnv("PUSH_PROVIDER", "fcm"),
		FCM: &FCMConfig{
			ProjectID:   getEnv("FCM_PROJECT_ID", ""),
			Credentials: getEnv("FCM_CREDENTIALS_FILE", ""),
		},
		APNS: &APNSConfig{
			KeyID:      getEnv("APNS_KEY_ID", ""),
			TeamID:     getEnv("APNS_TEAM_ID", ""),
			Topic:      getEnv("APNS_TOPIC", getEnv("APNS_BUNDLE_ID", "")),
			KeyFile:    getEnv("APNS_KEY_FILE", ""),
			Production: getEnvAsBool("APNS_PRODUCTION", false),
		},
	}
}
