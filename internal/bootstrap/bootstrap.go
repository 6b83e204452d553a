// Package bootstrap builds the provider graph shared by the server and the
// device agent from the loaded configuration.
package bootstrap

import (
	"context"
	"fmt"

	"telecare-sos/internal/config"
	"telecare-sos/internal/services"
	"telecare-sos/pkg/cache"
	"telecare-sos/pkg/logger"
	"telecare-sos/pkg/maps"
	"telecare-sos/pkg/push"
	"telecare-sos/pkg/sms"
	"telecare-sos/pkg/storage"

	"github.com/google/uuid"
)

func NewLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.NewLogger(&logger.Config{
		Level:      logger.LogLevel(cfg.App.LogLevel),
		Format:     cfg.App.LogFormat,
		Output:     "stdout",
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		Caller:     cfg.App.Debug,
		Colors:     !cfg.App.IsProduction(),
		AppName:    cfg.App.Name,
		Version:    cfg.App.Version,
	})
}

// NewSMSProvider returns the configured text provider and, for Twilio, the
// voice dialer. Provider "none" or missing credentials disable both.
func NewSMSProvider(ctx context.Context, cfg *config.SMSConfig) (sms.SMSProvider, sms.Dialer, error) {
	switch cfg.Provider {
	case "twilio":
		if cfg.Twilio.AccountSID == "" || cfg.Twilio.AuthToken == "" {
			return nil, nil, nil
		}
		provider := sms.NewTwilioProvider(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.FromNumber, cfg.Twilio.VoiceFrom)
		return provider, provider, nil
	case "aws_sns", "sns":
		provider, err := sms.NewAWSSNSProvider(ctx, cfg.AWS.Region, cfg.DefaultFrom)
		if err != nil {
			return nil, nil, err
		}
		return provider, nil, nil
	case "none", "":
		return nil, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown sms provider %q", cfg.Provider)
	}
}

// NewPushProvider falls back to the log provider when FCM or APNS are not
// configured, so the local notification fallback always has a sink.
func NewPushProvider(ctx context.Context, cfg *config.PushConfig, log *logger.Logger) (push.PushProvider, error) {
	switch cfg.Provider {
	case "fcm":
		if !cfg.FCM.Configured() {
			return push.NewLogProvider(log), nil
		}
		return push.NewFCMProvider(ctx, cfg.FCM.ProjectID, cfg.FCM.Credentials)
	case "apns":
		if !cfg.APNS.Configured() {
			return push.NewLogProvider(log), nil
		}
		return push.NewAPNSProvider(cfg.APNS.KeyFile, cfg.APNS.KeyID, cfg.APNS.TeamID, cfg.APNS.Topic, cfg.APNS.Production)
	case "log", "":
		return push.NewLogProvider(log), nil
	default:
		return nil, fmt.Errorf("unknown push provider %q", cfg.Provider)
	}
}

// NewStore opens the device key-value store. The returned close function is
// never nil.
func NewStore(cfg *config.Config) (storage.Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Storage.Provider {
	case "local", "":
		store, err := storage.NewLocalStorage(cfg.Storage.Local.BasePath)
		if err != nil {
			return nil, noop, err
		}
		return store, noop, nil
	case "redis":
		store, err := storage.NewRedisStorage(&storage.RedisConfig{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
			KeyPrefix:    cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return nil, noop, err
		}
		return store, store.Close, nil
	case "memory":
		return storage.NewMemoryStorage(), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown storage provider %q", cfg.Storage.Provider)
	}
}

// deviceIDKey holds the generated device id when none is configured.
const deviceIDKey = "deviceId"

// EnsureDeviceID fills cfg.DeviceID from the store, minting and saving a new
// one on first run so the id stays stable across restarts.
func EnsureDeviceID(ctx context.Context, store storage.Store, cfg *config.EmergencyConfig) error {
	if cfg.DeviceID != "" {
		return nil
	}
	id, ok, err := store.Get(ctx, deviceIDKey)
	if err != nil {
		return fmt.Errorf("failed to read device id: %w", err)
	}
	if !ok || id == "" {
		id = uuid.NewString()
		if err := store.Set(ctx, deviceIDKey, id); err != nil {
			return fmt.Errorf("failed to save device id: %w", err)
		}
	}
	cfg.DeviceID = id
	return nil
}

func NewRecordCache(cfg *config.RedisConfig) (*cache.RedisCache, error) {
	return cache.NewRedisCache(&cache.RedisConfig{
		Host:         cfg.Host,
		Port:         cfg.Port,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		KeyPrefix:    cfg.KeyPrefix,
	})
}

// NewLocationSource returns the position source and, when a Maps key is set,
// the geocoder used to attach addresses.
func NewLocationSource(cfg *config.Config) (services.LocationSource, maps.MapsProvider, error) {
	emergency := cfg.Emergency

	var geocoder maps.MapsProvider
	if key := cfg.Maps.GoogleMaps.APIKey; key != "" {
		provider, err := maps.NewGoogleMapsProvider(key)
		if err != nil {
			return nil, nil, err
		}
		geocoder = provider
	}

	switch emergency.LocationSource {
	case "maps":
		if geocoder == nil {
			return nil, nil, fmt.Errorf("location source maps requires GOOGLE_MAPS_API_KEY")
		}
		source := services.NewMapsLocationSource(geocoder, emergency.LocationConsent)
		if !cfg.Maps.GoogleMaps.ReverseGeocode {
			return source, nil, nil
		}
		return source, geocoder, nil
	default:
		source := &services.StaticLocationSource{
			Latitude:  emergency.StaticLatitude,
			Longitude: emergency.StaticLongitude,
			Accuracy:  emergency.StaticAccuracy,
			Consent:   emergency.LocationConsent,
		}
		if !cfg.Maps.GoogleMaps.ReverseGeocode {
			return source, nil, nil
		}
		return source, geocoder, nil
	}
}
