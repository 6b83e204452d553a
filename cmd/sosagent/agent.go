package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"telecare-sos/internal/bootstrap"
	"telecare-sos/internal/config"
	"telecare-sos/internal/services"
	"telecare-sos/pkg/emergencyapi"
	"telecare-sos/pkg/logger"
	"telecare-sos/pkg/metrics"
)

// agent is the device-side object graph: location, offline queue and
// dispatcher, wired to the emergency backend over HTTP.
type agent struct {
	cfg        *config.Config
	logger     *logger.Logger
	metrics    *metrics.Metrics
	queue      services.AlertQueue
	location   services.LocationService
	dispatcher services.EmergencyService
	closeStore func() error

	// terminal is set for interactive commands; it owns stdin.
	terminal *terminalPrompt
}

func newAgent(ctx context.Context, cfg *config.Config, log *logger.Logger, prompt services.UserPrompt) (*agent, error) {
	store, closeStore, err := bootstrap.NewStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open device storage: %w", err)
	}
	if err := bootstrap.EnsureDeviceID(ctx, store, cfg.Emergency); err != nil {
		closeStore()
		return nil, err
	}

	client, err := emergencyapi.NewClient(&emergencyapi.Config{
		BaseURL:   cfg.Emergency.APIBaseURL,
		Timeout:   cfg.Emergency.APITimeout,
		AuthToken: cfg.Emergency.APIToken,
	})
	if err != nil {
		closeStore()
		return nil, err
	}

	source, geocoder, err := bootstrap.NewLocationSource(cfg)
	if err != nil {
		closeStore()
		return nil, err
	}

	m := metrics.New()
	locationOpts := []services.LocationOption{services.WithLocationMetrics(m)}
	if prompt != nil {
		locationOpts = append(locationOpts, services.WithLocationPrompt(prompt))
	}
	if geocoder != nil {
		locationOpts = append(locationOpts, services.WithGeocoder(geocoder))
	}
	location := services.NewLocationService(cfg.Emergency, source, store, log, locationOpts...)

	queue := services.NewAlertQueue(cfg.Emergency, store, client, log, services.WithQueueMetrics(m))

	fallbacks, err := newFallbacks(ctx, cfg, log, prompt)
	if err != nil {
		closeStore()
		return nil, err
	}

	dispatcher := services.NewEmergencyService(cfg.Emergency, client, location, queue, log,
		services.WithFallbacks(fallbacks),
		services.WithEmergencyMetrics(m),
	)

	return &agent{
		cfg:        cfg,
		logger:     log,
		metrics:    m,
		queue:      queue,
		location:   location,
		dispatcher: dispatcher,
		closeStore: closeStore,
	}, nil
}

func newFallbacks(ctx context.Context, cfg *config.Config, log *logger.Logger, prompt services.UserPrompt) (services.Fallbacks, error) {
	notifier, err := bootstrap.NewPushProvider(ctx, cfg.Push, log)
	if err != nil {
		return services.Fallbacks{}, err
	}

	fallbacks := services.Fallbacks{
		Notifier:    notifier,
		DeviceToken: cfg.Emergency.DevicePushToken,
		Prompt:      prompt,
		Timeout:     cfg.Emergency.FallbackTimeout,
	}

	smsProvider, dialer, err := bootstrap.NewSMSProvider(ctx, cfg.SMS)
	if err != nil {
		log.WithError(err).Warn("SMS and call fallbacks disabled")
		return fallbacks, nil
	}
	fallbacks.SMS = smsProvider
	fallbacks.Dialer = dialer
	return fallbacks, nil
}

// Close waits for fallbacks still in flight, then releases storage.
func (a *agent) Close() {
	a.dispatcher.Wait()
	if err := a.closeStore(); err != nil {
		a.logger.WithError(err).Warn("Error closing device storage")
	}
}

func printJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
