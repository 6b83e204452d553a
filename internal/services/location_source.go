package services

import (
	"context"
	"errors"
	"time"

	"telecare-sos/internal/models"
	"telecare-sos/pkg/maps"
)

var (
	ErrLocationServicesDisabled = errors.New("location services are disabled")
	ErrLocationPermissionDenied = errors.New("location permission denied")
)

type PositionOptions struct {
	HighAccuracy bool
	TimeoutHint  time.Duration
}

// LocationSource is the device location API.
type LocationSource interface {
	// PermissionStatus reports the current grant without prompting.
	PermissionStatus(ctx context.Context) (models.PermissionStatus, error)
	RequestForegroundPermission(ctx context.Context) (models.PermissionStatus, error)
	GetCurrentPosition(ctx context.Context, options PositionOptions) (*models.Position, error)
}

// MapsLocationSource resolves the device position through the Google
// Geolocation API. Consent is granted or withheld by configuration.
type MapsLocationSource struct {
	provider maps.MapsProvider
	consent  bool
	now      func() time.Time
}

func NewMapsLocationSource(provider maps.MapsProvider, consent bool) *MapsLocationSource {
	return &MapsLocationSource{
		provider: provider,
		consent:  consent,
		now:      time.Now,
	}
}

func (m *MapsLocationSource) PermissionStatus(ctx context.Context) (models.PermissionStatus, error) {
	if m.consent {
		return models.PermissionGranted, nil
	}
	return models.PermissionDenied, nil
}

func (m *MapsLocationSource) RequestForegroundPermission(ctx context.Context) (models.PermissionStatus, error) {
	return m.PermissionStatus(ctx)
}

func (m *MapsLocationSource) GetCurrentPosition(ctx context.Context, options PositionOptions) (*models.Position, error) {
	if !m.consent {
		return nil, ErrLocationPermissionDenied
	}
	if m.provider == nil {
		return nil, ErrLocationServicesDisabled
	}

	resp, err := m.provider.Geolocate(ctx, &maps.GeolocationRequest{ConsiderIP: true})
	if err != nil {
		return nil, err
	}

	return &models.Position{
		Latitude:   resp.Location.Latitude,
		Longitude:  resp.Location.Longitude,
		Accuracy:   resp.Accuracy,
		CapturedAt: m.now(),
	}, nil
}

// StaticLocationSource always reports the same configured coordinates.
type StaticLocationSource struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64
	Consent   bool
	Now       func() time.Time
}

func (s *StaticLocationSource) PermissionStatus(ctx context.Context) (models.PermissionStatus, error) {
	if s.Consent {
		return models.PermissionGranted, nil
	}
	return models.PermissionDenied, nil
}

func (s *StaticLocationSource) RequestForegroundPermission(ctx context.Context) (models.PermissionStatus, error) {
	return s.PermissionStatus(ctx)
}

func (s *StaticLocationSource) GetCurrentPosition(ctx context.Context, options PositionOptions) (*models.Position, error) {
	if !s.Consent {
		return nil, ErrLocationPermissionDenied
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return &models.Position{
		Latitude:   s.Latitude,
		Longitude:  s.Longitude,
		Accuracy:   s.Accuracy,
		CapturedAt: now(),
	}, nil
}
