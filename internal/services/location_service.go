package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"telecare-sos/internal/config"
	"telecare-sos/internal/models"
	"telecare-sos/internal/utils"
	"telecare-sos/pkg/logger"
	"telecare-sos/pkg/maps"
	"telecare-sos/pkg/metrics"
	"telecare-sos/pkg/storage"
)

const permissionDeniedMessage = "Location access is turned off. Enable it in Settings so responders can find you."

type LocationService interface {
	RequestPermission(ctx context.Context) *PermissionResult
	GetCurrentLocation(ctx context.Context, timeout time.Duration) (*models.Position, error)
	GetCachedLocation(ctx context.Context) (*models.Position, error)
	GetEmergencyLocation(ctx context.Context) (*models.Position, error)
}

type PermissionResult struct {
	Granted bool                    `json:"granted"`
	Status  models.PermissionStatus `json:"status"`
	Message string                  `json:"message,omitempty"`
	Choice  string                  `json:"choice,omitempty"`
	Err     error                   `json:"-"`
}

type LocationOption func(*locationService)

func WithLocationPrompt(prompt UserPrompt) LocationOption {
	return func(s *locationService) { s.prompt = prompt }
}

func WithGeocoder(geocoder maps.MapsProvider) LocationOption {
	return func(s *locationService) { s.geocoder = geocoder }
}

func WithLocationClock(now func() time.Time) LocationOption {
	return func(s *locationService) { s.now = now }
}

func WithLocationMetrics(m *metrics.Metrics) LocationOption {
	return func(s *locationService) { s.metrics = m }
}

type locationService struct {
	source   LocationSource
	store    storage.Store
	prompt   UserPrompt
	geocoder maps.MapsProvider
	config   *config.EmergencyConfig
	logger   *logger.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewLocationService(
	cfg *config.EmergencyConfig,
	source LocationSource,
	store storage.Store,
	log *logger.Logger,
	opts ...LocationOption,
) LocationService {
	if log == nil {
		log = logger.NewNop()
	}
	s := &locationService{
		source: source,
		store:  store,
		config: cfg,
		logger: log.WithField("component", "location"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *locationService) RequestPermission(ctx context.Context) *PermissionResult {
	if s.source == nil {
		return &PermissionResult{
			Status: models.PermissionDenied,
			Err:    &LocationError{Code: LocationErrorUnknown, Err: ErrNoLocationSource},
		}
	}

	status, err := s.source.PermissionStatus(ctx)
	if err != nil {
		return &PermissionResult{
			Status: models.PermissionUndetermined,
			Err:    &LocationError{Code: LocationErrorUnknown, Err: err},
		}
	}

	switch status {
	case models.PermissionGranted:
		return &PermissionResult{Granted: true, Status: status}
	case models.PermissionDenied:
		// Previously denied: do not re-request, let the caller decide.
		result := deniedResult()
		if s.prompt != nil {
			choice, err := s.prompt.Ask(ctx, PromptOptions{
				Title:   "Location Permission Required",
				Message: permissionDeniedMessage,
				Choices: []string{ChoiceOpenSettings, ChoiceNotNow},
			})
			if err != nil {
				s.logger.WithError(err).Warn("Permission prompt failed")
			} else {
				result.Choice = choice
			}
		}
		return result
	}

	status, err = s.source.RequestForegroundPermission(ctx)
	if err != nil {
		return &PermissionResult{
			Status: models.PermissionUndetermined,
			Err:    &LocationError{Code: LocationErrorUnknown, Err: err},
		}
	}
	if status == models.PermissionGranted {
		return &PermissionResult{Granted: true, Status: status}
	}
	return deniedResult()
}

func deniedResult() *PermissionResult {
	return &PermissionResult{
		Status:  models.PermissionDenied,
		Message: permissionDeniedMessage,
		Err:     &PermissionError{Status: models.PermissionDenied, Message: permissionDeniedMessage},
	}
}

func (s *locationService) GetCurrentLocation(ctx context.Context, timeout time.Duration) (*models.Position, error) {
	if timeout <= 0 {
		timeout = s.config.LiveLocationTimeout
	}
	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return s.fetchLive(fetchCtx, timeout)
}

func (s *locationService) GetCachedLocation(ctx context.Context) (*models.Position, error) {
	raw, ok, err := s.store.Get(ctx, storage.KeyLastKnownLocation)
	if err != nil {
		return nil, &CacheError{
			Code: CacheErrorUnreadable,
			Err:  &StorageError{Op: "get", Key: storage.KeyLastKnownLocation, Err: err},
		}
	}
	if !ok || raw == "" {
		return nil, &CacheError{Code: CacheErrorMissing}
	}

	var position models.Position
	if err := json.Unmarshal([]byte(raw), &position); err != nil {
		return nil, &CacheError{Code: CacheErrorUnreadable, Err: fmt.Errorf("failed to decode cached location: %w", err)}
	}

	if position.Age(s.now()) > s.config.CachedLocationMaxAge {
		return nil, &CacheError{Code: CacheErrorStale, Stale: &position}
	}

	return &position, nil
}

// GetEmergencyLocation never returns later than the emergency location
// timeout plus one cache read.
func (s *locationService) GetEmergencyLocation(ctx context.Context) (*models.Position, error) {
	liveCtx, cancel := context.WithTimeout(ctx, s.config.EmergencyLocationTimeout)
	defer cancel()

	var liveErr error
	if s.source == nil {
		liveErr = &LocationError{Code: LocationErrorUnknown, Err: ErrNoLocationSource}
	} else {
		status, err := race(liveCtx, s.source.PermissionStatus)
		switch {
		case err != nil:
			liveErr = classifyLocationError(err)
		case status != models.PermissionGranted:
			liveErr = &LocationError{
				Code: LocationErrorPermissionDenied,
				Err:  &PermissionError{Status: status, Message: permissionDeniedMessage},
			}
		default:
			position, err := s.fetchLive(liveCtx, s.config.EmergencyLocationTimeout)
			if err == nil {
				s.metrics.RecordLocation("live")
				return position, nil
			}
			liveErr = err
		}
	}

	cached, cacheErr := s.GetCachedLocation(ctx)
	if cacheErr == nil {
		cached.Fallback = models.LocationFallbackCached
		s.metrics.RecordLocation("cached")
		s.logger.WithFields(map[string]interface{}{
			"live_error": liveErr.Error(),
			"age":        cached.Age(s.now()).String(),
		}).Warn("Using cached location for emergency")
		return cached, nil
	}

	s.metrics.RecordLocation("none")
	s.logger.WithFields(map[string]interface{}{
		"live_error":  liveErr.Error(),
		"cache_error": cacheErr.Error(),
	}).Error("No location available for emergency")
	return nil, liveErr
}

func (s *locationService) fetchLive(ctx context.Context, timeout time.Duration) (*models.Position, error) {
	if s.source == nil {
		return nil, &LocationError{Code: LocationErrorUnknown, Err: ErrNoLocationSource}
	}

	position, err := race(ctx, func(ctx context.Context) (*models.Position, error) {
		return s.source.GetCurrentPosition(ctx, PositionOptions{HighAccuracy: true, TimeoutHint: timeout})
	})
	if err != nil {
		return nil, classifyLocationError(err)
	}
	if position == nil || !utils.IsValidCoordinates(position.Latitude, position.Longitude) {
		return nil, &LocationError{Code: LocationErrorUnknown, Err: errors.New("device returned invalid coordinates")}
	}

	fix := *position
	fix.Fallback = ""
	if fix.CapturedAt.IsZero() {
		fix.CapturedAt = s.now()
	}
	s.enrichAddress(ctx, &fix)
	s.saveCache(ctx, &fix)

	return &fix, nil
}

// enrichAddress is best effort and shares the caller's deadline.
func (s *locationService) enrichAddress(ctx context.Context, position *models.Position) {
	if s.geocoder == nil || position.Address != "" {
		return
	}
	geoCtx, cancel := context.WithTimeout(ctx, s.config.ReverseGeocodeTimeout)
	defer cancel()

	resp, err := race(geoCtx, func(ctx context.Context) (*maps.GeocodeResponse, error) {
		return s.geocoder.ReverseGeocode(ctx, position.Latitude, position.Longitude)
	})
	if err != nil {
		s.logger.WithError(err).Debug("Reverse geocoding skipped")
		return
	}
	position.Address = resp.FormattedAddress()
}

func (s *locationService) saveCache(ctx context.Context, position *models.Position) {
	data, err := json.Marshal(position)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to encode location for cache")
		return
	}
	// Write with a detached context so an expiring fetch deadline does not
	// drop a fix we already have.
	if err := s.store.Set(context.WithoutCancel(ctx), storage.KeyLastKnownLocation, string(data)); err != nil {
		s.logger.WithError(&StorageError{Op: "set", Key: storage.KeyLastKnownLocation, Err: err}).Warn("Failed to cache location")
	}
}

// race runs fn in its own goroutine and returns when it finishes or ctx ends,
// whichever comes first. A late result is discarded.
func race[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		value, err := fn(ctx)
		done <- outcome{value: value, err: err}
	}()

	select {
	case out := <-done:
		return out.value, out.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func classifyLocationError(err error) error {
	var locErr *LocationError
	switch {
	case errors.As(err, &locErr):
		return locErr
	case errors.Is(err, context.DeadlineExceeded):
		return &LocationError{Code: LocationErrorTimeout, Err: err}
	case errors.Is(err, ErrLocationServicesDisabled):
		return &LocationError{Code: LocationErrorServicesDisabled, Err: err}
	case errors.Is(err, ErrLocationPermissionDenied), IsPermissionError(err):
		return &LocationError{Code: LocationErrorPermissionDenied, Err: err}
	default:
		return &LocationError{Code: LocationErrorUnknown, Err: err}
	}
}
