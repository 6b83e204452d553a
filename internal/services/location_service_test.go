package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"telecare-sos/internal/models"
	"telecare-sos/pkg/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedCache(t *testing.T, store storage.Store, position models.Position) {
	t.Helper()
	data, err := json.Marshal(position)
	require.NoError(t, err)
	require.NoError(t, store.Set(context.Background(), storage.KeyLastKnownLocation, string(data)))
}

func newTestLocationService(source LocationSource, store storage.Store, opts ...LocationOption) LocationService {
	opts = append([]LocationOption{WithLocationClock(fixedClock)}, opts...)
	return NewLocationService(testConfig(), source, store, nil, opts...)
}

func TestGetCurrentLocationWritesThroughToCache(t *testing.T) {
	store := storage.NewMemoryStorage()
	source := &fakeSource{
		status:   models.PermissionGranted,
		position: &models.Position{Latitude: 28.6, Longitude: 77.2, Accuracy: 12, CapturedAt: testNow},
	}
	svc := newTestLocationService(source, store)

	position, err := svc.GetCurrentLocation(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 28.6, position.Latitude)
	assert.Empty(t, position.Fallback)

	cached, err := svc.GetCachedLocation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 77.2, cached.Longitude)
	assert.True(t, cached.CapturedAt.Equal(testNow))
}

func TestGetCurrentLocationTimeout(t *testing.T) {
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })

	source := &fakeSource{status: models.PermissionGranted, block: block}
	svc := newTestLocationService(source, storage.NewMemoryStorage())

	start := time.Now()
	_, err := svc.GetCurrentLocation(context.Background(), 30*time.Millisecond)
	elapsed := time.Since(start)

	require.Error(t, err)
	code, ok := LocationErrorCodeOf(err)
	require.True(t, ok)
	assert.Equal(t, LocationErrorTimeout, code)
	assert.Less(t, elapsed, time.Second)
}

func TestGetCurrentLocationClassifiesErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code LocationErrorCode
	}{
		{"services disabled", ErrLocationServicesDisabled, LocationErrorServicesDisabled},
		{"permission revoked", ErrLocationPermissionDenied, LocationErrorPermissionDenied},
		{"hardware failure", errors.New("gps chip on fire"), LocationErrorUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := &fakeSource{status: models.PermissionGranted, err: tt.err}
			svc := newTestLocationService(source, storage.NewMemoryStorage())

			_, err := svc.GetCurrentLocation(context.Background(), time.Second)
			code, ok := LocationErrorCodeOf(err)
			require.True(t, ok)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestGetCachedLocationStalenessBoundary(t *testing.T) {
	store := storage.NewMemoryStorage()
	svc := newTestLocationService(&fakeSource{}, store)

	seedCache(t, store, models.Position{Latitude: 1, Longitude: 2, CapturedAt: testNow.Add(-(time.Hour - time.Millisecond))})
	position, err := svc.GetCachedLocation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1.0, position.Latitude)

	seedCache(t, store, models.Position{Latitude: 1, Longitude: 2, CapturedAt: testNow.Add(-time.Hour)})
	_, err = svc.GetCachedLocation(context.Background())
	require.NoError(t, err, "exactly one hour old is still usable")

	seedCache(t, store, models.Position{Latitude: 3, Longitude: 4, CapturedAt: testNow.Add(-(time.Hour + time.Millisecond))})
	_, err = svc.GetCachedLocation(context.Background())
	var cacheErr *CacheError
	require.ErrorAs(t, err, &cacheErr)
	assert.Equal(t, CacheErrorStale, cacheErr.Code)
	require.NotNil(t, cacheErr.Stale)
	assert.Equal(t, 3.0, cacheErr.Stale.Latitude)
}

func TestGetCachedLocationMissingAndUnreadable(t *testing.T) {
	store := newFlakyStore()
	svc := newTestLocationService(&fakeSource{}, store)

	_, err := svc.GetCachedLocation(context.Background())
	var cacheErr *CacheError
	require.ErrorAs(t, err, &cacheErr)
	assert.Equal(t, CacheErrorMissing, cacheErr.Code)

	require.NoError(t, store.Set(context.Background(), storage.KeyLastKnownLocation, "{not json"))
	_, err = svc.GetCachedLocation(context.Background())
	require.ErrorAs(t, err, &cacheErr)
	assert.Equal(t, CacheErrorUnreadable, cacheErr.Code)

	store.getErr = errors.New("disk unplugged")
	_, err = svc.GetCachedLocation(context.Background())
	require.ErrorAs(t, err, &cacheErr)
	assert.Equal(t, CacheErrorUnreadable, cacheErr.Code)
	var storageErr *StorageError
	assert.ErrorAs(t, err, &storageErr)
}

func TestGetEmergencyLocationLive(t *testing.T) {
	source := &fakeSource{
		status:   models.PermissionGranted,
		position: &models.Position{Latitude: 28.6, Longitude: 77.2, Accuracy: 5},
		delay:    5 * time.Millisecond,
	}
	svc := newTestLocationService(source, storage.NewMemoryStorage(), WithGeocoder(&fakeGeocoder{address: "Connaught Place, New Delhi"}))

	position, err := svc.GetEmergencyLocation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 28.6, position.Latitude)
	assert.Empty(t, position.Fallback)
	assert.Equal(t, "Connaught Place, New Delhi", position.Address)
	assert.True(t, position.CapturedAt.Equal(testNow))
}

func TestGetEmergencyLocationFallsBackToCache(t *testing.T) {
	store := storage.NewMemoryStorage()
	seedCache(t, store, models.Position{Latitude: 12.9, Longitude: 77.5, CapturedAt: testNow.Add(-10 * time.Minute)})

	source := &fakeSource{status: models.PermissionGranted, err: ErrLocationServicesDisabled}
	svc := newTestLocationService(source, store)

	position, err := svc.GetEmergencyLocation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.LocationFallbackCached, position.Fallback)
	assert.Equal(t, 12.9, position.Latitude)
}

func TestGetEmergencyLocationDeniedUsesCacheWithoutFetching(t *testing.T) {
	store := storage.NewMemoryStorage()
	seedCache(t, store, models.Position{Latitude: 12.9, Longitude: 77.5, CapturedAt: testNow.Add(-10 * time.Minute)})

	block := make(chan struct{})
	defer close(block)
	source := &fakeSource{status: models.PermissionDenied, block: block}
	svc := newTestLocationService(source, store)

	position, err := svc.GetEmergencyLocation(context.Background())
	require.NoError(t, err)
	assert.True(t, position.IsCached())
	assert.Equal(t, 0, source.calls, "must not prompt for permission on the emergency path")
}

func TestGetEmergencyLocationNoPermissionNoCache(t *testing.T) {
	svc := newTestLocationService(&fakeSource{status: models.PermissionDenied}, storage.NewMemoryStorage())

	start := time.Now()
	_, err := svc.GetEmergencyLocation(context.Background())

	require.Error(t, err)
	assert.Less(t, time.Since(start), 8*time.Second)
	code, ok := LocationErrorCodeOf(err)
	require.True(t, ok)
	assert.Equal(t, LocationErrorPermissionDenied, code)
	assert.True(t, IsPermissionError(err))
}

func TestGetEmergencyLocationBoundedWhenDeviceHangs(t *testing.T) {
	statusBlock := make(chan struct{})
	defer close(statusBlock)

	cfg := testConfig()
	cfg.EmergencyLocationTimeout = 50 * time.Millisecond
	svc := NewLocationService(cfg, &fakeSource{statusBlock: statusBlock}, storage.NewMemoryStorage(), nil, WithLocationClock(fixedClock))

	start := time.Now()
	_, err := svc.GetEmergencyLocation(context.Background())
	elapsed := time.Since(start)

	code, ok := LocationErrorCodeOf(err)
	require.True(t, ok)
	assert.Equal(t, LocationErrorTimeout, code)
	assert.Less(t, elapsed, 50*time.Millisecond+500*time.Millisecond)
}

func TestGetEmergencyLocationIgnoresGeocoderFailure(t *testing.T) {
	source := &fakeSource{
		status:   models.PermissionGranted,
		position: &models.Position{Latitude: 28.6, Longitude: 77.2},
	}
	svc := newTestLocationService(source, storage.NewMemoryStorage(), WithGeocoder(&fakeGeocoder{err: errors.New("quota")}))

	position, err := svc.GetEmergencyLocation(context.Background())
	require.NoError(t, err)
	assert.Empty(t, position.Address)
}

func TestRequestPermission(t *testing.T) {
	t.Run("granted", func(t *testing.T) {
		result := newTestLocationService(&fakeSource{status: models.PermissionGranted}, storage.NewMemoryStorage()).
			RequestPermission(context.Background())
		assert.True(t, result.Granted)
		assert.NoError(t, result.Err)
	})

	t.Run("previously denied is not re-requested", func(t *testing.T) {
		source := &fakeSource{status: models.PermissionDenied, requested: models.PermissionGranted}
		prompt := &fakePrompt{choice: ChoiceOpenSettings}
		result := newTestLocationService(source, storage.NewMemoryStorage(), WithLocationPrompt(prompt)).
			RequestPermission(context.Background())

		assert.False(t, result.Granted)
		assert.NotEmpty(t, result.Message)
		assert.True(t, IsPermissionError(result.Err))
		assert.Equal(t, ChoiceOpenSettings, result.Choice)
		assert.Equal(t, 0, source.calls)
		require.Len(t, prompt.questions(), 1)
		assert.Equal(t, []string{ChoiceOpenSettings, ChoiceNotNow}, prompt.questions()[0].Choices)
	})

	t.Run("undetermined asks the device once", func(t *testing.T) {
		source := &fakeSource{status: models.PermissionUndetermined, requested: models.PermissionGranted}
		result := newTestLocationService(source, storage.NewMemoryStorage()).RequestPermission(context.Background())
		assert.True(t, result.Granted)
		assert.Equal(t, 1, source.calls)
	})

	t.Run("no source", func(t *testing.T) {
		result := NewLocationService(testConfig(), nil, storage.NewMemoryStorage(), nil).RequestPermission(context.Background())
		assert.False(t, result.Granted)
		assert.ErrorIs(t, result.Err, ErrNoLocationSource)
	})
}

func TestStaticAndMapsSources(t *testing.T) {
	static := &StaticLocationSource{Latitude: 10, Longitude: 20, Accuracy: 30, Consent: true, Now: fixedClock}
	position, err := static.GetCurrentPosition(context.Background(), PositionOptions{})
	require.NoError(t, err)
	assert.Equal(t, 20.0, position.Longitude)
	assert.True(t, position.CapturedAt.Equal(testNow))

	static.Consent = false
	_, err = static.GetCurrentPosition(context.Background(), PositionOptions{})
	assert.ErrorIs(t, err, ErrLocationPermissionDenied)

	noProvider := NewMapsLocationSource(nil, true)
	_, err = noProvider.GetCurrentPosition(context.Background(), PositionOptions{})
	assert.ErrorIs(t, err, ErrLocationServicesDisabled)

	status, err := NewMapsLocationSource(nil, false).PermissionStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.PermissionDenied, status)
}
