package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"telecare-sos/internal/config"
	"telecare-sos/internal/models"
	"telecare-sos/pkg/emergencyapi"
	"telecare-sos/pkg/maps"
	"telecare-sos/pkg/push"
	"telecare-sos/pkg/sms"
	"telecare-sos/pkg/storage"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func testConfig() *config.EmergencyConfig {
	cfg := config.DefaultEmergencyConfig()
	cfg.DeviceID = "device-1"
	cfg.UserID = "user-1"
	cfg.FallbackTimeout = time.Second
	return cfg
}

type fakeSource struct {
	mu        sync.Mutex
	status    models.PermissionStatus
	requested models.PermissionStatus
	statusErr error
	// statusBlock, when set, makes PermissionStatus hang until closed.
	statusBlock chan struct{}
	position    *models.Position
	err         error
	delay       time.Duration
	// block, when set, makes GetCurrentPosition ignore ctx until closed.
	block chan struct{}
	calls int
}

func (f *fakeSource) PermissionStatus(ctx context.Context) (models.PermissionStatus, error) {
	if f.statusBlock != nil {
		<-f.statusBlock
	}
	return f.status, f.statusErr
}

func (f *fakeSource) RequestForegroundPermission(ctx context.Context) (models.PermissionStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.requested == "" {
		return f.status, nil
	}
	return f.requested, nil
}

func (f *fakeSource) GetCurrentPosition(ctx context.Context, options PositionOptions) (*models.Position, error) {
	if f.block != nil {
		<-f.block
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	pos := *f.position
	return &pos, nil
}

// flakyStore wraps a memory store with injectable failures.
type flakyStore struct {
	*storage.MemoryStorage
	getErr error
	setErr error
}

func newFlakyStore() *flakyStore {
	return &flakyStore{MemoryStorage: storage.NewMemoryStorage()}
}

func (f *flakyStore) Get(ctx context.Context, key string) (string, bool, error) {
	if f.getErr != nil {
		return "", false, f.getErr
	}
	return f.MemoryStorage.Get(ctx, key)
}

func (f *flakyStore) Set(ctx context.Context, key, value string) error {
	if f.setErr != nil {
		return f.setErr
	}
	return f.MemoryStorage.Set(ctx, key, value)
}

type fakeAPI struct {
	mu          sync.Mutex
	payloads    []*models.SOSAlertPayload
	sendFn      func(payload *models.SOSAlertPayload, call int) error
	healthErr   error
	contacts    []models.EmergencyContact
	contactsErr error
	check       *models.SystemCheck
	checkErr    error
}

func (f *fakeAPI) SendSOSAlert(ctx context.Context, payload *models.SOSAlertPayload) (*models.SOSResponse, error) {
	f.mu.Lock()
	f.payloads = append(f.payloads, payload)
	call := len(f.payloads)
	sendFn := f.sendFn
	f.mu.Unlock()

	if sendFn != nil {
		if err := sendFn(payload, call); err != nil {
			return nil, err
		}
	}
	return &models.SOSResponse{
		AlertID:               payload.AlertID,
		EstimatedResponseTime: "8-12 minutes",
		ContactedServices:     []string{"police", "ambulance"},
	}, nil
}

func (f *fakeAPI) CheckHealth(ctx context.Context) error {
	return f.healthErr
}

func (f *fakeAPI) TestSystem(ctx context.Context) (*models.SystemCheck, error) {
	return f.check, f.checkErr
}

func (f *fakeAPI) GetEmergencyContacts(ctx context.Context, userID string) ([]models.EmergencyContact, error) {
	return f.contacts, f.contactsErr
}

func (f *fakeAPI) sent() []*models.SOSAlertPayload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*models.SOSAlertPayload(nil), f.payloads...)
}

func networkTimeout() error {
	return &emergencyapi.NetworkError{Op: "send_sos_alert", Message: "request failed", Timeout: true, Err: context.DeadlineExceeded}
}

type fakePrompt struct {
	mu     sync.Mutex
	choice string
	err    error
	asked  []PromptOptions
}

func (f *fakePrompt) Ask(ctx context.Context, options PromptOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.asked = append(f.asked, options)
	return f.choice, f.err
}

func (f *fakePrompt) questions() []PromptOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]PromptOptions(nil), f.asked...)
}

type fakeNotifier struct {
	mu       sync.Mutex
	requests []*push.NotificationRequest
	err      error
}

func (f *fakeNotifier) Name() string { return "fake" }

func (f *fakeNotifier) SendNotification(ctx context.Context, request *push.NotificationRequest) (*push.NotificationResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, request)
	if f.err != nil {
		return nil, f.err
	}
	return &push.NotificationResponse{MessageID: "n-1", Success: true, Token: request.Token}, nil
}

func (f *fakeNotifier) sent() []*push.NotificationRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*push.NotificationRequest(nil), f.requests...)
}

type fakeDialer struct {
	mu    sync.Mutex
	calls []*sms.CallRequest
}

func (f *fakeDialer) PlaceCall(ctx context.Context, request *sms.CallRequest) (*sms.CallResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, request)
	return &sms.CallResponse{CallID: "CA1", Status: "queued"}, nil
}

func (f *fakeDialer) placed() []*sms.CallRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*sms.CallRequest(nil), f.calls...)
}

type fakeSMS struct {
	mu       sync.Mutex
	requests []*sms.SMSRequest
	failTo   string
}

func (f *fakeSMS) Name() string { return "fake" }

func (f *fakeSMS) SendSMS(ctx context.Context, request *sms.SMSRequest) (*sms.SMSResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, request)
	if request.To == f.failTo {
		return nil, errors.New("undeliverable")
	}
	return &sms.SMSResponse{MessageID: "SM1", To: request.To, Status: sms.StatusSent}, nil
}

func (f *fakeSMS) SendBulkSMS(ctx context.Context, requests []*sms.SMSRequest) ([]*sms.SMSResponse, error) {
	responses := make([]*sms.SMSResponse, len(requests))
	for i, req := range requests {
		resp, err := f.SendSMS(ctx, req)
		if err != nil {
			resp = &sms.SMSResponse{To: req.To, Status: sms.StatusFailed, Error: err.Error()}
		}
		responses[i] = resp
	}
	return responses, nil
}

func (f *fakeSMS) sent() []*sms.SMSRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*sms.SMSRequest(nil), f.requests...)
}

type fakeGeocoder struct {
	address string
	err     error
}

func (f *fakeGeocoder) ReverseGeocode(ctx context.Context, lat, lng float64) (*maps.GeocodeResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &maps.GeocodeResponse{Results: []maps.GeocodeResult{{Address: f.address}}}, nil
}

func (f *fakeGeocoder) Geolocate(ctx context.Context, request *maps.GeolocationRequest) (*maps.GeolocationResponse, error) {
	return nil, errors.New("not used")
}
