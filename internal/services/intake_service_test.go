package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"telecare-sos/internal/models"
	"telecare-sos/internal/repositories/interfaces"
	"telecare-sos/internal/repositories/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingBroadcaster struct {
	mu       sync.Mutex
	messages []map[string]interface{}
	types    []string
}

func (b *recordingBroadcaster) BroadcastToOperators(messageType string, data map[string]interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.types = append(b.types, messageType)
	b.messages = append(b.messages, data)
}

func (b *recordingBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.messages)
}

type downRepository struct {
	interfaces.SOSRepository
}

func (downRepository) Ping(ctx context.Context) error { return errors.New("no primary") }

func testPayload(id string, t models.EmergencyType) *models.SOSAlertPayload {
	return &models.SOSAlertPayload{
		Timestamp:     testNow,
		EmergencyType: t,
		Priority:      models.AlertPriorityHigh,
		AlertID:       id,
		DeviceInfo:    models.DeviceInfo{DeviceID: "device-1", Platform: "android", AppVersion: "1.0.0"},
	}
}

func TestReceiveAlertIsIdempotent(t *testing.T) {
	broadcaster := &recordingBroadcaster{}
	svc := NewIntakeService(memory.NewSOSRepository(), memory.NewContactRepository(), broadcaster, nil)

	first, duplicate, err := svc.ReceiveAlert(context.Background(), testPayload("SOS_1_a", models.EmergencyTypeMedical))
	require.NoError(t, err)
	assert.False(t, duplicate)
	assert.Equal(t, "SOS_1_a", first.AlertID)
	assert.Equal(t, []string{"ambulance"}, first.ContactedServices)
	assert.Equal(t, "8-12 minutes", first.EstimatedResponseTime)

	again, duplicate, err := svc.ReceiveAlert(context.Background(), testPayload("SOS_1_a", models.EmergencyTypeFire))
	require.NoError(t, err)
	assert.True(t, duplicate)
	assert.Equal(t, first, again)

	assert.Equal(t, 1, broadcaster.count())
	active, err := svc.ActiveAlerts(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestContactedServicesByType(t *testing.T) {
	assert.Equal(t, []string{"police", "ambulance"}, ContactedServices(models.EmergencyTypeGeneral, false))
	assert.Equal(t, []string{"ambulance"}, ContactedServices(models.EmergencyTypeMedical, false))
	assert.Equal(t, []string{"police"}, ContactedServices(models.EmergencyTypePolice, false))
	assert.Equal(t, []string{"fire", "ambulance"}, ContactedServices(models.EmergencyTypeFire, false))
	assert.Equal(t, []string{"police", "ambulance", "fire"}, ContactedServices(models.EmergencyTypePolice, true))
	assert.Equal(t, "10-15 minutes", EstimatedResponseTime(models.EmergencyTypeGeneral, false))
}

func TestReceiveAlertBroadcastsNullLocation(t *testing.T) {
	broadcaster := &recordingBroadcaster{}
	svc := NewIntakeService(memory.NewSOSRepository(), memory.NewContactRepository(), broadcaster, nil)

	_, _, err := svc.ReceiveAlert(context.Background(), testPayload("SOS_1_a", models.EmergencyTypeGeneral))
	require.NoError(t, err)

	require.Equal(t, 1, broadcaster.count())
	assert.Equal(t, "sos_alert", broadcaster.types[0])
	location, present := broadcaster.messages[0]["location"]
	assert.True(t, present)
	assert.Nil(t, location)
}

func TestReceiveAlertTextsPersonalContacts(t *testing.T) {
	texts := &fakeSMS{}
	svc := NewIntakeService(memory.NewSOSRepository(), memory.NewContactRepository(), nil, nil, WithContactSMS(texts))

	payload := testPayload("SOS_1_a", models.EmergencyTypeGeneral)
	payload.UserProfile = &models.UserProfile{
		Name:              "Asha",
		EmergencyContacts: []models.EmergencyContact{{Name: "Ravi", Number: "+919800000001"}},
	}
	_, _, err := svc.ReceiveAlert(context.Background(), payload)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(texts.sent()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "+919800000001", texts.sent()[0].To)
}

func TestGetContactsDefaultsWhenUserHasNone(t *testing.T) {
	contacts := memory.NewContactRepository()
	svc := NewIntakeService(memory.NewSOSRepository(), contacts, nil, nil)

	list, err := svc.GetContacts(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultEmergencyContacts(), list)

	require.NoError(t, contacts.Upsert(context.Background(), &models.EmergencyContact{UserID: "user-1", Name: "Ravi", Number: "+91981"}))
	list, err = svc.GetContacts(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Ravi", list[0].Name)
}

func TestUpdateStatusBroadcasts(t *testing.T) {
	broadcaster := &recordingBroadcaster{}
	svc := NewIntakeService(memory.NewSOSRepository(), memory.NewContactRepository(), broadcaster, nil)
	_, _, err := svc.ReceiveAlert(context.Background(), testPayload("SOS_1_a", models.EmergencyTypeGeneral))
	require.NoError(t, err)

	require.NoError(t, svc.UpdateStatus(context.Background(), "SOS_1_a", models.SOSStatusResolved))
	assert.Equal(t, "sos_status", broadcaster.types[1])
	assert.ErrorIs(t, svc.UpdateStatus(context.Background(), "SOS_9_z", models.SOSStatusResolved), interfaces.ErrAlertNotFound)

	active, err := svc.ActiveAlerts(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestSelfTest(t *testing.T) {
	svc := NewIntakeService(memory.NewSOSRepository(), memory.NewContactRepository(), nil, nil, WithIntakeClock(fixedClock))
	check := svc.SelfTest(context.Background())
	assert.True(t, check.Healthy())
	assert.Equal(t, "ok", check.Components["database"])
	assert.Equal(t, "disabled", check.Components["sms"])
	assert.Equal(t, "0", check.Components["alerts_24h"])
	assert.True(t, check.CheckedAt.Equal(testNow))

	down := NewIntakeService(downRepository{memory.NewSOSRepository()}, memory.NewContactRepository(), nil, nil)
	check = down.SelfTest(context.Background())
	assert.False(t, check.Healthy())
	assert.Error(t, down.Health(context.Background()))
}
