package push

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"telecare-sos/pkg/logger"

	"github.com/sideshow/apns2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func emergencyRequest() *NotificationRequest {
	return &NotificationRequest{
		Token:       "device-token",
		Title:       "SOS queued",
		Body:        "Your SOS will be retried automatically",
		Data:        map[string]string{"alertId": "SOS_1_abc"},
		Sound:       "default",
		Priority:    PriorityHigh,
		TTL:         60,
		CollapseKey: "SOS_1_abc",
		ChannelID:   EmergencyChannelID,
		Category:    EmergencyCategory,
	}
}

func TestBuildFCMMessage(t *testing.T) {
	message := buildFCMMessage(emergencyRequest())

	assert.Equal(t, "device-token", message.Token)
	assert.Equal(t, "SOS queued", message.Notification.Title)
	require.NotNil(t, message.Android)
	assert.Equal(t, PriorityHigh, message.Android.Priority)
	assert.Equal(t, EmergencyChannelID, message.Android.Notification.ChannelID)
	require.NotNil(t, message.Android.TTL)
	assert.Equal(t, time.Minute, *message.Android.TTL)
	require.NotNil(t, message.APNS)
	assert.Equal(t, EmergencyCategory, message.APNS.Payload.Aps.Category)
}

func TestBuildAPNSNotification(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	notification := buildAPNSNotification("com.telecare.app", emergencyRequest(), now)

	assert.Equal(t, "com.telecare.app", notification.Topic)
	assert.Equal(t, apns2.PriorityHigh, notification.Priority)
	assert.Equal(t, now.Add(time.Minute), notification.Expiration)
	assert.Equal(t, "SOS_1_abc", notification.CollapseID)

	raw, err := json.Marshal(notification.Payload)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"category":"SOS_ALERT"`)
	assert.Contains(t, string(raw), `"alertId":"SOS_1_abc"`)
}

func TestLogProvider(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewNop()
	log.SetOutput(&buf)

	provider := NewLogProvider(log)
	resp, err := provider.SendNotification(context.Background(), emergencyRequest())
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.MessageID)
	assert.Contains(t, buf.String(), "SOS queued")
}
