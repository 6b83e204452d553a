package validators

import (
	"testing"
	"time"

	"telecare-sos/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func validPayload() *models.SOSAlertPayload {
	return &models.SOSAlertPayload{
		Timestamp:     now,
		EmergencyType: models.EmergencyTypeMedical,
		Priority:      models.AlertPriorityHigh,
		AlertID:       "SOS_1709294400000_abc123xyz",
		Location:      &models.AlertLocation{Latitude: 28.6, Longitude: 77.2, Accuracy: 10},
	}
}

func TestValidateSOSAlertAcceptsValidPayload(t *testing.T) {
	assert.Empty(t, ValidateSOSAlert(validPayload(), now))

	noLocation := validPayload()
	noLocation.Location = nil
	assert.Empty(t, ValidateSOSAlert(noLocation, now))
}

func TestValidateSOSAlertRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.SOSAlertPayload)
		field  string
	}{
		{"missing alert id", func(p *models.SOSAlertPayload) { p.AlertID = "" }, "alertId"},
		{"malformed alert id", func(p *models.SOSAlertPayload) { p.AlertID = "alert-1" }, "alertId"},
		{"unknown type", func(p *models.SOSAlertPayload) { p.EmergencyType = "flood" }, "emergencyType"},
		{"low priority", func(p *models.SOSAlertPayload) { p.Priority = "low" }, "priority"},
		{"latitude out of range", func(p *models.SOSAlertPayload) { p.Location.Latitude = 91 }, "location.latitude"},
		{"longitude out of range", func(p *models.SOSAlertPayload) { p.Location.Longitude = -181 }, "location.longitude"},
		{"future timestamp", func(p *models.SOSAlertPayload) { p.Timestamp = now.Add(time.Hour) }, "timestamp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := validPayload()
			tt.mutate(payload)

			errs := ValidateSOSAlert(payload, now)
			require.NotEmpty(t, errs)
			assert.Contains(t, errs.Details(), tt.field)
		})
	}
}

func TestValidateSOSAlertSanitizesMessage(t *testing.T) {
	payload := validPayload()
	payload.Message = "  <b>help</b> at gate 3 "

	assert.Empty(t, ValidateSOSAlert(payload, now))
	assert.Equal(t, "help at gate 3", payload.Message)
}

func TestValidateContact(t *testing.T) {
	contact := &models.EmergencyContact{Name: "Ravi", Number: "+919800000001"}
	assert.Empty(t, ValidateContact(contact))
	assert.Equal(t, models.EmergencyServicePersonal, contact.Service)

	assert.NotEmpty(t, ValidateContact(&models.EmergencyContact{Name: "Ravi"}))
	assert.NotEmpty(t, ValidateContact(&models.EmergencyContact{Name: "Ravi", Number: "call me"}))
	assert.Empty(t, ValidateContact(&models.EmergencyContact{Name: "Police", Number: "100"}))

	formatted := &models.EmergencyContact{Name: "Ravi", Number: "+91 98000-00001"}
	assert.Empty(t, ValidateContact(formatted))
	assert.Equal(t, "+919800000001", formatted.Number)
}
