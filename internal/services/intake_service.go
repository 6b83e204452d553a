package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"telecare-sos/internal/models"
	"telecare-sos/internal/repositories/interfaces"
	"telecare-sos/internal/utils"
	"telecare-sos/pkg/logger"
	"telecare-sos/pkg/metrics"
	"telecare-sos/pkg/sms"
)

// AlertBroadcaster fans a received alert out to operator consoles.
type AlertBroadcaster interface {
	BroadcastToOperators(messageType string, data map[string]interface{})
}

// IntakeService is the backend side of the SOS flow: it records alerts sent
// by devices and routes them to responders.
type IntakeService interface {
	// ReceiveAlert records the alert. A redelivered alertId returns the
	// original response with duplicate set.
	ReceiveAlert(ctx context.Context, payload *models.SOSAlertPayload) (response *models.SOSResponse, duplicate bool, err error)
	GetContacts(ctx context.Context, userID string) ([]models.EmergencyContact, error)
	UpdateStatus(ctx context.Context, alertID string, status models.SOSStatus) error
	ActiveAlerts(ctx context.Context, limit int) ([]*models.SOSRecord, error)
	// AlertHistory lists a user's alerts, newest first.
	AlertHistory(ctx context.Context, userID string, limit int) ([]*models.SOSRecord, error)
	Health(ctx context.Context) error
	SelfTest(ctx context.Context) *models.SystemCheck
}

type IntakeOption func(*intakeService)

// WithContactSMS texts the personal contacts listed in a received alert.
func WithContactSMS(provider sms.SMSProvider) IntakeOption {
	return func(s *intakeService) { s.sms = provider }
}

func WithIntakeMetrics(m *metrics.Metrics) IntakeOption {
	return func(s *intakeService) { s.metrics = m }
}

func WithIntakeClock(now func() time.Time) IntakeOption {
	return func(s *intakeService) { s.now = now }
}

type intakeService struct {
	alerts      interfaces.SOSRepository
	contacts    interfaces.ContactRepository
	broadcaster AlertBroadcaster
	sms         sms.SMSProvider
	logger      *logger.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
}

func NewIntakeService(
	alerts interfaces.SOSRepository,
	contacts interfaces.ContactRepository,
	broadcaster AlertBroadcaster,
	log *logger.Logger,
	opts ...IntakeOption,
) IntakeService {
	if log == nil {
		log = logger.NewNop()
	}
	s := &intakeService{
		alerts:      alerts,
		contacts:    contacts,
		broadcaster: broadcaster,
		logger:      log.WithField("component", "intake"),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *intakeService) ReceiveAlert(ctx context.Context, payload *models.SOSAlertPayload) (*models.SOSResponse, bool, error) {
	emergencyType := models.ParseEmergencyType(string(payload.EmergencyType))
	record := &models.SOSRecord{
		AlertID:               payload.AlertID,
		UserID:                payload.UserID,
		EmergencyType:         emergencyType,
		Priority:              payload.Priority,
		Status:                models.SOSStatusActive,
		Location:              payload.Location,
		Message:               payload.Message,
		UserProfile:           payload.UserProfile,
		DeviceInfo:            payload.DeviceInfo,
		ContactedServices:     ContactedServices(emergencyType, payload.ContactAllServices),
		EstimatedResponseTime: EstimatedResponseTime(emergencyType, payload.ContactAllServices),
		AlertedAt:             payload.Timestamp,
	}

	log := s.logger.WithAlertID(payload.AlertID)
	err := s.alerts.Create(ctx, record)
	if errors.Is(err, interfaces.ErrAlertExists) {
		existing, getErr := s.alerts.GetByAlertID(ctx, payload.AlertID)
		if getErr != nil {
			return nil, true, fmt.Errorf("failed to load recorded alert: %w", getErr)
		}
		log.Info("Duplicate SOS alert received, returning recorded response")
		s.metrics.RecordAlertReceived(string(existing.EmergencyType), true)
		return existing.Response(), true, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to record alert: %w", err)
	}

	log.LogAlertEvent(record.AlertID, "received", map[string]interface{}{
		"emergency_type":     string(record.EmergencyType),
		"contacted_services": record.ContactedServices,
		"has_location":       record.Location != nil,
	})
	s.metrics.RecordAlertReceived(string(record.EmergencyType), false)

	if s.broadcaster != nil {
		s.broadcaster.BroadcastToOperators("sos_alert", alertBroadcast(record))
	}
	s.textContacts(ctx, record)

	return record.Response(), false, nil
}

func (s *intakeService) textContacts(ctx context.Context, record *models.SOSRecord) {
	if s.sms == nil || record.UserProfile == nil {
		return
	}
	alert := &models.Alert{
		AlertID:       record.AlertID,
		EmergencyType: record.EmergencyType,
		Location:      record.Location,
		UserProfile:   record.UserProfile,
	}
	contacts := personalContacts(alert)
	if len(contacts) == 0 {
		return
	}

	message := emergencyMessage(alert)
	requests := make([]*sms.SMSRequest, 0, len(contacts))
	for _, contact := range contacts {
		requests = append(requests, &sms.SMSRequest{To: utils.CleanPhone(contact.Number), Message: message, Type: sms.SMSTypeEmergency})
	}

	// Contact texts must not hold up the device's acknowledgement.
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if _, err := s.sms.SendBulkSMS(ctx, requests); err != nil {
			s.logger.WithAlertID(record.AlertID).WithError(err).Warn("Failed to text emergency contacts")
		}
	}()
}

func (s *intakeService) GetContacts(ctx context.Context, userID string) ([]models.EmergencyContact, error) {
	contacts, err := s.contacts.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(contacts) == 0 {
		return models.DefaultEmergencyContacts(), nil
	}
	return contacts, nil
}

func (s *intakeService) UpdateStatus(ctx context.Context, alertID string, status models.SOSStatus) error {
	if err := s.alerts.UpdateStatus(ctx, alertID, status); err != nil {
		return err
	}
	if s.broadcaster != nil {
		s.broadcaster.BroadcastToOperators("sos_status", map[string]interface{}{
			"alertId": alertID,
			"status":  string(status),
		})
	}
	s.logger.WithAlertID(alertID).WithField("status", string(status)).Info("SOS alert status updated")
	return nil
}

func (s *intakeService) ActiveAlerts(ctx context.Context, limit int) ([]*models.SOSRecord, error) {
	return s.alerts.GetActive(ctx, limit)
}

func (s *intakeService) AlertHistory(ctx context.Context, userID string, limit int) ([]*models.SOSRecord, error) {
	return s.alerts.GetByUserID(ctx, userID, limit)
}

func (s *intakeService) Health(ctx context.Context) error {
	return s.alerts.Ping(ctx)
}

func (s *intakeService) SelfTest(ctx context.Context) *models.SystemCheck {
	check := &models.SystemCheck{
		Status:     "healthy",
		Components: map[string]string{},
		CheckedAt:  s.now().UTC(),
	}

	if err := s.alerts.Ping(ctx); err != nil {
		check.Status = "degraded"
		check.Components["database"] = "unreachable"
	} else {
		check.Components["database"] = "ok"
		if count, err := s.alerts.CountSince(ctx, check.CheckedAt.Add(-24*time.Hour)); err == nil {
			check.Components["alerts_24h"] = strconv.FormatInt(count, 10)
		}
	}

	if _, err := s.contacts.GetByUserID(ctx, "__selftest__"); err != nil {
		check.Status = "degraded"
		check.Components["contacts"] = "unreachable"
	} else {
		check.Components["contacts"] = "ok"
	}

	if s.sms != nil {
		check.Components["sms"] = s.sms.Name()
	} else {
		check.Components["sms"] = "disabled"
	}

	return check
}

// ContactedServices maps an emergency type to the responders alerted for it.
func ContactedServices(t models.EmergencyType, all bool) []string {
	if all {
		return []string{"police", "ambulance", "fire"}
	}
	switch t {
	case models.EmergencyTypeMedical:
		return []string{"ambulance"}
	case models.EmergencyTypePolice:
		return []string{"police"}
	case models.EmergencyTypeFire:
		return []string{"fire", "ambulance"}
	default:
		return []string{"police", "ambulance"}
	}
}

func EstimatedResponseTime(t models.EmergencyType, all bool) string {
	if all {
		return "8-12 minutes"
	}
	switch t {
	case models.EmergencyTypeMedical, models.EmergencyTypeFire:
		return "8-12 minutes"
	case models.EmergencyTypePolice:
		return "10-15 minutes"
	default:
		return "10-15 minutes"
	}
}

func alertBroadcast(record *models.SOSRecord) map[string]interface{} {
	data := map[string]interface{}{
		"alertId":               record.AlertID,
		"emergencyType":         string(record.EmergencyType),
		"priority":              string(record.Priority),
		"contactedServices":     record.ContactedServices,
		"estimatedResponseTime": record.EstimatedResponseTime,
		"alertedAt":             record.AlertedAt,
		"location":              record.Location,
	}
	if record.UserID != nil {
		data["userId"] = *record.UserID
	}
	if record.Message != "" {
		data["message"] = record.Message
	}
	if record.UserProfile != nil {
		data["userProfile"] = record.UserProfile
	}
	return data
}
