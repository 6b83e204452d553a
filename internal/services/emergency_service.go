package services

import (
	"context"
	"errors"
	"time"

	"telecare-sos/internal/config"
	"telecare-sos/internal/models"
	"telecare-sos/internal/utils"
	"telecare-sos/pkg/logger"
	"telecare-sos/pkg/metrics"
)

var ErrOffline = errors.New("emergency backend unreachable")

// EmergencyAPI is the remote emergency backend.
type EmergencyAPI interface {
	AlertSender
	CheckHealth(ctx context.Context) error
	TestSystem(ctx context.Context) (*models.SystemCheck, error)
	GetEmergencyContacts(ctx context.Context, userID string) ([]models.EmergencyContact, error)
}

// EmergencyService never returns errors from its operations; every outcome is
// described by the result value.
type EmergencyService interface {
	SendSOSAlert(ctx context.Context, input *SOSInput) *SendResult
	GetEmergencyContacts(ctx context.Context, userID string) *ContactsResult
	CheckConnectivity(ctx context.Context) bool
	ProcessOfflineQueue(ctx context.Context) *ProcessResult
	TestEmergencySystem(ctx context.Context) *SystemCheckResult
	// Wait blocks until fallbacks started by earlier sends have finished.
	Wait()
}

type SOSInput struct {
	EmergencyType      models.EmergencyType `json:"emergencyType"`
	Message            string               `json:"message,omitempty"`
	ContactAllServices bool                 `json:"contactAllServices,omitempty"`
	UserID             string               `json:"userId,omitempty"`
	UserProfile        *models.UserProfile  `json:"userProfile,omitempty"`
}

type SendResult struct {
	Success           bool                `json:"success"`
	AlertID           string              `json:"alertId"`
	Queued            bool                `json:"queued"`
	FallbackTriggered bool                `json:"fallbackTriggered"`
	Error             string              `json:"error,omitempty"`
	Response          *models.SOSResponse `json:"response,omitempty"`
	Location          *models.Position    `json:"location,omitempty"`
}

type ContactsResult struct {
	Success  bool                      `json:"success"`
	Contacts []models.EmergencyContact `json:"contacts"`
	Fallback bool                      `json:"fallback,omitempty"`
	Error    string                    `json:"error,omitempty"`
}

type ProcessResult struct {
	Success   bool   `json:"success"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
	Error     string `json:"error,omitempty"`
}

type SystemCheckResult struct {
	Success bool                `json:"success"`
	Check   *models.SystemCheck `json:"check,omitempty"`
	Error   string              `json:"error,omitempty"`
}

type EmergencyOption func(*emergencyService)

func WithFallbacks(fallbacks Fallbacks) EmergencyOption {
	return func(s *emergencyService) { s.fallbackConfig = fallbacks }
}

func WithEmergencyClock(now func() time.Time) EmergencyOption {
	return func(s *emergencyService) { s.now = now }
}

func WithEmergencyMetrics(m *metrics.Metrics) EmergencyOption {
	return func(s *emergencyService) { s.metrics = m }
}

type emergencyService struct {
	api            EmergencyAPI
	location       LocationService
	queue          AlertQueue
	config         *config.EmergencyConfig
	logger         *logger.Logger
	metrics        *metrics.Metrics
	now            func() time.Time
	fallbackConfig Fallbacks
	fallbacks      *fallbackRunner
}

func NewEmergencyService(
	cfg *config.EmergencyConfig,
	api EmergencyAPI,
	location LocationService,
	queue AlertQueue,
	log *logger.Logger,
	opts ...EmergencyOption,
) EmergencyService {
	if log == nil {
		log = logger.NewNop()
	}
	s := &emergencyService{
		api:      api,
		location: location,
		queue:    queue,
		config:   cfg,
		logger:   log.WithField("component", "dispatcher"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.fallbackConfig.DeviceToken == "" {
		s.fallbackConfig.DeviceToken = cfg.DevicePushToken
	}
	if s.fallbackConfig.Timeout <= 0 {
		s.fallbackConfig.Timeout = cfg.FallbackTimeout
	}
	s.fallbacks = newFallbackRunner(s.fallbackConfig, log, s.metrics)
	return s
}

func (s *emergencyService) SendSOSAlert(ctx context.Context, input *SOSInput) *SendResult {
	started := s.now()
	if input == nil {
		input = &SOSInput{}
	}

	alert := s.buildAlert(ctx, input, started)
	result := &SendResult{AlertID: alert.AlertID}
	if alert.Location != nil {
		result.Location = &models.Position{
			Latitude:   alert.Location.Latitude,
			Longitude:  alert.Location.Longitude,
			Accuracy:   alert.Location.Accuracy,
			CapturedAt: alert.Location.Timestamp,
			Fallback:   alert.Location.Fallback,
			Address:    alert.Location.Address,
		}
	}

	log := s.logger.WithAlertID(alert.AlertID)
	response, err := s.api.SendSOSAlert(ctx, alert.Payload())
	if err == nil {
		alert.MarkDelivered()
		result.Success = true
		result.Response = response
		s.queue.Clear(ctx)

		details := map[string]interface{}{"emergency_type": string(alert.EmergencyType)}
		if response != nil {
			details["contacted_services"] = response.ContactedServices
		}
		log.LogAlertEvent(alert.AlertID, "sent", details)
		s.metrics.RecordDispatch("sent", s.now().Sub(started))
		return result
	}

	log.WithError(err).Warn("SOS delivery failed, queueing for retry")
	s.queue.Enqueue(ctx, alert)
	result.Queued = true
	result.Error = err.Error()

	if s.fallbacks.trigger(ctx, alert) > 0 {
		result.FallbackTriggered = true
	}

	s.metrics.RecordDispatch("queued", s.now().Sub(started))
	return result
}

func (s *emergencyService) buildAlert(ctx context.Context, input *SOSInput, now time.Time) *models.Alert {
	alert := &models.Alert{
		AlertID:            utils.GenerateAlertID(now),
		CreatedAt:          now,
		EmergencyType:      models.ParseEmergencyType(string(input.EmergencyType)),
		Priority:           models.AlertPriorityHigh,
		Message:            input.Message,
		ContactAllServices: input.ContactAllServices,
		UserProfile:        input.UserProfile,
		DeviceInfo: models.DeviceInfo{
			DeviceID:   s.config.DeviceID,
			Platform:   s.config.Platform,
			AppVersion: utils.AppVersion,
		},
		DeliveryState: models.DeliveryStatePending,
	}

	userID := input.UserID
	if userID == "" {
		userID = s.config.UserID
	}
	if userID != "" {
		alert.UserID = &userID
	}

	if alert.UserProfile == nil {
		alert.UserProfile = s.configuredProfile()
	}

	position, err := s.location.GetEmergencyLocation(ctx)
	if err != nil {
		s.logger.WithAlertID(alert.AlertID).WithError(err).Warn("Sending SOS without location")
	} else {
		alert.Location = position.ToAlertLocation()
	}

	return alert
}

func (s *emergencyService) configuredProfile() *models.UserProfile {
	if s.config.UserName == "" && s.config.UserPhone == "" && s.config.BloodGroup == "" {
		return nil
	}
	return &models.UserProfile{
		Name:       s.config.UserName,
		Phone:      s.config.UserPhone,
		BloodGroup: s.config.BloodGroup,
	}
}

func (s *emergencyService) GetEmergencyContacts(ctx context.Context, userID string) *ContactsResult {
	contacts, err := s.api.GetEmergencyContacts(ctx, userID)
	if err == nil && len(contacts) > 0 {
		return &ContactsResult{Success: true, Contacts: contacts}
	}

	result := &ContactsResult{
		Contacts: models.DefaultEmergencyContacts(),
		Fallback: true,
	}
	if err != nil {
		result.Error = err.Error()
		s.logger.WithUserID(userID).WithError(err).Warn("Using default emergency contacts")
	} else {
		result.Success = true
	}
	return result
}

func (s *emergencyService) CheckConnectivity(ctx context.Context) bool {
	if err := s.api.CheckHealth(ctx); err != nil {
		s.logger.WithError(err).Debug("Emergency backend unreachable")
		return false
	}
	return true
}

func (s *emergencyService) ProcessOfflineQueue(ctx context.Context) *ProcessResult {
	if !s.CheckConnectivity(ctx) {
		return &ProcessResult{Error: ErrOffline.Error()}
	}

	drained, err := s.queue.Drain(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to process offline queue")
		result := &ProcessResult{Error: err.Error()}
		if drained != nil {
			result.Processed = drained.ProcessedCount
			result.Failed = drained.FailedCount
		}
		return result
	}

	return &ProcessResult{
		Success:   true,
		Processed: drained.ProcessedCount,
		Failed:    drained.FailedCount,
	}
}

func (s *emergencyService) TestEmergencySystem(ctx context.Context) *SystemCheckResult {
	check, err := s.api.TestSystem(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("Emergency system self-test failed")
		return &SystemCheckResult{Error: err.Error()}
	}
	return &SystemCheckResult{Success: check.Healthy(), Check: check}
}

func (s *emergencyService) Wait() {
	s.fallbacks.wait()
}
