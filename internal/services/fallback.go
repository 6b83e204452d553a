package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"telecare-sos/internal/models"
	"telecare-sos/internal/utils"
	"telecare-sos/pkg/logger"
	"telecare-sos/pkg/metrics"
	"telecare-sos/pkg/push"
	"telecare-sos/pkg/sms"
)

const (
	FallbackNotification = "notification"
	FallbackDialer       = "dialer"
	FallbackSMS          = "sms"
)

// Fallbacks are the local actions taken after a failed dispatch. Any nil
// collaborator disables its fallback, except Notifier which defaults to the
// log notifier.
type Fallbacks struct {
	Notifier    push.PushProvider
	DeviceToken string
	Prompt      UserPrompt
	Dialer      sms.Dialer
	SMS         sms.SMSProvider
	Timeout     time.Duration
}

// fallbackRunner fires fallbacks as independent goroutines. Their errors are
// logged and never change the dispatch outcome.
type fallbackRunner struct {
	fallbacks Fallbacks
	logger    *logger.Logger
	metrics   *metrics.Metrics
	wg        sync.WaitGroup
}

func newFallbackRunner(fallbacks Fallbacks, log *logger.Logger, m *metrics.Metrics) *fallbackRunner {
	if fallbacks.Notifier == nil {
		fallbacks.Notifier = push.NewLogProvider(log)
	}
	if fallbacks.Timeout <= 0 {
		fallbacks.Timeout = 30 * time.Second
	}
	return &fallbackRunner{
		fallbacks: fallbacks,
		logger:    log.WithField("component", "fallback"),
		metrics:   m,
	}
}

// trigger starts every enabled fallback and returns how many were started.
func (r *fallbackRunner) trigger(ctx context.Context, alert *models.Alert) int {
	base := context.WithoutCancel(ctx)
	started := 0

	r.launch(base, FallbackNotification, func(ctx context.Context) error {
		return r.notify(ctx, alert)
	})
	started++

	if r.fallbacks.Prompt != nil {
		r.launch(base, FallbackDialer, func(ctx context.Context) error {
			return r.offerCall(ctx, alert)
		})
		started++
	}

	if r.fallbacks.SMS != nil && len(personalContacts(alert)) > 0 {
		r.launch(base, FallbackSMS, func(ctx context.Context) error {
			return r.textContacts(ctx, alert)
		})
		started++
	}

	return started
}

func (r *fallbackRunner) launch(base context.Context, kind string, fn func(context.Context) error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(base, r.fallbacks.Timeout)
		defer cancel()

		err := fn(ctx)
		r.metrics.RecordFallback(kind, err)
		if err != nil {
			r.logger.WithField("fallback", kind).WithError(err).Warn("Fallback failed")
			return
		}
		r.logger.WithField("fallback", kind).Debug("Fallback completed")
	}()
}

func (r *fallbackRunner) wait() {
	r.wg.Wait()
}

func (r *fallbackRunner) notify(ctx context.Context, alert *models.Alert) error {
	_, err := r.fallbacks.Notifier.SendNotification(ctx, &push.NotificationRequest{
		Token:       r.fallbacks.DeviceToken,
		Title:       "SOS saved, will retry",
		Body:        "We couldn't reach emergency services. Your SOS is saved and will be sent automatically when you're back online.",
		Data:        map[string]string{"alertId": alert.AlertID, "type": "sos_queued"},
		Sound:       "default",
		Priority:    push.PriorityHigh,
		CollapseKey: alert.AlertID,
		ChannelID:   push.EmergencyChannelID,
		Category:    push.EmergencyCategory,
	})
	return err
}

func (r *fallbackRunner) offerCall(ctx context.Context, alert *models.Alert) error {
	number := models.GeneralEmergencyNumber(models.DefaultEmergencyContacts())
	choice, err := r.fallbacks.Prompt.Ask(ctx, PromptOptions{
		Title:   "Call Emergency Services?",
		Message: fmt.Sprintf("Your SOS could not be sent right now. Call %s directly?", number),
		Choices: []string{ChoiceCall, ChoiceCancel},
	})
	if err != nil {
		return fmt.Errorf("dialer prompt failed: %w", err)
	}
	if choice != ChoiceCall {
		return nil
	}
	if r.fallbacks.Dialer == nil {
		r.logger.WithField("number", number).Warn("No dialer configured, user must dial manually")
		return nil
	}

	resp, err := r.fallbacks.Dialer.PlaceCall(ctx, &sms.CallRequest{
		To:      number,
		Message: emergencyMessage(alert),
	})
	if err != nil {
		return err
	}
	r.logger.WithAlertID(alert.AlertID).WithField("call_id", resp.CallID).Info("Emergency call placed")
	return nil
}

func (r *fallbackRunner) textContacts(ctx context.Context, alert *models.Alert) error {
	contacts := personalContacts(alert)
	message := emergencyMessage(alert)

	requests := make([]*sms.SMSRequest, 0, len(contacts))
	for _, contact := range contacts {
		requests = append(requests, &sms.SMSRequest{
			To:      utils.CleanPhone(contact.Number),
			Message: message,
			Type:    sms.SMSTypeEmergency,
		})
	}

	responses, err := r.fallbacks.SMS.SendBulkSMS(ctx, requests)
	if err != nil {
		return err
	}

	var failed []string
	for _, resp := range responses {
		if resp.Status == sms.StatusFailed {
			failed = append(failed, utils.MaskPhone(resp.To))
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("sms to %d of %d contacts failed: %s", len(failed), len(responses), strings.Join(failed, ", "))
	}
	return nil
}

func personalContacts(alert *models.Alert) []models.EmergencyContact {
	if alert.UserProfile == nil {
		return nil
	}
	var out []models.EmergencyContact
	for _, contact := range alert.UserProfile.EmergencyContacts {
		if contact.Number != "" {
			out = append(out, contact)
		}
	}
	return out
}

func emergencyMessage(alert *models.Alert) string {
	var b strings.Builder
	b.WriteString("SOS")
	if alert.UserProfile != nil && alert.UserProfile.Name != "" {
		b.WriteString(" from ")
		b.WriteString(alert.UserProfile.Name)
	}
	fmt.Fprintf(&b, ": %s emergency, alert %s.", alert.EmergencyType, alert.AlertID)

	if loc := alert.Location; loc != nil {
		fmt.Fprintf(&b, " Location: %s", utils.MapsLink(loc.Latitude, loc.Longitude))
		if loc.Fallback == models.LocationFallbackCached {
			fmt.Fprintf(&b, " (last known, %s)", loc.Timestamp.UTC().Format(time.RFC3339))
		}
		if loc.Address != "" {
			fmt.Fprintf(&b, " near %s", loc.Address)
		}
	} else {
		b.WriteString(" Location unavailable.")
	}
	return b.String()
}
