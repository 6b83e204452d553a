package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"telecare-sos/internal/config"
	"telecare-sos/internal/models"
	"telecare-sos/pkg/logger"
	"telecare-sos/pkg/metrics"
	"telecare-sos/pkg/storage"
)

// AlertSender delivers one alert to the emergency backend.
type AlertSender interface {
	SendSOSAlert(ctx context.Context, payload *models.SOSAlertPayload) (*models.SOSResponse, error)
}

type AlertQueue interface {
	// Enqueue persists the alert for a later drain. Storage failures are
	// logged, never returned.
	Enqueue(ctx context.Context, alert *models.Alert)
	Drain(ctx context.Context) (*DrainResult, error)
	Clear(ctx context.Context)
	Pending(ctx context.Context) ([]*models.Alert, error)
}

type DrainResult struct {
	ProcessedCount int      `json:"processedCount"`
	FailedCount    int      `json:"failedCount"`
	Retained       int      `json:"retained"`
	Abandoned      []string `json:"abandoned,omitempty"`
}

type QueueOption func(*alertQueue)

func WithQueueClock(now func() time.Time) QueueOption {
	return func(q *alertQueue) { q.now = now }
}

func WithQueueMetrics(m *metrics.Metrics) QueueOption {
	return func(q *alertQueue) { q.metrics = m }
}

type alertQueue struct {
	store   storage.Store
	sender  AlertSender
	policy  config.DrainPolicy
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu      sync.Mutex // guards read-modify-write of the persisted list
	drainMu sync.Mutex // one drain pass at a time
}

func NewAlertQueue(
	cfg *config.EmergencyConfig,
	store storage.Store,
	sender AlertSender,
	log *logger.Logger,
	opts ...QueueOption,
) AlertQueue {
	if log == nil {
		log = logger.NewNop()
	}
	policy := cfg.DrainPolicy
	if policy == "" {
		policy = config.DrainPolicyClearAll
	}
	q := &alertQueue{
		store:  store,
		sender: sender,
		policy: policy,
		logger: log.WithField("component", "offline_queue"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *alertQueue) Enqueue(ctx context.Context, alert *models.Alert) {
	ctx = context.WithoutCancel(ctx)
	alert.MarkQueued(q.now())

	q.mu.Lock()
	defer q.mu.Unlock()

	items, err := q.load(ctx)
	if err != nil {
		if !q.quarantine(ctx, err) {
			q.logger.WithAlertID(alert.AlertID).WithError(err).Error("Failed to read offline queue, alert not queued")
			return
		}
		items = nil
	}

	items = append(items, alert)
	if err := q.save(ctx, items); err != nil {
		q.logger.WithAlertID(alert.AlertID).WithError(err).Error("Failed to persist offline queue")
		return
	}

	q.logger.LogQueueEvent("enqueued", len(items), map[string]interface{}{"alert_id": alert.AlertID})
	q.metrics.SetQueueSize(len(items))
}

// Drain resends a snapshot of the queue in order, one alert at a time. Alerts
// enqueued while the pass runs are never removed by it.
func (q *alertQueue) Drain(ctx context.Context) (*DrainResult, error) {
	q.drainMu.Lock()
	defer q.drainMu.Unlock()

	q.mu.Lock()
	snapshot, err := q.load(ctx)
	q.mu.Unlock()
	if err != nil {
		return nil, err
	}

	result := &DrainResult{}
	if len(snapshot) == 0 {
		return result, nil
	}

	var keep []*models.Alert
	for i, alert := range snapshot {
		if ctx.Err() != nil {
			// Never attempted, so never dropped.
			keep = append(keep, snapshot[i:]...)
			break
		}

		_, sendErr := q.sender.SendSOSAlert(ctx, alert.Payload())
		if sendErr == nil {
			alert.MarkDelivered()
			result.ProcessedCount++
			q.logger.LogAlertEvent(alert.AlertID, "redelivered", nil)
			continue
		}

		result.FailedCount++
		alert.Attempts++
		log := q.logger.WithAlertID(alert.AlertID).WithError(sendErr)
		if q.policy == config.DrainPolicyRetainFailed {
			log.Warn("Queued alert resend failed, keeping it queued")
			keep = append(keep, alert)
			continue
		}
		alert.MarkAbandoned()
		result.Abandoned = append(result.Abandoned, alert.AlertID)
		log.Error("Queued alert resend failed, dropping it")
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	current, err := q.load(context.WithoutCancel(ctx))
	if err != nil {
		return result, err
	}

	keep = stillQueued(keep, current)
	remaining := append(keep, withoutSnapshot(current, snapshot)...)
	if err := q.save(context.WithoutCancel(ctx), remaining); err != nil {
		return result, err
	}
	result.Retained = len(keep)

	q.logger.LogQueueEvent("drained", len(remaining), map[string]interface{}{
		"processed": result.ProcessedCount,
		"failed":    result.FailedCount,
		"policy":    string(q.policy),
	})
	q.metrics.RecordDrain(result.ProcessedCount, result.FailedCount)
	q.metrics.SetQueueSize(len(remaining))

	return result, nil
}

func (q *alertQueue) Clear(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.store.Remove(context.WithoutCancel(ctx), storage.KeyOfflineQueue); err != nil {
		q.logger.WithError(&StorageError{Op: "remove", Key: storage.KeyOfflineQueue, Err: err}).Error("Failed to clear offline queue")
		return
	}
	q.metrics.SetQueueSize(0)
}

func (q *alertQueue) Pending(ctx context.Context) ([]*models.Alert, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.load(ctx)
}

func (q *alertQueue) load(ctx context.Context) ([]*models.Alert, error) {
	raw, ok, err := q.store.Get(ctx, storage.KeyOfflineQueue)
	if err != nil {
		return nil, &StorageError{Op: "get", Key: storage.KeyOfflineQueue, Err: err}
	}
	if !ok || raw == "" {
		return nil, nil
	}

	var items []*models.Alert
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, &StorageError{Op: "decode", Key: storage.KeyOfflineQueue, Err: err}
	}
	return items, nil
}

func (q *alertQueue) save(ctx context.Context, items []*models.Alert) error {
	if len(items) == 0 {
		if err := q.store.Remove(ctx, storage.KeyOfflineQueue); err != nil {
			return &StorageError{Op: "remove", Key: storage.KeyOfflineQueue, Err: err}
		}
		return nil
	}

	data, err := json.Marshal(items)
	if err != nil {
		return &StorageError{Op: "encode", Key: storage.KeyOfflineQueue, Err: err}
	}
	if err := q.store.Set(ctx, storage.KeyOfflineQueue, string(data)); err != nil {
		return &StorageError{Op: "set", Key: storage.KeyOfflineQueue, Err: err}
	}
	return nil
}

// quarantine moves an undecodable queue aside so new alerts can still be
// queued. It reports whether the caller may start from an empty list.
func (q *alertQueue) quarantine(ctx context.Context, loadErr error) bool {
	var storageErr *StorageError
	if !errors.As(loadErr, &storageErr) || storageErr.Op != "decode" {
		return false
	}

	raw, _, err := q.store.Get(ctx, storage.KeyOfflineQueue)
	if err != nil {
		return false
	}
	backupKey := fmt.Sprintf("%s_corrupt_%d", storage.KeyOfflineQueue, q.now().UnixMilli())
	if err := q.store.Set(ctx, backupKey, raw); err != nil {
		q.logger.WithError(err).Error("Failed to quarantine corrupt offline queue")
		return false
	}

	q.logger.WithField("backup_key", backupKey).Warn("Offline queue was unreadable, moved aside")
	return true
}

// withoutSnapshot drops the first occurrence of each snapshot alert from
// current, keeping everything appended after the snapshot was taken.
func withoutSnapshot(current, snapshot []*models.Alert) []*models.Alert {
	pending := make(map[string]int, len(snapshot))
	for _, alert := range snapshot {
		pending[alert.AlertID]++
	}

	var rest []*models.Alert
	for _, alert := range current {
		if pending[alert.AlertID] > 0 {
			pending[alert.AlertID]--
			continue
		}
		rest = append(rest, alert)
	}
	return rest
}

// stillQueued filters out alerts that were cleared while the pass ran.
func stillQueued(keep, current []*models.Alert) []*models.Alert {
	present := make(map[string]bool, len(current))
	for _, alert := range current {
		present[alert.AlertID] = true
	}

	var out []*models.Alert
	for _, alert := range keep {
		if present[alert.AlertID] {
			out = append(out, alert)
		}
	}
	return out
}
