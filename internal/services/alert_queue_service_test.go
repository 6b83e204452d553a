package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"telecare-sos/internal/config"
	"telecare-sos/internal/models"
	"telecare-sos/pkg/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAlert(id string) *models.Alert {
	return &models.Alert{
		AlertID:       id,
		CreatedAt:     testNow,
		EmergencyType: models.EmergencyTypeGeneral,
		Priority:      models.AlertPriorityHigh,
		DeliveryState: models.DeliveryStatePending,
	}
}

func newTestQueue(store storage.Store, sender AlertSender, policy config.DrainPolicy) AlertQueue {
	cfg := testConfig()
	cfg.DrainPolicy = policy
	return NewAlertQueue(cfg, store, sender, nil, WithQueueClock(fixedClock))
}

func pendingIDs(t *testing.T, queue AlertQueue) []string {
	t.Helper()
	items, err := queue.Pending(context.Background())
	require.NoError(t, err)
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.AlertID)
	}
	return ids
}

func TestEnqueueIsFIFOAndPersistent(t *testing.T) {
	store := storage.NewMemoryStorage()
	queue := newTestQueue(store, &fakeAPI{}, config.DrainPolicyClearAll)

	first := newTestAlert("SOS_1_a")
	queue.Enqueue(context.Background(), first)
	queue.Enqueue(context.Background(), newTestAlert("SOS_2_b"))

	assert.Equal(t, models.DeliveryStateQueued, first.DeliveryState)
	require.NotNil(t, first.QueuedAt)
	assert.True(t, first.QueuedAt.Equal(testNow))

	reopened := newTestQueue(store, &fakeAPI{}, config.DrainPolicyClearAll)
	assert.Equal(t, []string{"SOS_1_a", "SOS_2_b"}, pendingIDs(t, reopened))
}

func TestEnqueueSwallowsStorageErrors(t *testing.T) {
	store := newFlakyStore()
	store.setErr = errors.New("disk full")
	queue := newTestQueue(store, &fakeAPI{}, config.DrainPolicyClearAll)

	assert.NotPanics(t, func() {
		queue.Enqueue(context.Background(), newTestAlert("SOS_1_a"))
	})
}

func TestEnqueueQuarantinesCorruptQueue(t *testing.T) {
	store := storage.NewMemoryStorage()
	require.NoError(t, store.Set(context.Background(), storage.KeyOfflineQueue, "[{broken"))
	queue := newTestQueue(store, &fakeAPI{}, config.DrainPolicyClearAll)

	queue.Enqueue(context.Background(), newTestAlert("SOS_1_a"))

	assert.Equal(t, []string{"SOS_1_a"}, pendingIDs(t, queue))
	backup, ok, err := store.Get(context.Background(), storage.KeyOfflineQueue+"_corrupt_1709294400000")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "[{broken", backup)
}

func TestClearIsIdempotentAndEmptyDrain(t *testing.T) {
	queue := newTestQueue(storage.NewMemoryStorage(), &fakeAPI{}, config.DrainPolicyClearAll)
	queue.Enqueue(context.Background(), newTestAlert("SOS_1_a"))

	queue.Clear(context.Background())
	assert.Empty(t, pendingIDs(t, queue))
	queue.Clear(context.Background())
	assert.Empty(t, pendingIDs(t, queue))

	result, err := queue.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.ProcessedCount)
}

func TestDrainClearAllDropsFailedItems(t *testing.T) {
	api := &fakeAPI{sendFn: func(payload *models.SOSAlertPayload, call int) error {
		if call == 2 {
			return networkTimeout()
		}
		return nil
	}}
	queue := newTestQueue(storage.NewMemoryStorage(), api, config.DrainPolicyClearAll)
	for _, id := range []string{"SOS_1_a", "SOS_2_b", "SOS_3_c"} {
		queue.Enqueue(context.Background(), newTestAlert(id))
	}

	result, err := queue.Drain(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.ProcessedCount)
	assert.Equal(t, 1, result.FailedCount)
	assert.Equal(t, []string{"SOS_2_b"}, result.Abandoned)
	assert.Empty(t, pendingIDs(t, queue))

	sent := api.sent()
	require.Len(t, sent, 3)
	assert.Equal(t, "SOS_1_a", sent[0].AlertID)
	assert.Equal(t, "SOS_2_b", sent[1].AlertID)
	assert.Equal(t, "SOS_3_c", sent[2].AlertID)
}

func TestDrainRetainFailedKeepsFailedItems(t *testing.T) {
	api := &fakeAPI{sendFn: func(payload *models.SOSAlertPayload, call int) error {
		if payload.AlertID == "SOS_2_b" {
			return networkTimeout()
		}
		return nil
	}}
	queue := newTestQueue(storage.NewMemoryStorage(), api, config.DrainPolicyRetainFailed)
	for _, id := range []string{"SOS_1_a", "SOS_2_b", "SOS_3_c"} {
		queue.Enqueue(context.Background(), newTestAlert(id))
	}

	result, err := queue.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.ProcessedCount)
	assert.Equal(t, 1, result.Retained)

	items, err := queue.Pending(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "SOS_2_b", items[0].AlertID)
	assert.Equal(t, 1, items[0].Attempts)
	assert.Equal(t, models.DeliveryStateQueued, items[0].DeliveryState)
}

func TestDrainKeepsAlertsEnqueuedMidPass(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	api := &fakeAPI{sendFn: func(payload *models.SOSAlertPayload, call int) error {
		if call == 1 {
			close(entered)
			<-release
		}
		return nil
	}}
	queue := newTestQueue(storage.NewMemoryStorage(), api, config.DrainPolicyClearAll)
	queue.Enqueue(context.Background(), newTestAlert("SOS_1_a"))

	done := make(chan *DrainResult, 1)
	go func() {
		result, err := queue.Drain(context.Background())
		assert.NoError(t, err)
		done <- result
	}()

	<-entered
	queue.Enqueue(context.Background(), newTestAlert("SOS_2_late"))
	close(release)

	select {
	case result := <-done:
		assert.Equal(t, 1, result.ProcessedCount)
	case <-time.After(2 * time.Second):
		t.Fatal("drain did not finish")
	}
	assert.Equal(t, []string{"SOS_2_late"}, pendingIDs(t, queue))
}

func TestDrainStopsOnCancelledContextWithoutDropping(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	api := &fakeAPI{sendFn: func(payload *models.SOSAlertPayload, call int) error {
		cancel()
		return nil
	}}
	queue := newTestQueue(storage.NewMemoryStorage(), api, config.DrainPolicyClearAll)
	for _, id := range []string{"SOS_1_a", "SOS_2_b", "SOS_3_c"} {
		queue.Enqueue(context.Background(), newTestAlert(id))
	}

	result, err := queue.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ProcessedCount)
	assert.Equal(t, []string{"SOS_2_b", "SOS_3_c"}, pendingIDs(t, queue))
}

func TestDrainReadFailureIsTyped(t *testing.T) {
	store := newFlakyStore()
	store.getErr = errors.New("io error")
	queue := newTestQueue(store, &fakeAPI{}, config.DrainPolicyClearAll)

	_, err := queue.Drain(context.Background())
	var storageErr *StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "get", storageErr.Op)
	assert.Equal(t, storage.KeyOfflineQueue, storageErr.Key)
}

func TestDeliveredAlertIsFrozen(t *testing.T) {
	alert := newTestAlert("SOS_1_a")
	alert.MarkDelivered()
	alert.MarkQueued(testNow)
	alert.MarkAbandoned()

	assert.Equal(t, models.DeliveryStateDelivered, alert.DeliveryState)
	assert.Nil(t, alert.QueuedAt)
}
