package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"telecare-sos/pkg/logger"

	"github.com/robfig/cron/v3"
)

// QueueWorker drains the offline queue on a cron schedule.
type QueueWorker struct {
	cron    *cron.Cron
	service EmergencyService
	logger  *logger.Logger
	timeout time.Duration

	mu      sync.Mutex
	lastRun *ProcessResult
}

func NewQueueWorker(service EmergencyService, schedule string, timeout time.Duration, log *logger.Logger) (*QueueWorker, error) {
	if log == nil {
		log = logger.NewNop()
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	w := &QueueWorker{
		cron: cron.New(cron.WithChain(
			cron.Recover(cron.DefaultLogger),
			cron.SkipIfStillRunning(cron.DefaultLogger),
		)),
		service: service,
		logger:  log.WithField("component", "queue_worker"),
		timeout: timeout,
	}

	if _, err := w.cron.AddFunc(schedule, func() { w.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid drain schedule %q: %w", schedule, err)
	}
	return w, nil
}

func (w *QueueWorker) Start() {
	w.logger.Info("Offline queue worker started")
	w.cron.Start()
}

// Stop waits for a running drain to finish or ctx to end.
func (w *QueueWorker) Stop(ctx context.Context) {
	done := w.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		w.logger.Warn("Offline queue worker stop timed out")
	}
}

func (w *QueueWorker) RunOnce(ctx context.Context) *ProcessResult {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	result := w.service.ProcessOfflineQueue(ctx)

	w.mu.Lock()
	w.lastRun = result
	w.mu.Unlock()

	log := w.logger.WithFields(map[string]interface{}{
		"processed": result.Processed,
		"failed":    result.Failed,
	})
	if !result.Success {
		log.WithField("reason", result.Error).Debug("Offline queue not processed")
	} else if result.Processed > 0 || result.Failed > 0 {
		log.Info("Offline queue processed")
	}
	return result
}

func (w *QueueWorker) LastRun() *ProcessResult {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastRun
}
