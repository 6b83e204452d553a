// Package memory holds process-local repositories for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"telecare-sos/internal/models"
	"telecare-sos/internal/repositories/interfaces"

	"github.com/patrickmn/go-cache"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type sosRepository struct {
	mu      sync.Mutex
	records *cache.Cache
}

func NewSOSRepository() interfaces.SOSRepository {
	return &sosRepository{records: cache.New(cache.NoExpiration, 0)}
}

func (r *sosRepository) Create(ctx context.Context, record *models.SOSRecord) error {
	now := time.Now()
	record.ID = primitive.NewObjectID()
	record.CreatedAt = now
	record.UpdatedAt = now

	stored := *record
	if err := r.records.Add(record.AlertID, &stored, cache.NoExpiration); err != nil {
		return interfaces.ErrAlertExists
	}
	return nil
}

func (r *sosRepository) GetByAlertID(ctx context.Context, alertID string) (*models.SOSRecord, error) {
	value, ok := r.records.Get(alertID)
	if !ok {
		return nil, interfaces.ErrAlertNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	record := *value.(*models.SOSRecord)
	return &record, nil
}

func (r *sosRepository) GetActive(ctx context.Context, limit int) ([]*models.SOSRecord, error) {
	return r.filter(limit, func(rec *models.SOSRecord) bool {
		return rec.Status == models.SOSStatusActive
	}), nil
}

func (r *sosRepository) GetByUserID(ctx context.Context, userID string, limit int) ([]*models.SOSRecord, error) {
	return r.filter(limit, func(rec *models.SOSRecord) bool {
		return rec.UserID != nil && *rec.UserID == userID
	}), nil
}

func (r *sosRepository) UpdateStatus(ctx context.Context, alertID string, status models.SOSStatus) error {
	value, ok := r.records.Get(alertID)
	if !ok {
		return interfaces.ErrAlertNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	record := value.(*models.SOSRecord)
	now := time.Now()
	record.Status = status
	record.UpdatedAt = now
	if status != models.SOSStatusActive {
		record.ResolvedAt = &now
	}
	return nil
}

func (r *sosRepository) CountSince(ctx context.Context, since time.Time) (int64, error) {
	records := r.filter(0, func(rec *models.SOSRecord) bool {
		return !rec.CreatedAt.Before(since)
	})
	return int64(len(records)), nil
}

func (r *sosRepository) Ping(ctx context.Context) error {
	return nil
}

// filter returns copies, newest first.
func (r *sosRepository) filter(limit int, keep func(*models.SOSRecord) bool) []*models.SOSRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.SOSRecord
	for _, item := range r.records.Items() {
		record := item.Object.(*models.SOSRecord)
		if keep(record) {
			copied := *record
			out = append(out, &copied)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
