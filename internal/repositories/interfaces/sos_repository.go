package interfaces

import (
	"context"
	"errors"
	"time"

	"telecare-sos/internal/models"
)

var (
	ErrAlertExists   = errors.New("alert already recorded")
	ErrAlertNotFound = errors.New("alert not found")
)

type SOSRepository interface {
	// Create stores a new alert and returns ErrAlertExists when the alertId
	// was already recorded.
	Create(ctx context.Context, record *models.SOSRecord) error
	GetByAlertID(ctx context.Context, alertID string) (*models.SOSRecord, error)
	GetActive(ctx context.Context, limit int) ([]*models.SOSRecord, error)
	GetByUserID(ctx context.Context, userID string, limit int) ([]*models.SOSRecord, error)
	UpdateStatus(ctx context.Context, alertID string, status models.SOSStatus) error
	CountSince(ctx context.Context, since time.Time) (int64, error)
	Ping(ctx context.Context) error
}

type ContactRepository interface {
	// GetByUserID returns the user's contacts ordered by priority. An unknown
	// user has no contacts, not an error.
	GetByUserID(ctx context.Context, userID string) ([]models.EmergencyContact, error)
	Upsert(ctx context.Context, contact *models.EmergencyContact) error
	Delete(ctx context.Context, userID, number string) error
}

// RecordCache is the read-through cache in front of the alert collection.
// pkg/cache.RedisCache satisfies it.
type RecordCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}
