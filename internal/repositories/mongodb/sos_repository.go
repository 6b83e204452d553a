package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"telecare-sos/internal/models"
	"telecare-sos/internal/repositories/interfaces"
	"telecare-sos/pkg/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const activeAlertTTL = 30 * time.Minute

type sosRepository struct {
	collection *mongo.Collection
	cache      interfaces.RecordCache
}

// NewSOSRepository returns a repository over the sos_alerts collection. cache
// may be nil.
func NewSOSRepository(db *mongo.Database, cache interfaces.RecordCache) interfaces.SOSRepository {
	return &sosRepository{
		collection: db.Collection(database.CollectionSOSAlerts),
		cache:      cache,
	}
}

func (r *sosRepository) Create(ctx context.Context, record *models.SOSRecord) error {
	now := time.Now()
	record.ID = primitive.NewObjectID()
	record.CreatedAt = now
	record.UpdatedAt = now

	_, err := r.collection.InsertOne(ctx, record)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return interfaces.ErrAlertExists
		}
		return fmt.Errorf("failed to create sos alert: %w", err)
	}

	if record.Status == models.SOSStatusActive {
		r.cacheRecord(ctx, record)
	}

	return nil
}

func (r *sosRepository) GetByAlertID(ctx context.Context, alertID string) (*models.SOSRecord, error) {
	if record := r.getFromCache(ctx, alertID); record != nil {
		return record, nil
	}

	var record models.SOSRecord
	err := r.collection.FindOne(ctx, bson.M{"alert_id": alertID}).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, interfaces.ErrAlertNotFound
		}
		return nil, fmt.Errorf("failed to get sos alert: %w", err)
	}

	if record.Status == models.SOSStatusActive {
		r.cacheRecord(ctx, &record)
	}

	return &record, nil
}

func (r *sosRepository) GetActive(ctx context.Context, limit int) ([]*models.SOSRecord, error) {
	return r.find(ctx, bson.M{"status": models.SOSStatusActive}, limit)
}

func (r *sosRepository) GetByUserID(ctx context.Context, userID string, limit int) ([]*models.SOSRecord, error) {
	return r.find(ctx, bson.M{"user_id": userID}, limit)
}

func (r *sosRepository) UpdateStatus(ctx context.Context, alertID string, status models.SOSStatus) error {
	now := time.Now()
	set := bson.M{
		"status":     status,
		"updated_at": now,
	}
	if status != models.SOSStatusActive {
		set["resolved_at"] = now
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"alert_id": alertID}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update sos alert status: %w", err)
	}
	if result.MatchedCount == 0 {
		return interfaces.ErrAlertNotFound
	}

	r.invalidateCache(ctx, alertID)
	return nil
}

func (r *sosRepository) CountSince(ctx context.Context, since time.Time) (int64, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{"created_at": bson.M{"$gte": since}})
	if err != nil {
		return 0, fmt.Errorf("failed to count sos alerts: %w", err)
	}
	return count, nil
}

func (r *sosRepository) Ping(ctx context.Context) error {
	return r.collection.Database().Client().Ping(ctx, nil)
}

func (r *sosRepository) find(ctx context.Context, filter bson.M, limit int) ([]*models.SOSRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find sos alerts: %w", err)
	}
	defer cursor.Close(ctx)

	var records []*models.SOSRecord
	for cursor.Next(ctx) {
		var record models.SOSRecord
		if err := cursor.Decode(&record); err != nil {
			return nil, fmt.Errorf("failed to decode sos alert: %w", err)
		}
		records = append(records, &record)
	}

	return records, cursor.Err()
}

func (r *sosRepository) cacheRecord(ctx context.Context, record *models.SOSRecord) {
	if r.cache == nil {
		return
	}
	r.cache.Set(ctx, cacheKey(record.AlertID), record, activeAlertTTL)
}

func (r *sosRepository) getFromCache(ctx context.Context, alertID string) *models.SOSRecord {
	if r.cache == nil {
		return nil
	}
	var record models.SOSRecord
	if err := r.cache.Get(ctx, cacheKey(alertID), &record); err != nil {
		return nil
	}
	return &record
}

func (r *sosRepository) invalidateCache(ctx context.Context, alertID string) {
	if r.cache == nil {
		return
	}
	r.cache.Delete(ctx, cacheKey(alertID))
}

func cacheKey(alertID string) string {
	return "sos_alert:" + alertID
}
