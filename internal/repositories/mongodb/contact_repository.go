package mongodb

import (
	"context"
	"fmt"

	"telecare-sos/internal/models"
	"telecare-sos/internal/repositories/interfaces"
	"telecare-sos/pkg/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type contactRepository struct {
	collection *mongo.Collection
}

func NewContactRepository(db *mongo.Database) interfaces.ContactRepository {
	return &contactRepository{
		collection: db.Collection(database.CollectionEmergencyContacts),
	}
}

func (r *contactRepository) GetByUserID(ctx context.Context, userID string) ([]models.EmergencyContact, error) {
	cursor, err := r.collection.Find(ctx,
		bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "priority", Value: 1}, {Key: "name", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find emergency contacts: %w", err)
	}
	defer cursor.Close(ctx)

	contacts := []models.EmergencyContact{}
	if err := cursor.All(ctx, &contacts); err != nil {
		return nil, fmt.Errorf("failed to decode emergency contacts: %w", err)
	}
	return contacts, nil
}

// Upsert keys contacts by user and number.
func (r *contactRepository) Upsert(ctx context.Context, contact *models.EmergencyContact) error {
	filter := bson.M{"user_id": contact.UserID, "number": contact.Number}
	update := bson.M{"$set": bson.M{
		"name":         contact.Name,
		"service":      contact.Service,
		"relationship": contact.Relationship,
		"priority":     contact.Priority,
	}}

	_, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert emergency contact: %w", err)
	}
	return nil
}

func (r *contactRepository) Delete(ctx context.Context, userID, number string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"user_id": userID, "number": number})
	if err != nil {
		return fmt.Errorf("failed to delete emergency contact: %w", err)
	}
	return nil
}
