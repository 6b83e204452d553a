package memory

import (
	"context"
	"sort"
	"sync"

	"telecare-sos/internal/models"
	"telecare-sos/internal/repositories/interfaces"
)

type contactRepository struct {
	mu       sync.RWMutex
	contacts map[string][]models.EmergencyContact
}

func NewContactRepository() interfaces.ContactRepository {
	return &contactRepository{contacts: make(map[string][]models.EmergencyContact)}
}

func (r *contactRepository) GetByUserID(ctx context.Context, userID string) ([]models.EmergencyContact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := append([]models.EmergencyContact{}, r.contacts[userID]...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority < out[j].Priority
	})
	return out, nil
}

func (r *contactRepository) Upsert(ctx context.Context, contact *models.EmergencyContact) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.contacts[contact.UserID]
	for i := range list {
		if list[i].Number == contact.Number {
			list[i] = *contact
			return nil
		}
	}
	r.contacts[contact.UserID] = append(list, *contact)
	return nil
}

func (r *contactRepository) Delete(ctx context.Context, userID, number string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.contacts[userID]
	for i := range list {
		if list[i].Number == number {
			r.contacts[userID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return nil
}
