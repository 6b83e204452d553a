package memory

import (
	"context"
	"testing"
	"time"

	"telecare-sos/internal/models"
	"telecare-sos/internal/repositories/interfaces"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSOSRepositoryRejectsDuplicateAlertID(t *testing.T) {
	repo := NewSOSRepository()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.SOSRecord{AlertID: "SOS_1_a", Status: models.SOSStatusActive}))
	assert.ErrorIs(t, repo.Create(ctx, &models.SOSRecord{AlertID: "SOS_1_a"}), interfaces.ErrAlertExists)

	record, err := repo.GetByAlertID(ctx, "SOS_1_a")
	require.NoError(t, err)
	assert.Equal(t, models.SOSStatusActive, record.Status)
	assert.False(t, record.ID.IsZero())
}

func TestSOSRepositoryStatusAndQueries(t *testing.T) {
	repo := NewSOSRepository()
	ctx := context.Background()
	user := "user-1"

	require.NoError(t, repo.Create(ctx, &models.SOSRecord{AlertID: "SOS_1_a", UserID: &user, Status: models.SOSStatusActive}))
	require.NoError(t, repo.Create(ctx, &models.SOSRecord{AlertID: "SOS_2_b", Status: models.SOSStatusActive}))

	require.NoError(t, repo.UpdateStatus(ctx, "SOS_2_b", models.SOSStatusResolved))
	assert.ErrorIs(t, repo.UpdateStatus(ctx, "SOS_9_z", models.SOSStatusResolved), interfaces.ErrAlertNotFound)

	active, err := repo.GetActive(ctx, 10)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "SOS_1_a", active[0].AlertID)

	mine, err := repo.GetByUserID(ctx, user, 0)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	resolved, err := repo.GetByAlertID(ctx, "SOS_2_b")
	require.NoError(t, err)
	assert.NotNil(t, resolved.ResolvedAt)

	count, err := repo.CountSince(ctx, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestContactRepository(t *testing.T) {
	repo := NewContactRepository()
	ctx := context.Background()

	contacts, err := repo.GetByUserID(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, contacts)

	require.NoError(t, repo.Upsert(ctx, &models.EmergencyContact{UserID: "u1", Name: "Ravi", Number: "+91981", Priority: 2}))
	require.NoError(t, repo.Upsert(ctx, &models.EmergencyContact{UserID: "u1", Name: "Meera", Number: "+91982", Priority: 1}))
	require.NoError(t, repo.Upsert(ctx, &models.EmergencyContact{UserID: "u1", Name: "Ravi K", Number: "+91981", Priority: 2}))

	contacts, err = repo.GetByUserID(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, contacts, 2)
	assert.Equal(t, "Meera", contacts[0].Name)
	assert.Equal(t, "Ravi K", contacts[1].Name)

	require.NoError(t, repo.Delete(ctx, "u1", "+91982"))
	contacts, _ = repo.GetByUserID(ctx, "u1")
	assert.Len(t, contacts, 1)
}
