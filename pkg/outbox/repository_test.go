package outbox

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/angelmondragon/matcycle-backend/pkg/db/models"
	"github.com/angelmondragon/matcycle-backend/pkg/enums"
)

func insertEvent(t *testing.T, conn *gorm.DB, publishedAt *time.Time, attempts int) models.OutboxEvent {
	t.Helper()
	event := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventCycleChanged,
		AggregateType: enums.AggregateCycle,
		AggregateID:   uuid.New(),
		Payload:       datatypes.JSON(`{"version":1}`),
		PublishedAt:   publishedAt,
		AttemptCount:  attempts,
	}
	require.NoError(t, conn.Create(&event).Error)
	return event
}

func TestRepositoryFetchSkipsPublishedAndExhausted(t *testing.T) {
	conn := openTestDB(t)
	repo := NewRepository(conn)
	published := time.Now().UTC()

	pending := insertEvent(t, conn, nil, 0)
	insertEvent(t, conn, &published, 0)
	insertEvent(t, conn, nil, 5)

	rows, err := repo.FetchUnpublishedForPublish(conn, 10, 5)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, pending.ID, rows[0].ID)
}

func TestRepositoryMarkFailedIncrementsAttempts(t *testing.T) {
	conn := openTestDB(t)
	repo := NewRepository(conn)
	event := insertEvent(t, conn, nil, 2)

	require.NoError(t, repo.MarkFailedTx(conn, event.ID, errors.New("deadline exceeded")))

	var stored models.OutboxEvent
	require.NoError(t, conn.First(&stored, "id = ?", event.ID).Error)
	assert.Equal(t, 3, stored.AttemptCount)
	require.NotNil(t, stored.LastError)
	assert.Equal(t, "deadline exceeded", *stored.LastError)
}

func TestRepositoryDeletePublishedBeforeKeepsPendingRows(t *testing.T) {
	conn := openTestDB(t)
	repo := NewRepository(conn)
	old := time.Now().UTC().Add(-40 * 24 * time.Hour)
	recent := time.Now().UTC().Add(-time.Hour)

	insertEvent(t, conn, &old, 1)
	keepRecent := insertEvent(t, conn, &recent, 1)
	keepPending := insertEvent(t, conn, nil, 0)

	deleted, err := repo.DeletePublishedBefore(context.Background(), nil, time.Now().UTC().Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	var remaining []models.OutboxEvent
	require.NoError(t, conn.Order("created_at").Find(&remaining).Error)
	ids := []uuid.UUID{}
	for _, row := range remaining {
		ids = append(ids, row.ID)
	}
	assert.ElementsMatch(t, []uuid.UUID{keepRecent.ID, keepPending.ID}, ids)
}

func TestDLQRepositoryLifecycle(t *testing.T) {
	conn := openTestDB(t)
	require.NoError(t, conn.AutoMigrate(&models.OutboxDLQ{}))
	repo := NewDLQRepository(conn)
	ctx := context.Background()

	long := strings.Repeat("x", maxDLQErrorLen+50)
	oldEvent := uuid.New()
	newEvent := uuid.New()
	for _, entry := range []models.OutboxDLQ{
		{
			EventID:       oldEvent,
			EventType:     enums.EventBatchChanged,
			AggregateType: enums.AggregatePickupBatch,
			AggregateID:   uuid.New(),
			Payload:       datatypes.JSON(`{}`),
			ErrorReason:   enums.OutboxDLQReasonNonRetryable,
			ErrorMessage:  &long,
			FailedAt:      time.Now().UTC().Add(-60 * 24 * time.Hour),
		},
		{
			EventID:       newEvent,
			EventType:     enums.EventCycleChanged,
			AggregateType: enums.AggregateCycle,
			AggregateID:   uuid.New(),
			Payload:       datatypes.JSON(`{}`),
			ErrorReason:   enums.OutboxDLQReasonMaxAttempts,
			AttemptCount:  10,
			FailedAt:      time.Now().UTC(),
		},
	} {
		require.NoError(t, repo.InsertTx(conn, entry))
	}

	stored, err := repo.FindByEventID(ctx, oldEvent)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.NotNil(t, stored.ErrorMessage)
	assert.Len(t, *stored.ErrorMessage, maxDLQErrorLen)

	missing, err := repo.FindByEventID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)

	listed, err := repo.List(ctx, DLQFilter{})
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, newEvent, listed[0].EventID)

	onlyMax, err := repo.List(ctx, DLQFilter{Reason: enums.OutboxDLQReasonMaxAttempts})
	require.NoError(t, err)
	require.Len(t, onlyMax, 1)
	assert.Equal(t, newEvent, onlyMax[0].EventID)

	byType, err := repo.List(ctx, DLQFilter{EventType: enums.EventBatchChanged, Limit: 5})
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, oldEvent, byType[0].EventID)

	require.Error(t, repo.InsertTx(conn, models.OutboxDLQ{EventID: uuid.New(), ErrorReason: "gave_up"}))

	deleted, err := repo.DeleteFailedBefore(ctx, nil, time.Now().UTC().Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestClipMessageKeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "short", clipMessage("short", 10))
	assert.Equal(t, "ab", clipMessage("abé", 3))
	assert.Equal(t, "abé", clipMessage("abéd", 4))
}
