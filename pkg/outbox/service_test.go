package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/matcycle-backend/pkg/db/models"
	"github.com/angelmondragon/matcycle-backend/pkg/enums"
	"github.com/angelmondragon/matcycle-backend/pkg/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.OutboxEvent{}))
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}

func TestServiceEmitStoresEnvelope(t *testing.T) {
	conn := openTestDB(t)
	repo := NewRepository(conn)
	svc := NewService(repo, logger.Nop())

	actor := uuid.New()
	cycleID := uuid.New()
	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventCycleChanged,
			AggregateType: enums.AggregateCycle,
			AggregateID:   cycleID,
			Actor:         &ActorRef{ActorID: actor},
			Data:          map[string]string{"status": "dirty"},
		})
	})
	require.NoError(t, err)

	var rows []models.OutboxEvent
	require.NoError(t, conn.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, cycleID, rows[0].AggregateID)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	assert.Equal(t, 1, envelope.Version)
	assert.NotEmpty(t, envelope.EventID)
	require.NotNil(t, envelope.Actor)
	assert.Equal(t, actor, envelope.Actor.ActorID)
	assert.JSONEq(t, `{"status":"dirty"}`, string(envelope.Data))
}

func TestServiceEmitRollsBackWithTransaction(t *testing.T) {
	conn := openTestDB(t)
	svc := NewService(NewRepository(conn), nil)

	boom := errors.New("boom")
	err := conn.Transaction(func(tx *gorm.DB) error {
		if err := svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventBatchChanged,
			AggregateType: enums.AggregatePickupBatch,
			AggregateID:   uuid.New(),
			Data:          map[string]string{},
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	count, err := NewRepository(conn).CountPending()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestServiceEmitRejectsInvalidEvent(t *testing.T) {
	conn := openTestDB(t)
	svc := NewService(NewRepository(conn), nil)

	require.Error(t, svc.Emit(context.Background(), nil, DomainEvent{}))
	require.Error(t, svc.Emit(context.Background(), conn, DomainEvent{
		EventType:     enums.EventCycleChanged,
		AggregateType: enums.AggregateCycle,
	}))

	err := svc.Emit(context.Background(), conn, DomainEvent{})
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 3)
}

func TestServiceEmitUsesClockAndIDSource(t *testing.T) {
	conn := openTestDB(t)
	svc := NewService(NewRepository(conn), nil)
	fixed := time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }
	svc.newID = func() string { return "evt-1" }

	require.NoError(t, svc.Emit(context.Background(), conn, DomainEvent{
		EventType:     enums.EventAssetChanged,
		AggregateType: enums.AggregateAsset,
		AggregateID:   uuid.New(),
		Data:          map[string]string{"code": "MAT-0001"},
	}))

	var row models.OutboxEvent
	require.NoError(t, conn.First(&row).Error)
	env, err := DecodeEnvelope(row.Payload)
	require.NoError(t, err)
	assert.Equal(t, "evt-1", env.EventID)
	assert.True(t, env.OccurredAt.Equal(fixed))
	assert.Nil(t, env.Actor)
}

func TestDecodeEnvelopeRejectsUnshippableRows(t *testing.T) {
	cases := map[string]string{
		"malformed":    `{"version":`,
		"version zero": `{"version":0,"eventId":"a","data":{}}`,
		"future":       `{"version":2,"eventId":"a","data":{}}`,
		"no event id":  `{"version":1,"data":{}}`,
		"null data":    `{"version":1,"eventId":"a","data":null}`,
		"missing data": `{"version":1,"eventId":"a"}`,
	}
	for name, raw := range cases {
		if _, err := DecodeEnvelope([]byte(raw)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	env, err := DecodeEnvelope([]byte(`{"version":1,"eventId":"a","data":{"x":1}}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":1}`, string(env.Data))
}

func TestRepositoryPublishLifecycle(t *testing.T) {
	conn := openTestDB(t)
	repo := NewRepository(conn)

	first := models.OutboxEvent{EventType: enums.EventCycleChanged, AggregateType: enums.AggregateCycle, AggregateID: uuid.New(), Payload: []byte(`{}`)}
	second := models.OutboxEvent{EventType: enums.EventAssetChanged, AggregateType: enums.AggregateAsset, AggregateID: uuid.New(), Payload: []byte(`{}`)}
	require.NoError(t, repo.Insert(conn, first))
	require.NoError(t, repo.Insert(conn, second))

	rows, err := repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.NoError(t, repo.MarkPublishedTx(conn, rows[0].ID))
	require.NoError(t, repo.MarkTerminalTx(conn, rows[1].ID, errors.New("bad payload"), 3))

	rows, err = repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	assert.Empty(t, rows)

	pending, err := repo.CountPending()
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending)
}
