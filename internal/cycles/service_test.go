package cycles

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/matcycle-backend/internal/assets"
	"github.com/angelmondragon/matcycle-backend/internal/history"
	"github.com/angelmondragon/matcycle-backend/pkg/config"
	dbpkg "github.com/angelmondragon/matcycle-backend/pkg/db"
	"github.com/angelmondragon/matcycle-backend/pkg/db/models"
	"github.com/angelmondragon/matcycle-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/matcycle-backend/pkg/errors"
	"github.com/angelmondragon/matcycle-backend/pkg/logger"
	"github.com/angelmondragon/matcycle-backend/pkg/migrate"
	"github.com/angelmondragon/matcycle-backend/pkg/outbox"
)

type fixture struct {
	conn    *gorm.DB
	ledger  assets.Ledger
	trail   history.Trail
	manager Manager
	actor   uuid.UUID
	now     time.Time
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, migrate.AutoMigrateSQLite(conn))
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}

func newFixture(t *testing.T, wrap func(Repository) Repository) *fixture {
	t.Helper()
	conn := openTestDB(t)
	emitter := outbox.NewService(outbox.NewRepository(conn), nil)

	ledger, err := assets.NewService(assets.ServiceParams{
		Repo:   assets.NewRepository(conn),
		Tx:     dbpkg.NewFromGorm(conn),
		Outbox: emitter,
		Logger: logger.Nop(),
		Config: config.LedgerConfig{MaxAllocation: 50, AttemptsPerCode: 5},
	})
	require.NoError(t, err)

	trail, err := history.NewService(history.NewRepository(conn))
	require.NoError(t, err)

	repo := NewRepository(conn)
	if wrap != nil {
		repo = wrap(repo)
	}
	f := &fixture{
		conn:   conn,
		ledger: ledger,
		trail:  trail,
		actor:  uuid.New(),
		now:    time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}
	manager, err := NewService(ServiceParams{
		Repo:    repo,
		Tx:      dbpkg.NewFromGorm(conn),
		Assets:  ledger,
		History: trail,
		Outbox:  emitter,
		Logger:  logger.Nop(),
		Clock:   func() time.Time { return f.now },
	})
	require.NoError(t, err)
	f.manager = manager
	return f
}

func (f *fixture) asset(t *testing.T) models.Asset {
	t.Helper()
	allocated, err := f.ledger.Allocate(context.Background(), assets.AllocateInput{OwnerID: uuid.New(), Prefix: "MAT", Count: 1, ActorID: f.actor})
	require.NoError(t, err)
	return allocated[0]
}

func (f *fixture) onTest(t *testing.T, start time.Time) *models.Cycle {
	t.Helper()
	ctx := context.Background()
	cycle, err := f.manager.Start(ctx, f.asset(t).ID, f.actor)
	require.NoError(t, err)
	cycle, err = f.manager.AssignToTrial(ctx, cycle.ID, AssignInput{CompanyID: uuid.New(), StartAt: &start}, f.actor)
	require.NoError(t, err)
	return cycle
}

func (f *fixture) historyCount(t *testing.T, cycleID uuid.UUID) int {
	t.Helper()
	events, err := f.trail.ForCycle(context.Background(), cycleID)
	require.NoError(t, err)
	return len(events)
}

func TestRoundTripRecordsChainedHistory(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	asset := f.asset(t)

	cycle, err := f.manager.Start(ctx, asset.ID, f.actor)
	require.NoError(t, err)
	assert.Equal(t, enums.CycleStatusClean, cycle.Status)

	_, err = f.manager.AssignToTrial(ctx, cycle.ID, AssignInput{CompanyID: uuid.New()}, f.actor)
	require.NoError(t, err)
	_, err = f.manager.MarkSoiled(ctx, cycle.ID, f.actor)
	require.NoError(t, err)
	signed, err := f.manager.SignContract(ctx, cycle.ID, enums.ContractFrequencyWeekly, f.actor)
	require.NoError(t, err)
	require.NotNil(t, signed.PickupRequestedAt)

	result, err := f.manager.Complete(ctx, cycle.ID, f.actor)
	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.Equal(t, enums.CycleStatusCompleted, result.Cycle.Status)
	assert.NotNil(t, result.Cycle.CompletedAt)

	events, err := f.trail.ForCycle(ctx, cycle.ID)
	require.NoError(t, err)
	require.Len(t, events, 4)
	wantActions := []enums.HistoryAction{
		enums.HistoryActionTrialAssigned,
		enums.HistoryActionSoiled,
		enums.HistoryActionContractSigned,
		enums.HistoryActionCompleted,
	}
	for i, event := range events {
		assert.Equal(t, wantActions[i], event.Action)
		assert.Equal(t, f.actor, event.PerformedBy)
		if i > 0 {
			require.NotNil(t, event.OldStatus)
			assert.Equal(t, events[i-1].NewStatus, *event.OldStatus)
		}
	}

	released, err := f.ledger.Get(ctx, asset.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.AssetStatusAvailable, released.Status)

	again, err := f.manager.Complete(ctx, cycle.ID, f.actor)
	require.NoError(t, err)
	assert.True(t, again.Skipped)
	assert.Equal(t, 4, f.historyCount(t, cycle.ID))
}

func TestIllegalTransitionWritesNoHistory(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	cycle, err := f.manager.Start(ctx, f.asset(t).ID, f.actor)
	require.NoError(t, err)

	_, err = f.manager.MarkSoiled(ctx, cycle.ID, f.actor)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	details, ok := pkgerrors.As(err).Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, enums.CycleStatusClean, details["status"])

	_, err = f.manager.Complete(ctx, cycle.ID, f.actor)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = f.manager.CancelPickup(ctx, cycle.ID, f.actor)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = f.manager.Extend(ctx, cycle.ID, 7, f.actor)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	assert.Zero(t, f.historyCount(t, cycle.ID))
	got, err := f.manager.Get(ctx, cycle.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.CycleStatusClean, got.Status)
}

func TestIllegalTransitionsLeaveEveryStateUntouched(t *testing.T) {
	type attempt struct {
		name string
		run  func(ctx context.Context, m Manager, id, actor uuid.UUID) error
	}
	assign := attempt{"assign", func(ctx context.Context, m Manager, id, actor uuid.UUID) error {
		_, err := m.AssignToTrial(ctx, id, AssignInput{CompanyID: uuid.New()}, actor)
		return err
	}}
	soil := attempt{"soil", func(ctx context.Context, m Manager, id, actor uuid.UUID) error {
		_, err := m.MarkSoiled(ctx, id, actor)
		return err
	}}
	sign := attempt{"sign contract", func(ctx context.Context, m Manager, id, actor uuid.UUID) error {
		_, err := m.SignContract(ctx, id, enums.ContractFrequencyWeekly, actor)
		return err
	}}
	request := attempt{"request pickup", func(ctx context.Context, m Manager, id, actor uuid.UUID) error {
		_, err := m.RequestPickup(ctx, id, actor)
		return err
	}}
	cancel := attempt{"cancel pickup", func(ctx context.Context, m Manager, id, actor uuid.UUID) error {
		_, err := m.CancelPickup(ctx, id, actor)
		return err
	}}
	complete := attempt{"complete", func(ctx context.Context, m Manager, id, actor uuid.UUID) error {
		_, err := m.Complete(ctx, id, actor)
		return err
	}}
	extend := attempt{"extend", func(ctx context.Context, m Manager, id, actor uuid.UUID) error {
		_, err := m.Extend(ctx, id, 7, actor)
		return err
	}}

	cases := []struct {
		status   enums.CycleStatus
		setup    func(f *fixture, t *testing.T) uuid.UUID
		attempts []attempt
	}{
		{
			status: enums.CycleStatusOnTest,
			setup: func(f *fixture, t *testing.T) uuid.UUID {
				return f.onTest(t, f.now).ID
			},
			attempts: []attempt{assign, cancel, complete},
		},
		{
			status: enums.CycleStatusDirty,
			setup: func(f *fixture, t *testing.T) uuid.UUID {
				cycle, err := f.manager.MarkSoiled(context.Background(), f.onTest(t, f.now).ID, f.actor)
				require.NoError(t, err)
				return cycle.ID
			},
			attempts: []attempt{assign, soil, extend, cancel, complete},
		},
		{
			status: enums.CycleStatusWaitingDriver,
			setup: func(f *fixture, t *testing.T) uuid.UUID {
				cycle, err := f.manager.SignContract(context.Background(), f.onTest(t, f.now).ID, enums.ContractFrequencyMonthly, f.actor)
				require.NoError(t, err)
				return cycle.ID
			},
			attempts: []attempt{assign, soil, extend, sign, request},
		},
		{
			status: enums.CycleStatusCompleted,
			setup: func(f *fixture, t *testing.T) uuid.UUID {
				ctx := context.Background()
				cycle, err := f.manager.RequestPickup(ctx, f.onTest(t, f.now).ID, f.actor)
				require.NoError(t, err)
				_, err = f.manager.Complete(ctx, cycle.ID, f.actor)
				require.NoError(t, err)
				return cycle.ID
			},
			attempts: []attempt{assign, soil, extend, sign, request, cancel},
		},
	}

	for _, tc := range cases {
		t.Run(string(tc.status), func(t *testing.T) {
			f := newFixture(t, nil)
			ctx := context.Background()
			id := tc.setup(f, t)
			before := f.historyCount(t, id)

			for _, a := range tc.attempts {
				err := a.run(ctx, f.manager, id, f.actor)
				require.Error(t, err, a.name)
				assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "%s: %v", a.name, err)
				assert.Equal(t, before, f.historyCount(t, id), a.name)

				got, err := f.manager.Get(ctx, id)
				require.NoError(t, err)
				assert.Equal(t, tc.status, got.Status, a.name)
			}
		})
	}
}

// reloadFailingRepository fails every FindByID from the failFrom-th call on.
type reloadFailingRepository struct {
	Repository
	loads    int
	failFrom int
}

func (r *reloadFailingRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Cycle, error) {
	r.loads++
	if r.failFrom > 0 && r.loads >= r.failFrom {
		return nil, errors.New("connection reset")
	}
	return r.Repository.FindByID(ctx, id)
}

func TestCommittedTransitionSurvivesFailedReload(t *testing.T) {
	flaky := &reloadFailingRepository{}
	f := newFixture(t, func(inner Repository) Repository {
		flaky.Repository = inner
		return flaky
	})
	ctx := context.Background()
	cycle := f.onTest(t, f.now)

	flaky.loads, flaky.failFrom = 0, 2
	soiled, err := f.manager.MarkSoiled(ctx, cycle.ID, f.actor)
	require.NoError(t, err)
	require.NotNil(t, soiled)
	assert.Equal(t, enums.CycleStatusDirty, soiled.Status)
	require.NotNil(t, soiled.TestEndAt)
	assert.True(t, soiled.TestEndAt.Equal(f.now))
	assert.Equal(t, cycle.CompanyID, soiled.CompanyID)

	flaky.failFrom = 0
	stored, err := f.manager.Get(ctx, cycle.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.CycleStatusDirty, stored.Status)
	assert.Equal(t, 2, f.historyCount(t, cycle.ID))
}

func TestExtendMovesTrialWindow(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cycle := f.onTest(t, start)

	extended, err := f.manager.Extend(ctx, cycle.ID, 0, f.actor)
	require.NoError(t, err)
	require.NotNil(t, extended.TestStartAt)
	assert.True(t, extended.TestStartAt.Equal(start.Add(7*24*time.Hour)), extended.TestStartAt)
	assert.Equal(t, 1, extended.ExtensionsCount)

	extended, err = f.manager.Extend(ctx, cycle.ID, 7, f.actor)
	require.NoError(t, err)
	assert.True(t, extended.TestStartAt.Equal(start.Add(14*24*time.Hour)), extended.TestStartAt)
	assert.Equal(t, 2, extended.ExtensionsCount)
	assert.Equal(t, enums.CycleStatusOnTest, extended.Status)

	events, err := f.trail.ForCycle(ctx, cycle.ID)
	require.NoError(t, err)
	require.Len(t, events, 3)
	last := events[2]
	assert.Equal(t, enums.HistoryActionTrialExtended, last.Action)
	var meta map[string]any
	require.NoError(t, json.Unmarshal(last.Metadata, &meta))
	assert.EqualValues(t, 7, meta["days"])
	assert.EqualValues(t, 2, meta["extensionsCount"])

	for _, days := range []int{-1, 91} {
		_, err = f.manager.Extend(ctx, cycle.ID, days, f.actor)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "days %d", days)
	}
}

func TestSignContractThenCancelPickupKeepsContract(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	cycle := f.onTest(t, f.now)

	_, err := f.manager.SignContract(ctx, cycle.ID, enums.ContractFrequency("daily"), f.actor)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	signed, err := f.manager.SignContract(ctx, cycle.ID, enums.ContractFrequencyBiweekly, f.actor)
	require.NoError(t, err)
	assert.Equal(t, enums.CycleStatusWaitingDriver, signed.Status)
	assert.True(t, signed.ContractSigned)
	require.NotNil(t, signed.ContractFrequency)
	assert.Equal(t, enums.ContractFrequencyBiweekly, *signed.ContractFrequency)
	assert.NotNil(t, signed.PickupRequestedAt)

	batchID := uuid.New()
	cancelled, err := f.manager.CancelPickup(ctx, cycle.ID, f.actor, WithBatch(batchID))
	require.NoError(t, err)
	assert.Equal(t, enums.CycleStatusDirty, cancelled.Status)
	assert.Nil(t, cancelled.PickupRequestedAt)
	assert.True(t, cancelled.ContractSigned)
	assert.NotNil(t, cancelled.ContractSignedAt)

	events, err := f.trail.ForCycle(ctx, cycle.ID)
	require.NoError(t, err)
	var meta map[string]any
	require.NoError(t, json.Unmarshal(events[len(events)-1].Metadata, &meta))
	assert.Equal(t, batchID.String(), meta["batchId"])
}

func TestStartRejectsAssetInActiveCycle(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	asset := f.asset(t)

	_, err := f.manager.Start(ctx, asset.ID, f.actor)
	require.NoError(t, err)

	_, err = f.manager.Start(ctx, asset.ID, f.actor)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	_, err = f.manager.Start(ctx, uuid.New(), f.actor)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	var count int64
	require.NoError(t, f.conn.Model(&models.Cycle{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

// staleRepository serves one outdated snapshot to imitate a racing writer.
type staleRepository struct {
	Repository
	snapshot *models.Cycle
}

func (r *staleRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Cycle, error) {
	if r.snapshot != nil && r.snapshot.ID == id {
		out := r.snapshot
		r.snapshot = nil
		return out, nil
	}
	return r.Repository.FindByID(ctx, id)
}

func TestConcurrentUpdateReportsConflict(t *testing.T) {
	stale := &staleRepository{}
	f := newFixture(t, func(inner Repository) Repository {
		stale.Repository = inner
		return stale
	})
	ctx := context.Background()
	cycle := f.onTest(t, f.now)

	snapshot := *cycle
	_, err := f.manager.MarkSoiled(ctx, cycle.ID, f.actor)
	require.NoError(t, err)

	stale.snapshot = &snapshot
	_, err = f.manager.MarkSoiled(ctx, cycle.ID, f.actor)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	details, ok := pkgerrors.As(err).Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, enums.CycleStatusDirty, details["observed"])

	assert.Equal(t, 2, f.historyCount(t, cycle.ID))
}

func TestMissingCycleIsNotFound(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	got, err := f.manager.Get(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = f.manager.RequestPickup(ctx, uuid.New(), f.actor)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	_, err = f.manager.Complete(ctx, uuid.New(), f.actor)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestListFiltersByStatus(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	first := f.onTest(t, f.now)
	f.onTest(t, f.now)
	_, err := f.manager.Start(ctx, f.asset(t).ID, f.actor)
	require.NoError(t, err)
	_, err = f.manager.MarkSoiled(ctx, first.ID, f.actor)
	require.NoError(t, err)

	onTest, err := f.manager.List(ctx, Filter{Statuses: []enums.CycleStatus{enums.CycleStatusOnTest}})
	require.NoError(t, err)
	assert.Len(t, onTest, 1)

	all, err := f.manager.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	many, err := f.manager.FindMany(ctx, []uuid.UUID{first.ID, uuid.New()})
	require.NoError(t, err)
	require.Len(t, many, 1)
	assert.Equal(t, enums.CycleStatusDirty, many[0].Status)

	_, err = f.manager.List(ctx, Filter{Statuses: []enums.CycleStatus{"lost"}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
