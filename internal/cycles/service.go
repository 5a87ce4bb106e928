package cycles

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/matcycle-backend/internal/history"
	dbpkg "github.com/angelmondragon/matcycle-backend/pkg/db"
	"github.com/angelmondragon/matcycle-backend/pkg/db/models"
	"github.com/angelmondragon/matcycle-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/matcycle-backend/pkg/errors"
	"github.com/angelmondragon/matcycle-backend/pkg/logger"
	"github.com/angelmondragon/matcycle-backend/pkg/metrics"
	"github.com/angelmondragon/matcycle-backend/pkg/outbox"
	"github.com/angelmondragon/matcycle-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/matcycle-backend/pkg/pagination"
	"github.com/angelmondragon/matcycle-backend/pkg/types"
)

const (
	// TrialWindow is the fixed length of a trial placement.
	TrialWindow = 7 * 24 * time.Hour

	DefaultExtendDays = 7
	MaxExtendDays     = 90

	actionStarted = "started"
)

var errStale = errors.New("cycle changed concurrently")

// Manager is the state machine for one rental cycle of one asset.
type Manager interface {
	Start(ctx context.Context, assetID, actorID uuid.UUID) (*models.Cycle, error)
	AssignToTrial(ctx context.Context, id uuid.UUID, input AssignInput, actorID uuid.UUID) (*models.Cycle, error)
	MarkSoiled(ctx context.Context, id, actorID uuid.UUID) (*models.Cycle, error)
	SignContract(ctx context.Context, id uuid.UUID, frequency enums.ContractFrequency, actorID uuid.UUID) (*models.Cycle, error)
	RequestPickup(ctx context.Context, id, actorID uuid.UUID, opts ...Option) (*models.Cycle, error)
	CancelPickup(ctx context.Context, id, actorID uuid.UUID, opts ...Option) (*models.Cycle, error)
	Complete(ctx context.Context, id, actorID uuid.UUID, opts ...Option) (*CompleteResult, error)
	Extend(ctx context.Context, id uuid.UUID, days int, actorID uuid.UUID) (*models.Cycle, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Cycle, error)
	FindMany(ctx context.Context, ids []uuid.UUID) ([]models.Cycle, error)
	List(ctx context.Context, filter Filter) ([]models.Cycle, error)
}

// AssetLedger is the slice of the ledger a cycle drives inside its transaction.
type AssetLedger interface {
	Assign(ctx context.Context, tx *gorm.DB, assetID, actorID uuid.UUID) (*models.Asset, error)
	Release(ctx context.Context, tx *gorm.DB, assetID, actorID uuid.UUID) (*models.Asset, error)
}

// Recorder appends history inside the caller's transaction.
type Recorder interface {
	Record(ctx context.Context, tx *gorm.DB, entry history.Entry) (*models.HistoryEvent, error)
}

// AssignInput places a clean cycle on trial with a customer.
type AssignInput struct {
	CompanyID uuid.UUID
	ContactID *uuid.UUID
	StartAt   *time.Time
	Location  *types.Location
}

// CompleteResult reports Skipped when the cycle was already completed.
type CompleteResult struct {
	Cycle   *models.Cycle `json:"cycle"`
	Skipped bool          `json:"skipped"`
}

// Option annotates a transition with its orchestration context.
type Option func(*options)

type options struct {
	batchID *uuid.UUID
}

// WithBatch records the pickup batch driving the transition.
func WithBatch(batchID uuid.UUID) Option {
	return func(o *options) {
		o.batchID = &batchID
	}
}

// ServiceParams wires the manager dependencies.
type ServiceParams struct {
	Repo    Repository
	Tx      dbpkg.TxRunner
	Assets  AssetLedger
	History Recorder
	Outbox  outbox.Emitter
	Logger  *logger.Logger
	Metrics *metrics.DomainMetrics
	Clock   func() time.Time
}

type service struct {
	repo    Repository
	tx      dbpkg.TxRunner
	assets  AssetLedger
	history Recorder
	outbox  outbox.Emitter
	logg    *logger.Logger
	metrics *metrics.DomainMetrics
	now     func() time.Time
}

// NewService builds the cycle manager.
func NewService(params ServiceParams) (Manager, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("cycles repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Assets == nil {
		return nil, fmt.Errorf("asset ledger required")
	}
	if params.History == nil {
		return nil, fmt.Errorf("history recorder required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	clock := params.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:    params.Repo,
		tx:      params.Tx,
		assets:  params.Assets,
		history: params.History,
		outbox:  params.Outbox,
		logg:    params.Logger,
		metrics: params.Metrics,
		now:     clock,
	}, nil
}

// Start puts an available asset into use with a fresh clean cycle.
func (s *service) Start(ctx context.Context, assetID, actorID uuid.UUID) (*models.Cycle, error) {
	if assetID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "asset id is required")
	}
	if actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor id is required")
	}

	cycle := &models.Cycle{AssetID: assetID, Status: enums.CycleStatusClean}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.assets.Assign(ctx, tx, assetID, actorID); err != nil {
			return err
		}
		if err := s.repo.WithTx(tx).Create(ctx, cycle); err != nil {
			return err
		}
		return s.emit(ctx, tx, cycle, actionStarted, nil, actorID, options{})
	})
	if err != nil {
		s.metrics.ObserveTransition(actionStarted, outcomeFor(err))
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		if dbpkg.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "asset already has an active cycle").WithDetails(map[string]any{"assetId": assetID})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "start cycle")
	}
	s.metrics.ObserveTransition(actionStarted, metrics.OutcomeSuccess)
	return cycle, nil
}

func (s *service) AssignToTrial(ctx context.Context, id uuid.UUID, input AssignInput, actorID uuid.UUID) (*models.Cycle, error) {
	if input.CompanyID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "company id is required")
	}
	if input.Location != nil {
		if err := input.Location.Validate(); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid location")
		}
	}
	return s.apply(ctx, id, actorID, enums.HistoryActionTrialAssigned, options{}, func(_ *models.Cycle, now time.Time) (Update, map[string]any, error) {
		start := now
		if input.StartAt != nil {
			start = input.StartAt.UTC()
		}
		upd := Update{
			CompanyID:   types.Set(input.CompanyID),
			ContactID:   types.SetPtr(input.ContactID),
			TestStartAt: types.Set(start),
		}
		meta := map[string]any{
			"companyId": input.CompanyID,
			"contactId": input.ContactID,
			"startAt":   start,
		}
		if input.Location != nil {
			upd.LocationLat = types.Set(input.Location.Lat)
			upd.LocationLng = types.Set(input.Location.Lng)
			meta["location"] = input.Location
		}
		return upd, meta, nil
	})
}

func (s *service) MarkSoiled(ctx context.Context, id, actorID uuid.UUID) (*models.Cycle, error) {
	return s.apply(ctx, id, actorID, enums.HistoryActionSoiled, options{}, func(_ *models.Cycle, now time.Time) (Update, map[string]any, error) {
		return Update{TestEndAt: types.Set(now)}, map[string]any{"testEndAt": now}, nil
	})
}

func (s *service) SignContract(ctx context.Context, id uuid.UUID, frequency enums.ContractFrequency, actorID uuid.UUID) (*models.Cycle, error) {
	if !frequency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid contract frequency %q", frequency))
	}
	return s.apply(ctx, id, actorID, enums.HistoryActionContractSigned, options{}, func(_ *models.Cycle, now time.Time) (Update, map[string]any, error) {
		upd := Update{
			ContractSigned:    types.Set(true),
			ContractSignedAt:  types.Set(now),
			ContractFrequency: types.Set(frequency),
			PickupRequestedAt: types.Set(now),
		}
		return upd, map[string]any{"frequency": frequency}, nil
	})
}

func (s *service) RequestPickup(ctx context.Context, id, actorID uuid.UUID, opts ...Option) (*models.Cycle, error) {
	o := collect(opts)
	return s.apply(ctx, id, actorID, enums.HistoryActionPickupRequested, o, func(_ *models.Cycle, now time.Time) (Update, map[string]any, error) {
		return Update{PickupRequestedAt: types.Set(now)}, batchMeta(o), nil
	})
}

// CancelPickup undoes only the pickup in flight; contract fields stay as they are.
func (s *service) CancelPickup(ctx context.Context, id, actorID uuid.UUID, opts ...Option) (*models.Cycle, error) {
	o := collect(opts)
	return s.apply(ctx, id, actorID, enums.HistoryActionPickupCancelled, o, func(_ *models.Cycle, _ time.Time) (Update, map[string]any, error) {
		return Update{PickupRequestedAt: types.Null[time.Time]()}, batchMeta(o), nil
	})
}

// Complete finishes the cycle and releases its asset in the same transaction.
// Completing an already completed cycle is a no-op reported as Skipped.
func (s *service) Complete(ctx context.Context, id, actorID uuid.UUID, opts ...Option) (*CompleteResult, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current != nil && current.Status == enums.CycleStatusCompleted {
		s.metrics.ObserveTransition(string(enums.HistoryActionCompleted), metrics.OutcomeSkipped)
		return &CompleteResult{Cycle: current, Skipped: true}, nil
	}

	o := collect(opts)
	cycle, err := s.apply(ctx, id, actorID, enums.HistoryActionCompleted, o, func(cur *models.Cycle, now time.Time) (Update, map[string]any, error) {
		meta := batchMeta(o)
		meta["assetId"] = cur.AssetID
		return Update{CompletedAt: types.Set(now)}, meta, nil
	})
	if err != nil {
		// A concurrent completer won the race; report the same no-op.
		if pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
			if latest, getErr := s.Get(ctx, id); getErr == nil && latest != nil && latest.Status == enums.CycleStatusCompleted {
				return &CompleteResult{Cycle: latest, Skipped: true}, nil
			}
		}
		return nil, err
	}
	return &CompleteResult{Cycle: cycle}, nil
}

// Extend shifts the trial window forward by days: with start S the deadline
// E = S + 7d moves to E' = E + days and the stored start becomes E' - 7d.
func (s *service) Extend(ctx context.Context, id uuid.UUID, days int, actorID uuid.UUID) (*models.Cycle, error) {
	if days == 0 {
		days = DefaultExtendDays
	}
	if days < 1 || days > MaxExtendDays {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("days must be between 1 and %d", MaxExtendDays))
	}
	return s.apply(ctx, id, actorID, enums.HistoryActionTrialExtended, options{}, func(cur *models.Cycle, _ time.Time) (Update, map[string]any, error) {
		if cur.TestStartAt == nil {
			return Update{}, nil, pkgerrors.New(pkgerrors.CodeValidation, "cycle has no trial start").WithDetails(map[string]any{"cycleId": cur.ID})
		}
		deadline := cur.TestStartAt.Add(TrialWindow)
		newDeadline := deadline.Add(time.Duration(days) * 24 * time.Hour)
		newStart := newDeadline.Add(-TrialWindow)
		count := cur.ExtensionsCount + 1

		upd := Update{
			TestStartAt:     types.Set(newStart),
			ExtensionsCount: types.Set(count),
		}
		meta := map[string]any{
			"days":            days,
			"deadline":        newDeadline,
			"extensionsCount": count,
		}
		return upd, meta, nil
	})
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Cycle, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cycle id is required")
	}
	cycle, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "load cycle")
	}
	return cycle, nil
}

func (s *service) FindMany(ctx context.Context, ids []uuid.UUID) ([]models.Cycle, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cycles, err := s.repo.List(ctx, Filter{IDs: ids})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "load cycles")
	}
	return cycles, nil
}

func (s *service) List(ctx context.Context, filter Filter) ([]models.Cycle, error) {
	for _, status := range filter.Statuses {
		if !status.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid cycle status %q", status))
		}
	}
	page := pagination.Params{Limit: filter.Limit, Offset: filter.Offset}.Normalize()
	filter.Limit = page.Limit
	filter.Offset = page.Offset

	cycles, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "list cycles")
	}
	return cycles, nil
}

type buildFunc func(cur *models.Cycle, now time.Time) (Update, map[string]any, error)

// apply runs one guarded transition: conditional update, history entry,
// change notification and (for completion) asset release commit together.
func (s *service) apply(ctx context.Context, id, actorID uuid.UUID, action enums.HistoryAction, o options, build buildFunc) (*models.Cycle, error) {
	if actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor id is required")
	}
	cur, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cycle not found").WithDetails(map[string]any{"cycleId": id})
	}

	next, ok := Next(cur.Status, action)
	if !ok {
		s.metrics.ObserveTransition(string(action), metrics.OutcomeRejected)
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("cannot apply %s to a %s cycle", action, cur.Status)).WithDetails(map[string]any{
			"cycleId":     id,
			"action":      action,
			"status":      cur.Status,
			"allowedFrom": Allowed(action),
		})
	}

	now := s.now()
	upd, meta, err := build(cur, now)
	if err != nil {
		s.metrics.ObserveTransition(string(action), metrics.OutcomeRejected)
		return nil, err
	}
	upd.Status = types.Set(next)

	expected := Expectation{Statuses: []enums.CycleStatus{cur.Status}}
	if action == enums.HistoryActionTrialExtended {
		observed := cur.ExtensionsCount
		expected.ExtensionsCount = &observed
	}

	old := cur.Status
	changed := *cur
	upd.applyTo(&changed)
	changed.UpdatedAt = now
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := s.repo.WithTx(tx).UpdateIf(ctx, id, expected, upd)
		if err != nil {
			return err
		}
		if rows == 0 {
			return errStale
		}
		if _, err := s.history.Record(ctx, tx, history.Entry{
			CycleID:     id,
			Action:      action,
			OldStatus:   &old,
			NewStatus:   next,
			Metadata:    meta,
			PerformedBy: actorID,
			At:          now,
		}); err != nil {
			return err
		}
		if action == enums.HistoryActionCompleted {
			if _, err := s.assets.Release(ctx, tx, cur.AssetID, actorID); err != nil {
				return err
			}
		}
		return s.emit(ctx, tx, &changed, string(action), &old, actorID, o)
	})
	if err != nil {
		return nil, s.transitionError(ctx, err, id, action, old)
	}

	s.metrics.ObserveTransition(string(action), metrics.OutcomeSuccess)
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"cycle_id":   id.String(),
		"action":     action,
		"old_status": old,
		"new_status": next,
	})
	s.logg.Info(logCtx, "cycle transitioned")

	// The transition is committed; a failed reload answers with the row as written.
	updated, err := s.repo.FindByID(ctx, id)
	if err != nil || updated == nil {
		if err != nil {
			s.logg.Error(logCtx, "reload cycle after transition", err)
		}
		return &changed, nil
	}
	return updated, nil
}

func (s *service) transitionError(ctx context.Context, err error, id uuid.UUID, action enums.HistoryAction, expected enums.CycleStatus) error {
	if !errors.Is(err, errStale) {
		s.metrics.ObserveTransition(string(action), outcomeFor(err))
		if typed := pkgerrors.As(err); typed != nil {
			return typed
		}
		return pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "apply cycle transition")
	}

	s.metrics.ObserveTransition(string(action), metrics.OutcomeConflict)
	latest, getErr := s.repo.FindByID(ctx, id)
	if getErr != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUpstream, getErr, "reload cycle after conflict")
	}
	if latest == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cycle not found").WithDetails(map[string]any{"cycleId": id})
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"cycle_id": id.String(),
		"action":   action,
		"expected": expected,
		"observed": latest.Status,
	})
	s.logg.Warn(logCtx, "cycle transition lost a concurrent update")
	return pkgerrors.New(pkgerrors.CodeConflict, "cycle changed concurrently").WithDetails(map[string]any{
		"cycleId":  id,
		"action":   action,
		"expected": expected,
		"observed": latest.Status,
	})
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, cycle *models.Cycle, action string, old *enums.CycleStatus, actorID uuid.UUID, o options) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventCycleChanged,
		AggregateType: enums.AggregateCycle,
		AggregateID:   cycle.ID,
		Actor:         &outbox.ActorRef{ActorID: actorID},
		Data: payloads.CycleChangedEvent{
			CycleID:   cycle.ID,
			AssetID:   cycle.AssetID,
			Action:    action,
			OldStatus: old,
			Status:    cycle.Status,
			BatchID:   o.batchID,
		},
	})
}

func collect(opts []Option) options {
	var o options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

func batchMeta(o options) map[string]any {
	meta := map[string]any{}
	if o.batchID != nil {
		meta["batchId"] = *o.batchID
	}
	return meta
}

func outcomeFor(err error) string {
	switch pkgerrors.CodeOf(err) {
	case pkgerrors.CodeValidation, pkgerrors.CodeNotFound:
		return metrics.OutcomeRejected
	case pkgerrors.CodeConflict:
		return metrics.OutcomeConflict
	default:
		return metrics.OutcomeError
	}
}
