package pickups

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/matcycle-backend/internal/cycles"
	"github.com/angelmondragon/matcycle-backend/pkg/config"
	dbpkg "github.com/angelmondragon/matcycle-backend/pkg/db"
	"github.com/angelmondragon/matcycle-backend/pkg/db/models"
	"github.com/angelmondragon/matcycle-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/matcycle-backend/pkg/errors"
	"github.com/angelmondragon/matcycle-backend/pkg/logger"
	"github.com/angelmondragon/matcycle-backend/pkg/metrics"
	"github.com/angelmondragon/matcycle-backend/pkg/outbox"
	"github.com/angelmondragon/matcycle-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/matcycle-backend/pkg/pagination"
)

const (
	opCreate   = "create"
	opStart    = "start"
	opToggle   = "toggle_item"
	opComplete = "complete"
	opCancel   = "cancel"

	defaultMaxBatchSize  = 50
	defaultCancelRetries = 3
)

var (
	errStale = errors.New("batch changed concurrently")
	errHeld  = errors.New("cycle held by an open batch")
)

// Orchestrator groups cycles into pickup runs. Its workflows are step-wise:
// each cycle transition commits on its own and results report per-cycle
// outcomes so callers can resume the unfinished remainder.
type Orchestrator interface {
	CreateBatch(ctx context.Context, input CreateBatchInput, actorID uuid.UUID) (*BatchResult, error)
	StartBatch(ctx context.Context, batchID, actorID uuid.UUID) (*models.PickupBatch, error)
	ToggleItemPicked(ctx context.Context, itemID uuid.UUID, picked bool, actorID uuid.UUID) (*models.PickupItem, error)
	CompleteBatch(ctx context.Context, batchID, actorID uuid.UUID) (*BatchResult, error)
	CancelBatch(ctx context.Context, batchID, actorID uuid.UUID) (*BatchResult, error)
	GetBatch(ctx context.Context, batchID uuid.UUID) (*BatchDetail, error)
	ListBatches(ctx context.Context, filter BatchFilter) ([]models.PickupBatch, error)
}

// CycleManager is the part of the cycle state machine batches drive.
type CycleManager interface {
	RequestPickup(ctx context.Context, id, actorID uuid.UUID, opts ...cycles.Option) (*models.Cycle, error)
	CancelPickup(ctx context.Context, id, actorID uuid.UUID, opts ...cycles.Option) (*models.Cycle, error)
	Complete(ctx context.Context, id, actorID uuid.UUID, opts ...cycles.Option) (*cycles.CompleteResult, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Cycle, error)
	FindMany(ctx context.Context, ids []uuid.UUID) ([]models.Cycle, error)
}

// CreateBatchInput describes a new pickup run.
type CreateBatchInput struct {
	CycleIDs       []uuid.UUID
	ScheduledDate  *time.Time
	AssignedDriver *string
	Notes          *string
}

// ItemFailure is one cycle a batch workflow could not move.
type ItemFailure struct {
	CycleID uuid.UUID      `json:"cycleId"`
	Code    pkgerrors.Code `json:"code"`
	Message string         `json:"message"`
}

// BatchResult reports the per-cycle outcome of a batch workflow.
type BatchResult struct {
	Batch        *models.PickupBatch `json:"batch,omitempty"`
	Transitioned []uuid.UUID         `json:"transitioned"`
	Skipped      []uuid.UUID         `json:"skipped"`
	Failed       []ItemFailure       `json:"failed"`
	Deleted      bool                `json:"deleted"`
}

// BatchDetail is a batch with its items.
type BatchDetail struct {
	Batch models.PickupBatch  `json:"batch"`
	Items []models.PickupItem `json:"items"`
}

// ServiceParams wires the orchestrator dependencies.
type ServiceParams struct {
	Repo    Repository
	Tx      dbpkg.TxRunner
	Cycles  CycleManager
	Outbox  outbox.Emitter
	Logger  *logger.Logger
	Metrics *metrics.DomainMetrics
	Config  config.PickupConfig
	Clock   func() time.Time
}

type service struct {
	repo          Repository
	tx            dbpkg.TxRunner
	cycles        CycleManager
	outbox        outbox.Emitter
	logg          *logger.Logger
	metrics       *metrics.DomainMetrics
	maxBatchSize  int
	cancelRetries int
	now           func() time.Time
}

// NewService builds the pickup orchestrator.
func NewService(params ServiceParams) (Orchestrator, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("pickups repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Cycles == nil {
		return nil, fmt.Errorf("cycle manager required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	maxBatchSize := params.Config.MaxBatchSize
	if maxBatchSize <= 0 {
		maxBatchSize = defaultMaxBatchSize
	}
	retries := params.Config.CancelRetries
	if retries < 0 {
		retries = defaultCancelRetries
	}
	clock := params.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:          params.Repo,
		tx:            params.Tx,
		cycles:        params.Cycles,
		outbox:        params.Outbox,
		logg:          params.Logger,
		metrics:       params.Metrics,
		maxBatchSize:  maxBatchSize,
		cancelRetries: retries,
		now:           clock,
	}, nil
}

// CreateBatch validates every cycle up front, inserts the batch and its items
// and then requests pickup for each cycle not already waiting for a driver.
// Cycles that fail to transition are reported, never rolled back.
func (s *service) CreateBatch(ctx context.Context, input CreateBatchInput, actorID uuid.UUID) (result *BatchResult, err error) {
	begin := time.Now()
	defer func() { s.observe(opCreate, begin, err) }()

	if actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor id is required")
	}
	ids, err := s.validateIDs(input.CycleIDs)
	if err != nil {
		return nil, err
	}

	found, err := s.cycles.FindMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]models.Cycle, len(found))
	for _, c := range found {
		byID[c.ID] = c
	}
	var missing []uuid.UUID
	invalid := map[string]enums.CycleStatus{}
	for _, id := range ids {
		c, ok := byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		if c.Status != enums.CycleStatusDirty && c.Status != enums.CycleStatusWaitingDriver {
			invalid[id.String()] = c.Status
		}
	}
	if len(missing) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cycles not found").WithDetails(map[string]any{"missing": missing})
	}
	if len(invalid) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cycles must be dirty or waiting for a driver").WithDetails(map[string]any{"invalid": invalid})
	}

	if err := s.checkUnheld(ctx, ids); err != nil {
		return nil, err
	}

	batch := &models.PickupBatch{
		Status:         enums.PickupBatchStatusPending,
		ScheduledDate:  input.ScheduledDate,
		AssignedDriver: input.AssignedDriver,
		Notes:          input.Notes,
		CreatedBy:      &actorID,
	}
	if err := s.repo.CreateBatch(ctx, batch); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "create pickup batch")
	}

	items := make([]models.PickupItem, 0, len(ids))
	for _, id := range ids {
		items = append(items, models.PickupItem{BatchID: batch.ID, CycleID: id, Open: true})
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).CreateItems(ctx, items); err != nil {
			if dbpkg.IsUniqueViolation(err, "") {
				return errHeld
			}
			return err
		}
		return s.emit(ctx, tx, batch.ID, opCreate, batch.Status, false, ids, actorID)
	})
	if errors.Is(err, errHeld) {
		// Another batch claimed a cycle after the membership check.
		if delErr := s.repo.DeleteBatch(ctx, batch.ID); delErr != nil {
			s.logg.Error(s.logg.WithField(ctx, "batch_id", batch.ID.String()), "failed to remove orphaned pickup batch", delErr)
		}
		if heldErr := s.checkUnheld(ctx, ids); pkgerrors.IsCode(heldErr, pkgerrors.CodeConflict) {
			return nil, heldErr
		}
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "cycles already belong to an open batch")
	}
	if err != nil {
		return nil, s.removeOrphan(ctx, batch.ID, err)
	}

	result = &BatchResult{Transitioned: []uuid.UUID{}, Skipped: []uuid.UUID{}, Failed: []ItemFailure{}}
	var errs error
	for _, id := range ids {
		if byID[id].Status == enums.CycleStatusWaitingDriver {
			result.Skipped = append(result.Skipped, id)
			continue
		}
		if _, err := s.cycles.RequestPickup(ctx, id, actorID, cycles.WithBatch(batch.ID)); err != nil {
			result.Failed = append(result.Failed, failureFor(id, err))
			errs = multierr.Append(errs, err)
			continue
		}
		result.Transitioned = append(result.Transitioned, id)
	}

	result.Batch = batch
	if latest, err := s.repo.FindBatch(ctx, batch.ID); err == nil && latest != nil {
		result.Batch = latest
	}
	if errs != nil {
		return result, s.partial(ctx, batch.ID, opCreate, "some cycles could not be queued for pickup", errs, result)
	}
	return result, nil
}

// checkUnheld rejects cycles already linked to an unfinished batch. The
// open-item index repeats the check when the items are written.
func (s *service) checkUnheld(ctx context.Context, ids []uuid.UUID) error {
	memberships, err := s.repo.OpenMemberships(ctx, ids)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "check open batches")
	}
	if len(memberships) == 0 {
		return nil
	}
	held := make(map[string]uuid.UUID, len(memberships))
	for cycleID, batchID := range memberships {
		held[cycleID.String()] = batchID
	}
	return pkgerrors.New(pkgerrors.CodeConflict, "cycles already belong to an open batch").WithDetails(map[string]any{"held": held})
}

// removeOrphan deletes a batch whose items could not be written.
func (s *service) removeOrphan(ctx context.Context, batchID uuid.UUID, cause error) error {
	removed := true
	if err := s.repo.DeleteBatch(ctx, batchID); err != nil {
		removed = false
		logCtx := s.logg.WithField(ctx, "batch_id", batchID.String())
		s.logg.Error(logCtx, "failed to remove orphaned pickup batch", err)
	}
	return pkgerrors.Wrap(pkgerrors.CodeUpstream, cause, "create pickup items").WithDetails(map[string]any{
		"batchId":       batchID,
		"orphanRemoved": removed,
	})
}

func (s *service) validateIDs(raw []uuid.UUID) ([]uuid.UUID, error) {
	if len(raw) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one cycle id is required")
	}
	seen := make(map[uuid.UUID]struct{}, len(raw))
	var duplicates []uuid.UUID
	ids := make([]uuid.UUID, 0, len(raw))
	for _, id := range raw {
		if id == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "cycle ids must not be empty")
		}
		if _, ok := seen[id]; ok {
			duplicates = append(duplicates, id)
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(duplicates) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "duplicate cycle ids").WithDetails(map[string]any{"duplicates": duplicates})
	}
	if len(ids) > s.maxBatchSize {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("a batch holds at most %d cycles", s.maxBatchSize)).WithDetails(map[string]any{
			"requested": len(ids),
			"max":       s.maxBatchSize,
		})
	}
	return ids, nil
}

// StartBatch marks a pending batch as in progress. Items and cycles are untouched.
func (s *service) StartBatch(ctx context.Context, batchID, actorID uuid.UUID) (out *models.PickupBatch, err error) {
	begin := time.Now()
	defer func() { s.observe(opStart, begin, err) }()

	if actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor id is required")
	}
	batch, err := s.loadBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if err := startable(batch); err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := s.repo.WithTx(tx).UpdateBatchStatusIf(ctx, batchID, []enums.PickupBatchStatus{enums.PickupBatchStatusPending}, enums.PickupBatchStatusInProgress, nil)
		if err != nil {
			return err
		}
		if rows == 0 {
			return errStale
		}
		return s.emit(ctx, tx, batchID, opStart, enums.PickupBatchStatusInProgress, false, nil, actorID)
	})
	if errors.Is(err, errStale) {
		latest, loadErr := s.loadBatch(ctx, batchID)
		if loadErr != nil {
			return nil, loadErr
		}
		if err := startable(latest); err != nil {
			return nil, err
		}
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "pickup batch changed concurrently").WithDetails(map[string]any{"batchId": batchID})
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "start pickup batch")
	}
	return s.loadBatch(ctx, batchID)
}

func startable(batch *models.PickupBatch) error {
	switch batch.Status {
	case enums.PickupBatchStatusPending:
		return nil
	case enums.PickupBatchStatusInProgress:
		return pkgerrors.New(pkgerrors.CodeConflict, "pickup batch already started").WithDetails(map[string]any{"batchId": batch.ID, "status": batch.Status})
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, "pickup batch is completed").WithDetails(map[string]any{"batchId": batch.ID, "status": batch.Status})
	}
}

// ToggleItemPicked flips the informational picked flag on one item.
func (s *service) ToggleItemPicked(ctx context.Context, itemID uuid.UUID, picked bool, actorID uuid.UUID) (out *models.PickupItem, err error) {
	begin := time.Now()
	defer func() { s.observe(opToggle, begin, err) }()

	if actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor id is required")
	}
	item, err := s.repo.FindItem(ctx, itemID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "load pickup item")
	}
	if item == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "pickup item not found").WithDetails(map[string]any{"itemId": itemID})
	}
	batch, err := s.loadBatch(ctx, item.BatchID)
	if err != nil {
		return nil, err
	}
	if batch.Status == enums.PickupBatchStatusCompleted {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "items of a completed batch cannot change").WithDetails(map[string]any{"batchId": batch.ID})
	}

	var at *time.Time
	if picked {
		now := s.now()
		at = &now
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := s.repo.WithTx(tx).SetItemPicked(ctx, itemID, picked, at)
		if err != nil {
			return err
		}
		if rows == 0 {
			return errStale
		}
		return s.emit(ctx, tx, batch.ID, opToggle, batch.Status, false, []uuid.UUID{item.CycleID}, actorID)
	})
	if errors.Is(err, errStale) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "pickup item not found").WithDetails(map[string]any{"itemId": itemID})
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "toggle pickup item")
	}

	updated, err := s.repo.FindItem(ctx, itemID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "reload pickup item")
	}
	return updated, nil
}

// CompleteBatch completes every cycle of the batch and closes it. Repeating
// the call is safe: completed cycles are skipped and a completed batch is
// returned unchanged.
func (s *service) CompleteBatch(ctx context.Context, batchID, actorID uuid.UUID) (result *BatchResult, err error) {
	begin := time.Now()
	defer func() { s.observe(opComplete, begin, err) }()

	if actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor id is required")
	}
	batch, err := s.loadBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListItems(ctx, batchID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "list pickup items")
	}

	result = &BatchResult{Batch: batch, Transitioned: []uuid.UUID{}, Skipped: []uuid.UUID{}, Failed: []ItemFailure{}}
	if batch.Status == enums.PickupBatchStatusCompleted {
		for _, item := range items {
			result.Skipped = append(result.Skipped, item.CycleID)
		}
		return result, nil
	}

	var errs error
	done := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		res, err := s.cycles.Complete(ctx, item.CycleID, actorID, cycles.WithBatch(batchID))
		if err != nil {
			result.Failed = append(result.Failed, failureFor(item.CycleID, err))
			errs = multierr.Append(errs, err)
			continue
		}
		if res.Skipped {
			result.Skipped = append(result.Skipped, item.CycleID)
		} else {
			result.Transitioned = append(result.Transitioned, item.CycleID)
		}
		done = append(done, item.CycleID)
	}

	now := s.now()
	status := batch.Status
	if errs == nil {
		status = enums.PickupBatchStatusCompleted
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := txRepo.MarkItemsPicked(ctx, batchID, done, now); err != nil {
			return err
		}
		if status == enums.PickupBatchStatusCompleted {
			rows, err := txRepo.UpdateBatchStatusIf(ctx, batchID, []enums.PickupBatchStatus{enums.PickupBatchStatusPending, enums.PickupBatchStatusInProgress}, enums.PickupBatchStatusCompleted, &now)
			if err != nil {
				return err
			}
			if rows == 0 {
				return errStale
			}
			if err := txRepo.CloseItems(ctx, batchID); err != nil {
				return err
			}
		}
		return s.emit(ctx, tx, batchID, opComplete, status, false, done, actorID)
	})
	if err != nil && !errors.Is(err, errStale) {
		return result, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "close pickup batch").WithDetails(result)
	}

	latest, loadErr := s.loadBatch(ctx, batchID)
	if loadErr != nil {
		return result, loadErr
	}
	result.Batch = latest
	// A concurrent completer closed it first.
	if errors.Is(err, errStale) && latest.Status != enums.PickupBatchStatusCompleted {
		return result, pkgerrors.New(pkgerrors.CodeConflict, "pickup batch changed concurrently").WithDetails(result)
	}
	if errs != nil {
		return result, s.partial(ctx, batchID, opComplete, "some cycles could not be completed", errs, result)
	}
	return result, nil
}

// CancelBatch returns every cycle of the batch to dirty and only then removes
// the items and the batch. The cycle list is read once; if any cycle cannot be
// reverted nothing is deleted so no reference is lost.
func (s *service) CancelBatch(ctx context.Context, batchID, actorID uuid.UUID) (result *BatchResult, err error) {
	begin := time.Now()
	defer func() { s.observe(opCancel, begin, err) }()

	if actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor id is required")
	}
	batch, err := s.loadBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if batch.Status == enums.PickupBatchStatusCompleted {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a completed batch cannot be cancelled").WithDetails(map[string]any{"batchId": batchID})
	}
	items, err := s.repo.ListItems(ctx, batchID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "list pickup items")
	}
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.CycleID)
	}
	snapshot, err := s.cycles.FindMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	statusOf := make(map[uuid.UUID]enums.CycleStatus, len(snapshot))
	for _, c := range snapshot {
		statusOf[c.ID] = c.Status
	}

	result = &BatchResult{Batch: batch, Transitioned: []uuid.UUID{}, Skipped: []uuid.UUID{}, Failed: []ItemFailure{}}
	var errs error
	for _, id := range ids {
		status, ok := statusOf[id]
		if !ok {
			failure := pkgerrors.New(pkgerrors.CodeNotFound, "cycle not found")
			result.Failed = append(result.Failed, failureFor(id, failure))
			errs = multierr.Append(errs, failure)
			continue
		}
		if status == enums.CycleStatusDirty {
			result.Skipped = append(result.Skipped, id)
			continue
		}
		reverted, already, err := s.revert(ctx, id, batchID, actorID)
		switch {
		case reverted && already:
			result.Skipped = append(result.Skipped, id)
		case reverted:
			result.Transitioned = append(result.Transitioned, id)
		default:
			result.Failed = append(result.Failed, failureFor(id, err))
			errs = multierr.Append(errs, err)
		}
	}

	if errs != nil {
		return result, s.partial(ctx, batchID, opCancel, "some cycles could not be reverted; batch kept", errs, result)
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := txRepo.DeleteItems(ctx, batchID); err != nil {
			return err
		}
		if err := txRepo.DeleteBatch(ctx, batchID); err != nil {
			return err
		}
		return s.emit(ctx, tx, batchID, opCancel, "", true, ids, actorID)
	})
	if err != nil {
		return result, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "delete cancelled pickup batch").WithDetails(result)
	}
	result.Batch = nil
	result.Deleted = true
	return result, nil
}

// revert undoes the pickup request of one cycle, retrying retryable failures.
// already reports a cycle found dirty after a failed attempt.
func (s *service) revert(ctx context.Context, cycleID, batchID, actorID uuid.UUID) (reverted, already bool, err error) {
	for attempt := 0; attempt <= s.cancelRetries; attempt++ {
		_, err = s.cycles.CancelPickup(ctx, cycleID, actorID, cycles.WithBatch(batchID))
		if err == nil {
			return true, false, nil
		}
		if latest, getErr := s.cycles.Get(ctx, cycleID); getErr == nil && latest != nil && latest.Status == enums.CycleStatusDirty {
			return true, true, nil
		}
		if !pkgerrors.IsRetryable(err) {
			return false, false, err
		}
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"batch_id": batchID.String(),
			"cycle_id": cycleID.String(),
			"attempt":  attempt + 1,
		})
		s.logg.Warn(logCtx, "retrying pickup cancellation")
	}
	return false, false, err
}

func (s *service) GetBatch(ctx context.Context, batchID uuid.UUID) (*BatchDetail, error) {
	if batchID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "batch id is required")
	}
	batch, err := s.repo.FindBatch(ctx, batchID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "load pickup batch")
	}
	if batch == nil {
		return nil, nil
	}
	items, err := s.repo.ListItems(ctx, batchID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "list pickup items")
	}
	return &BatchDetail{Batch: *batch, Items: items}, nil
}

func (s *service) ListBatches(ctx context.Context, filter BatchFilter) ([]models.PickupBatch, error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid batch status %q", *filter.Status))
	}
	page := pagination.Params{Limit: filter.Limit, Offset: filter.Offset}.Normalize()
	filter.Limit = page.Limit
	filter.Offset = page.Offset

	batches, err := s.repo.ListBatches(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "list pickup batches")
	}
	return batches, nil
}

func (s *service) loadBatch(ctx context.Context, batchID uuid.UUID) (*models.PickupBatch, error) {
	if batchID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "batch id is required")
	}
	batch, err := s.repo.FindBatch(ctx, batchID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "load pickup batch")
	}
	if batch == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "pickup batch not found").WithDetails(map[string]any{"batchId": batchID})
	}
	return batch, nil
}

func (s *service) partial(ctx context.Context, batchID uuid.UUID, op, message string, cause error, result *BatchResult) error {
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"batch_id":     batchID.String(),
		"op":           op,
		"failed":       len(result.Failed),
		"transitioned": len(result.Transitioned),
		"skipped":      len(result.Skipped),
	})
	s.logg.Warn(logCtx, message)
	return pkgerrors.Wrap(pkgerrors.CodePartialFailure, cause, message).WithDetails(result)
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, batchID uuid.UUID, op string, status enums.PickupBatchStatus, deleted bool, cycleIDs []uuid.UUID, actorID uuid.UUID) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventBatchChanged,
		AggregateType: enums.AggregatePickupBatch,
		AggregateID:   batchID,
		Actor:         &outbox.ActorRef{ActorID: actorID},
		Data: payloads.BatchChangedEvent{
			BatchID:  batchID,
			Op:       op,
			Status:   status,
			Deleted:  deleted,
			CycleIDs: cycleIDs,
		},
	})
}

func (s *service) observe(op string, begin time.Time, err error) {
	outcome := metrics.OutcomeSuccess
	switch {
	case err == nil:
	case pkgerrors.IsCode(err, pkgerrors.CodePartialFailure):
		outcome = metrics.OutcomePartial
	case pkgerrors.IsCode(err, pkgerrors.CodeValidation), pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
		outcome = metrics.OutcomeRejected
	case pkgerrors.IsCode(err, pkgerrors.CodeConflict):
		outcome = metrics.OutcomeConflict
	default:
		outcome = metrics.OutcomeError
	}
	s.metrics.ObserveBatchOp(op, outcome, time.Since(begin))
}

func failureFor(cycleID uuid.UUID, err error) ItemFailure {
	failure := ItemFailure{CycleID: cycleID, Code: pkgerrors.CodeOf(err), Message: err.Error()}
	if typed := pkgerrors.As(err); typed != nil {
		failure.Message = typed.Message()
	}
	return failure
}
