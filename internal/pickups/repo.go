package pickups

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/matcycle-backend/internal/repo"
	"github.com/angelmondragon/matcycle-backend/pkg/db/models"
	"github.com/angelmondragon/matcycle-backend/pkg/enums"
)

// Repository persists pickup batches and their items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateBatch(ctx context.Context, batch *models.PickupBatch) error
	DeleteBatch(ctx context.Context, id uuid.UUID) error
	FindBatch(ctx context.Context, id uuid.UUID) (*models.PickupBatch, error)
	ListBatches(ctx context.Context, filter BatchFilter) ([]models.PickupBatch, error)
	UpdateBatchStatusIf(ctx context.Context, id uuid.UUID, from []enums.PickupBatchStatus, to enums.PickupBatchStatus, completedAt *time.Time) (int64, error)

	CreateItems(ctx context.Context, items []models.PickupItem) error
	DeleteItems(ctx context.Context, batchID uuid.UUID) error
	FindItem(ctx context.Context, id uuid.UUID) (*models.PickupItem, error)
	ListItems(ctx context.Context, batchID uuid.UUID) ([]models.PickupItem, error)
	SetItemPicked(ctx context.Context, id uuid.UUID, picked bool, at *time.Time) (int64, error)
	MarkItemsPicked(ctx context.Context, batchID uuid.UUID, cycleIDs []uuid.UUID, at time.Time) error
	CloseItems(ctx context.Context, batchID uuid.UUID) error
	OpenMemberships(ctx context.Context, cycleIDs []uuid.UUID) (map[uuid.UUID]uuid.UUID, error)
}

// BatchFilter selects batches for listing.
type BatchFilter struct {
	Status         *enums.PickupBatchStatus
	AssignedDriver *string
	ScheduledFrom  *time.Time
	ScheduledTo    *time.Time
	Limit          int
	Offset         int
}

type repository struct {
	repo.Base
}

// NewRepository builds a pickups repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{Base: r.Base.WithTx(tx)}
}

func (r *repository) CreateBatch(ctx context.Context, batch *models.PickupBatch) error {
	return r.DB(ctx).Create(batch).Error
}

func (r *repository) DeleteBatch(ctx context.Context, id uuid.UUID) error {
	return r.DB(ctx).Where("id = ?", id).Delete(&models.PickupBatch{}).Error
}

func (r *repository) FindBatch(ctx context.Context, id uuid.UUID) (*models.PickupBatch, error) {
	var batch models.PickupBatch
	err := r.DB(ctx).Where("id = ?", id).First(&batch).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

func (r *repository) ListBatches(ctx context.Context, filter BatchFilter) ([]models.PickupBatch, error) {
	q := r.DB(ctx).Model(&models.PickupBatch{})
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	if filter.AssignedDriver != nil {
		q = q.Where("assigned_driver = ?", *filter.AssignedDriver)
	}
	if filter.ScheduledFrom != nil {
		q = q.Where("scheduled_date >= ?", *filter.ScheduledFrom)
	}
	if filter.ScheduledTo != nil {
		q = q.Where("scheduled_date < ?", *filter.ScheduledTo)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit).Offset(filter.Offset)
	}
	var batches []models.PickupBatch
	err := q.Order("created_at DESC").Order("id ASC").Find(&batches).Error
	return batches, err
}

func (r *repository) UpdateBatchStatusIf(ctx context.Context, id uuid.UUID, from []enums.PickupBatchStatus, to enums.PickupBatchStatus, completedAt *time.Time) (int64, error) {
	updates := map[string]any{"status": to}
	if completedAt != nil {
		updates["completed_at"] = *completedAt
	}
	return r.UpdateIf(ctx, &models.PickupBatch{}, id, updates, repo.Guard{Column: "status", Values: from})
}

func (r *repository) CreateItems(ctx context.Context, items []models.PickupItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.DB(ctx).Create(&items).Error
}

func (r *repository) DeleteItems(ctx context.Context, batchID uuid.UUID) error {
	return r.DB(ctx).Where("batch_id = ?", batchID).Delete(&models.PickupItem{}).Error
}

func (r *repository) FindItem(ctx context.Context, id uuid.UUID) (*models.PickupItem, error) {
	var item models.PickupItem
	err := r.DB(ctx).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) ListItems(ctx context.Context, batchID uuid.UUID) ([]models.PickupItem, error) {
	var items []models.PickupItem
	err := r.DB(ctx).
		Where("batch_id = ?", batchID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&items).Error
	return items, err
}

func (r *repository) SetItemPicked(ctx context.Context, id uuid.UUID, picked bool, at *time.Time) (int64, error) {
	res := r.DB(ctx).Model(&models.PickupItem{}).
		Where("id = ?", id).
		Updates(map[string]any{"picked_up": picked, "picked_up_at": at})
	return res.RowsAffected, res.Error
}

// MarkItemsPicked flags the listed cycles of a batch as collected. Items
// already picked keep their original timestamp.
func (r *repository) MarkItemsPicked(ctx context.Context, batchID uuid.UUID, cycleIDs []uuid.UUID, at time.Time) error {
	if len(cycleIDs) == 0 {
		return nil
	}
	return r.DB(ctx).Model(&models.PickupItem{}).
		Where("batch_id = ? AND cycle_id IN ? AND picked_up = ?", batchID, cycleIDs, false).
		Updates(map[string]any{"picked_up": true, "picked_up_at": at}).Error
}

// CloseItems releases the cycles of a finished batch so later batches may hold them.
func (r *repository) CloseItems(ctx context.Context, batchID uuid.UUID) error {
	return r.DB(ctx).Model(&models.PickupItem{}).
		Where("batch_id = ? AND is_open = ?", batchID, true).
		Update("is_open", false).Error
}

// OpenMemberships maps each listed cycle to the unfinished batch holding it.
// Cycles in no open batch are absent from the result.
func (r *repository) OpenMemberships(ctx context.Context, cycleIDs []uuid.UUID) (map[uuid.UUID]uuid.UUID, error) {
	out := map[uuid.UUID]uuid.UUID{}
	if len(cycleIDs) == 0 {
		return out, nil
	}
	var rows []models.PickupItem
	err := r.DB(ctx).
		Model(&models.PickupItem{}).
		Select("cycle_id, batch_id").
		Where("cycle_id IN ? AND is_open = ?", cycleIDs, true).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.CycleID] = row.BatchID
	}
	return out, nil
}
