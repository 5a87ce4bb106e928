package history

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/matcycle-backend/internal/repo"
	"github.com/angelmondragon/matcycle-backend/pkg/db/models"
	"github.com/angelmondragon/matcycle-backend/pkg/enums"
)

// Repository is the append-only persistence surface for cycle history.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, event *models.HistoryEvent) error
	ListByCycle(ctx context.Context, cycleID uuid.UUID) ([]models.HistoryEvent, error)
	ListByActor(ctx context.Context, filter ActorFilter) ([]models.HistoryEvent, error)
	ListForTurnaround(ctx context.Context, filter TurnaroundFilter) ([]models.HistoryEvent, error)
}

// ActorFilter selects events performed by one actor in an optional window.
type ActorFilter struct {
	ActorID uuid.UUID
	From    *time.Time
	To      *time.Time
	Limit   int
	Offset  int
}

// TurnaroundFilter scopes turnaround statistics to a company or an asset owner.
type TurnaroundFilter struct {
	CompanyID *uuid.UUID
	OwnerID   *uuid.UUID
}

type repository struct {
	repo.Base
}

// NewRepository builds a history repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{Base: r.Base.WithTx(tx)}
}

func (r *repository) Create(ctx context.Context, event *models.HistoryEvent) error {
	return r.DB(ctx).Create(event).Error
}

func (r *repository) ListByCycle(ctx context.Context, cycleID uuid.UUID) ([]models.HistoryEvent, error) {
	var events []models.HistoryEvent
	err := r.DB(ctx).
		Where("cycle_id = ?", cycleID).
		Order("seq ASC").
		Find(&events).Error
	return events, err
}

func (r *repository) ListByActor(ctx context.Context, filter ActorFilter) ([]models.HistoryEvent, error) {
	q := r.DB(ctx).Where("performed_by = ?", filter.ActorID)
	if filter.From != nil {
		q = q.Where("at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("at < ?", *filter.To)
	}
	var events []models.HistoryEvent
	err := q.Order("at ASC").Order("seq ASC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&events).Error
	return events, err
}

// ListForTurnaround returns the pickup-start and completion events of every
// completed cycle in scope, ordered per cycle by seq.
func (r *repository) ListForTurnaround(ctx context.Context, filter TurnaroundFilter) ([]models.HistoryEvent, error) {
	completed := r.DB(ctx).Model(&models.Cycle{}).
		Select("cycles.id").
		Where("cycles.status = ?", enums.CycleStatusCompleted)
	if filter.CompanyID != nil {
		completed = completed.Where("cycles.company_id = ?", *filter.CompanyID)
	}
	if filter.OwnerID != nil {
		completed = completed.
			Joins("JOIN assets ON assets.id = cycles.asset_id").
			Where("assets.owner_id = ?", *filter.OwnerID)
	}

	var events []models.HistoryEvent
	err := r.DB(ctx).
		Where("cycle_id IN (?)", completed).
		Where("action IN ?", []enums.HistoryAction{
			enums.HistoryActionPickupRequested,
			enums.HistoryActionContractSigned,
			enums.HistoryActionCompleted,
		}).
		Order("cycle_id ASC").
		Order("seq ASC").
		Find(&events).Error
	return events, err
}
