package cycles

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/matcycle-backend/internal/repo"
	"github.com/angelmondragon/matcycle-backend/pkg/db/models"
	"github.com/angelmondragon/matcycle-backend/pkg/enums"
)

// Repository persists cycles. Status changes only go through UpdateIf.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, cycle *models.Cycle) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Cycle, error)
	List(ctx context.Context, filter Filter) ([]models.Cycle, error)
	UpdateIf(ctx context.Context, id uuid.UUID, expected Expectation, update Update) (int64, error)
}

// Filter selects cycles for listing.
type Filter struct {
	IDs       []uuid.UUID
	AssetID   *uuid.UUID
	CompanyID *uuid.UUID
	Statuses  []enums.CycleStatus
	Limit     int
	Offset    int
}

// Expectation is the observed state a conditional update requires.
type Expectation struct {
	Statuses        []enums.CycleStatus
	ExtensionsCount *int
}

type repository struct {
	repo.Base
}

// NewRepository builds a cycles repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{Base: r.Base.WithTx(tx)}
}

func (r *repository) Create(ctx context.Context, cycle *models.Cycle) error {
	return r.DB(ctx).Create(cycle).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Cycle, error) {
	var cycle models.Cycle
	err := r.DB(ctx).Where("id = ?", id).First(&cycle).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cycle, nil
}

func (r *repository) List(ctx context.Context, filter Filter) ([]models.Cycle, error) {
	q := r.DB(ctx).Model(&models.Cycle{})
	if len(filter.IDs) > 0 {
		q = q.Where("id IN ?", filter.IDs)
	}
	if filter.AssetID != nil {
		q = q.Where("asset_id = ?", *filter.AssetID)
	}
	if filter.CompanyID != nil {
		q = q.Where("company_id = ?", *filter.CompanyID)
	}
	if len(filter.Statuses) > 0 {
		q = q.Where("status IN ?", filter.Statuses)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit).Offset(filter.Offset)
	}
	var cycles []models.Cycle
	err := q.Order("created_at ASC").Order("id ASC").Find(&cycles).Error
	return cycles, err
}

func (r *repository) UpdateIf(ctx context.Context, id uuid.UUID, expected Expectation, update Update) (int64, error) {
	guards := []repo.Guard{{Column: "status", Values: expected.Statuses}}
	if expected.ExtensionsCount != nil {
		guards = append(guards, repo.Guard{Column: "extensions_count", Values: []int{*expected.ExtensionsCount}})
	}
	return r.Base.UpdateIf(ctx, &models.Cycle{}, id, update.columns(), guards...)
}
