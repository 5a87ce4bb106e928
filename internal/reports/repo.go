package reports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/matcycle-backend/internal/repo"
	"github.com/angelmondragon/matcycle-backend/pkg/enums"
)

// Repository runs read-only aggregate queries over cycles.
type Repository interface {
	CountByStatus(ctx context.Context, filter CountFilter) ([]StatusCount, error)
	CountSigned(ctx context.Context, filter CountFilter) (int64, error)
	OnTestStartedBefore(ctx context.Context, cutoff time.Time, ownerID *uuid.UUID, limit, offset int) ([]OverdueRow, error)
}

// StatusCount is one group of the status breakdown.
type StatusCount struct {
	Status enums.CycleStatus
	Count  int64
}

// OverdueRow is a cycle still on trial joined with its asset code.
type OverdueRow struct {
	CycleID     uuid.UUID  `gorm:"column:cycle_id"`
	AssetID     uuid.UUID  `gorm:"column:asset_id"`
	AssetCode   string     `gorm:"column:asset_code"`
	OwnerID     uuid.UUID  `gorm:"column:owner_id"`
	CompanyID   *uuid.UUID `gorm:"column:company_id"`
	TestStartAt time.Time  `gorm:"column:test_start_at"`
}

type repository struct {
	repo.Base
}

// NewRepository builds a reports repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) scoped(ctx context.Context, filter CountFilter) *gorm.DB {
	q := r.DB(ctx).Table("cycles")
	if filter.OwnerID != nil {
		q = q.Joins("JOIN assets ON assets.id = cycles.asset_id").Where("assets.owner_id = ?", *filter.OwnerID)
	}
	if filter.CompanyID != nil {
		q = q.Where("cycles.company_id = ?", *filter.CompanyID)
	}
	return q
}

func (r *repository) CountByStatus(ctx context.Context, filter CountFilter) ([]StatusCount, error) {
	var rows []StatusCount
	err := r.scoped(ctx, filter).
		Select("cycles.status AS status, COUNT(*) AS count").
		Group("cycles.status").
		Scan(&rows).Error
	return rows, err
}

func (r *repository) CountSigned(ctx context.Context, filter CountFilter) (int64, error) {
	var count int64
	err := r.scoped(ctx, filter).Where("cycles.contract_signed = ?", true).Count(&count).Error
	return count, err
}

func (r *repository) OnTestStartedBefore(ctx context.Context, cutoff time.Time, ownerID *uuid.UUID, limit, offset int) ([]OverdueRow, error) {
	q := r.DB(ctx).Table("cycles").
		Select("cycles.id AS cycle_id, cycles.asset_id, assets.code AS asset_code, assets.owner_id, cycles.company_id, cycles.test_start_at").
		Joins("JOIN assets ON assets.id = cycles.asset_id").
		Where("cycles.status = ?", enums.CycleStatusOnTest).
		Where("cycles.test_start_at IS NOT NULL AND cycles.test_start_at < ?", cutoff)
	if ownerID != nil {
		q = q.Where("assets.owner_id = ?", *ownerID)
	}
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	var rows []OverdueRow
	err := q.Order("cycles.test_start_at ASC").Order("cycles.id ASC").Scan(&rows).Error
	return rows, err
}
