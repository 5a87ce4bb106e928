package assets

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/matcycle-backend/internal/repo"
	"github.com/angelmondragon/matcycle-backend/pkg/db/models"
	"github.com/angelmondragon/matcycle-backend/pkg/enums"
)

// Repository persists asset codes.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateMany(ctx context.Context, assets []models.Asset) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Asset, error)
	FindByCode(ctx context.Context, code string) (*models.Asset, error)
	CodesWithPrefix(ctx context.Context, prefix string) ([]string, error)
	List(ctx context.Context, filter Filter) ([]models.Asset, error)
	UpdateStatusIf(ctx context.Context, id uuid.UUID, from []enums.AssetStatus, to enums.AssetStatus) (int64, error)
}

// Filter selects assets for listing.
type Filter struct {
	OwnerID *uuid.UUID
	Prefix  string
	Status  *enums.AssetStatus
	Limit   int
	Offset  int
}

type repository struct {
	repo.Base
}

// NewRepository builds an assets repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{Base: r.Base.WithTx(tx)}
}

func (r *repository) CreateMany(ctx context.Context, assets []models.Asset) error {
	if len(assets) == 0 {
		return nil
	}
	return r.DB(ctx).Create(&assets).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Asset, error) {
	var asset models.Asset
	err := r.DB(ctx).Where("id = ?", id).First(&asset).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &asset, nil
}

func (r *repository) FindByCode(ctx context.Context, code string) (*models.Asset, error) {
	var asset models.Asset
	err := r.DB(ctx).Where("code = ?", code).First(&asset).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &asset, nil
}

func (r *repository) CodesWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	var codes []string
	err := r.DB(ctx).Model(&models.Asset{}).
		Where("prefix = ?", prefix).
		Pluck("code", &codes).Error
	return codes, err
}

func (r *repository) List(ctx context.Context, filter Filter) ([]models.Asset, error) {
	q := r.DB(ctx).Model(&models.Asset{})
	if filter.OwnerID != nil {
		q = q.Where("owner_id = ?", *filter.OwnerID)
	}
	if filter.Prefix != "" {
		q = q.Where("prefix = ?", filter.Prefix)
	}
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	var assets []models.Asset
	err := q.Order("code ASC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&assets).Error
	return assets, err
}

func (r *repository) UpdateStatusIf(ctx context.Context, id uuid.UUID, from []enums.AssetStatus, to enums.AssetStatus) (int64, error) {
	return r.UpdateIf(ctx, &models.Asset{}, id,
		map[string]any{"status": to},
		repo.Guard{Column: "status", Values: from},
	)
}
