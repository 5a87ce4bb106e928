package assets

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

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
	defaultMaxAllocation   = 500
	defaultAttemptsPerCode = 20
)

// Ledger owns the pool of asset codes.
type Ledger interface {
	Allocate(ctx context.Context, input AllocateInput) ([]models.Asset, error)
	Assign(ctx context.Context, tx *gorm.DB, assetID, actorID uuid.UUID) (*models.Asset, error)
	Release(ctx context.Context, tx *gorm.DB, assetID, actorID uuid.UUID) (*models.Asset, error)
	Reserve(ctx context.Context, assetID, actorID uuid.UUID) (*models.Asset, error)
	MarkPending(ctx context.Context, assetID, actorID uuid.UUID) (*models.Asset, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Asset, error)
	GetByCode(ctx context.Context, code string) (*models.Asset, error)
	List(ctx context.Context, filter Filter) ([]models.Asset, error)
}

// AllocateInput requests count new codes under prefix for one owner.
// Pending codes are issued ahead of the physical items.
type AllocateInput struct {
	OwnerID uuid.UUID
	Prefix  string
	Count   int
	Pending bool
	ActorID uuid.UUID
}

// ServiceParams wires the ledger dependencies.
type ServiceParams struct {
	Repo    Repository
	Tx      dbpkg.TxRunner
	Outbox  outbox.Emitter
	Logger  *logger.Logger
	Metrics *metrics.DomainMetrics
	Config  config.LedgerConfig
	Suffix  SuffixSource
}

type service struct {
	repo            Repository
	tx              dbpkg.TxRunner
	outbox          outbox.Emitter
	logg            *logger.Logger
	metrics         *metrics.DomainMetrics
	draw            SuffixSource
	maxAllocation   int
	attemptsPerCode int
}

// NewService builds the asset ledger.
func NewService(params ServiceParams) (Ledger, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("assets repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	draw := params.Suffix
	if draw == nil {
		draw = CryptoSuffix
	}
	maxAllocation := params.Config.MaxAllocation
	if maxAllocation <= 0 {
		maxAllocation = defaultMaxAllocation
	}
	attempts := params.Config.AttemptsPerCode
	if attempts <= 0 {
		attempts = defaultAttemptsPerCode
	}
	return &service{
		repo:            params.Repo,
		tx:              params.Tx,
		outbox:          params.Outbox,
		logg:            params.Logger,
		metrics:         params.Metrics,
		draw:            draw,
		maxAllocation:   maxAllocation,
		attemptsPerCode: attempts,
	}, nil
}

// Allocate issues exactly input.Count new codes or none at all.
func (s *service) Allocate(ctx context.Context, input AllocateInput) ([]models.Asset, error) {
	if input.OwnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor id is required")
	}
	prefix, err := NormalizePrefix(input.Prefix)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid prefix")
	}
	if input.Count < 1 || input.Count > s.maxAllocation {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("count must be between 1 and %d", s.maxAllocation))
	}

	existing, err := s.repo.CodesWithPrefix(ctx, prefix)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "load existing codes")
	}
	taken := make(map[string]struct{}, len(existing))
	for _, code := range existing {
		taken[code] = struct{}{}
	}

	budget := input.Count * s.attemptsPerCode
	codes, attempts, err := generateCodes(prefix, input.Count, budget, taken, s.draw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate codes")
	}
	if len(codes) < input.Count {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "code generation budget exhausted").WithDetails(map[string]any{
			"prefix":    prefix,
			"requested": input.Count,
			"generated": len(codes),
			"attempts":  attempts,
		})
	}

	status := enums.AssetStatusAvailable
	if input.Pending {
		status = enums.AssetStatusPending
	}
	rows := make([]models.Asset, len(codes))
	for i, code := range codes {
		rows[i] = models.Asset{
			ID:      uuid.New(),
			Code:    code,
			Prefix:  prefix,
			OwnerID: input.OwnerID,
			Status:  status,
		}
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).CreateMany(ctx, rows); err != nil {
			return err
		}
		for _, asset := range rows {
			if err := s.emit(ctx, tx, asset, nil, input.ActorID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "asset code issued concurrently").WithDetails(map[string]any{"prefix": prefix})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "persist asset codes")
	}

	s.metrics.AddCodesAllocated(len(rows))
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"owner_id": input.OwnerID.String(),
		"prefix":   prefix,
		"count":    len(rows),
		"attempts": attempts,
	})
	s.logg.Info(logCtx, "asset codes allocated")
	return rows, nil
}

// Assign marks an available asset as in use. It runs inside the caller's tx.
func (s *service) Assign(ctx context.Context, tx *gorm.DB, assetID, actorID uuid.UUID) (*models.Asset, error) {
	return s.transition(ctx, tx, assetID, actorID, enums.AssetStatusAvailable, enums.AssetStatusAssigned)
}

// Release returns an assigned asset to the pool. It runs inside the caller's tx.
func (s *service) Release(ctx context.Context, tx *gorm.DB, assetID, actorID uuid.UUID) (*models.Asset, error) {
	return s.transition(ctx, tx, assetID, actorID, enums.AssetStatusAssigned, enums.AssetStatusAvailable)
}

// Reserve makes a pending code usable once its physical item exists.
func (s *service) Reserve(ctx context.Context, assetID, actorID uuid.UUID) (*models.Asset, error) {
	return s.standalone(ctx, assetID, actorID, enums.AssetStatusPending, enums.AssetStatusAvailable)
}

// MarkPending holds an available code for a production order.
func (s *service) MarkPending(ctx context.Context, assetID, actorID uuid.UUID) (*models.Asset, error) {
	return s.standalone(ctx, assetID, actorID, enums.AssetStatusAvailable, enums.AssetStatusPending)
}

func (s *service) standalone(ctx context.Context, assetID, actorID uuid.UUID, from, to enums.AssetStatus) (*models.Asset, error) {
	var out *models.Asset
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		asset, err := s.transition(ctx, tx, assetID, actorID, from, to)
		if err != nil {
			return err
		}
		out = asset
		return nil
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "update asset status")
	}
	return out, nil
}

func (s *service) transition(ctx context.Context, tx *gorm.DB, assetID, actorID uuid.UUID, from, to enums.AssetStatus) (*models.Asset, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if assetID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "asset id is required")
	}
	repo := s.repo.WithTx(tx)
	rows, err := repo.UpdateStatusIf(ctx, assetID, []enums.AssetStatus{from}, to)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "update asset status")
	}
	current, err := repo.FindByID(ctx, assetID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "reload asset")
	}
	if current == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "asset not found").WithDetails(map[string]any{"assetId": assetID})
	}
	if rows == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("asset is %s, expected %s", current.Status, from)).WithDetails(map[string]any{
			"assetId":  assetID,
			"from":     from,
			"to":       to,
			"observed": current.Status,
		})
	}
	if err := s.emit(ctx, tx, *current, &from, actorID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "queue asset change")
	}
	return current, nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, asset models.Asset, old *enums.AssetStatus, actorID uuid.UUID) error {
	event := outbox.DomainEvent{
		EventType:     enums.EventAssetChanged,
		AggregateType: enums.AggregateAsset,
		AggregateID:   asset.ID,
		Data: payloads.AssetChangedEvent{
			AssetID:   asset.ID,
			Code:      asset.Code,
			OldStatus: old,
			Status:    asset.Status,
		},
		OccurredAt: time.Now().UTC(),
	}
	if actorID != uuid.Nil {
		event.Actor = &outbox.ActorRef{ActorID: actorID}
	}
	return s.outbox.Emit(ctx, tx, event)
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Asset, error) {
	asset, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "load asset")
	}
	return asset, nil
}

func (s *service) GetByCode(ctx context.Context, code string) (*models.Asset, error) {
	asset, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "load asset by code")
	}
	return asset, nil
}

func (s *service) List(ctx context.Context, filter Filter) ([]models.Asset, error) {
	if filter.Prefix != "" {
		prefix, err := NormalizePrefix(filter.Prefix)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid prefix")
		}
		filter.Prefix = prefix
	}
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid asset status")
	}
	page := pagination.Params{Limit: filter.Limit, Offset: filter.Offset}.Normalize()
	filter.Limit = page.Limit
	filter.Offset = page.Offset

	assets, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "list assets")
	}
	return assets, nil
}
