package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/matcycle-backend/internal/assets"
	"github.com/angelmondragon/matcycle-backend/internal/cycles"
	"github.com/angelmondragon/matcycle-backend/internal/history"
	"github.com/angelmondragon/matcycle-backend/internal/pickups"
	"github.com/angelmondragon/matcycle-backend/internal/reports"
	"github.com/angelmondragon/matcycle-backend/pkg/config"
	"github.com/angelmondragon/matcycle-backend/pkg/db"
	"github.com/angelmondragon/matcycle-backend/pkg/logger"
	"github.com/angelmondragon/matcycle-backend/pkg/metrics"
	"github.com/angelmondragon/matcycle-backend/pkg/outbox"
)

type Params struct {
	Config  *config.Config
	Logger  *logger.Logger
	DB      *db.Client
	Metrics *metrics.DomainMetrics
	Clock   func() time.Time
}

// Engine holds the domain services built over one database.
type Engine struct {
	Assets  assets.Ledger
	Cycles  cycles.Manager
	Pickups pickups.Orchestrator
	History history.Trail
	Reports reports.Service
}

// New wires every domain service onto the shared connection and outbox.
func New(params Params) (*Engine, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	conn := params.DB.DB()
	emitter := outbox.NewService(outbox.NewRepository(conn), params.Logger)

	ledger, err := assets.NewService(assets.ServiceParams{
		Repo:    assets.NewRepository(conn),
		Tx:      params.DB,
		Outbox:  emitter,
		Logger:  params.Logger,
		Metrics: params.Metrics,
		Config:  params.Config.Ledger,
	})
	if err != nil {
		return nil, fmt.Errorf("asset ledger: %w", err)
	}

	trail, err := history.NewService(history.NewRepository(conn))
	if err != nil {
		return nil, fmt.Errorf("history trail: %w", err)
	}

	manager, err := cycles.NewService(cycles.ServiceParams{
		Repo:    cycles.NewRepository(conn),
		Tx:      params.DB,
		Assets:  ledger,
		History: trail,
		Outbox:  emitter,
		Logger:  params.Logger,
		Metrics: params.Metrics,
		Clock:   params.Clock,
	})
	if err != nil {
		return nil, fmt.Errorf("cycle manager: %w", err)
	}

	orchestrator, err := pickups.NewService(pickups.ServiceParams{
		Repo:    pickups.NewRepository(conn),
		Tx:      params.DB,
		Cycles:  manager,
		Outbox:  emitter,
		Logger:  params.Logger,
		Metrics: params.Metrics,
		Config:  params.Config.Pickup,
		Clock:   params.Clock,
	})
	if err != nil {
		return nil, fmt.Errorf("pickup orchestrator: %w", err)
	}

	reporting, err := reports.NewService(reports.NewRepository(conn))
	if err != nil {
		return nil, fmt.Errorf("reports: %w", err)
	}

	return &Engine{
		Assets:  ledger,
		Cycles:  manager,
		Pickups: orchestrator,
		History: trail,
		Reports: reporting,
	}, nil
}
