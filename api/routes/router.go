package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/matcycle-backend/api/controllers"
	"github.com/angelmondragon/matcycle-backend/api/middleware"
	"github.com/angelmondragon/matcycle-backend/internal/assets"
	"github.com/angelmondragon/matcycle-backend/internal/cycles"
	"github.com/angelmondragon/matcycle-backend/internal/history"
	"github.com/angelmondragon/matcycle-backend/internal/pickups"
	"github.com/angelmondragon/matcycle-backend/internal/reports"
	"github.com/angelmondragon/matcycle-backend/pkg/config"
	"github.com/angelmondragon/matcycle-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/matcycle-backend/pkg/redis"
)

// Services are the domain components the HTTP surface exposes.
type Services struct {
	Assets  assets.Ledger
	Cycles  cycles.Manager
	Pickups pickups.Orchestrator
	History history.Trail
	Reports reports.Service
}

// Infra are the shared clients the router needs beyond the domain.
type Infra struct {
	DB          controllers.Pinger
	Redis       controllers.Pinger
	Idempotency pkgredis.IdempotencyStore
	Gatherer    prometheus.Gatherer
}

func NewRouter(cfg *config.Config, logg *logger.Logger, infra Infra, svc Services) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Recoverer(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    infra.DB,
			"redis": infra.Redis,
		}))
	})

	if infra.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(infra.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(
			middleware.Actor(logg),
			middleware.Idempotency(infra.Idempotency, logg),
		)

		r.Route("/assets", func(r chi.Router) {
			r.Get("/", controllers.AssetsList(svc.Assets, logg))
			r.Post("/allocate", controllers.AssetsAllocate(svc.Assets, logg))
			r.Get("/by-code/{code}", controllers.AssetsByCode(svc.Assets, logg))
			r.Get("/{assetId}", controllers.AssetsGet(svc.Assets, logg))
			r.Post("/{assetId}/reserve", controllers.AssetsReserve(svc.Assets, logg))
			r.Post("/{assetId}/hold", controllers.AssetsMarkPending(svc.Assets, logg))
		})

		r.Route("/cycles", func(r chi.Router) {
			r.Get("/", controllers.CyclesList(svc.Cycles, logg))
			r.Post("/", controllers.CyclesStart(svc.Cycles, logg))
			r.Route("/{cycleId}", func(r chi.Router) {
				r.Get("/", controllers.CyclesGet(svc.Cycles, logg))
				r.Get("/history", controllers.CyclesHistory(svc.History, logg))
				r.Post("/assign", controllers.CyclesAssign(svc.Cycles, logg))
				r.Post("/soil", controllers.CyclesSoil(svc.Cycles, logg))
				r.Post("/contract", controllers.CyclesSignContract(svc.Cycles, logg))
				r.Post("/pickup-request", controllers.CyclesRequestPickup(svc.Cycles, logg))
				r.Post("/pickup-cancel", controllers.CyclesCancelPickup(svc.Cycles, logg))
				r.Post("/extend", controllers.CyclesExtend(svc.Cycles, logg))
				r.Post("/complete", controllers.CyclesComplete(svc.Cycles, logg))
			})
		})

		r.Route("/pickups", func(r chi.Router) {
			r.Get("/", controllers.PickupsList(svc.Pickups, logg))
			r.Post("/", controllers.PickupsCreate(svc.Pickups, logg))
			r.Patch("/items/{itemId}", controllers.PickupsToggleItem(svc.Pickups, logg))
			r.Route("/{batchId}", func(r chi.Router) {
				r.Get("/", controllers.PickupsGet(svc.Pickups, logg))
				r.Post("/start", controllers.PickupsStart(svc.Pickups, logg))
				r.Post("/complete", controllers.PickupsComplete(svc.Pickups, logg))
				r.Post("/cancel", controllers.PickupsCancel(svc.Pickups, logg))
			})
		})

		r.Get("/history/actors/{actorId}", controllers.HistoryByActor(svc.History, logg))

		r.Route("/reports", func(r chi.Router) {
			r.Get("/cycle-counts", controllers.ReportsCycleCounts(svc.Reports, logg))
			r.Get("/overdue", controllers.ReportsOverdue(svc.Reports, logg))
			r.Get("/turnaround", controllers.ReportsTurnaround(svc.History, logg))
		})
	})

	return r
}
