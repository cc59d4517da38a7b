package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kioskpos/pos-backend/api/controllers"
	"github.com/kioskpos/pos-backend/api/middleware"
	checkoutsvc "github.com/kioskpos/pos-backend/internal/checkout"
	"github.com/kioskpos/pos-backend/pkg/config"
	"github.com/kioskpos/pos-backend/pkg/logger"
	"github.com/kioskpos/pos-backend/pkg/redis"
)

// Dependencies are the collaborators the HTTP surface needs. Readiness lists
// the dependencies probed by /health/ready; IdempotencyStore may be nil, in
// which case retried orders are not deduplicated.
type Dependencies struct {
	Checkout         checkoutsvc.Service
	Transactions     controllers.TransactionReader
	Loyalty          controllers.BalanceReader
	Inventory        controllers.StockReader
	IdempotencyStore redis.IdempotencyStore
	Readiness        map[string]controllers.Pinger
	Metrics          prometheus.Gatherer
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Readiness))
	})

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}

	store := deps.IdempotencyStore
	if !cfg.FeatureFlags.Idempotency {
		store = nil
	}
	idempotent := middleware.Idempotency(store, logg)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Terminal(logg))
		r.Get("/ping", controllers.Ping())

		r.With(idempotent).Post("/transactions", controllers.CreateTransaction(deps.Checkout, logg))
		r.Post("/transactions/quote", controllers.QuoteTransaction(deps.Checkout, logg))
		r.Get("/transactions/{transactionID}", controllers.GetTransaction(deps.Transactions, logg))
		r.Get("/customers/{customerID}/points", controllers.CustomerPoints(deps.Loyalty, logg))
		r.Get("/inventory/low-stock", controllers.LowStock(deps.Inventory, logg))
	})

	return r
}
