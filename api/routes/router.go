package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/buyback-backend/api/controllers"
	"github.com/angelmondragon/buyback-backend/api/middleware"
	"github.com/angelmondragon/buyback-backend/internal/ledger"
	"github.com/angelmondragon/buyback-backend/internal/pricefeed"
	"github.com/angelmondragon/buyback-backend/internal/quotes"
	"github.com/angelmondragon/buyback-backend/pkg/config"
	"github.com/angelmondragon/buyback-backend/pkg/logger"
	"github.com/angelmondragon/buyback-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisP controllers.Pinger,
	idempotencyStore redis.IdempotencyStore,
	quoteService quotes.Service,
	ledgerService ledger.Service,
	priceFeedService pricefeed.Service,
	metricsHandler http.Handler,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    dbP,
			"redis": redisP,
		}))
	})
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Route("/quotes", func(r chi.Router) {
			r.Post("/", controllers.QuoteSingle(quoteService, logg))
			r.Post("/batch", controllers.QuoteBatch(quoteService, logg))
		})

		r.Route("/price-feed", func(r chi.Router) {
			r.Get("/{itemId}", controllers.PriceFeedGet(priceFeedService, logg))
			r.Put("/{itemId}", controllers.PriceFeedUpsert(priceFeedService, logg))
		})

		r.Route("/inventory", func(r chi.Router) {
			r.Post("/receive", controllers.InventoryReceive(ledgerService, logg))
			r.Post("/consume", controllers.InventoryConsume(ledgerService, logg))
			r.Post("/adjust", controllers.InventoryAdjust(ledgerService, logg))
			r.Get("/balance", controllers.InventoryBalance(ledgerService, logg))
			r.Get("/lots", controllers.InventoryLots(ledgerService, logg))
			r.Get("/mutations", controllers.InventoryMutations(ledgerService, logg))
			r.Get("/reconciliation", controllers.InventoryReconciliation(ledgerService, logg))
		})
	})

	return r
}
