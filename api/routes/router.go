package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/natecorreia/tillpoint-backend/api/controllers"
	"github.com/natecorreia/tillpoint-backend/api/middleware"
	"github.com/natecorreia/tillpoint-backend/internal/catalog"
	checkoutsvc "github.com/natecorreia/tillpoint-backend/internal/checkout"
	"github.com/natecorreia/tillpoint-backend/internal/ledger"
	"github.com/natecorreia/tillpoint-backend/internal/replenishment"
	"github.com/natecorreia/tillpoint-backend/pkg/config"
	"github.com/natecorreia/tillpoint-backend/pkg/logger"
	pkgredis "github.com/natecorreia/tillpoint-backend/pkg/redis"
)

// Deps bundles everything the HTTP surface needs. Optional members may be
// nil; the routes they back degrade rather than panic.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       controllers.Pinger
	Redis    *pkgredis.Client
	Gatherer prometheus.Gatherer

	Catalog       catalog.Service
	Ledger        ledger.Service
	Checkout      checkoutsvc.Service
	Replenishment replenishment.Service
}

func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(deps.Logger),
		middleware.RequestID(deps.Logger),
		middleware.Logging(deps.Logger),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(deps.Config))
		r.Get("/ready", controllers.HealthReady(deps.Config, deps.Logger, deps.DB, redisPinger(deps.Redis)))
	})

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(deps.Config.JWT, deps.Logger))
		r.Use(middleware.Idempotency(idempotencyStore(deps.Redis), deps.Logger))

		r.Group(func(r chi.Router) {
			r.Use(middleware.StoreContext(deps.Logger))
			r.Get("/ping", controllers.PrivatePing())

			r.Route("/v1", func(r chi.Router) {
				r.Post("/checkout", controllers.Checkout(deps.Checkout, deps.Logger))

				r.Route("/sales", func(r chi.Router) {
					r.Get("/", controllers.RecentSales(deps.Checkout, deps.Logger))
					r.Get("/{transactionNumber}", controllers.SaleLookup(deps.Checkout, deps.Logger))
				})

				r.Route("/products", func(r chi.Router) {
					r.Post("/", controllers.CreateProduct(deps.Catalog, deps.Logger))
					r.Get("/", controllers.ListProducts(deps.Catalog, deps.Logger))
					r.Get("/{productID}", controllers.GetProduct(deps.Catalog, deps.Logger))
				})

				r.Route("/inventory", func(r chi.Router) {
					r.Get("/", controllers.ListStock(deps.Ledger, deps.Logger))
					r.Route("/{productID}", func(r chi.Router) {
						r.Get("/", controllers.GetStock(deps.Ledger, deps.Logger))
						r.Post("/adjust", controllers.AdjustStock(deps.Ledger, deps.Logger))
						r.Post("/increment", controllers.IncrementStock(deps.Ledger, deps.Logger))
						r.Post("/decrement", controllers.DecrementStock(deps.Ledger, deps.Logger))
						r.Post("/set", controllers.SetStock(deps.Ledger, deps.Logger))
						r.Get("/movements", controllers.ListMovements(deps.Ledger, deps.Logger))
					})
				})

				r.Get("/purchase-orders", controllers.ListPurchaseOrders(deps.Replenishment, deps.Logger))
			})
		})
	})

	return r
}

func redisPinger(client *pkgredis.Client) controllers.Pinger {
	if client == nil {
		return nil
	}
	return client
}

func idempotencyStore(client *pkgredis.Client) pkgredis.IdempotencyStore {
	if client == nil {
		return nil
	}
	return client
}
