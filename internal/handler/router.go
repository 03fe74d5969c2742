package handler

import (
	"net/http"
	"time"

	"github.com/boddenberg/pf-balances-bfa/internal/domain"
	"github.com/boddenberg/pf-balances-bfa/internal/infra/observability"
	"github.com/boddenberg/pf-balances-bfa/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// RouterConfig carries optional router settings.
type RouterConfig struct {
	// JWTSecret enables Supabase access-token checks on /v1/users/{userId}
	// when non-empty.
	JWTSecret string
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svc *service.BalanceService, metrics *observability.Metrics, cfg RouterConfig, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(svc))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Route("/users/{userId}", func(r chi.Router) {
			if cfg.JWTSecret != "" {
				r.Use(SupabaseAuthMiddleware([]byte(cfg.JWTSecret), logger))
			}

			r.Get("/balances", userBalancesHandler(svc, logger))
			r.Get("/net-worth", netWorthHandler(svc, logger))

			r.Route("/accounts/{accountId}", func(r chi.Router) {
				r.Get("/balance", accountFigureHandler(svc, "/v1/users/{userId}/accounts/{accountId}/balance",
					func(b domain.AccountBalance) decimal.Decimal { return b.CalculatedBalance }, logger))
				r.Get("/opening-balance", accountFigureHandler(svc, "/v1/users/{userId}/accounts/{accountId}/opening-balance",
					func(b domain.AccountBalance) decimal.Decimal { return b.OpeningBalance }, logger))
				r.Get("/closing-balance", accountFigureHandler(svc, "/v1/users/{userId}/accounts/{accountId}/closing-balance",
					domain.AccountBalance.ClosingBalance, logger))
			})
		})

		r.Post("/balances/calculate", calculateHandler(svc, logger))
		r.Get("/rates", ratesHandler(svc, logger))
		r.Get("/metrics/rates", rateMetricsHandler(metrics))
	})

	return r
}

func healthzHandler(svc *service.BalanceService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "balances-api", Status: "healthy", LatencyMs: 0, LastChecked: now},
		}

		if svc != nil {
			start := time.Now()
			err := svc.CheckStore(r.Context())
			status := "healthy"
			if err != nil {
				status = "degraded"
			}
			services = append(services, domain.ServiceHealth{
				Name: "supabase", Status: status, LatencyMs: time.Since(start).Milliseconds(), LastChecked: now,
			})
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
