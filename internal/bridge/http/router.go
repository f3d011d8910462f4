package http

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aussiebroadwan/tokenbridge/internal/bridge/domain"
	"github.com/aussiebroadwan/tokenbridge/internal/bridge/store"
	"github.com/aussiebroadwan/tokenbridge/pkg/httpx"
	"github.com/aussiebroadwan/tokenbridge/pkg/slogx"

	_ "github.com/aussiebroadwan/tokenbridge/api/bridge" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Exchanger runs one token exchange. *service.ExchangeService implements it.
type Exchanger interface {
	Exchange(ctx context.Context, form url.Values) (*domain.IssuedToken, error)
}

// Pinger reports whether an upstream dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store

	ExchangeService Exchanger
	Provider        Pinger

	// Gatherer backs /metrics. Nil leaves the route unregistered.
	Gatherer prometheus.Gatherer

	MaxBodyBytes  int64
	ExchangeLimit httpx.RateLimitConfig
	ProbeLimit    httpx.RateLimitConfig
}

func NewRouter(buildVersion string, st store.Store, logger *slog.Logger) *Router {
	r := &Router{
		Mux:           http.NewServeMux(),
		buildVersion:  buildVersion,
		startTime:     time.Now(),
		logger:        logger,
		store:         st,
		MaxBodyBytes:  httpx.DefaultMaxFormBytes,
		ExchangeLimit: httpx.ExchangeLimit,
		ProbeLimit:    httpx.ProbeLimit,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger, "/livez", "/readyz", "/metrics"),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerExchange()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			tokenbridge
//	@version		0.1.0
//	@description	RFC 8693 token exchange in front of Ory Hydra. Subject tokens are exchanged for
//	@description	provider-issued access tokens that carry the resolved subject and session claims.
//
//	@contact.name	AussieBroadWAN Team
//	@contact.url	https://github.com/aussiebroadwan/tokenbridge
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host			localhost:8080
//	@BasePath		/
//
//	@schemes		http https
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerExchange() {
	h := &TokenExchangeHandler{
		Exchanger:    r.ExchangeService,
		MaxBodyBytes: r.MaxBodyBytes,
	}

	// One limiter shared by both paths so the alias cannot double the budget.
	limited := httpx.Chain(h, httpx.RateLimitByIP(r.ExchangeLimit))
	r.Mux.Handle("POST /oauth2/token", limited)
	r.Mux.Handle("POST /token", limited)

	r.Mux.Handle("GET /.well-known/time", TimeHandler())
}

func (r *Router) registerSystem() {
	probe := httpx.RateLimitByIP(r.ProbeLimit)

	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion), probe),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.Provider), probe),
	)

	if r.Gatherer != nil {
		r.Mux.Handle("GET /metrics",
			httpx.Chain(promhttp.HandlerFor(r.Gatherer, promhttp.HandlerOpts{}), probe),
		)
	}
}
