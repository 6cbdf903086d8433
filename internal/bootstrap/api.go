package bootstrap

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"

	"classattendance/internal/attendance"
	"classattendance/internal/auth"
	"classattendance/internal/config"
	"classattendance/internal/handler"
	"classattendance/internal/httpmiddleware"
	"classattendance/internal/metrics"
	"classattendance/internal/pkg/clock"
	"classattendance/internal/timetable"
)

var APIModule = fx.Module("api",
	fx.Provide(
		NewRateLimiter,
		NewHandler,
		NewEngine,
	),
	fx.Invoke(startAPIServer),
)

func NewRateLimiter(cfg config.Config, clk clock.Clock) *httpmiddleware.TokenBucket {
	return httpmiddleware.NewTokenBucket(cfg.HTTP.RateLimitPerMin, cfg.HTTP.RateLimitPerMin, clk)
}

func NewHandler(
	b *Backends,
	authSvc *auth.Service,
	issuer *auth.Issuer,
	tt *timetable.Service,
	logs *attendance.Service,
	m *metrics.Metrics,
	clk clock.Clock,
) *handler.Handler {
	return handler.New(handler.Deps{
		Auth:       authSvc,
		Issuer:     issuer,
		Fixes:      b.Fixes,
		References: b.References,
		Timetable:  tt,
		Logs:       logs,
		Inbox:      b.Inbox,
		Metrics:    m,
		Clock:      clk,
		Health:     b.Health,
	})
}

// NewEngine builds the router. The limiter runs twice: keyed by client IP on
// every route and keyed by device once the token is verified.
func NewEngine(
	cfg config.Config,
	logger *slog.Logger,
	reg *prometheus.Registry,
	h *handler.Handler,
	limiter *httpmiddleware.TokenBucket,
) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(
		httpmiddleware.Recovery(logger),
		httpmiddleware.RequestLogger(logger, "/healthz", "/metrics"),
		httpmiddleware.CORS(cfg.HTTP.AllowOrigins),
		httpmiddleware.SecurityHeaders(),
		limiter.GinMiddleware(),
	)
	h.Register(r, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}), limiter.GinMiddleware())
	return r
}

func startAPIServer(lc fx.Lifecycle, sd fx.Shutdowner, cfg config.Config, engine *gin.Engine, logger *slog.Logger) {
	serveHTTP(lc, sd, "api", ":"+cfg.HTTP.Port, engine, cfg.HTTP.ShutdownTimeout, logger)
}
