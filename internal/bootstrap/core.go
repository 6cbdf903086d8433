// Package bootstrap assembles the fx graph shared by the api and worker
// binaries.
package bootstrap

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"classattendance/internal/config"
	"classattendance/internal/logger"
	"classattendance/internal/metrics"
	"classattendance/internal/pkg/clock"
)

// CoreModule provides logging, the clock and metrics. The config is
// supplied by the caller.
var CoreModule = fx.Module("core",
	fx.Provide(
		NewLogger,
		clock.NewRealClock,
		NewRegistry,
		metrics.New,
	),
)

// FxLogger routes fx's own events through slog.
var FxLogger = fx.WithLogger(func(l *slog.Logger) fxevent.Logger {
	fl := &fxevent.SlogLogger{Logger: l.With("component", "fx")}
	fl.UseLogLevel(slog.LevelDebug)
	return fl
})

func NewLogger(cfg config.Config) *slog.Logger {
	return logger.New(cfg.Log)
}

// NewRegistry returns a registry with the runtime collectors installed. It is
// provided both as itself and as a Registerer.
func NewRegistry() (*prometheus.Registry, prometheus.Registerer) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, reg
}
