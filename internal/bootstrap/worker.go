package bootstrap

import (
	"context"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"

	"classattendance/internal/alarm"
	"classattendance/internal/attendance"
	"classattendance/internal/config"
	"classattendance/internal/httpmiddleware"
	"classattendance/internal/metrics"
	"classattendance/internal/pkg/clock"
	"classattendance/internal/timetable"
	"classattendance/internal/worker"
)

// WorkerModule runs the alarm dispatcher and the job consumer for the
// lifetime of the app.
var WorkerModule = fx.Module("worker",
	fx.Provide(
		NewDispatcher,
		NewConsumer,
	),
	fx.Invoke(startWorker),
)

// MetricsServerModule exposes /metrics for a standalone worker.
var MetricsServerModule = fx.Module("metrics_server",
	fx.Invoke(startMetricsServer),
)

func NewDispatcher(cfg config.Config, b *Backends, clk clock.Clock, m *metrics.Metrics, logger *slog.Logger) *alarm.Dispatcher {
	return alarm.NewDispatcher(b.Alarms, b.Queue, clk, cfg.Worker.PollInterval, m, logger)
}

func NewConsumer(
	cfg config.Config,
	b *Backends,
	job *attendance.ResolutionJob,
	sched *alarm.Scheduler,
	m *metrics.Metrics,
	logger *slog.Logger,
) *worker.Consumer {
	return worker.NewConsumer(b.Queue, job, sched, m, worker.Options{
		MaxAttempts: cfg.Worker.MaxAttempts,
		RetryDelay:  cfg.Worker.RetryDelay,
		Concurrency: cfg.Worker.Concurrency,
	}, logger)
}

// startWorker flushes alarms that came due while no worker was running before
// re-arming the timetable, so a late alarm is delivered rather than pushed to
// next week.
func startWorker(
	lc fx.Lifecycle,
	sd fx.Shutdowner,
	d *alarm.Dispatcher,
	c *worker.Consumer,
	tt *timetable.Service,
	logger *slog.Logger,
) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			if n, err := d.Tick(startCtx); err != nil {
				logger.Warn("initial dispatch failed", "error", err)
			} else if n > 0 {
				logger.Info("dispatched overdue alarms", "count", n)
			}
			armed, err := tt.RearmAll(startCtx)
			if err != nil {
				logger.Warn("some slots could not be armed", "error", err)
			}
			logger.Info("worker starting", "armed_slots", armed)

			go func() {
				defer close(done)
				if err := worker.Run(ctx, d, c); err != nil {
					logger.Error("worker stopped", "error", err)
					_ = sd.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				logger.Info("worker stopped")
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}

func startMetricsServer(lc fx.Lifecycle, sd fx.Shutdowner, cfg config.Config, reg *prometheus.Registry, logger *slog.Logger) {
	r := gin.New()
	r.Use(httpmiddleware.Recovery(logger))
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))
	serveHTTP(lc, sd, "worker_metrics", ":"+cfg.Worker.MetricsPort, r, cfg.HTTP.ShutdownTimeout, logger)
}
