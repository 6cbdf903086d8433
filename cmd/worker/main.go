package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"go.uber.org/fx"

	"classattendance/internal/bootstrap"
	"classattendance/internal/config"
)

// Worker fires timetable alarms and resolves attendance for each one.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.App.Backend == config.BackendMemory {
		log.Fatalf("the memory backend runs inside the api process; start cmd/api instead")
	}

	app := fx.New(
		fx.Supply(cfg),
		bootstrap.FxLogger,
		bootstrap.CoreModule,
		bootstrap.BackendModule,
		bootstrap.DomainModule,
		bootstrap.WorkerModule,
		bootstrap.MetricsServerModule,
	)

	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		slog.Error("worker failed to start", "error", err)
		os.Exit(1)
	}

	sig := <-app.Wait()

	stopCtx, cancelStop := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout+5*time.Second)
	defer cancelStop()
	if err := app.Stop(stopCtx); err != nil {
		slog.Error("worker did not stop cleanly", "error", err)
	}
	os.Exit(sig.ExitCode)
}
