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

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	opts := []fx.Option{
		fx.Supply(cfg),
		bootstrap.FxLogger,
		bootstrap.CoreModule,
		bootstrap.BackendModule,
		bootstrap.DomainModule,
		bootstrap.APIModule,
	}
	if cfg.App.EmbedWorker {
		opts = append(opts, bootstrap.WorkerModule)
	}
	app := fx.New(opts...)

	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		slog.Error("api failed to start", "error", err)
		os.Exit(1)
	}

	sig := <-app.Wait()

	stopCtx, cancelStop := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout+5*time.Second)
	defer cancelStop()
	if err := app.Stop(stopCtx); err != nil {
		slog.Error("api did not stop cleanly", "error", err)
	}
	os.Exit(sig.ExitCode)
}
