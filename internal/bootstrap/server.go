package bootstrap

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"go.uber.org/fx"

	"classattendance/internal/pkg/errs"
)

// serveHTTP binds addr on start and drains in-flight requests on stop. A
// serve failure after start shuts the app down.
func serveHTTP(lc fx.Lifecycle, sd fx.Shutdowner, name, addr string, h http.Handler, shutdownTimeout time.Duration, logger *slog.Logger) {
	srv := &http.Server{
		Addr:         addr,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	log := logger.With("server", name)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return errs.Wrapf(err, "listen %s", addr)
			}
			log.Info("http server listening", "addr", ln.Addr().String())
			go func() {
				if err := srv.Serve(ln); err != nil && !errs.Is(err, http.ErrServerClosed) {
					log.Error("http server failed", "error", err)
					_ = sd.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()
			log.Info("shutting down http server")
			if err := srv.Shutdown(ctx); err != nil {
				return errs.Wrap(err, "http server forced shutdown")
			}
			return nil
		},
	})
}
