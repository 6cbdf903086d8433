package bootstrap

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"classattendance/internal/alarm"
	"classattendance/internal/attendance"
	"classattendance/internal/auth"
	"classattendance/internal/config"
	"classattendance/internal/handler"
	"classattendance/internal/location"
	"classattendance/internal/netcheck"
	"classattendance/internal/notify"
	"classattendance/internal/pkg/clock"
	"classattendance/internal/pkg/errs"
	"classattendance/internal/queue"
	"classattendance/internal/refpoint"
	"classattendance/internal/store"
	"classattendance/internal/timetable"
)

// Backends holds every storage and transport collaborator for the selected
// APP_BACKEND.
type Backends struct {
	Ledger     attendance.LogStore
	Timetable  timetable.Repository
	Devices    auth.DeviceStore
	Alarms     alarm.Store
	Queue      queue.Queue
	Locations  attendance.LocationSource
	Fixes      location.Publisher
	References refpoint.Store
	Notifier   attendance.Notifier
	Inbox      notify.Inbox
	Network    attendance.ReachabilityCheck
	Health     map[string]handler.HealthCheck
}

var BackendModule = fx.Module("backends",
	fx.Provide(NewBackends),
)

func NewBackends(lc fx.Lifecycle, cfg config.Config, log *slog.Logger, clk clock.Clock) (*Backends, error) {
	if cfg.App.Backend == config.BackendMemory {
		log.Info("using in-memory backends")
		return NewMemoryBackends(clk, log), nil
	}
	return newRedisBackends(lc, cfg, log, clk)
}

// NewMemoryBackends wires every collaborator in process. Everything must run
// in one process for fixes and alarms to reach the worker.
func NewMemoryBackends(clk clock.Clock, log *slog.Logger) *Backends {
	hub := location.NewHub()
	inbox := notify.NewMemoryInbox(clk)
	return &Backends{
		Ledger:     attendance.NewMemoryLedger(),
		Timetable:  timetable.NewMemoryRepository(),
		Devices:    auth.NewMemoryDevices(clk),
		Alarms:     alarm.NewMemoryStore(),
		Queue:      queue.NewInMemory(64),
		Locations:  hub,
		Fixes:      hub,
		References: refpoint.NewMemoryStore(),
		Notifier:   notify.Fanout{inbox, notify.NewLogNotifier(clk, log)},
		Inbox:      inbox,
		Network:    netcheck.Static(true),
		Health:     map[string]handler.HealthCheck{},
	}
}

func newRedisBackends(lc fx.Lifecycle, cfg config.Config, log *slog.Logger, clk clock.Clock) (*Backends, error) {
	ctx := context.Background()
	db, err := store.NewDB(ctx, cfg.DB.URL)
	if err != nil {
		return nil, err
	}
	ledger := attendance.NewPostgresLedger(db.Client)
	tt := timetable.NewPostgresRepository(db.Client)
	devices := auth.NewPostgresDevices(db.Client)
	if err := db.Migrate(ctx, ledger, tt, devices); err != nil {
		_ = db.Close()
		return nil, err
	}

	rdb := store.NewRedis(cfg.Redis.Addr)
	if err := rdb.Ping(ctx); err != nil {
		log.Warn("redis not reachable at startup", "addr", cfg.Redis.Addr, "error", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return errs.Combine(rdb.Close(), db.Close())
		},
	})

	redisNotifier := notify.NewRedisNotifier(rdb.Client, cfg.Redis.InboxKey, cfg.Redis.ChannelsKey, clk)
	var network attendance.ReachabilityCheck = netcheck.Static(true)
	if cfg.Reachability.URL != "" {
		network = netcheck.New(cfg.Reachability.URL, cfg.Reachability.Timeout, log)
	}

	return &Backends{
		Ledger:     ledger,
		Timetable:  tt,
		Devices:    devices,
		Alarms:     alarm.NewRedisStore(rdb.Client, cfg.Redis.AlarmPrefix),
		Queue:      queue.NewRedisQueue(rdb.Client, cfg.Redis.FireQueueKey, log),
		Locations:  location.NewRedisSource(rdb.Client, cfg.Redis.FixChannel, log),
		Fixes:      location.NewRedisPublisher(rdb.Client, cfg.Redis.FixChannel),
		References: refpoint.NewRedisStore(rdb.Client, cfg.Redis.ReferencePrefix, log),
		Notifier:   notify.Fanout{redisNotifier, notify.NewLogNotifier(clk, log)},
		Inbox:      redisNotifier,
		Network:    network,
		Health: map[string]handler.HealthCheck{
			"db":    db.Ping,
			"redis": rdb.Ping,
		},
	}, nil
}
