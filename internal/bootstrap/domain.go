package bootstrap

import (
	"log/slog"

	"go.uber.org/fx"

	"classattendance/internal/alarm"
	"classattendance/internal/attendance"
	"classattendance/internal/auth"
	"classattendance/internal/config"
	"classattendance/internal/pkg/clock"
	"classattendance/internal/timetable"
)

var DomainModule = fx.Module("domain",
	fx.Provide(
		NewScheduler,
		NewResolutionJob,
		NewTimetableService,
		NewLogService,
		NewIssuer,
		NewAuthService,
	),
)

func NewScheduler(b *Backends, clk clock.Clock, log *slog.Logger) *alarm.Scheduler {
	return alarm.NewScheduler(b.Alarms, clk, log)
}

// NewResolutionJob re-arms through the timetable so deleted slots stay
// deleted.
func NewResolutionJob(b *Backends, sched *alarm.Scheduler, clk clock.Clock, log *slog.Logger) *attendance.ResolutionJob {
	live := timetable.NewLiveScheduler(b.Timetable, sched, log)
	return attendance.NewResolutionJob(b.Locations, b.References, b.Ledger, b.Notifier, live, b.Network, clk, log)
}

func NewTimetableService(b *Backends, sched *alarm.Scheduler, log *slog.Logger) *timetable.Service {
	return timetable.NewService(b.Timetable, b.Ledger, sched, log)
}

func NewLogService(b *Backends) *attendance.Service {
	return attendance.NewService(b.Ledger)
}

func NewIssuer(cfg config.Config, clk clock.Clock) *auth.Issuer {
	return auth.NewIssuer(cfg.JWT.Issuer, cfg.JWT.SigningKey, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL, clk)
}

func NewAuthService(b *Backends, issuer *auth.Issuer) *auth.Service {
	return auth.NewService(issuer, b.Devices)
}
