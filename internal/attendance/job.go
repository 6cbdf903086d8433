package attendance

import (
	"context"
	"log/slog"

	"classattendance/internal/geo"
	"classattendance/internal/pkg/clock"
	"classattendance/internal/pkg/errs"
)

// ResolutionJob decides presence for one fired slot. Each Run is an
// independent unit of work; the job holds no state between runs.
type ResolutionJob struct {
	locations  LocationSource
	references ReferencePointStore
	ledger     Ledger
	notifier   Notifier
	scheduler  AlarmScheduler
	network    ReachabilityCheck
	clock      clock.Clock
	logger     *slog.Logger
}

// NewResolutionJob wires a job to its collaborators.
func NewResolutionJob(
	locations LocationSource,
	references ReferencePointStore,
	ledger Ledger,
	notifier Notifier,
	scheduler AlarmScheduler,
	network ReachabilityCheck,
	clk clock.Clock,
	logger *slog.Logger,
) *ResolutionJob {
	return &ResolutionJob{
		locations:  locations,
		references: references,
		ledger:     ledger,
		notifier:   notifier,
		scheduler:  scheduler,
		network:    network,
		clock:      clk,
		logger:     logger.With("component", "resolution_job"),
	}
}

// attempt is what the fix consumer hands back when it wins the race.
type attempt struct {
	fix *PositionFix
	ref ReferencePoint
	err error
}

// Run resolves the slot described by payload. The returned error is non-nil
// whenever the status is not StatusSuccess. An invalid payload yields
// StatusRetry and touches no collaborator.
func (j *ResolutionJob) Run(ctx context.Context, payload SlotPayload) (Report, error) {
	slot, err := payload.Validate()
	if err != nil {
		j.logger.Warn("invalid slot payload", "invocation_id", payload.InvocationID, "error", err)
		return Report{Status: StatusRetry}, err
	}

	log := j.logger.With(
		"invocation_id", payload.InvocationID,
		"slot_id", slot.ID,
		"subject_id", slot.SubjectID,
	)

	report, raceErr := j.resolve(ctx, log)
	report.Slot = slot

	// Commit steps must finish even if the invoker is shutting down.
	commitCtx := context.WithoutCancel(ctx)
	var errList []error
	if raceErr != nil {
		errList = append(errList, raceErr)
	}

	if report.Outcome.Decided() {
		rec, err := j.ledger.Append(commitCtx, Record{
			InvocationID: payload.InvocationID,
			SubjectID:    slot.SubjectID,
			SubjectName:  slot.SubjectName,
			Timestamp:    report.ResolvedAt,
			WasPresent:   report.Outcome == OutcomePresent,
		})
		if err != nil {
			log.Error("failed to append attendance record", "error", err)
			errList = append(errList, errs.Wrap(err, "append attendance record"))
		} else {
			report.Record = &rec
		}
	}

	if report.Cause != CauseAborted {
		if err := j.notify(commitCtx, slot, report); err != nil {
			log.Error("failed to notify", "error", err)
			errList = append(errList, err)
		}
	}

	if err := j.scheduler.Register(commitCtx, slot); err != nil {
		log.Error("failed to reschedule slot", "error", err)
		errList = append(errList, errs.Wrap(err, "reschedule slot"))
	} else {
		log.Debug("slot rescheduled")
	}

	if err := errs.Combine(errList...); err != nil {
		report.Status = StatusFailure
		return report, err
	}
	report.Status = StatusSuccess
	log.Info("slot resolved",
		"outcome", report.Outcome,
		"cause", report.Cause,
		"fix_wait", report.FixWait,
	)
	return report, nil
}

// resolve runs the reachability check and the fix race. The error is only
// set when the outcome could not be produced cleanly.
func (j *ResolutionJob) resolve(ctx context.Context, log *slog.Logger) (Report, error) {
	if !j.network.IsReachable(ctx) {
		log.Debug("network unreachable, skipping location")
		return Report{
			Outcome:    OutcomeUndetermined,
			Cause:      CauseUnreachable,
			ResolvedAt: j.clock.Now(),
		}, nil
	}

	log.Debug("awaiting fix", "deadline", FixTimeout)
	started := j.clock.Now()

	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	timer := j.clock.NewTimer(FixTimeout)
	defer timer.Stop()

	won := make(chan attempt, 1)
	go func() {
		won <- j.firstUsableFix(raceCtx)
	}()

	var a attempt
	select {
	case a = <-won:
		timer.Stop()
	case <-timer.C():
		cancel()
		now := j.clock.Now()
		log.Debug("deadline reached before a usable fix")
		return Report{
			Outcome:    OutcomeUndetermined,
			Cause:      CauseTimeout,
			ResolvedAt: now,
			FixWait:    now.Sub(started),
		}, nil
	case <-ctx.Done():
		cancel()
		return Report{
			Outcome:    OutcomeUndetermined,
			Cause:      CauseAborted,
			ResolvedAt: j.clock.Now(),
		}, errs.Wrap(ctx.Err(), "resolution aborted")
	}

	now := j.clock.Now()
	report := Report{
		Fix:        a.fix,
		Reference:  a.ref,
		ResolvedAt: now,
		FixWait:    now.Sub(started),
	}

	if a.err != nil {
		report.Outcome = OutcomeUndetermined
		report.Cause = CauseSourceFailure
		if ctx.Err() != nil {
			report.Cause = CauseAborted
		}
		return report, a.err
	}

	if !a.ref.IsSet() {
		log.Debug("reference point unset")
		report.Outcome = OutcomeUndetermined
		report.Cause = CauseReferenceUnset
		return report, nil
	}

	d := geo.DistanceMeters(a.fix.Latitude, a.fix.Longitude, *a.ref.Latitude, *a.ref.Longitude)
	report.Distance = &d
	if d < PresenceRadiusMeters {
		report.Outcome = OutcomePresent
	} else {
		report.Outcome = OutcomeAbsent
	}
	log.Debug("distance computed", "meters", d, "outcome", report.Outcome)
	return report, nil
}

// firstUsableFix consumes fixes until the first non-nil one, then waits for
// the reference point. It never acts on more than one fix.
func (j *ResolutionJob) firstUsableFix(ctx context.Context) attempt {
	fixes, err := j.locations.Observe(ctx)
	if err != nil {
		return attempt{err: errs.Wrap(err, "observe location")}
	}

	for {
		select {
		case <-ctx.Done():
			return attempt{err: ctx.Err()}
		case fix, ok := <-fixes:
			if !ok {
				// An exhausted source leaves the deadline to decide.
				fixes = nil
				continue
			}
			if fix == nil {
				continue
			}
			ref, err := j.awaitReference(ctx)
			return attempt{fix: fix, ref: ref, err: err}
		}
	}
}

// awaitReference watches both coordinates and returns as soon as both are
// present. If both streams end first the point is returned unset.
func (j *ResolutionJob) awaitReference(ctx context.Context) (ReferencePoint, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lats, err := j.references.Watch(ctx, KeyLatitude)
	if err != nil {
		return ReferencePoint{}, errs.Wrap(err, "watch reference latitude")
	}
	lons, err := j.references.Watch(ctx, KeyLongitude)
	if err != nil {
		return ReferencePoint{}, errs.Wrap(err, "watch reference longitude")
	}

	var ref ReferencePoint
	for lats != nil || lons != nil {
		select {
		case <-ctx.Done():
			return ReferencePoint{}, ctx.Err()
		case v, ok := <-lats:
			if !ok {
				lats = nil
				continue
			}
			ref.Latitude = v
		case v, ok := <-lons:
			if !ok {
				lons = nil
				continue
			}
			ref.Longitude = v
		}
		if ref.IsSet() {
			return ref, nil
		}
	}
	return ref, nil
}

func (j *ResolutionJob) notify(ctx context.Context, slot Slot, report Report) error {
	if err := j.notifier.EnsureChannel(ctx); err != nil {
		return errs.Wrap(err, "ensure notification channel")
	}
	n := NewNotification(slot, ComposeMessage(report.Outcome, report.Fix, report.Distance))
	if err := j.notifier.Show(ctx, n); err != nil {
		return errs.Wrap(err, "show notification")
	}
	return nil
}
