package attendance

import (
	"strings"
	"time"

	"classattendance/internal/pkg/errs"
)

const (
	// FixTimeout bounds the wait for a usable fix and the reference point.
	FixTimeout = 15 * time.Second
	// PresenceRadiusMeters is the strict upper bound on distance for Present.
	PresenceRadiusMeters = 20.0

	KeyLatitude  = "userLatitude"
	KeyLongitude = "userLongitude"
)

type Outcome string

const (
	OutcomePresent      Outcome = "present"
	OutcomeAbsent       Outcome = "absent"
	OutcomeUndetermined Outcome = "undetermined"
)

// Decided reports whether the outcome carries a computed distance and is
// written to the ledger.
func (o Outcome) Decided() bool {
	return o == OutcomePresent || o == OutcomeAbsent
}

// Cause explains an undetermined outcome.
type Cause string

const (
	CauseNone           Cause = ""
	CauseUnreachable    Cause = "unreachable"
	CauseTimeout        Cause = "timeout"
	CauseReferenceUnset Cause = "reference_unset"
	CauseSourceFailure  Cause = "source_failure"
	CauseAborted        Cause = "aborted"
)

// Status is what the job reports back to its invoker.
type Status string

const (
	StatusSuccess Status = "success"
	StatusRetry   Status = "retry"
	StatusFailure Status = "failure"
)

// SlotPayload is the fire message delivered by the alarm scheduler.
// A nil field means the value was missing from the message.
type SlotPayload struct {
	InvocationID string        `json:"invocation_id,omitempty"`
	SlotID       *int64        `json:"slot_id"`
	SubjectID    *int64        `json:"subject_id"`
	SubjectName  *string       `json:"subject_name"`
	Hour         *int          `json:"hour"`
	Minute       *int          `json:"minute"`
	Weekday      *time.Weekday `json:"weekday"`
}

// Slot is a validated weekly class time.
type Slot struct {
	ID          int64        `json:"id"`
	SubjectID   int64        `json:"subject_id"`
	SubjectName string       `json:"subject_name"`
	Hour        int          `json:"hour"`
	Minute      int          `json:"minute"`
	Weekday     time.Weekday `json:"weekday"`
}

// Validate checks that every field is present and in range.
func (p SlotPayload) Validate() (Slot, error) {
	var missing []string
	if p.SlotID == nil {
		missing = append(missing, "slot_id")
	}
	if p.SubjectID == nil {
		missing = append(missing, "subject_id")
	}
	if p.SubjectName == nil || strings.TrimSpace(*p.SubjectName) == "" {
		missing = append(missing, "subject_name")
	}
	if p.Hour == nil {
		missing = append(missing, "hour")
	}
	if p.Minute == nil {
		missing = append(missing, "minute")
	}
	if p.Weekday == nil {
		missing = append(missing, "weekday")
	}
	if len(missing) > 0 {
		return Slot{}, errs.Mark(errs.Newf("missing fields: %s", strings.Join(missing, ", ")), errs.ErrInvalidPayload)
	}

	slot := Slot{
		ID:          *p.SlotID,
		SubjectID:   *p.SubjectID,
		SubjectName: *p.SubjectName,
		Hour:        *p.Hour,
		Minute:      *p.Minute,
		Weekday:     *p.Weekday,
	}
	if err := slot.Validate(); err != nil {
		return Slot{}, errs.Mark(err, errs.ErrInvalidPayload)
	}
	return slot, nil
}

// Validate checks the ranges of a slot.
func (s Slot) Validate() error {
	switch {
	case strings.TrimSpace(s.SubjectName) == "":
		return errs.Mark(errs.New("subject name required"), errs.ErrInvalidSlot)
	case s.Hour < 0 || s.Hour > 23:
		return errs.Mark(errs.Newf("hour %d out of range", s.Hour), errs.ErrInvalidSlot)
	case s.Minute < 0 || s.Minute > 59:
		return errs.Mark(errs.Newf("minute %d out of range", s.Minute), errs.ErrInvalidSlot)
	case s.Weekday < time.Sunday || s.Weekday > time.Saturday:
		return errs.Mark(errs.Newf("weekday %d out of range", s.Weekday), errs.ErrInvalidSlot)
	}
	return nil
}

// Payload converts the slot back into its wire form.
func (s Slot) Payload() SlotPayload {
	id, subjectID, name := s.ID, s.SubjectID, s.SubjectName
	hour, minute, weekday := s.Hour, s.Minute, s.Weekday
	return SlotPayload{
		SlotID:      &id,
		SubjectID:   &subjectID,
		SubjectName: &name,
		Hour:        &hour,
		Minute:      &minute,
		Weekday:     &weekday,
	}
}

// PositionFix is a single device location observation.
type PositionFix struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	CapturedAt time.Time `json:"captured_at"`
}

// ReferencePoint is the stored classroom location. It is unset unless both
// coordinates are present.
type ReferencePoint struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func (r ReferencePoint) IsSet() bool {
	return r.Latitude != nil && r.Longitude != nil
}

// Record is one ledger row.
type Record struct {
	ID           int64     `json:"id"`
	InvocationID string    `json:"invocation_id,omitempty"`
	SubjectID    int64     `json:"subject_id"`
	SubjectName  string    `json:"subject_name"`
	Timestamp    time.Time `json:"timestamp"`
	WasPresent   bool      `json:"was_present"`
}

// Tally is the per-subject summary shown next to each subject.
type Tally struct {
	SubjectID  int64   `json:"subject_id"`
	Present    int     `json:"present"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// Notification is what the notifier renders for one slot.
type Notification struct {
	SlotID      int64   `json:"slot_id"`
	SubjectName string  `json:"subject_name"`
	Hour        int     `json:"hour"`
	Minute      int     `json:"minute"`
	Message     *string `json:"message,omitempty"`
}

// Report describes a finished invocation.
type Report struct {
	Status     Status
	Outcome    Outcome
	Cause      Cause
	Slot       Slot
	Fix        *PositionFix
	Reference  ReferencePoint
	Distance   *float64
	Record     *Record
	ResolvedAt time.Time
	// FixWait is the time spent between entering the fix wait and resolution.
	FixWait time.Duration
}
