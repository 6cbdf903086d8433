package timetable

import (
	"strings"
	"time"

	"classattendance/internal/attendance"
	"classattendance/internal/pkg/errs"
)

type Subject struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// SubjectSummary is a subject with its attendance tally.
type SubjectSummary struct {
	Subject
	Present    int     `json:"present"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// Day is one weekday of the timetable, slots ordered by time of day.
type Day struct {
	Weekday time.Weekday      `json:"weekday"`
	Name    string            `json:"name"`
	Slots   []attendance.Slot `json:"slots"`
}

// NewSlot is the input for adding a class to the timetable.
type NewSlot struct {
	SubjectID int64        `json:"subject_id"`
	Weekday   time.Weekday `json:"weekday"`
	Hour      int          `json:"hour"`
	Minute    int          `json:"minute"`
}

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errs.Mark(errs.New("subject name required"), errs.ErrInvalidSlot)
	}
	return name, nil
}
