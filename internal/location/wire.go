package location

import (
	"encoding/json"
	"time"

	"classattendance/internal/attendance"
	"classattendance/internal/pkg/errs"
)

// wireFix is the message published on the fix channel. Coordinates are
// pointers so a report without a position can be told apart from 0,0.
type wireFix struct {
	Latitude   *float64  `json:"latitude"`
	Longitude  *float64  `json:"longitude"`
	CapturedAt time.Time `json:"captured_at"`
}

// Decode parses a fix message. A JSON null or a message missing either
// coordinate decodes to a nil fix without error.
func Decode(raw []byte) (*attendance.PositionFix, error) {
	var w *wireFix
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, errs.Wrap(err, "decode fix")
	}
	if w == nil || w.Latitude == nil || w.Longitude == nil {
		return nil, nil
	}
	return &attendance.PositionFix{Latitude: *w.Latitude, Longitude: *w.Longitude, CapturedAt: w.CapturedAt}, nil
}

// Encode renders fix in wire form; nil encodes as null.
func Encode(fix *attendance.PositionFix) ([]byte, error) {
	if fix == nil {
		return []byte("null"), nil
	}
	lat, lon := fix.Latitude, fix.Longitude
	raw, err := json.Marshal(wireFix{Latitude: &lat, Longitude: &lon, CapturedAt: fix.CapturedAt})
	return raw, errs.Wrap(err, "encode fix")
}
