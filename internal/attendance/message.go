package attendance

import "fmt"

// ComposeMessage builds the notification body for a resolved outcome. It
// returns nil for undetermined outcomes so the notifier falls back to its
// plain rendering.
func ComposeMessage(outcome Outcome, fix *PositionFix, distance *float64) *string {
	if fix == nil || distance == nil {
		return nil
	}

	var prefix string
	switch outcome {
	case OutcomePresent:
		prefix = "Present"
	case OutcomeAbsent:
		prefix = "Absent"
	default:
		return nil
	}

	msg := fmt.Sprintf("%s\nLatitude = %.6f\nLongitude = %.6f\nDistance = %.6f",
		prefix, fix.Latitude, fix.Longitude, *distance)
	return &msg
}

// NewNotification pairs a slot with an optional message.
func NewNotification(slot Slot, message *string) Notification {
	return Notification{
		SlotID:      slot.ID,
		SubjectName: slot.SubjectName,
		Hour:        slot.Hour,
		Minute:      slot.Minute,
		Message:     message,
	}
}
