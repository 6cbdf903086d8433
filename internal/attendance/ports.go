package attendance

import "context"

//go:generate mockgen -source=ports.go -destination=mock/mock_ports.go -package=mock

// LocationSource streams device fixes. A nil element is a report without a
// usable position. The stream ends when ctx is done.
type LocationSource interface {
	Observe(ctx context.Context) (<-chan *PositionFix, error)
}

// ReferencePointStore streams the latest value stored under key, starting with
// the current one. A nil element means the key is absent.
type ReferencePointStore interface {
	Watch(ctx context.Context, key string) (<-chan *float64, error)
}

// Ledger persists attendance records.
type Ledger interface {
	Append(ctx context.Context, rec Record) (Record, error)
}

// Notifier renders user-visible messages.
type Notifier interface {
	EnsureChannel(ctx context.Context) error
	Show(ctx context.Context, n Notification) error
}

// AlarmScheduler arms the next weekly occurrence of a slot.
type AlarmScheduler interface {
	Register(ctx context.Context, slot Slot) error
	Cancel(ctx context.Context, slotID int64) error
}

// ReachabilityCheck answers whether the network is usable right now.
type ReachabilityCheck interface {
	IsReachable(ctx context.Context) bool
}
