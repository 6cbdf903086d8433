package notify

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"

	"classattendance/internal/attendance"
	"classattendance/internal/pkg/clock"
	"classattendance/internal/pkg/errs"
)

// Inbox lists the most recent notifications, newest first.
type Inbox interface {
	Recent(ctx context.Context, limit int) ([]Rendered, error)
}

// RedisNotifier posts notifications to a capped Redis list that devices poll.
type RedisNotifier struct {
	client      *redis.Client
	inboxKey    string
	channelsKey string
	clock       clock.Clock
}

// NewRedisNotifier creates a notifier writing to the inbox list at inboxKey.
func NewRedisNotifier(client *redis.Client, inboxKey, channelsKey string, clk clock.Clock) *RedisNotifier {
	return &RedisNotifier{client: client, inboxKey: inboxKey, channelsKey: channelsKey, clock: clk}
}

// EnsureChannel registers the channel once; later calls leave it untouched.
func (r *RedisNotifier) EnsureChannel(ctx context.Context) error {
	return errs.Wrap(r.client.HSetNX(ctx, r.channelsKey, ChannelID, ChannelName).Err(), "register channel")
}

// Show renders n and pushes it onto the inbox, keeping the newest InboxLimit.
func (r *RedisNotifier) Show(ctx context.Context, n attendance.Notification) error {
	raw, err := json.Marshal(Render(n, r.clock.Now()))
	if err != nil {
		return errs.Wrap(err, "encode notification")
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, r.inboxKey, raw)
		pipe.LTrim(ctx, r.inboxKey, 0, InboxLimit-1)
		return nil
	})
	return errs.Wrap(err, "post notification")
}

// Recent returns up to limit notifications, newest first.
func (r *RedisNotifier) Recent(ctx context.Context, limit int) ([]Rendered, error) {
	limit = clampLimit(limit)
	raws, err := r.client.LRange(ctx, r.inboxKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, errs.Wrap(err, "read inbox")
	}
	out := make([]Rendered, 0, len(raws))
	for _, raw := range raws {
		var n Rendered
		if err := json.Unmarshal([]byte(raw), &n); err != nil {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

// MemoryInbox is the in-process counterpart of RedisNotifier.
type MemoryInbox struct {
	mu       sync.Mutex
	clock    clock.Clock
	channels map[string]string
	items    []Rendered
}

// NewMemoryInbox creates an empty inbox.
func NewMemoryInbox(clk clock.Clock) *MemoryInbox {
	return &MemoryInbox{clock: clk, channels: make(map[string]string)}
}

func (m *MemoryInbox) EnsureChannel(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.channels[ChannelID]; !ok {
		m.channels[ChannelID] = ChannelName
	}
	return nil
}

// Show requires the channel to exist, as a device would.
func (m *MemoryInbox) Show(_ context.Context, n attendance.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.channels[ChannelID]; !ok {
		return errs.Newf("notification channel %q not registered", ChannelID)
	}
	m.items = append([]Rendered{Render(n, m.clock.Now())}, m.items...)
	if len(m.items) > InboxLimit {
		m.items = m.items[:InboxLimit]
	}
	return nil
}

func (m *MemoryInbox) Recent(_ context.Context, limit int) ([]Rendered, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	limit = min(clampLimit(limit), len(m.items))
	out := make([]Rendered, limit)
	copy(out, m.items[:limit])
	return out, nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > InboxLimit {
		return InboxLimit
	}
	return limit
}
