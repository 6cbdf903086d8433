package location

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"classattendance/internal/attendance"
	"classattendance/internal/pkg/errs"
)

// Publisher accepts fixes reported by devices.
type Publisher interface {
	Publish(ctx context.Context, fix *attendance.PositionFix) error
}

// RedisPublisher publishes fixes on a pub/sub channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisPublisher publishes fixes on channel.
func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

// Publish encodes fix and sends it on the channel. A nil fix is sent as null.
func (p *RedisPublisher) Publish(ctx context.Context, fix *attendance.PositionFix) error {
	raw, err := Encode(fix)
	if err != nil {
		return err
	}
	return errs.Wrap(p.client.Publish(ctx, p.channel, raw).Err(), "publish fix")
}

// RedisSource streams fixes from a pub/sub channel.
type RedisSource struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

// NewRedisSource subscribes to fixes published on channel.
func NewRedisSource(client *redis.Client, channel string, logger *slog.Logger) *RedisSource {
	return &RedisSource{client: client, channel: channel, logger: logger.With("component", "location_source")}
}

// Observe subscribes to the channel. The subscription is confirmed before it
// returns so no fix published afterwards is missed.
func (s *RedisSource) Observe(ctx context.Context) (<-chan *attendance.PositionFix, error) {
	sub := s.client.Subscribe(ctx, s.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, errs.Wrapf(err, "subscribe %s", s.channel)
	}

	out := make(chan *attendance.PositionFix)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				fix, err := Decode([]byte(msg.Payload))
				if err != nil {
					s.logger.Warn("dropping malformed fix", "error", err)
					continue
				}
				select {
				case out <- fix:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
