package refpoint

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/redis/go-redis/v9"

	"classattendance/internal/attendance"
	"classattendance/internal/pkg/errs"
)

// RedisStore keeps each coordinate under its own string key and announces
// changes on a per-key pub/sub channel.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// NewRedisStore creates a store keeping coordinates under prefix.
func NewRedisStore(client *redis.Client, prefix string, logger *slog.Logger) *RedisStore {
	if prefix == "" {
		prefix = "refpoint"
	}
	return &RedisStore{client: client, prefix: prefix, logger: logger.With("component", "refpoint_store")}
}

func (s *RedisStore) key(name string) string     { return s.prefix + ":" + name }
func (s *RedisStore) channel(name string) string { return s.prefix + ":changed:" + name }

// Watch subscribes before reading the current value so no change between the
// two is lost.
func (s *RedisStore) Watch(ctx context.Context, key string) (<-chan *float64, error) {
	sub := s.client.Subscribe(ctx, s.channel(key))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, errs.Wrapf(err, "subscribe %s", key)
	}
	current, err := s.read(ctx, key)
	if err != nil {
		_ = sub.Close()
		return nil, err
	}

	out := make(chan *float64, 1)
	out <- current
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				v, err := s.read(ctx, key)
				if err != nil {
					if ctx.Err() == nil {
						s.logger.Warn("reading reference coordinate failed", "key", key, "error", err)
					}
					continue
				}
				offer(out, v)
			}
		}
	}()
	return out, nil
}

// Get reads both coordinates.
func (s *RedisStore) Get(ctx context.Context) (attendance.ReferencePoint, error) {
	lat, err := s.read(ctx, attendance.KeyLatitude)
	if err != nil {
		return attendance.ReferencePoint{}, err
	}
	lon, err := s.read(ctx, attendance.KeyLongitude)
	if err != nil {
		return attendance.ReferencePoint{}, err
	}
	return attendance.ReferencePoint{Latitude: lat, Longitude: lon}, nil
}

// Set validates ref, writes both coordinates and publishes the change.
func (s *RedisStore) Set(ctx context.Context, ref attendance.ReferencePoint) error {
	if err := Validate(ref); err != nil {
		return err
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(attendance.KeyLatitude), strconv.FormatFloat(*ref.Latitude, 'f', -1, 64), 0)
		pipe.Set(ctx, s.key(attendance.KeyLongitude), strconv.FormatFloat(*ref.Longitude, 'f', -1, 64), 0)
		pipe.Publish(ctx, s.channel(attendance.KeyLatitude), "set")
		pipe.Publish(ctx, s.channel(attendance.KeyLongitude), "set")
		return nil
	})
	return errs.Wrap(err, "store reference point")
}

// Delete removes both coordinates and publishes the change.
func (s *RedisStore) Delete(ctx context.Context) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key(attendance.KeyLatitude), s.key(attendance.KeyLongitude))
		pipe.Publish(ctx, s.channel(attendance.KeyLatitude), "deleted")
		pipe.Publish(ctx, s.channel(attendance.KeyLongitude), "deleted")
		return nil
	})
	return errs.Wrap(err, "delete reference point")
}

func (s *RedisStore) read(ctx context.Context, name string) (*float64, error) {
	raw, err := s.client.Get(ctx, s.key(name)).Result()
	if errs.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrapf(err, "get %s", name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		s.logger.Warn("ignoring unparsable reference coordinate", "key", name, "value", raw)
		return nil, nil
	}
	return &v, nil
}
