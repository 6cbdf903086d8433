package alarm

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"classattendance/internal/pkg/errs"
)

// popDue claims due members of the schedule set and returns their bodies.
// ZREM and HDEL run inside the script so concurrent dispatchers never see
// the same alarm twice.
var popDue = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
local out = {}
for _, member in ipairs(due) do
	redis.call('ZREM', KEYS[1], member)
	local body = redis.call('HGET', KEYS[2], member)
	redis.call('HDEL', KEYS[2], member)
	if body then
		table.insert(out, body)
	end
end
return out
`)

const popBatch = 100

// RedisStore keeps the schedule in a sorted set scored by fire time in
// milliseconds and the alarm bodies in a hash.
type RedisStore struct {
	client  *redis.Client
	dueKey  string
	bodyKey string
}

// NewRedisStore creates a store whose keys start with prefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "alarms"
	}
	return &RedisStore{client: client, dueKey: prefix + ":due", bodyKey: prefix + ":slots"}
}

// Put writes the payload hash entry and the due-set score in one transaction.
func (s *RedisStore) Put(ctx context.Context, a Alarm) error {
	body, err := json.Marshal(a)
	if err != nil {
		return errs.Wrap(err, "encode alarm")
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.bodyKey, a.Key, body)
		pipe.ZAdd(ctx, s.dueKey, redis.Z{Score: float64(a.FireAt.UnixMilli()), Member: a.Key})
		return nil
	})
	return errs.Wrapf(err, "put alarm %s", a.Key)
}

// Remove deletes the alarm stored under key. A missing key is not an error.
func (s *RedisStore) Remove(ctx context.Context, key string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, s.dueKey, key)
		pipe.HDel(ctx, s.bodyKey, key)
		return nil
	})
	return errs.Wrapf(err, "remove alarm %s", key)
}

// PopDue atomically claims the alarms due at or before now. Entries that fail
// to decode are skipped and reported in the returned error.
func (s *RedisStore) PopDue(ctx context.Context, now time.Time) ([]Alarm, error) {
	bodies, err := popDue.Run(ctx, s.client,
		[]string{s.dueKey, s.bodyKey},
		strconv.FormatInt(now.UnixMilli(), 10), popBatch,
	).StringSlice()
	if err != nil {
		if errs.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, errs.Wrap(err, "pop due alarms")
	}

	out := make([]Alarm, 0, len(bodies))
	var decodeErrs []error
	for _, body := range bodies {
		var a Alarm
		if err := json.Unmarshal([]byte(body), &a); err != nil {
			decodeErrs = append(decodeErrs, errs.Wrap(err, "decode alarm"))
			continue
		}
		out = append(out, a)
	}
	return out, errs.Combine(decodeErrs...)
}
