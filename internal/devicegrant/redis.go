package devicegrant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oauthkit/devicegrant/internal/validation"
)

const (
	devicePrefix = "device:"
	userPrefix   = "user:"
)

// Conditional updates run as Lua scripts so that the status guard and the
// write are a single atomic step on the server, regardless of how many
// engine instances share the backend.

// createScript inserts the record and the user code index only if the
// device code is free and no live (pending/approved) record holds the user
// code. Record TTL doubles as storage-level expiry cleanup.
var createScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
  return "device"
end
local dc = redis.call("GET", KEYS[2])
if dc then
  local data = redis.call("GET", ARGV[4] .. dc)
  if data then
    local rec = cjson.decode(data)
    if rec.status == "pending" or rec.status == "approved" then
      return "user"
    end
  end
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
redis.call("SET", KEYS[2], ARGV[3], "PX", ARGV[2])
return "ok"
`)

// transitionScript moves the record between statuses, optionally recording
// the approving subject, guarded by the expected current status.
var transitionScript = redis.NewScript(`
local data = redis.call("GET", KEYS[1])
if not data then
  return "conflict"
end
local rec = cjson.decode(data)
if rec.status ~= ARGV[1] then
  return "conflict"
end
rec.status = ARGV[2]
if ARGV[3] ~= "" then
  rec.approved_subject = ARGV[3]
end
redis.call("SET", KEYS[1], cjson.encode(rec), "KEEPTTL")
return "ok"
`)

// pollScript records a poll timestamp and a monotonically non-decreasing
// interval, guarded on the record still being pending.
var pollScript = redis.NewScript(`
local data = redis.call("GET", KEYS[1])
if not data then
  return "conflict"
end
local rec = cjson.decode(data)
if rec.status ~= "pending" then
  return "conflict"
end
rec.last_polled_at = ARGV[1]
local interval = tonumber(ARGV[2])
if interval > rec.interval then
  rec.interval = interval
end
redis.call("SET", KEYS[1], cjson.encode(rec), "KEEPTTL")
return "ok"
`)

// RedisStore implements Store on Redis. Records live under device:<code>
// with a TTL matching their deadline; the user code index lives under
// user:<normalized code>.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Create(ctx context.Context, rec *Record) error {
	ttl := time.Until(rec.ExpiresAt)
	if ttl <= 0 {
		return errors.New("record already expired")
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}

	keys := []string{
		devicePrefix + rec.DeviceCode,
		userPrefix + validation.NormalizeCode(rec.UserCode),
	}
	res, err := createScript.Run(ctx, s.client, keys,
		data, ttl.Milliseconds(), rec.DeviceCode, devicePrefix).Text()
	if err != nil {
		return fmt.Errorf("creating record: %w", err)
	}
	switch res {
	case "device":
		return ErrDeviceCodeExists
	case "user":
		return ErrUserCodeExists
	}
	return nil
}

func (s *RedisStore) GetByDeviceCode(ctx context.Context, deviceCode string) (*Record, error) {
	data, err := s.client.Get(ctx, devicePrefix+deviceCode).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshaling record: %w", err)
	}
	return &rec, nil
}

func (s *RedisStore) GetByUserCode(ctx context.Context, userCode string) (*Record, error) {
	deviceCode, err := s.client.Get(ctx, userPrefix+validation.NormalizeCode(userCode)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting user code index: %w", err)
	}
	return s.GetByDeviceCode(ctx, deviceCode)
}

func (s *RedisStore) Approve(ctx context.Context, deviceCode, subject string, at time.Time) error {
	return s.transition(ctx, deviceCode, StatusPending, StatusApproved, subject)
}

func (s *RedisStore) Deny(ctx context.Context, deviceCode, subject string, at time.Time) error {
	return s.transition(ctx, deviceCode, StatusPending, StatusDenied, "")
}

func (s *RedisStore) Transition(ctx context.Context, deviceCode string, from, to Status) error {
	return s.transition(ctx, deviceCode, from, to, "")
}

func (s *RedisStore) transition(ctx context.Context, deviceCode string, from, to Status, subject string) error {
	res, err := transitionScript.Run(ctx, s.client,
		[]string{devicePrefix + deviceCode},
		string(from), string(to), subject).Text()
	if err != nil {
		return fmt.Errorf("transitioning record: %w", err)
	}
	if res != "ok" {
		return ErrConflict
	}
	return nil
}

func (s *RedisStore) RecordPoll(ctx context.Context, deviceCode string, at time.Time, interval int) error {
	res, err := pollScript.Run(ctx, s.client,
		[]string{devicePrefix + deviceCode},
		at.UTC().Format(time.RFC3339Nano), interval).Text()
	if err != nil {
		return fmt.Errorf("recording poll: %w", err)
	}
	if res != "ok" {
		return ErrConflict
	}
	return nil
}

// DeleteExpiredBefore is a no-op on Redis: record and index keys carry a
// TTL matching the record deadline, so the backend purges for us.
func (s *RedisStore) DeleteExpiredBefore(ctx context.Context, t time.Time) (int, error) {
	return 0, nil
}

func (s *RedisStore) CheckHealth(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}
