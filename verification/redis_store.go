package verification

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "hms:verif"

// consumeRecordLua marks a record used when the token matches and the record
// is live. The reply is a status word mapped by scriptStatus.
var consumeRecordLua = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return "not_found"
end
local f = redis.call("HMGET", KEYS[1], "is_used", "expires_us", "token", "attempts", "max_attempts", "is_blocked")
if f[1] == "1" then
	return "used"
end
if tonumber(f[2]) <= tonumber(ARGV[2]) then
	return "expired"
end
if f[3] ~= ARGV[1] then
	return "invalid"
end
if f[6] == "1" or tonumber(f[4]) >= tonumber(f[5]) then
	return "blocked"
end
redis.call("HSET", KEYS[1], "is_used", "1", "used_at", ARGV[3])
return "ok"
`)

// failRecordLua counts one failed attempt and blocks the record at the cap.
var failRecordLua = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return "not_found"
end
local f = redis.call("HMGET", KEYS[1], "attempts", "max_attempts", "is_blocked")
local max = tonumber(f[2])
if f[3] == "1" or tonumber(f[1]) >= max then
	return "blocked"
end
local attempts = redis.call("HINCRBY", KEYS[1], "attempts", 1)
if attempts >= max then
	redis.call("HSET", KEYS[1], "is_blocked", "1")
end
return "ok"
`)

// updateRecordLua overwrites the fields of an existing record. HSET leaves
// the key TTL in place.
var updateRecordLua = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return "not_found"
end
redis.call("HSET", KEYS[1], unpack(ARGV))
return "ok"
`)

// RedisStore keeps each record as a hash under its own key with a TTL equal
// to the retention window, plus a newest-first id list per (kind, email).
// Consume and RecordFailure run as server-side scripts.
type RedisStore struct {
	redis     redis.UniversalClient
	prefix    string
	retention time.Duration
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore returns a store using client. An empty prefix selects the
// default key prefix.
func NewRedisStore(client redis.UniversalClient, prefix string, retention time.Duration) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &RedisStore{
		redis:     client,
		prefix:    prefix,
		retention: retention,
	}
}

func (s *RedisStore) recordKey(id string) string {
	return s.prefix + ":rec:" + id
}

func (s *RedisStore) indexKey(email string, kind Kind) string {
	return s.prefix + ":idx:" + string(kind) + ":" + email
}

func (s *RedisStore) Create(ctx context.Context, r *Record) error {
	key := s.recordKey(r.ID)
	idx := s.indexKey(r.Email, r.Kind)
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, recordFields(r)...)
		pipe.Expire(ctx, key, s.retention)
		pipe.LPush(ctx, idx, r.ID)
		pipe.Expire(ctx, idx, s.retention)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) FindRedeemable(ctx context.Context, email, token string, kind Kind, now time.Time) (*Record, error) {
	records, err := s.load(ctx, email, kind)
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if r.Redeemable(token, now) {
			return r, nil
		}
	}
	return nil, ErrNotFound
}

func (s *RedisStore) Latest(ctx context.Context, email string, kind Kind) (*Record, error) {
	records, err := s.load(ctx, email, kind)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return records[0], nil
}

func (s *RedisStore) Consume(ctx context.Context, id, token string, now time.Time) (*Record, error) {
	key := s.recordKey(id)
	status, err := consumeRecordLua.Run(ctx, s.redis, []string{key},
		token,
		now.UnixMicro(),
		now.UTC().Format(time.RFC3339Nano),
	).Text()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := scriptStatus(status); err != nil {
		return nil, err
	}
	return s.get(ctx, key)
}

func (s *RedisStore) RecordFailure(ctx context.Context, id string) (*Record, error) {
	key := s.recordKey(id)
	status, err := failRecordLua.Run(ctx, s.redis, []string{key}).Text()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := scriptStatus(status); err != nil {
		return nil, err
	}
	return s.get(ctx, key)
}

func (s *RedisStore) Update(ctx context.Context, r *Record) error {
	status, err := updateRecordLua.Run(ctx, s.redis, []string{s.recordKey(r.ID)}, recordFields(r)...).Text()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return scriptStatus(status)
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	key := s.recordKey(id)
	vals, err := s.redis.HMGet(ctx, key, "email", "kind").Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	email, _ := vals[0].(string)
	kind, _ := vals[1].(string)
	if email == "" && kind == "" {
		return nil
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.LRem(ctx, s.indexKey(email, Kind(kind)), 0, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) get(ctx context.Context, key string) (*Record, error) {
	fields, err := s.redis.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return parseRecord(fields)
}

// load returns the live records for email and kind, newest first.
func (s *RedisStore) load(ctx context.Context, email string, kind Kind) ([]*Record, error) {
	ids, err := s.redis.LRange(ctx, s.indexKey(email, kind), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, s.recordKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	out := make([]*Record, 0, len(cmds))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		r, err := parseRecord(fields)
		if err != nil {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func scriptStatus(status string) error {
	switch status {
	case "ok":
		return nil
	case "not_found":
		return ErrNotFound
	case "used":
		return ErrAlreadyUsed
	case "expired":
		return ErrExpired
	case "invalid":
		return ErrInvalidToken
	case "blocked":
		return ErrTooManyAttempts
	}
	return fmt.Errorf("%w: unexpected script reply %q", ErrUnavailable, status)
}

func recordFields(r *Record) []interface{} {
	usedAt := ""
	if r.UsedAt != nil {
		usedAt = r.UsedAt.UTC().Format(time.RFC3339Nano)
	}
	return []interface{}{
		"id", r.ID,
		"email", r.Email,
		"token", r.Token,
		"kind", string(r.Kind),
		"expires_at", r.ExpiresAt.UTC().Format(time.RFC3339Nano),
		"expires_us", strconv.FormatInt(r.ExpiresAt.UnixMicro(), 10),
		"is_used", boolField(r.IsUsed),
		"used_at", usedAt,
		"attempts", strconv.Itoa(r.Attempts),
		"max_attempts", strconv.Itoa(r.MaxAttempts),
		"is_blocked", boolField(r.IsBlocked),
		"tenant_id", r.Subject.TenantID,
		"admin_id", r.Subject.AdminID,
		"created_at", r.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func parseRecord(f map[string]string) (*Record, error) {
	r := &Record{
		ID:        f["id"],
		Email:     f["email"],
		Token:     f["token"],
		Kind:      Kind(f["kind"]),
		IsUsed:    f["is_used"] == "1",
		IsBlocked: f["is_blocked"] == "1",
		Subject: Subject{
			TenantID: f["tenant_id"],
			AdminID:  f["admin_id"],
		},
	}

	var err error
	if r.ExpiresAt, err = time.Parse(time.RFC3339Nano, f["expires_at"]); err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}
	if r.CreatedAt, err = time.Parse(time.RFC3339Nano, f["created_at"]); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if v := f["used_at"]; v != "" {
		usedAt, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, fmt.Errorf("parse used_at: %w", err)
		}
		r.UsedAt = &usedAt
	}
	if r.Attempts, err = strconv.Atoi(f["attempts"]); err != nil {
		return nil, fmt.Errorf("parse attempts: %w", err)
	}
	if r.MaxAttempts, err = strconv.Atoi(f["max_attempts"]); err != nil {
		return nil, fmt.Errorf("parse max_attempts: %w", err)
	}
	if r.ID == "" {
		return nil, errors.New("record id missing")
	}
	return r, nil
}

func boolField(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
