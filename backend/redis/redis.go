// Package redis provides a backend.Conn over a Redis server or cluster.
//
// Redis has no native CAS token, so every entry is a hash with two fields:
// "v" holds the raw value bytes and "c" a write counter that serves as the
// token. All conditional operations (add, replace, compare-and-swap,
// token-conditioned delete) run as server-side Lua scripts so the
// check-and-write is atomic; the counter is bumped inside the same script.
package redis

import (
	"context"
	"errors"
	"strconv"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/nsstore/backend"
)

var ErrNilClient = errors.New("redis backend: nil client")

var (
	addScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then return 0 end
redis.call('HSET', KEYS[1], 'v', ARGV[1], 'c', 1)
local exp = tonumber(ARGV[2])
if exp > 0 then redis.call('EXPIREAT', KEYS[1], exp) end
return 1`)

	replaceScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then return 0 end
redis.call('HSET', KEYS[1], 'v', ARGV[1])
redis.call('HINCRBY', KEYS[1], 'c', 1)
local exp = tonumber(ARGV[2])
if exp > 0 then redis.call('EXPIREAT', KEYS[1], exp) else redis.call('PERSIST', KEYS[1]) end
return 1`)

	casScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then return -1 end
if redis.call('HGET', KEYS[1], 'c') ~= ARGV[3] then return 0 end
redis.call('HSET', KEYS[1], 'v', ARGV[1])
redis.call('HINCRBY', KEYS[1], 'c', 1)
local exp = tonumber(ARGV[2])
if exp > 0 then redis.call('EXPIREAT', KEYS[1], exp) else redis.call('PERSIST', KEYS[1]) end
return 1`)

	touchScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then return 0 end
local exp = tonumber(ARGV[1])
if exp > 0 then redis.call('EXPIREAT', KEYS[1], exp) else redis.call('PERSIST', KEYS[1]) end
return 1`)

	deleteCASScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then return -1 end
if redis.call('HGET', KEYS[1], 'c') ~= ARGV[1] then return 0 end
redis.call('DEL', KEYS[1])
return 1`)
)

type Redis struct {
	rdb         goredis.UniversalClient
	closeClient bool
}

var _ backend.Conn = (*Redis)(nil)

type Config struct {
	Client      goredis.UniversalClient
	CloseClient bool // set true only if this backend exclusively owns the client
}

func New(cfg Config) (*Redis, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	return &Redis{rdb: cfg.Client, closeClient: cfg.CloseClient}, nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, uint64, bool, error) {
	vals, err := r.rdb.HMGet(ctx, key, "v", "c").Result()
	if err != nil {
		return nil, 0, false, err
	}
	if len(vals) != 2 || vals[0] == nil || vals[1] == nil {
		return nil, 0, false, nil // miss (or foreign non-hash entry)
	}
	value, err := fieldBytes(vals[0])
	if err != nil {
		return nil, 0, false, err
	}
	token, err := fieldUint(vals[1])
	if err != nil {
		return nil, 0, false, err
	}
	return value, token, true, nil
}

func (r *Redis) Add(ctx context.Context, key string, value []byte, expiration int64) (bool, error) {
	n, err := addScript.Run(ctx, r.rdb, []string{key}, value, expiration).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *Redis) Replace(ctx context.Context, key string, value []byte, expiration int64) (bool, error) {
	n, err := replaceScript.Run(ctx, r.rdb, []string{key}, value, expiration).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *Redis) CompareAndSwap(ctx context.Context, key string, value []byte, expiration int64, token uint64) (backend.CASOutcome, error) {
	n, err := casScript.Run(ctx, r.rdb, []string{key},
		value, expiration, strconv.FormatUint(token, 10)).Int64()
	if err != nil {
		return backend.CASConflict, err
	}
	return outcome(n), nil
}

func (r *Redis) Touch(ctx context.Context, key string, expiration int64) (bool, error) {
	n, err := touchScript.Run(ctx, r.rdb, []string{key}, expiration).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *Redis) Delete(ctx context.Context, key string) (bool, error) {
	n, err := r.rdb.Del(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *Redis) DeleteWithToken(ctx context.Context, key string, token uint64) (backend.CASOutcome, error) {
	n, err := deleteCASScript.Run(ctx, r.rdb, []string{key}, strconv.FormatUint(token, 10)).Int64()
	if err != nil {
		return backend.CASConflict, err
	}
	return outcome(n), nil
}

// Close releases the underlying client only when this backend owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (r *Redis) Close(context.Context) error {
	if r.closeClient {
		if err := r.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}

func outcome(n int64) backend.CASOutcome {
	switch n {
	case 1:
		return backend.CASStored
	case 0:
		return backend.CASConflict
	default:
		return backend.CASNotFound
	}
}

func fieldBytes(v any) ([]byte, error) {
	switch vv := v.(type) {
	case string:
		return []byte(vv), nil
	case []byte:
		return vv, nil
	default:
		return nil, errors.New("redis backend: unexpected value field type")
	}
}

func fieldUint(v any) (uint64, error) {
	switch vv := v.(type) {
	case string:
		return strconv.ParseUint(vv, 10, 64)
	case []byte:
		return strconv.ParseUint(string(vv), 10, 64)
	default:
		return 0, errors.New("redis backend: unexpected token field type")
	}
}
