package redis

import (
	"context"
	"sort"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/codeforge/gateway/internal/db"
)

// hincrbyExisting increments a hash field only if the hash exists, so an
// increment racing a delete never resurrects a partial record.
var hincrbyExisting = rueidis.NewLuaScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return false
end
return redis.call('HINCRBY', KEYS[1], ARGV[1], ARGV[2])
`)

// hsetIfEqual is a compare-and-set over one guard field.
// Returns -1 when the hash is gone, 0 when the guard moved, 1 when written.
var hsetIfEqual = rueidis.NewLuaScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
if redis.call('HGET', KEYS[1], ARGV[1]) ~= ARGV[2] then
  return 0
end
for i = 3, #ARGV, 2 do
  redis.call('HSET', KEYS[1], ARGV[i], ARGV[i + 1])
end
return 1
`)

// HIncrBy atomically adds delta to field and returns the new value.
func (s *Store) HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	n, err := hincrbyExisting.Exec(ctx, s.client, []string{key}, []string{field, strconv.FormatInt(delta, 10)}).AsInt64()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return 0, db.ErrKeyNotFound
		}
		return 0, &db.Error{Op: db.OpHIncrBy, Err: err}
	}
	return n, nil
}

// HSetIfEqual overwrites fields while guardField still equals expected.
func (s *Store) HSetIfEqual(
	ctx context.Context, key, guardField, expected string, fields map[string]string,
) (bool, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	sort.Strings(names)

	args := make([]string, 0, 2+2*len(fields))
	args = append(args, guardField, expected)
	for _, k := range names {
		args = append(args, k, fields[k])
	}

	res, err := hsetIfEqual.Exec(ctx, s.client, []string{key}, args).AsInt64()
	if err != nil {
		return false, &db.Error{Op: db.OpHSetCAS, Err: err}
	}
	switch res {
	case -1:
		return false, db.ErrKeyNotFound
	case 1:
		return true, nil
	default:
		return false, nil
	}
}
