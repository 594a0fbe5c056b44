package redis

import (
	"context"
	"fmt"
	"sort"

	"github.com/redis/rueidis"

	"github.com/codeforge/gateway/internal/db"
)

// HGetAll returns all fields of a hash. A missing key yields an empty map.
func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	cmd := s.b().Hgetall().Key(key).Build()
	m, err := s.do(ctx, cmd).AsStrMap()
	if err != nil {
		return nil, &db.Error{Op: db.OpHGetAll, Err: err}
	}
	return m, nil
}

// HGetAllMulti fetches all fields for multiple hashes in a single DoMulti round-trip.
func (s *Store) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	cmds := make([]rueidis.Completed, len(keys))
	for i, key := range keys {
		cmds[i] = s.b().Hgetall().Key(key).Build()
	}

	results := s.doMulti(ctx, cmds...)
	out := make([]map[string]string, len(results))

	for i, res := range results {
		m, err := res.AsStrMap()
		if err != nil {
			return nil, &db.Error{Op: db.OpHGetAll, Err: fmt.Errorf("key %s: %w", keys[i], err)}
		}
		out[i] = m
	}

	return out, nil
}

// HSetIndexed writes the hash and adds key to the index set atomically.
func (s *Store) HSetIndexed(ctx context.Context, key string, fields map[string]string, indexKey string) error {
	results := s.doMulti(ctx,
		s.b().Multi().Build(),
		s.hset(key, fields),
		s.b().Sadd().Key(indexKey).Member(key).Build(),
		s.b().Exec().Build(),
	)
	if err := execError(results); err != nil {
		return &db.Error{Op: db.OpMulti, Err: fmt.Errorf("hset+sadd %s: %w", key, err)}
	}
	return nil
}

// DelIndexed deletes the hash and removes key from the index set atomically.
func (s *Store) DelIndexed(ctx context.Context, key, indexKey string) error {
	results := s.doMulti(ctx,
		s.b().Multi().Build(),
		s.b().Del().Key(key).Build(),
		s.b().Srem().Key(indexKey).Member(key).Build(),
		s.b().Exec().Build(),
	)
	if err := execError(results); err != nil {
		return &db.Error{Op: db.OpMulti, Err: fmt.Errorf("del+srem %s: %w", key, err)}
	}
	return nil
}

// hset builds HSET with fields in sorted order so commands are deterministic.
func (s *Store) hset(key string, fields map[string]string) rueidis.Completed {
	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	sort.Strings(names)

	cmd := s.b().Hset().Key(key).FieldValue()
	for _, k := range names {
		cmd = cmd.FieldValue(k, fields[k])
	}
	return cmd.Build()
}

// execError reports the first failure of a MULTI/EXEC round-trip, including
// errors of individual commands inside the EXEC reply.
func execError(results []rueidis.RedisResult) error {
	for _, res := range results {
		if err := res.Error(); err != nil {
			return err
		}
	}
	if len(results) == 0 {
		return nil
	}
	replies, err := results[len(results)-1].ToArray()
	if err != nil {
		return err
	}
	for i := range replies {
		if err := replies[i].Error(); err != nil {
			return err
		}
	}
	return nil
}
