package db

import (
	"context"
	"time"
)

// Store is the main database facade combining all sub-interfaces.
// Consumers declare the narrow subset they use.
type Store interface {
	Pinger
	HashStore
	CounterStore
	SetStore
	IndexedHashStore
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashStore reads hashes. Writes go through IndexedHashStore and CounterStore.
type HashStore interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
}

// CounterStore provides single-record atomic updates, each executed server-side
// in one step so concurrent callers never lose an update.
type CounterStore interface {
	// HIncrBy adds delta to an integer hash field and returns the new value.
	// Fails with ErrKeyNotFound instead of creating the hash.
	HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error)
	// HSetIfEqual overwrites fields only while guardField still holds expected.
	// Reports whether the write happened; ErrKeyNotFound if the hash is gone.
	HSetIfEqual(ctx context.Context, key, guardField, expected string, fields map[string]string) (bool, error)
}

// SetStore reads and prunes index sets. Members are added by IndexedHashStore.
type SetStore interface {
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
}

// IndexedHashStore writes or removes a hash together with its membership in a
// secondary index set, in one MULTI/EXEC transaction.
type IndexedHashStore interface {
	HSetIndexed(ctx context.Context, key string, fields map[string]string, indexKey string) error
	DelIndexed(ctx context.Context, key, indexKey string) error
}
