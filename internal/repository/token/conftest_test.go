package token

import (
	"context"
	"testing"
	"time"

	"github.com/codeforge/gateway/internal/domain/tier"
	domtok "github.com/codeforge/gateway/internal/domain/token"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	hgetAllFn      func(ctx context.Context, key string) (map[string]string, error)
	hgetAllMultiFn func(ctx context.Context, keys []string) ([]map[string]string, error)
	hincrByFn      func(ctx context.Context, key, field string, delta int64) (int64, error)
	hsetIfEqualFn  func(ctx context.Context, key, guard, expected string, fields map[string]string) (bool, error)
	hsetIndexedFn  func(ctx context.Context, key string, fields map[string]string, indexKey string) error
	delIndexedFn   func(ctx context.Context, key, indexKey string) error
	smembersFn     func(ctx context.Context, key string) ([]string, error)
	sremFn         func(ctx context.Context, key string, members ...string) error
}

func (m *mockStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if m.hgetAllFn != nil {
		return m.hgetAllFn(ctx, key)
	}
	return map[string]string{}, nil
}

func (m *mockStore) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	if m.hgetAllMultiFn != nil {
		return m.hgetAllMultiFn(ctx, keys)
	}
	return nil, nil
}

func (m *mockStore) HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error) {
	if m.hincrByFn != nil {
		return m.hincrByFn(ctx, key, field, delta)
	}
	return delta, nil
}

func (m *mockStore) HSetIfEqual(
	ctx context.Context, key, guard, expected string, fields map[string]string,
) (bool, error) {
	if m.hsetIfEqualFn != nil {
		return m.hsetIfEqualFn(ctx, key, guard, expected, fields)
	}
	return true, nil
}

func (m *mockStore) HSetIndexed(ctx context.Context, key string, fields map[string]string, indexKey string) error {
	if m.hsetIndexedFn != nil {
		return m.hsetIndexedFn(ctx, key, fields, indexKey)
	}
	return nil
}

func (m *mockStore) DelIndexed(ctx context.Context, key, indexKey string) error {
	if m.delIndexedFn != nil {
		return m.delIndexedFn(ctx, key, indexKey)
	}
	return nil
}

func (m *mockStore) SMembers(ctx context.Context, key string) ([]string, error) {
	if m.smembersFn != nil {
		return m.smembersFn(ctx, key)
	}
	return nil, nil
}

func (m *mockStore) SRem(ctx context.Context, key string, members ...string) error {
	if m.sremFn != nil {
		return m.sremFn(ctx, key, members...)
	}
	return nil
}

var testNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms), ms
}

func testToken(t *testing.T, credential string) domtok.Token {
	t.Helper()
	tok, err := domtok.New(credential, tier.Hobby, "dev@example.com", testNow)
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	return tok
}
