package token

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/codeforge/gateway/internal/db"
	"github.com/codeforge/gateway/internal/domain"
	domtok "github.com/codeforge/gateway/internal/domain/token"
	"github.com/codeforge/gateway/internal/logger"
)

// store is the consumer interface for token records (ISP).
type store interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error)
	HSetIfEqual(ctx context.Context, key, guardField, expected string, fields map[string]string) (bool, error)
	HSetIndexed(ctx context.Context, key string, fields map[string]string, indexKey string) error
	DelIndexed(ctx context.Context, key, indexKey string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	SRem(ctx context.Context, key string, members ...string) error
}

// Repo implements the token store adapter on top of hashes plus an owner set.
type Repo struct {
	store  store
	prefix string
}

// New creates a token repository.
func New(s store) *Repo {
	return &Repo{store: s, prefix: domain.DefaultKeyPrefix}
}

// WithKeyPrefix overrides the key namespace.
func (r *Repo) WithKeyPrefix(prefix string) *Repo {
	if prefix != "" {
		r.prefix = prefix
	}
	return r
}

// Create persists a fresh record and indexes it under its owner in one transaction.
func (r *Repo) Create(ctx context.Context, tok domtok.Token) error {
	key := r.tokenKey(tok.Credential())
	if err := r.store.HSetIndexed(ctx, key, tokenToHash(tok), r.ownerKey(tok.Owner())); err != nil {
		return domain.Unavailable(fmt.Errorf("create token: %w", err))
	}
	return nil
}

// Get loads one record by credential.
func (r *Repo) Get(ctx context.Context, credential string) (domtok.Token, error) {
	m, err := r.store.HGetAll(ctx, r.tokenKey(credential))
	if err != nil {
		return domtok.Token{}, domain.Unavailable(fmt.Errorf("hgetall token: %w", err))
	}
	if len(m) == 0 {
		return domtok.Token{}, domain.ErrTokenNotFound
	}
	tok, err := tokenFromHash(credential, m)
	if err != nil {
		return domtok.Token{}, domain.Unavailable(fmt.Errorf("parse token: %w", err))
	}
	return tok, nil
}

// ListByOwner returns every record of owner, oldest first.
// Index entries whose hash is gone are pruned lazily; unreadable records are
// skipped so one bad hash does not lock the owner out.
func (r *Repo) ListByOwner(ctx context.Context, owner string) ([]domtok.Token, error) {
	ownerKey := r.ownerKey(owner)
	keys, err := r.store.SMembers(ctx, ownerKey)
	if err != nil {
		return nil, domain.Unavailable(fmt.Errorf("smembers owner: %w", err))
	}
	if len(keys) == 0 {
		return []domtok.Token{}, nil
	}
	sort.Strings(keys)

	results, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, domain.Unavailable(fmt.Errorf("hgetall multi tokens: %w", err))
	}

	tokens := make([]domtok.Token, 0, len(results))
	var dangling []string
	for i, m := range results {
		if len(m) == 0 {
			dangling = append(dangling, keys[i])
			continue
		}
		tok, err := tokenFromHash(r.credentialOf(keys[i]), m)
		if err != nil {
			logger.FromContext(ctx).Warn("skipping unreadable token record",
				zap.String("owner", owner), zap.Error(err))
			continue
		}
		tokens = append(tokens, tok)
	}

	if len(dangling) > 0 {
		// best effort; a stale member only costs an empty read
		_ = r.store.SRem(ctx, ownerKey, dangling...)
	}

	sort.SliceStable(tokens, func(i, j int) bool {
		return tokens[i].CreatedAt().Before(tokens[j].CreatedAt())
	})
	return tokens, nil
}

// Increment atomically adds one to the record's counter and returns the new value.
func (r *Repo) Increment(ctx context.Context, credential string) (int64, error) {
	n, err := r.store.HIncrBy(ctx, r.tokenKey(credential), fieldRequestCount, 1)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return 0, domain.ErrTokenNotFound
		}
		return 0, domain.Unavailable(fmt.Errorf("increment token: %w", err))
	}
	return n, nil
}

// ResetIfUnchanged starts a new counting window {requestCount=1, lastReset=now}
// only while lastReset still equals observed. It reports whether it won.
func (r *Repo) ResetIfUnchanged(ctx context.Context, credential string, observed, now time.Time) (bool, error) {
	ok, err := r.store.HSetIfEqual(ctx, r.tokenKey(credential), fieldLastReset, formatTime(observed),
		map[string]string{
			fieldRequestCount: strconv.FormatInt(1, 10),
			fieldLastReset:    formatTime(now),
		})
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return false, domain.ErrTokenNotFound
		}
		return false, domain.Unavailable(fmt.Errorf("reset token: %w", err))
	}
	return ok, nil
}

// Delete removes the record and its owner-index membership.
func (r *Repo) Delete(ctx context.Context, tok domtok.Token) error {
	if err := r.store.DelIndexed(ctx, r.tokenKey(tok.Credential()), r.ownerKey(tok.Owner())); err != nil {
		return domain.Unavailable(fmt.Errorf("delete token: %w", err))
	}
	return nil
}

func (r *Repo) tokenKey(credential string) string {
	return fmt.Sprintf("%stoken:%s", r.prefix, credential)
}

func (r *Repo) ownerKey(owner string) string {
	return fmt.Sprintf("%sowner:%s", r.prefix, owner)
}

func (r *Repo) credentialOf(key string) string {
	return key[len(r.prefix)+len("token:"):]
}
