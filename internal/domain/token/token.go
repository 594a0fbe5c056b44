// Package token holds the per-credential usage record.
package token

import (
	"fmt"
	"strings"
	"time"

	"github.com/codeforge/gateway/internal/domain"
	"github.com/codeforge/gateway/internal/domain/tier"
	"github.com/codeforge/gateway/internal/domain/usage"
)

// Token is the usage record of one credential (immutable value object).
// requestCount counts admitted requests since lastReset, for this token only.
type Token struct {
	credential   string
	tier         tier.Tier
	owner        string
	createdAt    time.Time
	requestCount int64
	lastReset    time.Time
}

// New validates and creates a fresh record with a zero count and lastReset == createdAt.
func New(credential string, t tier.Tier, owner string, now time.Time) (Token, error) {
	if credential == "" {
		return Token{}, fmt.Errorf("%w: credential is required", domain.ErrInvalidCredential)
	}
	if !t.Valid() {
		return Token{}, fmt.Errorf("%w: %q", domain.ErrInvalidTier, t)
	}
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return Token{}, fmt.Errorf("%w: owner is required", domain.ErrInvalidOwner)
	}
	now = now.UTC()
	return Token{
		credential: credential,
		tier:       t,
		owner:      owner,
		createdAt:  now,
		lastReset:  now,
	}, nil
}

// Reconstruct creates a Token without validation (storage hydration).
func Reconstruct(
	credential string, t tier.Tier, owner string,
	createdAt time.Time, requestCount int64, lastReset time.Time,
) Token {
	return Token{
		credential:   credential,
		tier:         t,
		owner:        owner,
		createdAt:    createdAt,
		requestCount: requestCount,
		lastReset:    lastReset,
	}
}

// Credential returns the signed credential (also the store key).
func (t *Token) Credential() string { return t.credential }

// Tier returns the quota class.
func (t *Token) Tier() tier.Tier { return t.tier }

// Owner returns the owner identity.
func (t *Token) Owner() string { return t.owner }

// CreatedAt returns the issuance time.
func (t *Token) CreatedAt() time.Time { return t.createdAt }

// RequestCount returns the raw stored counter.
func (t *Token) RequestCount() int64 { return t.requestCount }

// LastReset returns the start of the current counting window.
func (t *Token) LastReset() time.Time { return t.lastReset }

// Stale reports whether the counter belongs to a day before now's day.
func (t *Token) Stale(now time.Time) bool {
	return usage.Day(t.lastReset).Before(usage.Day(now))
}

// CountToday returns the counter if it belongs to now's day, otherwise zero.
// A counter dated after today (clock skew) is counted as today.
func (t *Token) CountToday(now time.Time) int64 {
	if t.Stale(now) {
		return 0
	}
	return t.requestCount
}
