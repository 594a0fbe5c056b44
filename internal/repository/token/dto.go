package token

import (
	"fmt"
	"strconv"
	"time"

	"github.com/codeforge/gateway/internal/domain/tier"
	domtok "github.com/codeforge/gateway/internal/domain/token"
)

const (
	fieldTier         = "tier"
	fieldOwner        = "owner"
	fieldCreatedAt    = "createdAt"
	fieldRequestCount = "requestCount"
	fieldLastReset    = "lastReset"
)

// tokenToHash converts a domain Token to a map for HSET.
func tokenToHash(tok domtok.Token) map[string]string {
	return map[string]string{
		fieldTier:         tok.Tier().String(),
		fieldOwner:        tok.Owner(),
		fieldCreatedAt:    formatTime(tok.CreatedAt()),
		fieldRequestCount: strconv.FormatInt(tok.RequestCount(), 10),
		fieldLastReset:    formatTime(tok.LastReset()),
	}
}

// tokenFromHash hydrates a domain Token from an HGETALL result map.
// An unknown tier is kept as stored; tier.Ceiling treats it as the lowest tier.
func tokenFromHash(credential string, m map[string]string) (domtok.Token, error) {
	createdAt, err := parseTime(m[fieldCreatedAt])
	if err != nil {
		return domtok.Token{}, fmt.Errorf("invalid createdAt: %w", err)
	}
	lastReset, err := parseTime(m[fieldLastReset])
	if err != nil {
		return domtok.Token{}, fmt.Errorf("invalid lastReset: %w", err)
	}

	var count int64
	if s := m[fieldRequestCount]; s != "" {
		count, err = strconv.ParseInt(s, 10, 64)
		if err != nil {
			return domtok.Token{}, fmt.Errorf("invalid requestCount: %w", err)
		}
	}
	if count < 0 {
		count = 0
	}

	return domtok.Reconstruct(credential, tier.Tier(m[fieldTier]), m[fieldOwner], createdAt, count, lastReset), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
