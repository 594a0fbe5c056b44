// Package quota decides whether a request fits the owner's daily budget and records it.
package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/codeforge/gateway/internal/domain"
	"github.com/codeforge/gateway/internal/domain/tier"
	domtok "github.com/codeforge/gateway/internal/domain/token"
	"github.com/codeforge/gateway/internal/domain/usage"
	"github.com/codeforge/gateway/internal/logger"
	"github.com/codeforge/gateway/internal/metrics"
)

// TokenUsage is one token's contribution to today's aggregate.
type TokenUsage struct {
	Token domtok.Token
	Today int64 // zero when the stored counter belongs to an earlier day
}

// Summary is a read-only view of an owner's usage.
type Summary struct {
	Aggregate usage.Aggregate
	Tokens    []TokenUsage
}

// Service is the quota tracker. It holds no state between calls;
// every figure is recomputed from the store.
type Service struct {
	repo Repository
	now  func() time.Time
}

// New creates a quota tracker.
func New(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// AdmitAndRecord admits one request on credential if the owner's aggregate for
// today is below the effective ceiling, and charges it to the token.
//
// Rejection leaves every record untouched. Two concurrent admits on different
// tokens of one owner may both pass at the boundary; only the per-token add is atomic.
func (s *Service) AdmitAndRecord(
	ctx context.Context, credential string, decodedTier tier.Tier, owner string,
) (usage.Admission, error) {
	now := s.now().UTC()
	log := logger.FromContext(ctx)

	own, err := s.repo.Get(ctx, credential)
	if err != nil {
		s.observe(decodedTier, err)
		return usage.Admission{}, fmt.Errorf("load token: %w", err)
	}

	tokens, err := s.repo.ListByOwner(ctx, owner)
	if err != nil {
		s.observe(decodedTier, err)
		return usage.Admission{}, fmt.Errorf("load owner tokens: %w", err)
	}
	tokens = withToken(tokens, own)

	agg := aggregate(owner, tokens, now)
	if agg.Exhausted() {
		metrics.AdmissionsTotal.WithLabelValues(decodedTier.String(), metrics.OutcomeRejected).Inc()
		log.Info("admission rejected",
			zap.String("owner", owner),
			zap.Int64("aggregate", agg.Used()),
			zap.Int64("ceiling", agg.Ceiling()),
		)
		return usage.Admission{}, domain.NewQuotaExceeded(agg.Used(), agg.Ceiling())
	}

	count, err := s.charge(ctx, own, now)
	if err != nil {
		s.observe(decodedTier, err)
		log.Error("charge token", zap.String("owner", owner), zap.Error(err))
		return usage.Admission{}, fmt.Errorf("record request: %w", err)
	}

	metrics.AdmissionsTotal.WithLabelValues(decodedTier.String(), metrics.OutcomeAdmitted).Inc()
	return usage.Admission{
		Admitted:            true,
		RequestsUsedOnToken: count,
		AggregateToday:      agg.Used() + 1,
		Ceiling:             agg.Ceiling(),
	}, nil
}

// Summary reports the owner's usage for today without mutating anything.
func (s *Service) Summary(ctx context.Context, owner string) (Summary, error) {
	now := s.now().UTC()

	tokens, err := s.repo.ListByOwner(ctx, owner)
	if err != nil {
		return Summary{}, fmt.Errorf("load owner tokens: %w", err)
	}

	out := Summary{
		Aggregate: aggregate(owner, tokens, now),
		Tokens:    make([]TokenUsage, len(tokens)),
	}
	for i, tok := range tokens {
		out.Tokens[i] = TokenUsage{Token: tok, Today: tok.CountToday(now)}
	}
	return out, nil
}

// charge starts a new window on a stale token or increments a current one.
// A lost reset means a concurrent request already rolled the token over today.
func (s *Service) charge(ctx context.Context, own domtok.Token, now time.Time) (int64, error) {
	if own.Stale(now) {
		won, err := s.repo.ResetIfUnchanged(ctx, own.Credential(), own.LastReset(), now)
		if err != nil {
			return 0, err
		}
		if won {
			return 1, nil
		}
	}
	return s.repo.Increment(ctx, own.Credential())
}

func (s *Service) observe(t tier.Tier, err error) {
	if errors.Is(err, domain.ErrTokenNotFound) {
		metrics.AdmissionsTotal.WithLabelValues(t.String(), metrics.OutcomeRejected).Inc()
		return
	}
	metrics.AdmissionsTotal.WithLabelValues(t.String(), metrics.OutcomeError).Inc()
}

// aggregate sums today's counts and picks the highest ceiling among tokens.
func aggregate(owner string, tokens []domtok.Token, now time.Time) usage.Aggregate {
	var used int64
	tiers := make([]tier.Tier, 0, len(tokens))
	for _, tok := range tokens {
		used += tok.CountToday(now)
		tiers = append(tiers, tok.Tier())
	}
	return usage.NewAggregate(owner, now, used, tier.Max(tiers...).Ceiling(), len(tokens))
}

// withToken makes sure own is counted even if the owner index lags behind.
func withToken(tokens []domtok.Token, own domtok.Token) []domtok.Token {
	for _, tok := range tokens {
		if tok.Credential() == own.Credential() {
			return tokens
		}
	}
	return append(tokens, own)
}
