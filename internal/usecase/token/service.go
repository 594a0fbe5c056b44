package token

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/codeforge/gateway/internal/domain"
	"github.com/codeforge/gateway/internal/domain/tier"
	domtok "github.com/codeforge/gateway/internal/domain/token"
	"github.com/codeforge/gateway/internal/logger"
	"github.com/codeforge/gateway/internal/metrics"
)

// Issued is what a caller receives for a freshly minted token.
type Issued struct {
	Credential string
	Tier       tier.Tier
	Owner      string
	DailyLimit int64
	CreatedAt  time.Time
}

// Service issues and revokes tokens.
type Service struct {
	repo   Repository
	signer Signer
	now    func() time.Time
}

// New creates a token service.
func New(repo Repository, signer Signer) *Service {
	return &Service{repo: repo, signer: signer, now: time.Now}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// Issue mints a credential for owner and persists its zeroed usage record.
func (s *Service) Issue(ctx context.Context, tierName, owner string) (Issued, error) {
	t, err := tier.Parse(tierName)
	if err != nil {
		return Issued{}, err
	}
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return Issued{}, fmt.Errorf("%w: owner is required", domain.ErrInvalidOwner)
	}

	cred, claims, err := s.signer.Sign(t, owner)
	if err != nil {
		return Issued{}, fmt.Errorf("sign credential: %w", err)
	}

	tok, err := domtok.New(cred, t, owner, s.now())
	if err != nil {
		return Issued{}, err
	}
	if err := s.repo.Create(ctx, tok); err != nil {
		return Issued{}, fmt.Errorf("store token: %w", err)
	}

	metrics.TokensIssuedTotal.WithLabelValues(t.String()).Inc()
	logger.FromContext(ctx).Info("token issued",
		zap.String("tier", t.String()),
		zap.String("owner", owner),
		zap.String("jti", claims.ID),
	)

	return Issued{
		Credential: cred,
		Tier:       t,
		Owner:      owner,
		DailyLimit: t.Ceiling(),
		CreatedAt:  tok.CreatedAt(),
	}, nil
}

// Revoke deletes the record behind credential. Unknown credentials yield ErrTokenNotFound.
func (s *Service) Revoke(ctx context.Context, credential string) error {
	tok, err := s.repo.Get(ctx, credential)
	if err != nil {
		return fmt.Errorf("get token: %w", err)
	}
	if err := s.repo.Delete(ctx, tok); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	logger.FromContext(ctx).Info("token revoked",
		zap.String("tier", tok.Tier().String()),
		zap.String("owner", tok.Owner()),
	)
	return nil
}
