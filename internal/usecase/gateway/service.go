// Package gateway drives one request through verify, admit and dispatch.
package gateway

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/codeforge/gateway/internal/credential"
	"github.com/codeforge/gateway/internal/domain"
	domexec "github.com/codeforge/gateway/internal/domain/execution"
	"github.com/codeforge/gateway/internal/domain/tier"
	"github.com/codeforge/gateway/internal/domain/usage"
	"github.com/codeforge/gateway/internal/logger"
	"github.com/codeforge/gateway/internal/usecase/quota"
)

const defaultRunnerTimeout = 30 * time.Second

// Outcome is an executed request with the usage figures after admission.
type Outcome struct {
	Result    domexec.Result
	Tier      tier.Tier
	Admission usage.Admission
}

// Service is the request gateway. It keeps nothing between requests.
type Service struct {
	verifier      Verifier
	tracker       Tracker
	dispatcher    Dispatcher
	revoker       Revoker
	runnerTimeout time.Duration
}

// New creates a gateway.
func New(v Verifier, t Tracker, d Dispatcher, r Revoker) *Service {
	return &Service{
		verifier:      v,
		tracker:       t,
		dispatcher:    d,
		revoker:       r,
		runnerTimeout: defaultRunnerTimeout,
	}
}

// WithRunnerTimeout bounds a single runner invocation.
func (s *Service) WithRunnerTimeout(d time.Duration) *Service {
	if d > 0 {
		s.runnerTimeout = d
	}
	return s
}

// Validate checks language and source without touching credentials or quota.
func (s *Service) Validate(language, source string) error {
	_, err := s.dispatcher.Validate(language, source)
	return err
}

// Execute validates the request, verifies the credential, charges the quota
// and dispatches. The charge stays committed if the runner then fails.
func (s *Service) Execute(ctx context.Context, cred, language, source string) (Outcome, error) {
	if _, err := s.dispatcher.Validate(language, source); err != nil {
		return Outcome{}, err
	}

	claims, err := s.verifier.Verify(cred)
	if err != nil {
		return Outcome{}, err
	}
	ctx = logger.WithFields(ctx,
		logger.Credential(cred),
		zap.String("owner", claims.Owner),
		zap.String("tier", claims.Tier.String()),
	)

	adm, err := s.tracker.AdmitAndRecord(ctx, cred, claims.Tier, claims.Owner)
	if err != nil {
		return Outcome{}, err
	}

	// a client disconnect must not abort an execution that was already charged
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.runnerTimeout)
	defer cancel()

	res, err := s.dispatcher.Run(runCtx, language, source)
	if err != nil {
		return Outcome{}, fmt.Errorf("dispatch: %w", err)
	}

	return Outcome{Result: res, Tier: claims.Tier, Admission: adm}, nil
}

// Usage reports today's usage of the credential's owner without charging anything.
func (s *Service) Usage(ctx context.Context, cred string) (credential.Claims, quota.Summary, error) {
	claims, err := s.verifier.Verify(cred)
	if err != nil {
		return credential.Claims{}, quota.Summary{}, err
	}

	sum, err := s.tracker.Summary(ctx, claims.Owner)
	if err != nil {
		return credential.Claims{}, quota.Summary{}, err
	}
	for _, tu := range sum.Tokens {
		if tu.Token.Credential() == cred {
			return claims, sum, nil
		}
	}
	return credential.Claims{}, quota.Summary{}, domain.ErrTokenNotFound
}

// Revoke deletes the credential's record after checking its signature.
func (s *Service) Revoke(ctx context.Context, cred string) error {
	if _, err := s.verifier.Verify(cred); err != nil {
		return err
	}
	return s.revoker.Revoke(ctx, cred)
}

// OwnerTokens lists an owner's tokens with today's usage.
func (s *Service) OwnerTokens(ctx context.Context, owner string) (quota.Summary, error) {
	return s.tracker.Summary(ctx, owner)
}
