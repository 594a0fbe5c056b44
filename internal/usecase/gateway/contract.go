package gateway

import (
	"context"

	"github.com/codeforge/gateway/internal/credential"
	domexec "github.com/codeforge/gateway/internal/domain/execution"
	"github.com/codeforge/gateway/internal/domain/tier"
	"github.com/codeforge/gateway/internal/domain/usage"
	"github.com/codeforge/gateway/internal/usecase/quota"
)

// Verifier checks credential signatures.
type Verifier interface {
	Verify(credential string) (credential.Claims, error)
}

// Tracker admits requests against the owner's daily quota.
type Tracker interface {
	AdmitAndRecord(ctx context.Context, credential string, decodedTier tier.Tier, owner string) (usage.Admission, error)
	Summary(ctx context.Context, owner string) (quota.Summary, error)
}

// Dispatcher runs code on the language runners.
type Dispatcher interface {
	Validate(language, source string) (domexec.Language, error)
	Run(ctx context.Context, language, source string) (domexec.Result, error)
}

// Revoker deletes token records.
type Revoker interface {
	Revoke(ctx context.Context, credential string) error
}
