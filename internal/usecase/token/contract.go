package token

import (
	"context"

	"github.com/codeforge/gateway/internal/credential"
	"github.com/codeforge/gateway/internal/domain/tier"
	domtok "github.com/codeforge/gateway/internal/domain/token"
)

// Repository defines the storage contract for token records.
type Repository interface {
	Create(ctx context.Context, tok domtok.Token) error
	Get(ctx context.Context, credential string) (domtok.Token, error)
	Delete(ctx context.Context, tok domtok.Token) error
}

// Signer mints signed credentials.
type Signer interface {
	Sign(t tier.Tier, owner string) (string, credential.Claims, error)
}
