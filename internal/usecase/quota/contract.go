package quota

import (
	"context"
	"time"

	domtok "github.com/codeforge/gateway/internal/domain/token"
)

// Repository defines the storage contract the tracker needs.
type Repository interface {
	Get(ctx context.Context, credential string) (domtok.Token, error)
	ListByOwner(ctx context.Context, owner string) ([]domtok.Token, error)
	Increment(ctx context.Context, credential string) (int64, error)
	ResetIfUnchanged(ctx context.Context, credential string, observed, now time.Time) (bool, error)
}
