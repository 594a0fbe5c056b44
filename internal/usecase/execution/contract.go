package execution

import (
	"context"
	"encoding/json"

	domexec "github.com/codeforge/gateway/internal/domain/execution"
)

// Runner executes source remotely and returns the runner's raw payload.
// Invocation failures must wrap domain.ErrRunnerError.
type Runner interface {
	Run(ctx context.Context, lang domexec.Language, source string) (json.RawMessage, error)
	// Supports reports whether a runner is bound to lang.
	Supports(lang domexec.Language) bool
}
