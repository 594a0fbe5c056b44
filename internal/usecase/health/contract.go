package health

import "context"

// StorePinger checks token store availability.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// RunnerChecker checks that the code runners are reachable.
type RunnerChecker interface {
	HealthCheck(ctx context.Context) error
}
