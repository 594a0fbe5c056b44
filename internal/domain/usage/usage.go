package usage

import "time"

// Aggregate is the derived, never persisted daily usage of one owner.
type Aggregate struct {
	owner    string
	day      time.Time
	used     int64
	ceiling  int64
	tokens   int
	resetsAt time.Time
}

// NewAggregate creates an Aggregate for the day containing now.
func NewAggregate(owner string, now time.Time, used, ceiling int64, tokens int) Aggregate {
	return Aggregate{
		owner:    owner,
		day:      Day(now),
		used:     used,
		ceiling:  ceiling,
		tokens:   tokens,
		resetsAt: NextReset(now),
	}
}

// Owner returns the owner identity.
func (a Aggregate) Owner() string { return a.owner }

// Day returns the UTC day the aggregate covers.
func (a Aggregate) Day() time.Time { return a.day }

// Used returns the sum of today's counts across the owner's tokens.
func (a Aggregate) Used() int64 { return a.used }

// Ceiling returns the effective daily ceiling (highest tier wins).
func (a Aggregate) Ceiling() int64 { return a.ceiling }

// Tokens returns how many tokens contributed (stale ones included, as zero).
func (a Aggregate) Tokens() int { return a.tokens }

// ResetsAt returns the next UTC day boundary.
func (a Aggregate) ResetsAt() time.Time { return a.resetsAt }

// Remaining returns requests left today, never negative.
func (a Aggregate) Remaining() int64 {
	return Remaining(a.used, a.ceiling)
}

// Exhausted reports whether no further request would be admitted.
func (a Aggregate) Exhausted() bool { return a.used >= a.ceiling }

// Admission is the outcome of an admitted request.
type Admission struct {
	Admitted            bool
	RequestsUsedOnToken int64
	AggregateToday      int64 // includes the admitted request
	Ceiling             int64
}

// Remaining returns requests left today after this admission.
func (a Admission) Remaining() int64 {
	return Remaining(a.AggregateToday, a.Ceiling)
}

// Remaining returns ceiling-used clamped at zero.
func Remaining(used, ceiling int64) int64 {
	if used >= ceiling {
		return 0
	}
	return ceiling - used
}
