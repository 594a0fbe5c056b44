// Package tier defines the closed set of quota classes and their daily ceilings.
package tier

import (
	"fmt"
	"strings"

	"github.com/codeforge/gateway/internal/domain"
)

// Tier is a named quota class.
type Tier string

// Known tiers, ordered by ceiling ascending.
const (
	Free     Tier = "free"
	Hobby    Tier = "hobby"
	Business Tier = "business"
)

// table is the single source of daily ceilings. Keep it sorted ascending.
var table = []struct {
	tier    Tier
	ceiling int64
}{
	{Free, 10},
	{Hobby, 500},
	{Business, 10000},
}

// Parse resolves a tier by name (case-insensitive).
func Parse(s string) (Tier, error) {
	name := Tier(strings.ToLower(strings.TrimSpace(s)))
	for _, row := range table {
		if row.tier == name {
			return name, nil
		}
	}
	return "", fmt.Errorf("%w: %q", domain.ErrInvalidTier, s)
}

// All returns every tier in ascending ceiling order.
func All() []Tier {
	out := make([]Tier, len(table))
	for i, row := range table {
		out[i] = row.tier
	}
	return out
}

// Lowest returns the tier with the smallest ceiling.
func Lowest() Tier { return table[0].tier }

// Valid reports whether t belongs to the tier table.
func (t Tier) Valid() bool {
	_, ok := t.lookup()
	return ok
}

// Ceiling returns the daily request ceiling. Unknown tiers get the lowest ceiling.
func (t Tier) Ceiling() int64 {
	if c, ok := t.lookup(); ok {
		return c
	}
	return table[0].ceiling
}

func (t Tier) String() string { return string(t) }

func (t Tier) lookup() (int64, bool) {
	for _, row := range table {
		if row.tier == t {
			return row.ceiling, true
		}
	}
	return 0, false
}

// Max returns the tier with the highest ceiling among ts, or Lowest() if ts is empty.
func Max(ts ...Tier) Tier {
	best := Lowest()
	for _, t := range ts {
		if t.Ceiling() > best.Ceiling() {
			best = t
		}
	}
	return best
}
