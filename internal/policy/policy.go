// Package policy maps subscription tiers to the limits they grant.
package policy

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"slotcal/internal/model"
)

// ErrUnknownTier is returned when a tier has no configured limit. It is a
// configuration fault, not caller input: the tier table and the subscriber
// rows have drifted apart.
var ErrUnknownTier = errors.New("unknown subscription tier")

// Unlimited marks a tier with no calendar cap.
const Unlimited = -1

// Limits is the tier -> maximum-calendar-count table.
type Limits map[model.Tier]int

// Default is the shipped tier table.
func Default() Limits {
	return Limits{
		model.TierBasic: 3,
		model.TierPlus:  5,
		model.TierPro:   Unlimited,
	}
}

// Parse reads a tier table from its environment representation, e.g.
// "basic=3,plus=5,pro=-1". An empty string yields the default table.
func Parse(s string) (Limits, error) {
	if strings.TrimSpace(s) == "" {
		return Default(), nil
	}
	limits := Limits{}
	for _, pair := range strings.Split(s, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("tier limits: malformed entry %q", pair)
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("tier limits: bad count for %q: %w", key, err)
		}
		limits[model.Tier(strings.TrimSpace(key))] = n
	}
	return limits, nil
}

// MaxCalendars returns the number of calendars a tier may connect,
// Unlimited for uncapped tiers, or ErrUnknownTier.
func (l Limits) MaxCalendars(tier model.Tier) (int, error) {
	n, ok := l[tier]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownTier, tier)
	}
	return n, nil
}
