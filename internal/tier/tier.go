package tier

import (
	"fmt"
	"strings"
)

// Allowance is the daily request budget attached to a tier. It is either
// bounded to a request count or unlimited; there is no infinity sentinel.
type Allowance struct {
	unlimited bool
	requests  int
}

// Bounded returns an allowance of n requests per day. Negative counts clamp to zero.
func Bounded(n int) Allowance {
	if n < 0 {
		n = 0
	}
	return Allowance{requests: n}
}

// Unlimited returns an allowance that never runs out.
func Unlimited() Allowance { return Allowance{unlimited: true} }

// IsUnlimited reports whether the allowance is unbounded.
func (a Allowance) IsUnlimited() bool { return a.unlimited }

// Requests returns the bounded daily request count. Zero for unlimited allowances.
func (a Allowance) Requests() int {
	if a.unlimited {
		return 0
	}
	return a.requests
}

// Tier couples a membership level with its daily allowance and downstream model.
type Tier struct {
	Name      string    // Level name as stored on user records.
	Allowance Allowance // Daily request budget.
	Model     string    // Downstream model identifier.
}

// Table resolves level names to tiers. Read-only at runtime; changes require
// a config change and restart, not a data mutation.
type Table struct {
	tiers       map[string]Tier
	defaultName string
}

// NewTable builds a table from the configured tiers and a default level name.
func NewTable(tiers []Tier, defaultName string) (*Table, error) {
	defaultName = strings.TrimSpace(defaultName)
	if len(tiers) == 0 {
		return nil, fmt.Errorf("tier: no tiers configured")
	}
	byName := make(map[string]Tier, len(tiers))
	for _, entry := range tiers {
		name := strings.TrimSpace(entry.Name)
		if name == "" {
			return nil, fmt.Errorf("tier: tier with empty name")
		}
		if strings.TrimSpace(entry.Model) == "" {
			return nil, fmt.Errorf("tier: tier %q has no model", name)
		}
		if _, exists := byName[name]; exists {
			return nil, fmt.Errorf("tier: duplicate tier %q", name)
		}
		entry.Name = name
		byName[name] = entry
	}
	if defaultName == "" {
		defaultName = strings.TrimSpace(tiers[0].Name)
	}
	if _, ok := byName[defaultName]; !ok {
		return nil, fmt.Errorf("tier: default tier %q not configured", defaultName)
	}
	return &Table{tiers: byName, defaultName: defaultName}, nil
}

// DefaultName returns the level assigned to users created on first contact.
func (t *Table) DefaultName() string { return t.defaultName }

// Resolve returns the tier for a level name. Unknown or empty levels resolve
// to the default tier so stale user records keep working after config edits.
func (t *Table) Resolve(level string) Tier {
	if entry, ok := t.tiers[strings.TrimSpace(level)]; ok {
		return entry
	}
	return t.tiers[t.defaultName]
}
