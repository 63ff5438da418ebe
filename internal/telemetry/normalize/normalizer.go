// Package normalize maps logical parameter names onto physical column labels.
package normalize

import (
	"strings"
	"unicode"

	telemetry "metering-dashboard/internal/telemetry/domain"
)

// Tier identifies which rule produced a match.
type Tier int

const (
	TierNone Tier = iota
	TierExact
	TierCaseInsensitive
	TierSeparatorInsensitive
)

// Match is the outcome of resolving one parameter. Column is
// telemetry.Unmatched when no label qualified.
type Match struct {
	Parameter string
	Column    telemetry.Column
	Tier      Tier
}

// Matched reports whether a physical column was found.
func (m Match) Matched() bool {
	return m.Column != telemetry.Unmatched
}

// Resolve finds the physical label for parameter among labels. Rules are
// tried in order across all labels before the next rule is attempted:
// exact, case-insensitive, then case- and separator-insensitive where runs of
// whitespace and underscores count as one separator.
func Resolve(labels []telemetry.Column, parameter string) Match {
	for _, label := range labels {
		if string(label) == parameter {
			return Match{Parameter: parameter, Column: label, Tier: TierExact}
		}
	}
	for _, label := range labels {
		if strings.EqualFold(string(label), parameter) {
			return Match{Parameter: parameter, Column: label, Tier: TierCaseInsensitive}
		}
	}
	key := Canonical(parameter)
	if key != "" {
		for _, label := range labels {
			if Canonical(string(label)) == key {
				return Match{Parameter: parameter, Column: label, Tier: TierSeparatorInsensitive}
			}
		}
	}
	return Match{Parameter: parameter, Column: telemetry.Unmatched, Tier: TierNone}
}

// ResolveAll resolves every parameter against labels, keeping request order.
// Unmatched parameters stay in the result so callers can render them.
func ResolveAll(labels []telemetry.Column, parameters []string) []Match {
	out := make([]Match, 0, len(parameters))
	for _, parameter := range parameters {
		out = append(out, Resolve(labels, parameter))
	}
	return out
}

// Canonical lowercases value, trims it and collapses each run of whitespace
// or underscores into a single "_".
func Canonical(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	pendingSep := false
	for _, r := range strings.TrimSpace(value) {
		if r == '_' || unicode.IsSpace(r) {
			pendingSep = true
			continue
		}
		if pendingSep && b.Len() > 0 {
			b.WriteByte('_')
		}
		pendingSep = false
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
