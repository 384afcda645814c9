package evidence

import (
	"fmt"
	"strings"
)

// Thresholds are the confidence cut points used by the decision table.
type Thresholds struct {
	// Strong is the minimum confidence for a CORRELATED verdict.
	Strong float64
	// Likely is the minimum confidence for a LIKELY verdict.
	Likely float64
}

// DefaultThresholds are the production cut points. Treat them as tunable only
// with field evidence; the badge counts dashboards show depend on them.
var DefaultThresholds = Thresholds{Strong: 0.90, Likely: 0.60}

// Facts is the already-sanitized input a rule is evaluated against.
type Facts struct {
	Mode       Mode
	Confidence float64
	MatchedIDs []string
	Thresholds Thresholds
}

func (f Facts) hasMatches() bool { return len(f.MatchedIDs) > 0 }

// Rule is one row of the decision table.
type Rule struct {
	Number  int
	Badge   Badge
	Match   func(Facts) bool
	Explain func(Facts) string
}

// Rules returns the decision table in evaluation order. The first rule whose
// Match returns true decides the badge; the final rule always matches.
func Rules() []Rule {
	return []Rule{
		{
			Number: 1,
			Badge:  BadgeCorrelated,
			Match: func(f Facts) bool {
				return f.hasMatches() && f.Confidence >= f.Thresholds.Strong && f.Mode.OSConfirmed()
			},
			Explain: func(f Facts) string {
				return fmt.Sprintf("cross-tool id match found; confidence %.2f ≥ %.2f; mode confirmed",
					f.Confidence, f.Thresholds.Strong)
			},
		},
		{
			Number: 2,
			Badge:  BadgeSystemConfirmed,
			Match: func(f Facts) bool {
				return f.Mode.SystemConfirmed() && !f.hasMatches()
			},
			Explain: func(f Facts) string {
				return fmt.Sprintf("mode %s confirmed by system tool; no cross-tool id tied to this USB record", f.Mode)
			},
		},
		{
			Number: 3,
			Badge:  BadgeCorrelatedWeak,
			Match: func(f Facts) bool {
				return f.hasMatches()
			},
			Explain: func(f Facts) string {
				var why []string
				if f.Confidence < f.Thresholds.Strong {
					why = append(why, fmt.Sprintf("confidence %.2f < %.2f", f.Confidence, f.Thresholds.Strong))
				}
				if !f.Mode.OSConfirmed() {
					why = append(why, fmt.Sprintf("mode %s not OS-confirmed", f.Mode))
				}
				return "cross-tool id match found but confirmation weak; " + strings.Join(why, "; ")
			},
		},
		{
			Number: 4,
			Badge:  BadgeLikely,
			Match: func(f Facts) bool {
				return f.Confidence >= f.Thresholds.Likely && f.Confidence < f.Thresholds.Strong
			},
			Explain: func(f Facts) string {
				return fmt.Sprintf("confidence %.2f in [%.2f, %.2f); no confirmation",
					f.Confidence, f.Thresholds.Likely, f.Thresholds.Strong)
			},
		},
		{
			Number: 5,
			Badge:  BadgeUnconfirmed,
			Match:  func(Facts) bool { return true },
			Explain: func(f Facts) string {
				return fmt.Sprintf("insufficient evidence (confidence %.2f, mode %s)", f.Confidence, f.Mode)
			},
		},
	}
}

// classify walks the table and returns the winning badge with its note.
func classify(rules []Rule, f Facts) (Badge, string) {
	for _, r := range rules {
		if r.Match(f) {
			return r.Badge, fmt.Sprintf("rule %d: %s → %s", r.Number, r.Explain(f), r.Badge)
		}
	}
	// unreachable while the last rule is a catch-all
	return BadgeUnconfirmed, "no rule matched → " + string(BadgeUnconfirmed)
}
