package evidence

import (
	"fmt"
	"math"
	"slices"
)

// Normalizer classifies raw device records with a fixed set of thresholds.
// The zero value is not usable; construct with NewNormalizer.
type Normalizer struct {
	thresholds Thresholds
	rules      []Rule
}

// NewNormalizer returns a Normalizer using the given thresholds.
func NewNormalizer(th Thresholds) *Normalizer {
	return &Normalizer{
		thresholds: th,
		rules:      Rules(),
	}
}

var defaultNormalizer = NewNormalizer(DefaultThresholds)

// Normalize classifies raw using DefaultThresholds.
func Normalize(raw []RawDeviceRecord) ([]Dossier, Summary) {
	return defaultNormalizer.Normalize(raw)
}

// Thresholds returns the cut points this Normalizer classifies with.
func (n *Normalizer) Thresholds() Thresholds {
	return n.thresholds
}

// Normalize produces exactly one dossier per input record, in input order,
// and the summary over those dossiers. It never fails: out-of-range
// confidence is clamped and unknown enum values degrade to no claim.
// Duplicate ids are passed through untouched.
func (n *Normalizer) Normalize(raw []RawDeviceRecord) ([]Dossier, Summary) {
	dossiers := make([]Dossier, 0, len(raw))
	for i := range raw {
		dossiers = append(dossiers, n.normalizeOne(&raw[i]))
	}
	return dossiers, Summarize(dossiers)
}

func (n *Normalizer) normalizeOne(rec *RawDeviceRecord) Dossier {
	var notes []string

	conf, clamped := clampConfidence(rec.Confidence)

	mode := rec.Mode
	if !mode.Known() {
		notes = append(notes, fmt.Sprintf("unrecognized mode %q treated as %s", rec.Mode, ModeUnconfirmed))
		mode = ModeUnconfirmed
	}

	platform := rec.Platform
	if !platform.Known() {
		notes = append(notes, fmt.Sprintf("unrecognized platform %q treated as %s", rec.Platform, PlatformUnknown))
		platform = PlatformUnknown
	}

	if clamped {
		notes = append(notes, fmt.Sprintf("confidence %v clamped to %.2f", rec.Confidence, conf))
	}

	matched := slices.Clone(rec.MatchedToolIDs)
	if matched == nil {
		matched = []string{}
	}

	badge, ruleNote := classify(n.rules, Facts{
		Mode:       mode,
		Confidence: conf,
		MatchedIDs: matched,
		Thresholds: n.thresholds,
	})

	return Dossier{
		ID:                rec.ID,
		Platform:          platform,
		DeviceMode:        mode,
		Confidence:        conf,
		CorrelationBadge:  badge,
		MatchedIDs:        matched,
		CorrelationNotes:  append([]string{ruleNote}, notes...),
		DetectionEvidence: DetectionEvidence{USBEvidence: USBEvidenceLines(rec)},
	}
}

// Summarize counts badges in a single pass.
func Summarize(dossiers []Dossier) Summary {
	s := Summary{Total: len(dossiers)}
	for i := range dossiers {
		switch dossiers[i].CorrelationBadge {
		case BadgeCorrelated, BadgeCorrelatedWeak:
			s.Correlated++
		case BadgeSystemConfirmed:
			s.SystemConfirmed++
		case BadgeUnconfirmed:
			s.Unconfirmed++
		}
	}
	return s
}

// clampConfidence bounds c to [0,1]. NaN carries no claim and becomes 0.
func clampConfidence(c float64) (float64, bool) {
	switch {
	case math.IsNaN(c):
		return 0, true
	case c < 0:
		return 0, true
	case c > 1:
		return 1, true
	}
	return c, false
}
