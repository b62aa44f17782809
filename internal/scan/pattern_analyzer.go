package scan

import (
	"context"
	"regexp"
	"sort"
	"strings"
)

// detector pairs a compiled pattern with its entity type and the
// confidence we assign to a raw match. A validator, when present, can
// reject or rescore a match before it is reported.
type detector struct {
	entityType string
	pattern    *regexp.Regexp
	score      float64
	validate   func(match string) bool
}

var defaultDetectors = []detector{
	{
		entityType: "EMAIL_ADDRESS",
		pattern:    regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`),
		score:      0.95,
	},
	{
		entityType: "US_SSN",
		pattern:    regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
		score:      0.85,
	},
	{
		entityType: "PHONE_NUMBER",
		pattern:    regexp.MustCompile(`\b(?:\+?1[-. ]?)?\(?\d{3}\)?[-. ]?\d{3}[-. ]?\d{4}\b`),
		score:      0.6,
	},
	{
		entityType: "CREDIT_CARD",
		pattern:    regexp.MustCompile(`\b(?:\d[ -]?){13,18}\d\b`),
		score:      0.9,
		validate:   luhnValid,
	},
}

// PatternAnalyzer runs a fixed set of regex detectors over extracted
// text and keeps matches at or above the score threshold.
type PatternAnalyzer struct {
	ScoreThreshold float64

	detectors []detector
}

func NewPatternAnalyzer(scoreThreshold float64) *PatternAnalyzer {
	return &PatternAnalyzer{ScoreThreshold: scoreThreshold, detectors: defaultDetectors}
}

func (a *PatternAnalyzer) Analyze(ctx context.Context, text string) ([]Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entities []Entity
	for _, d := range a.detectors {
		if d.score < a.ScoreThreshold {
			continue
		}
		for _, loc := range d.pattern.FindAllStringIndex(text, -1) {
			match := text[loc[0]:loc[1]]
			if d.validate != nil && !d.validate(match) {
				continue
			}
			entities = append(entities, Entity{
				Type:  d.entityType,
				Text:  match,
				Start: loc[0],
				End:   loc[1],
				Score: d.score,
			})
		}
	}

	sort.Slice(entities, func(i, j int) bool {
		if entities[i].Start != entities[j].Start {
			return entities[i].Start < entities[j].Start
		}
		return entities[i].End < entities[j].End
	})
	return entities, nil
}

// luhnValid keeps credit card detection from firing on arbitrary digit
// runs like timestamps or order numbers.
func luhnValid(candidate string) bool {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, candidate)
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}

	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
