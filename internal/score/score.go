// Package score aggregates matcher hits into per-KPA scores, applies
// the cross-KPA bonus, and derives the primary KPA, band, and
// confidence. Scoring is pure: the same matches always produce the
// same result, and well-formed input never errors.
package score

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Byron2306/VAMP/internal/corpus"
	"github.com/Byron2306/VAMP/internal/model"
)

// Result is the classifier output for one evidence item.
type Result struct {
	// KPAScores holds the final (bonused) score per KPA with at least
	// one hit. Not capped: the bonus can push a score past the top
	// band boundary.
	KPAScores map[string]float64

	PrimaryKPA string
	Band       string

	// Confidence in [0,1] reflects how much signal was found at all,
	// before the bonus. Zero when nothing matched.
	Confidence float64

	// Rationale is a short human-readable account of the score.
	Rationale string
}

// Compute scores the given matches against the corpus scoring rules.
// It returns an error only for programmer-error-class input: a match
// map referencing a KPA the corpus does not declare. That cannot occur
// when matches came from the matcher with the same corpus snapshot,
// and must fail loudly rather than score partial results.
func Compute(c *corpus.Corpus, matches map[string][]model.Match) (Result, error) {
	rules := c.ScoringRules

	// First pass: per-KPA base score from distinct keyword weights.
	base := make(map[string]float64, len(matches))
	for kpaID, hits := range matches {
		if !c.HasKPA(kpaID) {
			return Result{}, fmt.Errorf("score: matches reference undeclared KPA %q", kpaID)
		}
		var sum float64
		for _, h := range hits {
			sum += h.Weight
		}
		if sum > 0 {
			base[kpaID] = sum / rules.Scale
		}
	}

	// Second pass: the cross-KPA bonus needs the full base score set.
	// Every KPA above the floor qualifies when at least two do.
	var qualifying []string
	for kpaID, s := range base {
		if s > rules.BonusFloor {
			qualifying = append(qualifying, kpaID)
		}
	}
	final := make(map[string]float64, len(base))
	for kpaID, s := range base {
		final[kpaID] = s
	}
	bonusApplied := false
	if len(qualifying) >= 2 && rules.CrossKPABonus > 0 {
		bonusApplied = true
		for _, kpaID := range qualifying {
			final[kpaID] += rules.CrossKPABonus
		}
	}

	primary, top := primaryKPA(final)
	res := Result{
		KPAScores:  final,
		PrimaryKPA: primary,
	}
	if primary == model.PrimaryKPANone {
		res.Band = model.BandNoEvidence
		return res, nil
	}
	res.Band = c.BandFor(top)
	res.Confidence = clamp01(maxValue(base) / rules.ConfidenceScale)
	res.Rationale = rationale(matches, primary, final[primary], bonusApplied)
	return res, nil
}

// primaryKPA picks the argmax score; ties break to the
// lexicographically smallest KPA id. All-zero (or empty) scores yield
// "none".
func primaryKPA(scores map[string]float64) (string, float64) {
	primary := model.PrimaryKPANone
	var top float64
	ids := make([]string, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if s := scores[id]; s > top {
			top = s
			primary = id
		}
	}
	return primary, top
}

func rationale(matches map[string][]model.Match, primary string, score float64, bonus bool) string {
	keywords := make([]string, 0, len(matches[primary]))
	for _, h := range matches[primary] {
		keywords = append(keywords, h.Keyword)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s scored %.2f on %s", primary, score, strings.Join(keywords, ", "))
	if bonus {
		b.WriteString("; cross-KPA bonus applied")
	}
	return b.String()
}

func maxValue(m map[string]float64) float64 {
	var max float64
	for _, v := range m {
		if v > max {
			max = v
		}
	}
	return max
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
