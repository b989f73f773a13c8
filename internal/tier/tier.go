// Package tier classifies evidence into qualitative tiers (Compliance /
// Developmental / Transformational) from tier-trigger density. Tiering
// is independent of KPA scoring except at the top: a tier rule may also
// demand a minimum KPA score, which is how the Transformational tier is
// configured in the deployed manifest.
package tier

import (
	"github.com/Byron2306/VAMP/internal/corpus"
	"github.com/Byron2306/VAMP/internal/match"
)

// Classify returns the tier labels the item qualifies for, in manifest
// order. An item may hold zero, one, or several tiers at once. For each
// rule, distinct trigger hits in the normalised text are counted (a
// repeated trigger counts once) and compared against the rule's
// minimum; rules with a MinKPAScore additionally require maxKPAScore to
// reach it.
func Classify(c *corpus.Corpus, normalized string, maxKPAScore float64) []string {
	if normalized == "" {
		return nil
	}
	var tiers []string
	for _, rule := range c.TierRules {
		hits := 0
		for _, trigger := range rule.Triggers {
			if _, ok := match.Phrase(normalized, trigger); ok {
				hits++
			}
		}
		if hits < rule.MinHits {
			continue
		}
		if rule.MinKPAScore > 0 && maxKPAScore < rule.MinKPAScore {
			continue
		}
		tiers = append(tiers, rule.Name)
	}
	return tiers
}
