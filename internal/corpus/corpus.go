// Package corpus loads and validates the policy corpus manifest: the
// KPA set, per-KPA keyword packs, tier trigger definitions, the policy
// registry, and the scoring configuration.
//
// A loaded Corpus is immutable. Hot reload swaps in a whole new Corpus
// value (see Provider); in-flight scoring keeps using the snapshot it
// already holds.
package corpus

import "fmt"

// KPA is one Key Performance Area declared by the manifest.
type KPA struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// KeywordWeight is one weighted keyword or phrase in a clause pack.
// Higher weight means stronger evidence of the pack's KPA.
type KeywordWeight struct {
	Keyword string  `json:"keyword"`
	Weight  float64 `json:"weight"`
}

// TierRule defines one evidence tier: its trigger phrases, the minimum
// number of distinct trigger hits required, and an optional minimum KPA
// score. The score requirement is how the top tier couples to scoring;
// lower tiers leave it at zero.
type TierRule struct {
	Name        string   `json:"name"`
	Triggers    []string `json:"triggers"`
	MinHits     int      `json:"min_hits"`
	MinKPAScore float64  `json:"min_kpa_score,omitempty"`
}

// Policy is one entry in the policy registry.
type Policy struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Triggers []string `json:"triggers"`
	KPA      string   `json:"kpa,omitempty"`
	MustPass bool     `json:"must_pass,omitempty"`
}

// Band is one qualitative score band. Bands are ordered by ascending
// UpTo boundary; the first band whose boundary exceeds the score wins.
// The final band leaves UpTo nil and is open-ended.
type Band struct {
	UpTo  *float64 `json:"up_to,omitempty"`
	Label string   `json:"label"`
}

// Scoring holds the numeric knobs of the classifier. All values are
// data sourced from the manifest, with defaults applied by the loader.
type Scoring struct {
	// Scale divides each KPA's summed keyword weights so scores land
	// roughly in [0, ~5].
	Scale float64 `json:"scale"`

	// CrossKPABonus is added to every qualifying KPA's score when the
	// item scores above BonusFloor in more than one KPA.
	CrossKPABonus float64 `json:"cross_kpa_bonus"`
	BonusFloor    float64 `json:"bonus_floor"`

	// ConfidenceScale maps the top base score onto [0,1] confidence.
	ConfidenceScale float64 `json:"confidence_scale"`

	Bands []Band `json:"bands"`
}

// Corpus is the loaded, validated, immutable policy corpus.
type Corpus struct {
	Version      string
	KPAs         []KPA
	ClausePacks  map[string][]KeywordWeight
	TierRules    []TierRule
	Policies     []Policy
	ScoringRules Scoring

	kpaIndex map[string]KPA
}

// HasKPA reports whether id is a declared KPA.
func (c *Corpus) HasKPA(id string) bool {
	_, ok := c.kpaIndex[id]
	return ok
}

// KPAIDs returns the declared KPA ids in manifest order.
func (c *Corpus) KPAIDs() []string {
	ids := make([]string, len(c.KPAs))
	for i, k := range c.KPAs {
		ids[i] = k.ID
	}
	return ids
}

// Pack returns the clause pack for a KPA, or nil if it has none.
func (c *Corpus) Pack(kpaID string) []KeywordWeight {
	return c.ClausePacks[kpaID]
}

// BandFor maps a score onto its band label by ascending boundary scan.
// The first band whose boundary exceeds the score wins; the open-ended
// final band catches everything else.
func (c *Corpus) BandFor(score float64) string {
	for _, b := range c.ScoringRules.Bands {
		if b.UpTo == nil || score < *b.UpTo {
			return b.Label
		}
	}
	// Validation guarantees an open-ended final band; unreachable.
	return ""
}

// validate enforces the manifest's referential-integrity invariants.
// Every failure is reported eagerly at load time, never discovered
// lazily during scoring.
func (c *Corpus) validate() error {
	if len(c.KPAs) == 0 {
		return fmt.Errorf("manifest declares no KPAs")
	}
	c.kpaIndex = make(map[string]KPA, len(c.KPAs))
	for _, k := range c.KPAs {
		if k.ID == "" {
			return fmt.Errorf("KPA with empty id")
		}
		if _, dup := c.kpaIndex[k.ID]; dup {
			return fmt.Errorf("duplicate KPA id %q", k.ID)
		}
		c.kpaIndex[k.ID] = k
	}

	for kpaID, pack := range c.ClausePacks {
		if !c.HasKPA(kpaID) {
			return fmt.Errorf("clause pack references undeclared KPA %q", kpaID)
		}
		for _, kw := range pack {
			if kw.Keyword == "" {
				return fmt.Errorf("clause pack %q contains an empty keyword", kpaID)
			}
			if kw.Weight <= 0 {
				return fmt.Errorf("clause pack %q keyword %q has non-positive weight %v", kpaID, kw.Keyword, kw.Weight)
			}
		}
	}

	seenTiers := map[string]bool{}
	for _, tr := range c.TierRules {
		if tr.Name == "" {
			return fmt.Errorf("tier rule with empty name")
		}
		if seenTiers[tr.Name] {
			return fmt.Errorf("duplicate tier %q", tr.Name)
		}
		seenTiers[tr.Name] = true
		if tr.MinHits < 1 {
			return fmt.Errorf("tier %q requires min_hits >= 1, got %d", tr.Name, tr.MinHits)
		}
		if len(tr.Triggers) == 0 {
			return fmt.Errorf("tier %q declares no triggers", tr.Name)
		}
	}

	seenPolicies := map[string]bool{}
	for _, p := range c.Policies {
		if p.ID == "" {
			return fmt.Errorf("policy with empty id")
		}
		if seenPolicies[p.ID] {
			return fmt.Errorf("duplicate policy id %q", p.ID)
		}
		seenPolicies[p.ID] = true
		if p.KPA != "" && !c.HasKPA(p.KPA) {
			return fmt.Errorf("policy %q references undeclared KPA %q", p.ID, p.KPA)
		}
		if len(p.Triggers) == 0 {
			return fmt.Errorf("policy %q declares no triggers", p.ID)
		}
	}

	return c.ScoringRules.validate()
}

func (s *Scoring) validate() error {
	if s.Scale <= 0 {
		return fmt.Errorf("scoring scale must be positive, got %v", s.Scale)
	}
	if s.CrossKPABonus < 0 {
		return fmt.Errorf("cross_kpa_bonus must be non-negative, got %v", s.CrossKPABonus)
	}
	if s.ConfidenceScale <= 0 {
		return fmt.Errorf("confidence_scale must be positive, got %v", s.ConfidenceScale)
	}
	if len(s.Bands) == 0 {
		return fmt.Errorf("scoring declares no bands")
	}
	var prev float64
	for i, b := range s.Bands {
		if b.Label == "" {
			return fmt.Errorf("band %d has empty label", i)
		}
		last := i == len(s.Bands)-1
		if last {
			if b.UpTo != nil {
				return fmt.Errorf("final band %q must be open-ended", b.Label)
			}
			continue
		}
		if b.UpTo == nil {
			return fmt.Errorf("band %q before the final band must declare up_to", b.Label)
		}
		if i > 0 && *b.UpTo <= prev {
			return fmt.Errorf("band boundaries must be strictly ascending (%v after %v)", *b.UpTo, prev)
		}
		prev = *b.UpTo
	}
	return nil
}
