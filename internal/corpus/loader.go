package corpus

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// LoadError reports a manifest that is missing, malformed, or
// referentially invalid. A LoadError means no corpus was activated:
// the loader never leaves a partially-loaded corpus behind.
type LoadError struct {
	Path   string
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("corpus: load %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("corpus: load %s: %s", e.Path, e.Reason)
}

func (e *LoadError) Unwrap() error { return e.Err }

// IsLoadError reports whether err is a corpus LoadError.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}

// manifest mirrors the on-disk JSON document.
type manifest struct {
	Version        string                     `json:"version"`
	KPAs           []KPA                      `json:"kpas"`
	ClausePacks    map[string][]KeywordWeight `json:"clause_packs"`
	TierKeywords   []TierRule                 `json:"tier_keywords"`
	PolicyRegistry []Policy                   `json:"policy_registry"`
	Scoring        *Scoring                   `json:"scoring"`
}

// DefaultScoring returns the scoring knobs used when the manifest omits
// the scoring section or individual values. The numbers mirror the
// deployed corpus defaults; production manifests override them.
func DefaultScoring() Scoring {
	return Scoring{
		Scale:           1.0,
		CrossKPABonus:   0.5,
		BonusFloor:      0.0,
		ConfidenceScale: 2.5,
		Bands: []Band{
			{UpTo: f(1.0), Label: "Emerging"},
			{UpTo: f(2.5), Label: "Developing"},
			{UpTo: f(4.0), Label: "Proficient"},
			{Label: "Transformational"},
		},
	}
}

func f(v float64) *float64 { return &v }

// Load reads and validates the corpus manifest at path. Any failure is
// a *LoadError; on error no corpus object is returned.
func Load(path string) (*Corpus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Reason: "read manifest", Err: err}
	}
	return Parse(data, path)
}

// Parse validates a manifest document already in memory. path is only
// used for error reporting.
func Parse(data []byte, path string) (*Corpus, error) {
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, &LoadError{Path: path, Reason: "malformed JSON", Err: err}
	}

	c := &Corpus{
		Version:      m.Version,
		KPAs:         m.KPAs,
		ClausePacks:  m.ClausePacks,
		TierRules:    m.TierKeywords,
		Policies:     m.PolicyRegistry,
		ScoringRules: applyScoringDefaults(m.Scoring),
	}
	if c.ClausePacks == nil {
		c.ClausePacks = map[string][]KeywordWeight{}
	}
	if err := c.validate(); err != nil {
		return nil, &LoadError{Path: path, Reason: err.Error()}
	}
	return c, nil
}

func applyScoringDefaults(s *Scoring) Scoring {
	def := DefaultScoring()
	if s == nil {
		return def
	}
	out := *s
	if out.Scale == 0 {
		out.Scale = def.Scale
	}
	if out.ConfidenceScale == 0 {
		out.ConfidenceScale = def.ConfidenceScale
	}
	if len(out.Bands) == 0 {
		out.Bands = def.Bands
	}
	return out
}
