package corpus

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validManifest = `{
  "version": "2025.1",
  "kpas": [
    {"id": "KPA1", "name": "Teaching and Learning"},
    {"id": "KPA2", "name": "Research"},
    {"id": "KPA3", "name": "Service"}
  ],
  "clause_packs": {
    "KPA1": [
      {"keyword": "password policy", "weight": 1.0},
      {"keyword": "multi-factor authentication", "weight": 1.0},
      {"keyword": "expiration", "weight": 0.5}
    ],
    "KPA2": [
      {"keyword": "journal article", "weight": 1.0},
      {"keyword": "conference", "weight": 0.8}
    ]
  },
  "tier_keywords": [
    {"name": "Compliance", "triggers": ["policy", "procedure"], "min_hits": 1},
    {"name": "Developmental", "triggers": ["workshop", "training", "mentoring"], "min_hits": 2},
    {"name": "Transformational", "triggers": ["redesign", "innovation", "curriculum overhaul"], "min_hits": 2, "min_kpa_score": 2.5}
  ],
  "policy_registry": [
    {"id": "POL-IT-003", "title": "Password Policy", "triggers": ["password policy"], "kpa": "KPA1", "must_pass": true}
  ]
}`

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "manifest.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("valid manifest", func(t *testing.T) {
		c, err := Load(writeManifest(t, validManifest))
		require.NoError(t, err)
		assert.Equal(t, "2025.1", c.Version)
		assert.Equal(t, []string{"KPA1", "KPA2", "KPA3"}, c.KPAIDs())
		assert.True(t, c.HasKPA("KPA1"))
		assert.False(t, c.HasKPA("KPA9"))
		assert.Len(t, c.Pack("KPA1"), 3)
		assert.Nil(t, c.Pack("KPA3"))
		// Scoring section omitted: defaults apply.
		assert.InDelta(t, 0.5, c.ScoringRules.CrossKPABonus, 1e-9)
		assert.Len(t, c.ScoringRules.Bands, 4)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
		require.Error(t, err)
		assert.True(t, IsLoadError(err))
	})

	t.Run("malformed JSON", func(t *testing.T) {
		_, err := Load(writeManifest(t, "{not json"))
		require.Error(t, err)
		assert.True(t, IsLoadError(err))
	})

	t.Run("clause pack references undeclared KPA", func(t *testing.T) {
		_, err := Parse([]byte(`{
			"kpas": [{"id": "KPA1", "name": "Teaching"}],
			"clause_packs": {"KPA9": [{"keyword": "x", "weight": 1}]}
		}`), "inline")
		require.Error(t, err)
		assert.True(t, IsLoadError(err))
		assert.Contains(t, err.Error(), "KPA9")
	})

	t.Run("policy references undeclared KPA", func(t *testing.T) {
		_, err := Parse([]byte(`{
			"kpas": [{"id": "KPA1", "name": "Teaching"}],
			"policy_registry": [{"id": "P1", "title": "t", "triggers": ["x"], "kpa": "KPA7"}]
		}`), "inline")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "KPA7")
	})

	t.Run("non-positive keyword weight", func(t *testing.T) {
		_, err := Parse([]byte(`{
			"kpas": [{"id": "KPA1", "name": "Teaching"}],
			"clause_packs": {"KPA1": [{"keyword": "x", "weight": 0}]}
		}`), "inline")
		require.Error(t, err)
	})

	t.Run("no KPAs", func(t *testing.T) {
		_, err := Parse([]byte(`{"kpas": []}`), "inline")
		require.Error(t, err)
	})

	t.Run("non-monotonic bands", func(t *testing.T) {
		_, err := Parse([]byte(`{
			"kpas": [{"id": "KPA1", "name": "Teaching"}],
			"scoring": {
				"scale": 1, "confidence_scale": 2.5,
				"bands": [
					{"up_to": 2.5, "label": "Developing"},
					{"up_to": 1.0, "label": "Emerging"},
					{"label": "Transformational"}
				]
			}
		}`), "inline")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ascending")
	})

	t.Run("final band must be open-ended", func(t *testing.T) {
		_, err := Parse([]byte(`{
			"kpas": [{"id": "KPA1", "name": "Teaching"}],
			"scoring": {
				"scale": 1, "confidence_scale": 2.5,
				"bands": [{"up_to": 4.0, "label": "Proficient"}]
			}
		}`), "inline")
		require.Error(t, err)
	})
}

func TestBandFor(t *testing.T) {
	c, err := Load(writeManifest(t, validManifest))
	require.NoError(t, err)

	tests := []struct {
		score float64
		want  string
	}{
		{0, "Emerging"},
		{0.99, "Emerging"},
		{1.0, "Developing"},
		{2.49, "Developing"},
		{2.5, "Proficient"},
		{3.99, "Proficient"},
		{4.0, "Transformational"},
		{17.3, "Transformational"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, c.BandFor(tt.score), "score %v", tt.score)
	}
}

func TestProvider(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	t.Run("load failure returns no provider", func(t *testing.T) {
		_, err := NewProvider(filepath.Join(t.TempDir(), "missing.json"), logger)
		require.Error(t, err)
	})

	t.Run("reload swaps atomically and keeps old snapshot valid", func(t *testing.T) {
		path := writeManifest(t, validManifest)
		p, err := NewProvider(path, logger)
		require.NoError(t, err)

		before := p.Snapshot()
		require.Equal(t, "2025.1", before.Version)

		updated := `{"version": "2025.2", "kpas": [{"id": "KPA1", "name": "Teaching"}]}`
		require.NoError(t, os.WriteFile(path, []byte(updated), 0o600))
		require.NoError(t, p.Reload())

		// In-flight readers keep the snapshot they already hold.
		assert.Equal(t, "2025.1", before.Version)
		assert.Equal(t, "2025.2", p.Snapshot().Version)
	})

	t.Run("failed reload keeps previous corpus active", func(t *testing.T) {
		path := writeManifest(t, validManifest)
		p, err := NewProvider(path, logger)
		require.NoError(t, err)

		require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o600))
		require.Error(t, p.Reload())
		assert.Equal(t, "2025.1", p.Snapshot().Version)
	})
}
