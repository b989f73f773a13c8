package pipeline

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Byron2306/VAMP/internal/corpus"
	"github.com/Byron2306/VAMP/internal/model"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

const manifest = `{
  "version": "test",
  "kpas": [
    {"id": "KPA1", "name": "Teaching"},
    {"id": "KPA2", "name": "Research"}
  ],
  "clause_packs": {
    "KPA1": [
      {"keyword": "password policy", "weight": 1.0},
      {"keyword": "multi-factor authentication", "weight": 1.0},
      {"keyword": "expiration", "weight": 0.5}
    ],
    "KPA2": [
      {"keyword": "journal article", "weight": 1.0}
    ]
  },
  "tier_keywords": [
    {"name": "Compliance", "triggers": ["policy"], "min_hits": 1},
    {"name": "Transformational", "triggers": ["redesign", "innovation"], "min_hits": 2, "min_kpa_score": 2.5}
  ],
  "policy_registry": [
    {"id": "POL-IT-003", "title": "Password Policy", "triggers": ["password policy"], "kpa": "KPA1", "must_pass": true}
  ]
}`

func newPipeline(t *testing.T) *Pipeline {
	t.Helper()
	path := filepath.Join(t.TempDir(), "manifest.json")
	require.NoError(t, os.WriteFile(path, []byte(manifest), 0o600))
	provider, err := corpus.NewProvider(path, discard)
	require.NoError(t, err)
	return New(provider, nil, discard)
}

func item(text string) model.EvidenceItem {
	return model.EvidenceItem{
		SourcePlatform: model.PlatformOutlook,
		SourceID:       "msg-1",
		Title:          "IT security notice",
		RawText:        text,
		Timestamp:      time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC),
	}
}

func TestScoreItem(t *testing.T) {
	p := newPipeline(t)
	c := p.Corpus()

	t.Run("full chain", func(t *testing.T) {
		got, err := p.ScoreItem(c, item(
			"We updated the password policy requiring multi-factor authentication and 90-day expiration."))
		require.NoError(t, err)

		assert.InDelta(t, 2.5, got.KPAScores["KPA1"], 1e-9)
		assert.Equal(t, "KPA1", got.PrimaryKPA)
		assert.Equal(t, "Proficient", got.Band)
		assert.Len(t, got.KPAMatches["KPA1"], 3)
		assert.Equal(t, []string{"Compliance"}, got.Tiers)
		require.Len(t, got.PolicyHits, 1)
		assert.Equal(t, "POL-IT-003", got.PolicyHits[0].PolicyID)
		require.Len(t, got.MustPassRisks, 1)
		assert.NotEmpty(t, got.ContentHash)
		assert.NotEmpty(t, got.Rationale)
		assert.InDelta(t, 1.0, got.Confidence, 1e-9)
		assert.False(t, got.ScoredAt.IsZero())
	})

	t.Run("empty text scores zero without error", func(t *testing.T) {
		empty := item("")
		empty.Title = ""
		got, err := p.ScoreItem(c, empty)
		require.NoError(t, err)
		assert.Empty(t, got.KPAScores)
		assert.Equal(t, model.PrimaryKPANone, got.PrimaryKPA)
		assert.Equal(t, model.BandNoEvidence, got.Band)
		assert.Zero(t, got.Confidence)
		assert.Empty(t, got.Tiers)
		assert.NotEmpty(t, got.ContentHash)
	})

	t.Run("title signal alone matches", func(t *testing.T) {
		doc := item("")
		doc.Title = "Password Policy revision v3"
		got, err := p.ScoreItem(c, doc)
		require.NoError(t, err)
		assert.Equal(t, "KPA1", got.PrimaryKPA)
	})

	t.Run("deterministic across calls", func(t *testing.T) {
		in := item("password policy and journal article")
		a, err := p.ScoreItem(c, in)
		require.NoError(t, err)
		b, err := p.ScoreItem(c, in)
		require.NoError(t, err)
		assert.Equal(t, a.KPAScores, b.KPAScores)
		assert.Equal(t, a.PrimaryKPA, b.PrimaryKPA)
		assert.Equal(t, a.Band, b.Band)
		assert.Equal(t, a.ContentHash, b.ContentHash)
	})

	t.Run("same content different day same month hashes equal", func(t *testing.T) {
		a := item("password policy")
		b := item("password policy")
		b.Timestamp = a.Timestamp.AddDate(0, 0, 20)
		sa, err := p.ScoreItem(c, a)
		require.NoError(t, err)
		sb, err := p.ScoreItem(c, b)
		require.NoError(t, err)
		assert.Equal(t, sa.ContentHash, sb.ContentHash)

		// Next month is a different piece of evidence.
		b.Timestamp = a.Timestamp.AddDate(0, 1, 0)
		sc, err := p.ScoreItem(c, b)
		require.NoError(t, err)
		assert.NotEqual(t, sa.ContentHash, sc.ContentHash)
	})

	t.Run("validation failure carries item identity", func(t *testing.T) {
		bad := item("x")
		bad.SourcePlatform = ""
		_, err := p.ScoreItem(c, bad)
		var ie *ItemError
		require.ErrorAs(t, err, &ie)
		assert.Equal(t, "msg-1", ie.SourceID)
	})

	t.Run("input item not mutated", func(t *testing.T) {
		in := item("password policy")
		before := in
		_, err := p.ScoreItem(c, in)
		require.NoError(t, err)
		assert.Equal(t, before, in)
	})
}

func TestScoreBatch(t *testing.T) {
	p := newPipeline(t)

	t.Run("sequential keeps order", func(t *testing.T) {
		items := []model.EvidenceItem{
			item("password policy"),
			item("journal article"),
			item(""),
		}
		got, err := p.ScoreBatch(context.Background(), items, 1)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "KPA1", got[0].PrimaryKPA)
		assert.Equal(t, "KPA2", got[1].PrimaryKPA)
	})

	t.Run("parallel keeps order", func(t *testing.T) {
		items := make([]model.EvidenceItem, 20)
		for i := range items {
			if i%2 == 0 {
				items[i] = item("password policy")
			} else {
				items[i] = item("journal article")
			}
		}
		got, err := p.ScoreBatch(context.Background(), items, 4)
		require.NoError(t, err)
		require.Len(t, got, 20)
		for i, s := range got {
			if i%2 == 0 {
				assert.Equal(t, "KPA1", s.PrimaryKPA, "index %d", i)
			} else {
				assert.Equal(t, "KPA2", s.PrimaryKPA, "index %d", i)
			}
		}
	})

	t.Run("cancelled batch returns valid partial results", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		got, err := p.ScoreBatch(ctx, []model.EvidenceItem{item("x"), item("y")}, 1)
		require.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, got)
	})

	t.Run("item error aborts with identity", func(t *testing.T) {
		bad := item("x")
		bad.SourcePlatform = ""
		_, err := p.ScoreBatch(context.Background(), []model.EvidenceItem{item("ok"), bad}, 1)
		var ie *ItemError
		require.ErrorAs(t, err, &ie)
	})
}

func TestSnapshotCounters(t *testing.T) {
	p := newPipeline(t)
	c := p.Corpus()

	_, err := p.ScoreItem(c, item("password policy"))
	require.NoError(t, err)
	empty := item("")
	empty.Title = ""
	_, err = p.ScoreItem(c, empty)
	require.NoError(t, err)

	stats := p.Snapshot()
	assert.Equal(t, int64(2), stats.ItemsScored)
	assert.Equal(t, int64(1), stats.ItemsEmpty)
	assert.Equal(t, int64(1), stats.PrimaryKPACount["KPA1"])
	assert.Equal(t, int64(1), stats.PrimaryKPACount[model.PrimaryKPANone])
}

func TestReloadDoesNotTearInFlightScoring(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	require.NoError(t, os.WriteFile(path, []byte(manifest), 0o600))
	provider, err := corpus.NewProvider(path, discard)
	require.NoError(t, err)
	p := New(provider, nil, discard)

	snapshot := p.Corpus()
	require.NoError(t, os.WriteFile(path, []byte(`{"version":"v2","kpas":[{"id":"KPA1","name":"Teaching"}]}`), 0o600))
	require.NoError(t, p.ReloadCorpus())

	// The held snapshot still carries the original packs.
	got, err := p.ScoreItem(snapshot, item("password policy"))
	require.NoError(t, err)
	assert.Equal(t, "KPA1", got.PrimaryKPA)

	// A fresh snapshot sees the reloaded (empty-pack) corpus.
	got2, err := p.ScoreItem(p.Corpus(), item("password policy"))
	require.NoError(t, err)
	assert.Equal(t, model.PrimaryKPANone, got2.PrimaryKPA)
}
