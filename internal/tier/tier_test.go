package tier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Byron2306/VAMP/internal/corpus"
)

func testCorpus(t *testing.T) *corpus.Corpus {
	t.Helper()
	c, err := corpus.Parse([]byte(`{
		"kpas": [{"id": "KPA1", "name": "Teaching"}],
		"tier_keywords": [
			{"name": "Compliance", "triggers": ["policy", "procedure"], "min_hits": 1},
			{"name": "Developmental", "triggers": ["workshop", "training", "mentoring"], "min_hits": 2},
			{"name": "Transformational", "triggers": ["redesign", "innovation", "curriculum overhaul"], "min_hits": 2, "min_kpa_score": 2.5}
		]
	}`), "inline")
	require.NoError(t, err)
	return c
}

func TestClassify(t *testing.T) {
	c := testCorpus(t)

	t.Run("single tier", func(t *testing.T) {
		got := Classify(c, "the new policy applies", 0)
		assert.Equal(t, []string{"Compliance"}, got)
	})

	t.Run("min hits gate", func(t *testing.T) {
		// One Developmental trigger is not enough.
		assert.Empty(t, Classify(c, "attended a workshop", 0))
		// Two distinct triggers qualify.
		assert.Equal(t, []string{"Developmental"},
			Classify(c, "attended a workshop and a training session", 0))
	})

	t.Run("repeated trigger counts once", func(t *testing.T) {
		assert.Empty(t, Classify(c, "workshop workshop workshop", 0))
	})

	t.Run("multiple tiers simultaneously", func(t *testing.T) {
		got := Classify(c, "policy workshop with mentoring follow-up", 0)
		assert.Equal(t, []string{"Compliance", "Developmental"}, got)
	})

	t.Run("transformational requires both triggers and score", func(t *testing.T) {
		text := "a redesign driven by real innovation"
		// Trigger count met, score too low: not assigned.
		assert.Empty(t, Classify(c, text, 2.4))
		// Both conditions met.
		assert.Equal(t, []string{"Transformational"}, Classify(c, text, 2.5))
	})

	t.Run("score alone never grants the top tier", func(t *testing.T) {
		assert.Empty(t, Classify(c, "a redesign only", 9.9))
	})

	t.Run("empty text", func(t *testing.T) {
		assert.Nil(t, Classify(c, "", 5.0))
	})
}
