package match

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Byron2306/VAMP/internal/corpus"
)

func testCorpus(t *testing.T) *corpus.Corpus {
	t.Helper()
	c, err := corpus.Parse([]byte(`{
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
		"policy_registry": [
			{"id": "POL-IT-003", "title": "Password Policy", "triggers": ["password policy"], "kpa": "KPA1", "must_pass": true},
			{"id": "POL-HR-001", "title": "Leave Policy", "triggers": ["annual leave", "sick leave"]}
		]
	}`), "inline")
	require.NoError(t, err)
	return c
}

func TestKPAs(t *testing.T) {
	c := testCorpus(t)

	t.Run("weighted hits with snippets", func(t *testing.T) {
		text := "we updated the password policy requiring multi-factor authentication and 90-day expiration."
		got := KPAs(c, text)

		require.Contains(t, got, "KPA1")
		require.Len(t, got["KPA1"], 3)
		assert.Equal(t, "password policy", got["KPA1"][0].Keyword)
		assert.InDelta(t, 1.0, got["KPA1"][0].Weight, 1e-9)
		assert.Contains(t, got["KPA1"][0].Snippet, "password policy")
		assert.NotContains(t, got, "KPA2")
	})

	t.Run("repeated keyword counts once", func(t *testing.T) {
		text := strings.Repeat("expiration ", 5)
		got := KPAs(c, strings.TrimSpace(text))
		require.Len(t, got["KPA1"], 1)
	})

	t.Run("word boundary prevents partial matches", func(t *testing.T) {
		got := KPAs(c, "the expirationdate field")
		assert.Empty(t, got)

		got = KPAs(c, "set an expiration: now")
		require.Len(t, got["KPA1"], 1)
	})

	t.Run("empty text", func(t *testing.T) {
		assert.Empty(t, KPAs(c, ""))
	})

	t.Run("deterministic", func(t *testing.T) {
		text := "password policy expiration journal article"
		a := KPAs(c, text)
		b := KPAs(c, text)
		assert.Equal(t, a, b)
	})
}

func TestPolicies(t *testing.T) {
	c := testCorpus(t)

	t.Run("hit with must_pass", func(t *testing.T) {
		hits := Policies(c, "the password policy changed")
		require.Len(t, hits, 1)
		assert.Equal(t, "POL-IT-003", hits[0].PolicyID)
		assert.True(t, hits[0].MustPass)
		assert.Equal(t, "KPA1", hits[0].KPA)
	})

	t.Run("policy hits once across multiple triggers", func(t *testing.T) {
		hits := Policies(c, "annual leave and sick leave balances")
		require.Len(t, hits, 1)
		assert.Equal(t, "POL-HR-001", hits[0].PolicyID)
	})

	t.Run("no hits", func(t *testing.T) {
		assert.Empty(t, Policies(c, "nothing relevant here"))
	})
}

func TestPhrase(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		phrase string
		want   bool
	}{
		{"exact", "password policy", "password policy", true},
		{"mid-sentence", "the password policy applies", "password policy", true},
		{"prefix of longer word", "passwords policy", "password policy", false},
		{"suffix run-on", "thepassword policy", "password policy", false},
		{"punctuation boundary", "policy: expiration.", "expiration", true},
		{"digit boundary blocks", "expiration9", "expiration", false},
		{"later occurrence matches", "reexpiration then expiration", "expiration", true},
		{"empty phrase", "anything", "", false},
		{"mixed-case corpus keyword", "password policy", "Password Policy", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := Phrase(tt.text, tt.phrase)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestSnippetRuneSafety(t *testing.T) {
	text := strings.Repeat("é", 30) + " expiration " + strings.Repeat("ü", 30)
	idx, ok := Phrase(text, "expiration")
	require.True(t, ok)
	snip := Snippet(text, idx, len("expiration"))
	assert.True(t, strings.Contains(snip, "expiration"))
	// Every byte boundary in the snippet is a valid rune sequence.
	assert.True(t, strings.ToValidUTF8(snip, "?") == snip)
}
