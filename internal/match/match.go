// Package match scans normalised evidence text against the policy
// corpus. Matching is pure and deterministic: the same (corpus, text)
// pair always yields the same hits in the same order.
package match

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Byron2306/VAMP/internal/corpus"
	"github.com/Byron2306/VAMP/internal/model"
)

// snippetRadius is how much surrounding context a hit snippet carries,
// in bytes on each side of the matched phrase.
const snippetRadius = 40

// KPAs returns the weighted keyword hits per KPA. Each keyword counts
// at most once regardless of how often it occurs. A repeated buzzword
// must not inflate the score. KPAs with no hits are absent from the
// result. Iteration follows manifest order so results are reproducible.
func KPAs(c *corpus.Corpus, normalized string) map[string][]model.Match {
	if normalized == "" {
		return map[string][]model.Match{}
	}
	out := make(map[string][]model.Match)
	for _, kpaID := range c.KPAIDs() {
		var hits []model.Match
		for _, kw := range c.Pack(kpaID) {
			idx, ok := Phrase(normalized, kw.Keyword)
			if !ok {
				continue
			}
			hits = append(hits, model.Match{
				Keyword: kw.Keyword,
				Weight:  kw.Weight,
				Snippet: Snippet(normalized, idx, len(kw.Keyword)),
			})
		}
		if len(hits) > 0 {
			out[kpaID] = hits
		}
	}
	return out
}

// Policies returns the policy-registry entries whose trigger phrases
// appear in the text. A policy hits at most once even when several of
// its triggers match.
func Policies(c *corpus.Corpus, normalized string) []model.PolicyHit {
	if normalized == "" {
		return nil
	}
	var hits []model.PolicyHit
	for _, p := range c.Policies {
		for _, trigger := range p.Triggers {
			if _, ok := Phrase(normalized, trigger); ok {
				hits = append(hits, model.PolicyHit{
					PolicyID: p.ID,
					Title:    p.Title,
					KPA:      p.KPA,
					MustPass: p.MustPass,
				})
				break
			}
		}
	}
	return hits
}

// Phrase reports whether phrase occurs in text on word boundaries and
// returns the byte offset of the first such occurrence. Both inputs are
// expected to be normalised already; phrase is lowercased defensively
// since corpus authors write keywords in mixed case.
func Phrase(text, phrase string) (int, bool) {
	phrase = strings.ToLower(strings.TrimSpace(phrase))
	if phrase == "" {
		return 0, false
	}
	from := 0
	for {
		i := strings.Index(text[from:], phrase)
		if i < 0 {
			return 0, false
		}
		idx := from + i
		if boundaryBefore(text, idx) && boundaryAfter(text, idx+len(phrase)) {
			return idx, true
		}
		from = idx + 1
	}
}

func boundaryBefore(text string, idx int) bool {
	if idx == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:idx])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func boundaryAfter(text string, end int) bool {
	if end >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[end:])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

// Snippet extracts the matched phrase with surrounding context for the
// audit trail. Cut points are moved to rune boundaries so multi-byte
// characters are never split.
func Snippet(text string, idx, phraseLen int) string {
	start := idx - snippetRadius
	if start < 0 {
		start = 0
	}
	for start > 0 && !utf8.RuneStart(text[start]) {
		start--
	}
	end := idx + phraseLen + snippetRadius
	if end > len(text) {
		end = len(text)
	}
	for end < len(text) && !utf8.RuneStart(text[end]) {
		end++
	}
	return text[start:end]
}
