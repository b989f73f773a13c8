package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"whitespace only", "  \t\n  ", ""},
		{"lowercases", "Password POLICY", "password policy"},
		{"collapses whitespace", "multi-factor\t\n  authentication", "multi-factor authentication"},
		{"strips control chars", "policy\x00\x08 update", "policy update"},
		{"keeps numbers and punctuation", "90-day expiration, v2.1", "90-day expiration, v2.1"},
		{"trims edges", "  trailing space  ", "trailing space"},
		{"unicode whitespace", "a b", "a b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Text(tt.in))
		})
	}
}

func TestTextIdempotent(t *testing.T) {
	in := "  The Quick\tBrown FOX,  jumps 2x.  "
	once := Text(in)
	assert.Equal(t, once, Text(once))
}
