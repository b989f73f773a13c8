package storage

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Byron2306/VAMP/internal/model"
)

func TestInsertItemArgsMatchesPlaceholders(t *testing.T) {
	key := model.CollectionKey{User: "jvdm", Year: 2026, Month: 3}
	item := model.ScoredEvidence{
		EvidenceItem: model.EvidenceItem{
			ID:             uuid.New(),
			SourcePlatform: model.PlatformOutlook,
			SourceID:       "msg-1",
			RawText:        "strategic plan",
			Timestamp:      time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC),
		},
		ContentHash: "abc",
	}

	args := insertItemArgs(key, item)

	// Every $n placeholder in the statement must have exactly one argument.
	n := 0
	for strings.Contains(insertItemSQL, fmt.Sprintf("$%d", n+1)) {
		n++
	}
	require.Equal(t, n, len(args))

	assert.Equal(t, item.ID, args[0])
	assert.Equal(t, key.User, args[1])
	assert.Equal(t, key.Year, args[2])
	assert.Equal(t, key.Month, args[3])
	assert.Equal(t, item.ContentHash, args[18])
}

func TestInsertItemArgsCarriesScoringFields(t *testing.T) {
	key := model.CollectionKey{User: "u", Year: 2026, Month: 1}
	item := model.ScoredEvidence{
		KPAScores:  map[string]float64{"KPA1": 2.5},
		PrimaryKPA: "KPA1",
		Band:       "Proficient",
		Tiers:      []string{"Compliance"},
	}

	args := insertItemArgs(key, item)

	assert.Contains(t, args, item.KPAScores)
	assert.Contains(t, args, "KPA1")
	assert.Contains(t, args, "Proficient")
	assert.Contains(t, args, item.Tiers)
}
