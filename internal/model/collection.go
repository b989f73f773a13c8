package model

import (
	"fmt"
	"sort"
	"time"
)

// CollectionKey identifies one per-user reporting period. Evidence is
// deduplicated and finalised per key; the same content in two different
// months is two separate pieces of evidence.
type CollectionKey struct {
	User  string `json:"user"`
	Year  int    `json:"year"`
	Month int    `json:"month"`
}

func (k CollectionKey) String() string {
	return fmt.Sprintf("%s/%04d-%02d", k.User, k.Year, k.Month)
}

// Validate checks the key denotes a real reporting period.
func (k CollectionKey) Validate() error {
	if k.User == "" {
		return fmt.Errorf("collection key: user is required")
	}
	if k.Year < 2000 || k.Year > 2100 {
		return fmt.Errorf("collection key: year %d out of range", k.Year)
	}
	if k.Month < 1 || k.Month > 12 {
		return fmt.Errorf("collection key: month %d out of range", k.Month)
	}
	return nil
}

// KeyForItem buckets an item into its reporting period using the
// evidence timestamp in UTC.
func KeyForItem(user string, ts time.Time) CollectionKey {
	ts = ts.UTC()
	return CollectionKey{User: user, Year: ts.Year(), Month: int(ts.Month())}
}

// EvidenceCollection is the per-(user, year, month) aggregate of unique
// scored evidence. Items are kept ordered by timestamp. Once finalised
// the collection is locked against further merges.
type EvidenceCollection struct {
	Key   CollectionKey    `json:"key"`
	Items []ScoredEvidence `json:"items"`

	// CrossKPABonus reports collection-level score totals per KPA. The
	// per-item bonus is already baked into each item's KPAScores; this
	// is the reporting rollup.
	CrossKPABonus map[string]float64 `json:"cross_kpa_bonus"`

	// DuplicatesDropped counts merges suppressed by the deduplicator
	// over the collection's lifetime.
	DuplicatesDropped int `json:"duplicates_dropped"`

	Finalised   bool       `json:"finalised"`
	FinalisedAt *time.Time `json:"finalised_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NewEvidenceCollection returns an empty, unlocked collection for key.
func NewEvidenceCollection(key CollectionKey) *EvidenceCollection {
	return &EvidenceCollection{
		Key:           key,
		CrossKPABonus: map[string]float64{},
	}
}

// SortItems orders items by timestamp ascending, breaking ties by
// content hash so the order is deterministic.
func (c *EvidenceCollection) SortItems() {
	sort.SliceStable(c.Items, func(i, j int) bool {
		a, b := c.Items[i], c.Items[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.ContentHash < b.ContentHash
	})
}

// Clone returns a deep enough copy for handing to readers: the item
// slice and bonus map are copied, item values are shared (they are
// immutable once scored).
func (c *EvidenceCollection) Clone() *EvidenceCollection {
	out := *c
	out.Items = append([]ScoredEvidence(nil), c.Items...)
	out.CrossKPABonus = make(map[string]float64, len(c.CrossKPABonus))
	for k, v := range c.CrossKPABonus {
		out.CrossKPABonus[k] = v
	}
	return &out
}
