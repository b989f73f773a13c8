package vamp

import (
	"time"

	"github.com/google/uuid"
)

// Public mirror types for the extension interfaces. They are standalone
// structs with no internal imports so external consumers never depend on
// internal packages; vamp.go converts at the boundary.

// CollectionKey identifies one per-user reporting period.
type CollectionKey struct {
	User  string
	Year  int
	Month int
}

// ScoredItem is one scored piece of evidence inside a collection.
type ScoredItem struct {
	ID             uuid.UUID
	SourcePlatform string
	SourceID       string
	Title          string
	RawText        string
	Timestamp      time.Time

	KPAScores   map[string]float64
	PrimaryKPA  string
	Band        string
	Tiers       []string
	ContentHash string
	Confidence  float64
	Rationale   string
	ScoredAt    time.Time
}

// Collection is the per-period aggregate handed to a CollectionStore
// after every merge.
type Collection struct {
	Key               CollectionKey
	Items             []ScoredItem
	CrossKPABonus     map[string]float64
	DuplicatesDropped int
	Finalised         bool
	FinalisedAt       *time.Time
	UpdatedAt         time.Time
}
