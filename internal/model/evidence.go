// Package model defines the evidence data types shared by the scoring
// pipeline: raw items produced by the collection layer, scored items
// produced by the pipeline, and per-period collections produced by the
// aggregator.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Platform tags for the supported evidence sources. The scraping layer
// may introduce new tags; the pipeline treats them as opaque strings.
const (
	PlatformOutlook  = "outlook"
	PlatformOneDrive = "onedrive"
	PlatformDrive    = "drive"
	PlatformEFundi   = "efundi"
)

// EvidenceItem is a raw evidence record as delivered by the collection
// layer (scraper/OCR). It is immutable once handed to the pipeline:
// scoring never mutates it and produces a new ScoredEvidence instead.
type EvidenceItem struct {
	ID             uuid.UUID `json:"id"`
	SourcePlatform string    `json:"source_platform"`
	SourceID       string    `json:"source_id"`
	Title          string    `json:"title"`
	RawText        string    `json:"raw_text"`
	Timestamp      time.Time `json:"timestamp"`

	// The collection layer estimates timestamps for sources that only
	// expose relative dates ("3 days ago"). Estimated timestamps carry
	// a confidence so reporting can flag them.
	TimestampEstimated  bool    `json:"timestamp_estimated,omitempty"`
	TimestampConfidence float64 `json:"timestamp_confidence,omitempty"`
}

// Match records a single keyword hit for audit purposes.
type Match struct {
	Keyword string  `json:"keyword"`
	Weight  float64 `json:"weight"`
	Snippet string  `json:"snippet"`
}

// PolicyHit records a policy-registry trigger found in an item's text.
type PolicyHit struct {
	PolicyID string `json:"policy_id"`
	Title    string `json:"title"`
	KPA      string `json:"kpa,omitempty"`
	MustPass bool   `json:"must_pass"`
}

// PrimaryKPANone is the primary KPA value for items with no signal.
const PrimaryKPANone = "none"

// BandNoEvidence is the band assigned when all KPA scores are zero.
const BandNoEvidence = "No evidence"

// ScoredEvidence is the pipeline output for one EvidenceItem.
type ScoredEvidence struct {
	EvidenceItem

	// KPAScores maps KPA id to its final score. Scores are not capped
	// at the band scale because the cross-KPA bonus can push a score
	// above its baseline.
	KPAScores map[string]float64 `json:"kpa_scores"`

	// KPAMatches is the audit trail: the distinct keyword hits backing
	// each KPA score. Reproducible given the same corpus and text.
	KPAMatches map[string][]Match `json:"kpa_matches"`

	PrimaryKPA string   `json:"primary_kpa"`
	Band       string   `json:"band"`
	Tiers      []string `json:"tiers"`

	PolicyHits    []PolicyHit `json:"policy_hits,omitempty"`
	MustPassRisks []PolicyHit `json:"must_pass_risks,omitempty"`

	// ContentHash is the dedup key: a stable digest over normalized
	// text, platform, and the year-month bucket.
	ContentHash string `json:"content_hash"`

	// Confidence in [0,1] summarises how much signal was found at all.
	// Distinct from KPA scores: an empty item has confidence 0.
	Confidence float64 `json:"confidence"`

	// Rationale is a short human-readable summary of why the item
	// scored the way it did.
	Rationale string `json:"rationale,omitempty"`

	ScoredAt time.Time `json:"scored_at"`
}

// MaxKPAScore returns the highest KPA score, or 0 when there are none.
func (s ScoredEvidence) MaxKPAScore() float64 {
	var max float64
	for _, v := range s.KPAScores {
		if v > max {
			max = v
		}
	}
	return max
}

// HasTier reports whether the item was assigned the given tier label.
func (s ScoredEvidence) HasTier(label string) bool {
	for _, t := range s.Tiers {
		if t == label {
			return true
		}
	}
	return false
}
