package model

import "time"

// Error codes returned in the API error envelope.
const (
	ErrCodeInvalidInput        = "invalid_input"
	ErrCodeNotFound            = "not_found"
	ErrCodeCollectionFinalised = "collection_finalised"
	ErrCodeCorpusLoadFailed    = "corpus_load_failed"
	ErrCodeInternalError       = "internal_error"
)

// APIResponse is the standard success envelope.
type APIResponse struct {
	Data any          `json:"data"`
	Meta ResponseMeta `json:"meta"`
}

// APIError is the standard error envelope.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// ErrorDetail holds a machine-readable code and human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ResponseMeta is attached to every response.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ScoreEvidenceRequest is the body of POST /v1/evidence. Items are scored
// against the active corpus and merged into the user's monthly collections.
type ScoreEvidenceRequest struct {
	User  string         `json:"user"`
	Items []EvidenceItem `json:"items"`
}

// CollectionSummary is the per-collection rollup returned after a merge.
type CollectionSummary struct {
	Key               CollectionKey      `json:"key"`
	Items             int                `json:"items"`
	DuplicatesDropped int                `json:"duplicates_dropped"`
	CrossKPABonus     map[string]float64 `json:"cross_kpa_bonus"`
	Finalised         bool               `json:"finalised"`
}

// ScoreEvidenceResponse returns the scored items in input order plus a
// summary of each collection the batch touched.
type ScoreEvidenceResponse struct {
	Items       []ScoredEvidence    `json:"items"`
	Collections []CollectionSummary `json:"collections"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Postgres string `json:"postgres,omitempty"`
	CorpusOK bool   `json:"corpus_ok"`
	Uptime   int64  `json:"uptime_seconds"`
}

// CorpusInfo describes the active corpus snapshot.
type CorpusInfo struct {
	KPAs      int `json:"kpas"`
	TierRules int `json:"tier_rules"`
	Policies  int `json:"policies"`
}
