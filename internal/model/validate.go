package model

import "fmt"

// Field length limits for EvidenceItem fields. These prevent a single
// oversized scrape result from filling Postgres TEXT columns or blowing
// up matcher snippets with caller-controlled garbage.
const (
	MaxPlatformLen = 64
	MaxSourceIDLen = 512
	MaxTitleLen    = 1024
	MaxRawTextLen  = 1 * 1024 * 1024 // 1 MB
)

// ValidateEvidenceItem checks per-field length limits on the fields
// that flow into the matcher and Postgres TEXT columns. Empty RawText
// is valid: it scores zero, it does not error.
func ValidateEvidenceItem(item EvidenceItem) error {
	if item.SourcePlatform == "" {
		return fmt.Errorf("source_platform is required")
	}
	if len(item.SourcePlatform) > MaxPlatformLen {
		return fmt.Errorf("source_platform exceeds maximum length of %d characters", MaxPlatformLen)
	}
	if len(item.SourceID) > MaxSourceIDLen {
		return fmt.Errorf("source_id exceeds maximum length of %d characters", MaxSourceIDLen)
	}
	if len(item.Title) > MaxTitleLen {
		return fmt.Errorf("title exceeds maximum length of %d characters", MaxTitleLen)
	}
	if len(item.RawText) > MaxRawTextLen {
		return fmt.Errorf("raw_text exceeds maximum length of %d bytes", MaxRawTextLen)
	}
	if item.TimestampConfidence < 0 || item.TimestampConfidence > 1 {
		return fmt.Errorf("timestamp_confidence must be in [0,1]")
	}
	return nil
}
