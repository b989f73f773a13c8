package vamp

import "context"

// CollectionStore receives every merged collection snapshot.
// When provided via WithCollectionStore it replaces the built-in
// Postgres persistence, letting consumers ship collections to their own
// backend. Failures are returned to the API caller but never roll back
// the in-memory merge.
type CollectionStore interface {
	SaveCollection(ctx context.Context, col Collection) error
}

// HashFunc produces the dedup digest for one evidence item. The inputs
// are the normalised text, the source platform tag, and the "YYYY-MM"
// period bucket. When provided via WithHashFunc it replaces the default
// SHA-256 content hash; it must be deterministic.
type HashFunc func(normalizedText, sourcePlatform, periodBucket string) string
