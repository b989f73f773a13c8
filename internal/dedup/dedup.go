// Package dedup computes content hashes for evidence items and tracks
// seen hashes within one collection scope. Hashing is deterministic and
// the hash function is injectable so the algorithm can change without
// touching aggregation logic.
package dedup

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"
)

// HashFunc produces a stable digest from the canonical dedup fields:
// normalised text, source platform, and the coarse year-month bucket.
type HashFunc func(normalizedText, sourcePlatform, periodBucket string) string

// ContentHash is the default HashFunc: a SHA-256 hex digest over
// length-prefixed fields. Each field is encoded as a 4-byte big-endian
// length followed by the field bytes, which avoids delimiter collisions
// when the text itself contains separator characters.
func ContentHash(normalizedText, sourcePlatform, periodBucket string) string {
	h := sha256.New()
	writeField := func(s string) {
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(s)))
		h.Write(lenBuf[:])
		h.Write([]byte(s))
	}
	writeField(normalizedText)
	writeField(sourcePlatform)
	writeField(periodBucket)
	return hex.EncodeToString(h.Sum(nil))
}

// PeriodBucket formats a timestamp as its UTC year-month bucket. The
// bucket, not the raw timestamp, feeds the hash: the same content
// scraped on different days of one month still dedupes, while the same
// content in two different months is two pieces of evidence.
func PeriodBucket(ts time.Time) string {
	ts = ts.UTC()
	return fmt.Sprintf("%04d-%02d", ts.Year(), int(ts.Month()))
}

// Deduplicator tracks seen hashes for one collection scope.
// Not safe for concurrent use; the aggregator serialises access per
// collection key.
type Deduplicator struct {
	seen    map[string]struct{}
	dropped int
}

// New returns an empty Deduplicator, optionally pre-seeded with hashes
// already present in the collection.
func New(seed ...string) *Deduplicator {
	d := &Deduplicator{seen: make(map[string]struct{}, len(seed))}
	for _, h := range seed {
		d.seen[h] = struct{}{}
	}
	return d
}

// Observe records the hash and reports whether it was already seen.
// First-seen wins: the first call for a hash returns false, every
// later call returns true and bumps the duplicate counter.
func (d *Deduplicator) Observe(hash string) bool {
	if _, dup := d.seen[hash]; dup {
		d.dropped++
		return true
	}
	d.seen[hash] = struct{}{}
	return false
}

// Dropped returns how many duplicates Observe has suppressed.
func (d *Deduplicator) Dropped() int { return d.dropped }

// RestoreDropped sets the duplicate counter, used when rebuilding a
// deduplicator from persisted collection state.
func (d *Deduplicator) RestoreDropped(n int) { d.dropped = n }

// Len returns the number of distinct hashes seen.
func (d *Deduplicator) Len() int { return len(d.seen) }
