package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestContentHash(t *testing.T) {
	t.Run("stable", func(t *testing.T) {
		a := ContentHash("some text", "outlook", "2025-11")
		b := ContentHash("some text", "outlook", "2025-11")
		assert.Equal(t, a, b)
		assert.Len(t, a, 64)
	})

	t.Run("field boundaries matter", func(t *testing.T) {
		// Length prefixing keeps shifted field contents distinct.
		a := ContentHash("ab", "c", "2025-11")
		b := ContentHash("a", "bc", "2025-11")
		assert.NotEqual(t, a, b)
	})

	t.Run("platform distinguishes", func(t *testing.T) {
		assert.NotEqual(t,
			ContentHash("text", "outlook", "2025-11"),
			ContentHash("text", "onedrive", "2025-11"))
	})

	t.Run("month distinguishes", func(t *testing.T) {
		assert.NotEqual(t,
			ContentHash("text", "outlook", "2025-11"),
			ContentHash("text", "outlook", "2025-12"))
	})
}

func TestPeriodBucket(t *testing.T) {
	assert.Equal(t, "2025-11",
		PeriodBucket(time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC)))
	// Same month, different day: same bucket.
	assert.Equal(t,
		PeriodBucket(time.Date(2025, 11, 3, 0, 0, 0, 0, time.UTC)),
		PeriodBucket(time.Date(2025, 11, 28, 23, 59, 0, 0, time.UTC)))
	// Local time close to midnight converts to UTC first.
	loc := time.FixedZone("UTC-3", -3*3600)
	assert.Equal(t, "2025-12",
		PeriodBucket(time.Date(2025, 11, 30, 22, 0, 0, 0, loc)))
}

func TestDeduplicator(t *testing.T) {
	d := New()
	assert.False(t, d.Observe("h1"))
	assert.True(t, d.Observe("h1"))
	assert.True(t, d.Observe("h1"))
	assert.False(t, d.Observe("h2"))
	assert.Equal(t, 2, d.Dropped())
	assert.Equal(t, 2, d.Len())
}

func TestDeduplicatorSeed(t *testing.T) {
	d := New("h1", "h2")
	assert.True(t, d.Observe("h1"))
	assert.False(t, d.Observe("h3"))
	assert.Equal(t, 1, d.Dropped())
}
