// Package aggregate merges scored evidence batches into per-(user,
// year, month) collections. The collection registry is the one place in
// the pipeline with mutable shared state: merges for the same key are
// serialised behind a per-key lock, merges for different keys proceed
// concurrently.
package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Byron2306/VAMP/internal/dedup"
	"github.com/Byron2306/VAMP/internal/model"
)

// Store persists collections after each successful merge. Implemented
// by internal/storage; nil disables persistence.
type Store interface {
	SaveCollection(ctx context.Context, col *model.EvidenceCollection) error
}

// Aggregator owns the in-memory collection registry.
type Aggregator struct {
	mu      sync.Mutex
	entries map[model.CollectionKey]*entry

	store  Store
	logger *slog.Logger
}

// entry pairs a collection with its key-scoped lock and deduplicator.
type entry struct {
	mu    sync.Mutex
	col   *model.EvidenceCollection
	dedup *dedup.Deduplicator
}

// New creates an Aggregator. store may be nil.
func New(store Store, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		entries: make(map[model.CollectionKey]*entry),
		store:   store,
		logger:  logger,
	}
}

// entryFor returns the entry for key, creating it on first use.
func (a *Aggregator) entryFor(key model.CollectionKey) *entry {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.entries[key]
	if !ok {
		e = &entry{
			col:   model.NewEvidenceCollection(key),
			dedup: dedup.New(),
		}
		a.entries[key] = e
	}
	return e
}

// Aggregate merges batch into the collection for key and returns a
// snapshot of the merged collection. Duplicates (by content hash) are
// dropped and counted, so feeding the same batch twice yields the same
// item set, so the merge is idempotent. A finalised collection rejects
// the whole merge with *model.CollectionFinalisedError and is left
// unmodified.
//
// The in-memory merge is canonical for the run; persistence is
// write-behind. If the store fails the merged snapshot is still
// returned alongside the error, and retrying the batch is safe.
func (a *Aggregator) Aggregate(ctx context.Context, key model.CollectionKey, batch []model.ScoredEvidence) (*model.EvidenceCollection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := key.Validate(); err != nil {
		return nil, err
	}

	e := a.entryFor(key)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.col.Finalised {
		return nil, &model.CollectionFinalisedError{Key: key}
	}

	added := 0
	for _, item := range batch {
		if item.ContentHash == "" {
			return nil, &model.InvariantViolationError{
				SourceID:       item.SourceID,
				SourcePlatform: item.SourcePlatform,
				Reason:         "scored evidence has empty content hash",
			}
		}
		if e.dedup.Observe(item.ContentHash) {
			continue
		}
		e.col.Items = append(e.col.Items, item)
		added++
	}

	e.col.SortItems()
	e.col.DuplicatesDropped = e.dedup.Dropped()
	e.col.CrossKPABonus = kpaTotals(e.col.Items)
	e.col.UpdatedAt = time.Now().UTC()

	a.logger.Debug("aggregated batch",
		"collection", key.String(),
		"batch", len(batch),
		"added", added,
		"duplicates", e.col.DuplicatesDropped)

	snapshot := e.col.Clone()
	if a.store != nil {
		if err := a.store.SaveCollection(ctx, snapshot); err != nil {
			a.logger.Warn("persist collection failed", "collection", key.String(), "error", err)
			return snapshot, fmt.Errorf("aggregate: persist %s: %w", key, err)
		}
	}
	return snapshot, nil
}

// Seed installs a previously persisted collection into the registry,
// rebuilding the deduplicator from the item hashes. Used to rehydrate
// state at startup; an existing entry for the same key is replaced.
func (a *Aggregator) Seed(col *model.EvidenceCollection) error {
	if err := col.Key.Validate(); err != nil {
		return err
	}
	hashes := make([]string, 0, len(col.Items))
	for _, item := range col.Items {
		if item.ContentHash == "" {
			return &model.InvariantViolationError{
				SourceID:       item.SourceID,
				SourcePlatform: item.SourcePlatform,
				Reason:         "stored evidence has empty content hash",
			}
		}
		hashes = append(hashes, item.ContentHash)
	}

	seeded := col.Clone()
	seeded.SortItems()

	d := dedup.New(hashes...)
	d.RestoreDropped(col.DuplicatesDropped)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries[col.Key] = &entry{col: seeded, dedup: d}
	return nil
}

// Finalise locks the collection for key against further merges.
// Finalising an already-finalised collection is a no-op.
func (a *Aggregator) Finalise(ctx context.Context, key model.CollectionKey) (*model.EvidenceCollection, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	e := a.entryFor(key)
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.col.Finalised {
		now := time.Now().UTC()
		e.col.Finalised = true
		e.col.FinalisedAt = &now
		e.col.UpdatedAt = now
		a.logger.Info("collection finalised", "collection", key.String(), "items", len(e.col.Items))
	}

	snapshot := e.col.Clone()
	if a.store != nil {
		if err := a.store.SaveCollection(ctx, snapshot); err != nil {
			return snapshot, fmt.Errorf("aggregate: persist %s: %w", key, err)
		}
	}
	return snapshot, nil
}

// Collection returns a read-only snapshot for key, or false when the
// key has never been aggregated into.
func (a *Aggregator) Collection(key model.CollectionKey) (*model.EvidenceCollection, bool) {
	a.mu.Lock()
	e, ok := a.entries[key]
	a.mu.Unlock()
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.col.Clone(), true
}

// Stats is a read-only counters snapshot for the diagnostics surface.
type Stats struct {
	Collections       int `json:"collections"`
	Finalised         int `json:"finalised"`
	Items             int `json:"items"`
	DuplicatesDropped int `json:"duplicates_dropped"`
}

// Snapshot returns current aggregate counters.
func (a *Aggregator) Snapshot() Stats {
	a.mu.Lock()
	entries := make([]*entry, 0, len(a.entries))
	for _, e := range a.entries {
		entries = append(entries, e)
	}
	a.mu.Unlock()

	var s Stats
	s.Collections = len(entries)
	for _, e := range entries {
		e.mu.Lock()
		if e.col.Finalised {
			s.Finalised++
		}
		s.Items += len(e.col.Items)
		s.DuplicatesDropped += e.col.DuplicatesDropped
		e.mu.Unlock()
	}
	return s
}

// kpaTotals rolls up per-item KPA scores into collection-level totals
// for reporting. The per-item cross-KPA bonus is already baked into
// each item's scores.
func kpaTotals(items []model.ScoredEvidence) map[string]float64 {
	totals := map[string]float64{}
	for _, item := range items {
		for kpaID, s := range item.KPAScores {
			totals[kpaID] += s
		}
	}
	return totals
}
