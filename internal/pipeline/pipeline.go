// Package pipeline orchestrates the scoring chain: normalise, match,
// score, tier, policy-check, hash. Scoring one item is a pure function
// of (corpus, item); the pipeline adds corpus snapshotting, batch
// execution with cooperative cancellation, and counters.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Byron2306/VAMP/internal/corpus"
	"github.com/Byron2306/VAMP/internal/dedup"
	"github.com/Byron2306/VAMP/internal/match"
	"github.com/Byron2306/VAMP/internal/model"
	"github.com/Byron2306/VAMP/internal/normalize"
	"github.com/Byron2306/VAMP/internal/score"
	"github.com/Byron2306/VAMP/internal/telemetry"
	"github.com/Byron2306/VAMP/internal/tier"

	"go.opentelemetry.io/otel/metric"
)

// ItemError wraps a per-item scoring failure with the offending item's
// identity so operators can correlate it back to the scraped source
// without re-running a scan.
type ItemError struct {
	SourceID       string
	SourcePlatform string
	Err            error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("score %s item %q: %v", e.SourcePlatform, e.SourceID, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

// Pipeline scores evidence items against the active corpus snapshot.
type Pipeline struct {
	corpus *corpus.Provider
	hash   dedup.HashFunc
	logger *slog.Logger

	itemsScored atomic.Int64
	itemsEmpty  atomic.Int64
	itemErrors  atomic.Int64

	kpaMu    sync.Mutex
	kpaDist  map[string]int64
	tickItem metric.Int64Counter
	tickErr  metric.Int64Counter
}

// New creates a Pipeline. hash may be nil to use the default content
// hash.
func New(provider *corpus.Provider, hash dedup.HashFunc, logger *slog.Logger) *Pipeline {
	if hash == nil {
		hash = dedup.ContentHash
	}
	meter := telemetry.Meter("vamp/pipeline")
	tickItem, _ := meter.Int64Counter("vamp.pipeline.items_scored",
		metric.WithDescription("Evidence items scored"))
	tickErr, _ := meter.Int64Counter("vamp.pipeline.item_errors",
		metric.WithDescription("Evidence items that failed scoring"))
	return &Pipeline{
		corpus:   provider,
		hash:     hash,
		logger:   logger,
		kpaDist:  make(map[string]int64),
		tickItem: tickItem,
		tickErr:  tickErr,
	}
}

// Corpus returns the active corpus snapshot. Batch operations take one
// snapshot up front so a concurrent reload never tears a run.
func (p *Pipeline) Corpus() *corpus.Corpus {
	return p.corpus.Snapshot()
}

// ReloadCorpus atomically swaps in a freshly loaded corpus.
func (p *Pipeline) ReloadCorpus() error {
	return p.corpus.Reload()
}

// ScoreItem scores one item against the given corpus snapshot. It never
// mutates the input; empty text yields a valid zero-score result, not
// an error. Errors are programmer-error-class only and carry the item's
// identity.
func (p *Pipeline) ScoreItem(c *corpus.Corpus, item model.EvidenceItem) (model.ScoredEvidence, error) {
	if err := model.ValidateEvidenceItem(item); err != nil {
		p.itemErrors.Add(1)
		p.tickErr.Add(context.Background(), 1)
		return model.ScoredEvidence{}, &ItemError{
			SourceID:       item.SourceID,
			SourcePlatform: item.SourcePlatform,
			Err:            err,
		}
	}

	out := model.ScoredEvidence{EvidenceItem: item}
	if out.ID == uuid.Nil {
		out.ID = uuid.New()
	}

	// Title participates in matching alongside the body, matching how
	// the collection layer titles often carry the only usable signal
	// (e.g. a document filename).
	normalized := normalize.Text(item.Title + " " + item.RawText)

	matches := match.KPAs(c, normalized)
	res, err := score.Compute(c, matches)
	if err != nil {
		p.itemErrors.Add(1)
		p.tickErr.Add(context.Background(), 1)
		return model.ScoredEvidence{}, &model.InvariantViolationError{
			SourceID:       item.SourceID,
			SourcePlatform: item.SourcePlatform,
			Reason:         err.Error(),
		}
	}

	out.KPAScores = res.KPAScores
	out.KPAMatches = matches
	out.PrimaryKPA = res.PrimaryKPA
	out.Band = res.Band
	out.Confidence = res.Confidence
	out.Rationale = res.Rationale
	out.Tiers = tier.Classify(c, normalized, out.MaxKPAScore())
	out.PolicyHits = match.Policies(c, normalized)
	for _, hit := range out.PolicyHits {
		if hit.MustPass {
			out.MustPassRisks = append(out.MustPassRisks, hit)
		}
	}
	out.ContentHash = p.hash(normalized, item.SourcePlatform, dedup.PeriodBucket(item.Timestamp))
	out.ScoredAt = time.Now().UTC()

	p.itemsScored.Add(1)
	p.tickItem.Add(context.Background(), 1)
	if normalized == "" {
		p.itemsEmpty.Add(1)
	}
	p.kpaMu.Lock()
	p.kpaDist[out.PrimaryKPA]++
	p.kpaMu.Unlock()

	return out, nil
}

// ScoreBatch scores items against one corpus snapshot. Cancellation is
// cooperative: the context is checked between items, and every result
// returned is a fully formed ScoredEvidence; a cancelled batch yields
// the items completed so far plus the context error.
//
// parallelism > 1 scores items concurrently (each item is a pure
// function of the shared read-only snapshot); results keep input order.
func (p *Pipeline) ScoreBatch(ctx context.Context, items []model.EvidenceItem, parallelism int) ([]model.ScoredEvidence, error) {
	c := p.Corpus()
	if parallelism <= 1 {
		out := make([]model.ScoredEvidence, 0, len(items))
		for _, item := range items {
			if err := ctx.Err(); err != nil {
				return out, err
			}
			scored, err := p.ScoreItem(c, item)
			if err != nil {
				return out, err
			}
			out = append(out, scored)
		}
		return out, nil
	}

	results := make([]model.ScoredEvidence, len(items))
	done := make([]atomic.Bool, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for i, item := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			scored, err := p.ScoreItem(c, item)
			if err != nil {
				return err
			}
			results[i] = scored
			done[i].Store(true)
			return nil
		})
	}
	err := g.Wait()

	out := make([]model.ScoredEvidence, 0, len(items))
	for i := range results {
		if done[i].Load() {
			out = append(out, results[i])
		}
	}
	return out, err
}

// Stats is a read-only counters snapshot for the diagnostics surface.
type Stats struct {
	ItemsScored     int64            `json:"items_scored"`
	ItemsEmpty      int64            `json:"items_empty"`
	ItemErrors      int64            `json:"item_errors"`
	PrimaryKPACount map[string]int64 `json:"primary_kpa_count"`
}

// Snapshot returns current pipeline counters.
func (p *Pipeline) Snapshot() Stats {
	p.kpaMu.Lock()
	dist := make(map[string]int64, len(p.kpaDist))
	for k, v := range p.kpaDist {
		dist[k] = v
	}
	p.kpaMu.Unlock()
	return Stats{
		ItemsScored:     p.itemsScored.Load(),
		ItemsEmpty:      p.itemsEmpty.Load(),
		ItemErrors:      p.itemErrors.Load(),
		PrimaryKPACount: dist,
	}
}
