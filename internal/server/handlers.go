package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Byron2306/VAMP/internal/aggregate"
	"github.com/Byron2306/VAMP/internal/model"
	"github.com/Byron2306/VAMP/internal/pipeline"
)

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	pipeline            *pipeline.Pipeline
	agg                 *aggregate.Aggregator
	pinger              Pinger
	logger              *slog.Logger
	startedAt           time.Time
	version             string
	maxRequestBodyBytes int64
	scoreParallelism    int
}

// Pinger reports storage connectivity for the health endpoint.
// Nil means persistence is disabled.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HandlersDeps holds all dependencies for constructing Handlers.
// Optional (nil-safe): DB.
type HandlersDeps struct {
	Pipeline            *pipeline.Pipeline
	Aggregator          *aggregate.Aggregator
	DB                  Pinger
	Logger              *slog.Logger
	Version             string
	MaxRequestBodyBytes int64
	ScoreParallelism    int
}

// NewHandlers creates a new Handlers with all dependencies.
func NewHandlers(d HandlersDeps) *Handlers {
	return &Handlers{
		pipeline:            d.Pipeline,
		agg:                 d.Aggregator,
		pinger:              d.DB,
		logger:              d.Logger,
		startedAt:           time.Now(),
		version:             d.Version,
		maxRequestBodyBytes: d.MaxRequestBodyBytes,
		scoreParallelism:    d.ScoreParallelism,
	}
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	httpStatus := http.StatusOK

	resp := model.HealthResponse{
		Version:  h.version,
		CorpusOK: h.pipeline.Corpus() != nil,
		Uptime:   int64(time.Since(h.startedAt).Seconds()),
	}

	if h.pinger != nil {
		resp.Postgres = "connected"
		if err := h.pinger.Ping(r.Context()); err != nil {
			resp.Postgres = "disconnected"
			status = "unhealthy"
			httpStatus = http.StatusServiceUnavailable
		}
	}
	if !resp.CorpusOK {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}
	resp.Status = status

	writeJSON(w, r, httpStatus, resp)
}

// HandleStats handles GET /v1/stats.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	c := h.pipeline.Corpus()
	writeJSON(w, r, http.StatusOK, map[string]any{
		"pipeline":  h.pipeline.Snapshot(),
		"aggregate": h.agg.Snapshot(),
		"corpus": model.CorpusInfo{
			KPAs:      len(c.KPAs),
			TierRules: len(c.TierRules),
			Policies:  len(c.Policies),
		},
	})
}

// HandleScoreEvidence handles POST /v1/evidence. The batch is scored
// against the active corpus snapshot, bucketed into monthly collections
// by item timestamp, and merged. Scoring is all-or-nothing: one invalid
// item rejects the whole batch before any merge happens.
func (h *Handlers) HandleScoreEvidence(w http.ResponseWriter, r *http.Request) {
	var req model.ScoreEvidenceRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if req.User == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "user is required")
		return
	}
	if len(req.Items) == 0 {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "items must not be empty")
		return
	}

	scored, err := h.pipeline.ScoreBatch(r.Context(), req.Items, h.scoreParallelism)
	if err != nil {
		var itemErr *pipeline.ItemError
		if errors.As(err, &itemErr) {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, itemErr.Error())
			return
		}
		h.writeInternalError(w, r, "score batch", err)
		return
	}

	// Bucket by collection key, preserving input order within each bucket.
	buckets := make(map[model.CollectionKey][]model.ScoredEvidence)
	var keys []model.CollectionKey
	for _, item := range scored {
		key := model.KeyForItem(req.User, item.Timestamp)
		if _, seen := buckets[key]; !seen {
			keys = append(keys, key)
		}
		buckets[key] = append(buckets[key], item)
	}

	summaries := make([]model.CollectionSummary, 0, len(keys))
	for _, key := range keys {
		col, err := h.agg.Aggregate(r.Context(), key, buckets[key])
		if err != nil {
			var finalised *model.CollectionFinalisedError
			if errors.As(err, &finalised) {
				writeError(w, r, http.StatusConflict, model.ErrCodeCollectionFinalised, err.Error())
				return
			}
			var iv *model.InvariantViolationError
			if errors.As(err, &iv) {
				writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
				return
			}
			// Persistence failed after the in-memory merge; report it but
			// include the summary so callers can see the merge happened.
			h.logger.Error("persist after merge failed", "collection", key.String(), "error", err)
			if col == nil {
				h.writeInternalError(w, r, "aggregate batch", err)
				return
			}
		}
		summaries = append(summaries, summarise(col))
	}

	writeJSON(w, r, http.StatusOK, model.ScoreEvidenceResponse{
		Items:       scored,
		Collections: summaries,
	})
}

// HandleGetCollection handles GET /v1/collections/{user}/{year}/{month}.
func (h *Handlers) HandleGetCollection(w http.ResponseWriter, r *http.Request) {
	key, err := parseCollectionKey(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}
	col, ok := h.agg.Collection(key)
	if !ok {
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound,
			"no collection for "+key.String())
		return
	}
	writeJSON(w, r, http.StatusOK, col)
}

// HandleFinaliseCollection handles POST /v1/collections/{user}/{year}/{month}/finalise.
// Finalising twice is a no-op and returns the same locked snapshot.
func (h *Handlers) HandleFinaliseCollection(w http.ResponseWriter, r *http.Request) {
	key, err := parseCollectionKey(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}
	col, err := h.agg.Finalise(r.Context(), key)
	if err != nil {
		if col != nil {
			h.logger.Error("persist after finalise failed", "collection", key.String(), "error", err)
			writeJSON(w, r, http.StatusOK, col)
			return
		}
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}
	writeJSON(w, r, http.StatusOK, col)
}

// HandleCorpusReload handles POST /v1/corpus/reload. On failure the
// previous corpus stays active and the load error is returned.
func (h *Handlers) HandleCorpusReload(w http.ResponseWriter, r *http.Request) {
	if err := h.pipeline.ReloadCorpus(); err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, model.ErrCodeCorpusLoadFailed, err.Error())
		return
	}
	c := h.pipeline.Corpus()
	writeJSON(w, r, http.StatusOK, model.CorpusInfo{
		KPAs:      len(c.KPAs),
		TierRules: len(c.TierRules),
		Policies:  len(c.Policies),
	})
}

func (h *Handlers) writeInternalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.Error(msg, "error", err, "request_id", RequestIDFromContext(r.Context()))
	writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "internal server error")
}

func summarise(col *model.EvidenceCollection) model.CollectionSummary {
	return model.CollectionSummary{
		Key:               col.Key,
		Items:             len(col.Items),
		DuplicatesDropped: col.DuplicatesDropped,
		CrossKPABonus:     col.CrossKPABonus,
		Finalised:         col.Finalised,
	}
}

func parseCollectionKey(r *http.Request) (model.CollectionKey, error) {
	user := r.PathValue("user")
	year, err := strconv.Atoi(r.PathValue("year"))
	if err != nil {
		return model.CollectionKey{}, fmt.Errorf("invalid year: %s", r.PathValue("year"))
	}
	month, err := strconv.Atoi(r.PathValue("month"))
	if err != nil {
		return model.CollectionKey{}, fmt.Errorf("invalid month: %s", r.PathValue("month"))
	}
	key := model.CollectionKey{User: user, Year: year, Month: month}
	if err := key.Validate(); err != nil {
		return model.CollectionKey{}, err
	}
	return key, nil
}
