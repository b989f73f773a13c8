package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Byron2306/VAMP/internal/model"
)

const insertItemSQL = `
	INSERT INTO evidence_items (
		id, user_id, year, month,
		source_platform, source_id, title, raw_text,
		occurred_at, ts_estimated, ts_confidence,
		kpa_scores, kpa_matches, primary_kpa, band, tiers,
		policy_hits, must_pass_risks,
		content_hash, confidence, rationale, scored_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
		$12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22
	)
	ON CONFLICT (user_id, year, month, content_hash) DO NOTHING`

// insertItemArgs builds the positional arguments for insertItemSQL.
// Kept separate so the column mapping can be tested without a database.
func insertItemArgs(key model.CollectionKey, item model.ScoredEvidence) []any {
	return []any{
		item.ID, key.User, key.Year, key.Month,
		item.SourcePlatform, item.SourceID, item.Title, item.RawText,
		item.Timestamp, item.TimestampEstimated, item.TimestampConfidence,
		item.KPAScores, item.KPAMatches, item.PrimaryKPA, item.Band, item.Tiers,
		item.PolicyHits, item.MustPassRisks,
		item.ContentHash, item.Confidence, item.Rationale, item.ScoredAt,
	}
}

// SaveCollection upserts a collection and its items in one transaction.
// Items already present (same content hash within the collection) are
// left untouched, so replaying a merge is harmless.
func (db *DB) SaveCollection(ctx context.Context, col *model.EvidenceCollection) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("storage: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO collections (
			user_id, year, month, finalised, finalised_at,
			duplicates_dropped, cross_kpa_bonus, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, year, month) DO UPDATE SET
			finalised          = EXCLUDED.finalised,
			finalised_at       = EXCLUDED.finalised_at,
			duplicates_dropped = EXCLUDED.duplicates_dropped,
			cross_kpa_bonus    = EXCLUDED.cross_kpa_bonus,
			updated_at         = EXCLUDED.updated_at`,
		col.Key.User, col.Key.Year, col.Key.Month,
		col.Finalised, col.FinalisedAt,
		col.DuplicatesDropped, col.CrossKPABonus, col.UpdatedAt,
	); err != nil {
		return fmt.Errorf("storage: upsert collection %s: %w", col.Key, err)
	}

	batch := &pgx.Batch{}
	for _, item := range col.Items {
		batch.Queue(insertItemSQL, insertItemArgs(col.Key, item)...)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("storage: insert items for %s: %w", col.Key, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("storage: commit: %w", err)
	}
	return nil
}

// GetCollection loads a collection and its items ordered by timestamp then
// content hash. Returns ErrNotFound if the collection does not exist.
func (db *DB) GetCollection(ctx context.Context, key model.CollectionKey) (*model.EvidenceCollection, error) {
	col := &model.EvidenceCollection{Key: key}

	err := db.pool.QueryRow(ctx, `
		SELECT finalised, finalised_at, duplicates_dropped, cross_kpa_bonus, updated_at
		FROM collections
		WHERE user_id = $1 AND year = $2 AND month = $3`,
		key.User, key.Year, key.Month,
	).Scan(&col.Finalised, &col.FinalisedAt, &col.DuplicatesDropped, &col.CrossKPABonus, &col.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: load collection %s: %w", key, err)
	}

	rows, err := db.pool.Query(ctx, `
		SELECT id, source_platform, source_id, title, raw_text,
		       occurred_at, ts_estimated, ts_confidence,
		       kpa_scores, kpa_matches, primary_kpa, band, tiers,
		       policy_hits, must_pass_risks,
		       content_hash, confidence, rationale, scored_at
		FROM evidence_items
		WHERE user_id = $1 AND year = $2 AND month = $3
		ORDER BY occurred_at, content_hash`,
		key.User, key.Year, key.Month,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: load items for %s: %w", key, err)
	}
	defer rows.Close()

	for rows.Next() {
		var item model.ScoredEvidence
		if err := rows.Scan(
			&item.ID, &item.SourcePlatform, &item.SourceID, &item.Title, &item.RawText,
			&item.Timestamp, &item.TimestampEstimated, &item.TimestampConfidence,
			&item.KPAScores, &item.KPAMatches, &item.PrimaryKPA, &item.Band, &item.Tiers,
			&item.PolicyHits, &item.MustPassRisks,
			&item.ContentHash, &item.Confidence, &item.Rationale, &item.ScoredAt,
		); err != nil {
			return nil, fmt.Errorf("storage: scan item for %s: %w", key, err)
		}
		col.Items = append(col.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: iterate items for %s: %w", key, err)
	}

	return col, nil
}

// ListCollectionKeys returns the keys of every stored collection for a user,
// newest period first.
func (db *DB) ListCollectionKeys(ctx context.Context, user string) ([]model.CollectionKey, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT user_id, year, month
		FROM collections
		WHERE user_id = $1
		ORDER BY year DESC, month DESC`,
		user,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list collections for %q: %w", user, err)
	}
	defer rows.Close()

	var keys []model.CollectionKey
	for rows.Next() {
		var key model.CollectionKey
		if err := rows.Scan(&key.User, &key.Year, &key.Month); err != nil {
			return nil, fmt.Errorf("storage: scan collection key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// LoadAll returns every stored collection with its items. Used to rehydrate
// the in-memory aggregator at startup.
func (db *DB) LoadAll(ctx context.Context) ([]*model.EvidenceCollection, error) {
	rows, err := db.pool.Query(ctx, `SELECT user_id, year, month FROM collections`)
	if err != nil {
		return nil, fmt.Errorf("storage: list collections: %w", err)
	}
	var keys []model.CollectionKey
	for rows.Next() {
		var key model.CollectionKey
		if err := rows.Scan(&key.User, &key.Year, &key.Month); err != nil {
			rows.Close()
			return nil, fmt.Errorf("storage: scan collection key: %w", err)
		}
		keys = append(keys, key)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: iterate collections: %w", err)
	}

	cols := make([]*model.EvidenceCollection, 0, len(keys))
	for _, key := range keys {
		col, err := db.GetCollection(ctx, key)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	return cols, nil
}
