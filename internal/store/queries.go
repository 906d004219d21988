package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pgvector/pgvector-go"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx, so the same
// queries run inside and outside transactions.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type Queries struct {
	db DBTX
}

func newQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns Queries bound to the given transaction.
func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

const upsertMarket = `
INSERT INTO markets (id, platform, slug, question, end_date)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET
    slug = EXCLUDED.slug,
    question = EXCLUDED.question,
    end_date = EXCLUDED.end_date
`

type UpsertMarketParams struct {
	ID       string
	Platform string
	Slug     string
	Question string
	EndDate  pgtype.Timestamptz
}

func (q *Queries) UpsertMarket(ctx context.Context, p UpsertMarketParams) error {
	_, err := q.db.Exec(ctx, upsertMarket, p.ID, p.Platform, p.Slug, p.Question, p.EndDate)
	if err != nil {
		return fmt.Errorf("upsert market %s: %w", p.ID, err)
	}
	return nil
}

const upsertToken = `
INSERT INTO tokens (id, market_id, outcome)
VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET
    market_id = EXCLUDED.market_id,
    outcome = EXCLUDED.outcome
`

type UpsertTokenParams struct {
	ID       string
	MarketID string
	Outcome  string
}

func (q *Queries) UpsertToken(ctx context.Context, p UpsertTokenParams) error {
	_, err := q.db.Exec(ctx, upsertToken, p.ID, p.MarketID, p.Outcome)
	if err != nil {
		return fmt.Errorf("upsert token %s: %w", p.ID, err)
	}
	return nil
}

const getTokenIDsForPlatform = `
SELECT t.id
FROM tokens t
JOIN markets m ON m.id = t.market_id
WHERE m.platform = $1
`

func (q *Queries) GetTokenIDsForPlatform(ctx context.Context, platform string) ([]string, error) {
	rows, err := q.db.Query(ctx, getTokenIDsForPlatform, platform)
	if err != nil {
		return nil, fmt.Errorf("get token IDs for platform %s: %w", platform, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan token ID: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

const insertPriceSnapshot = `
INSERT INTO price_snapshots (time, token_id, price, size)
VALUES ($1, $2, $3, $4)
`

type InsertPriceSnapshotBatchParams struct {
	Time    pgtype.Timestamptz
	TokenID string
	Price   int64
	Size    int64
}

// InsertPriceSnapshotBatch writes many snapshots in one round trip
// and returns the number of rows inserted.
func (q *Queries) InsertPriceSnapshotBatch(ctx context.Context, params []InsertPriceSnapshotBatchParams) (int64, error) {
	batch := &pgx.Batch{}
	for _, p := range params {
		batch.Queue(insertPriceSnapshot, p.Time, p.TokenID, p.Price, p.Size)
	}

	results := q.db.SendBatch(ctx, batch)
	defer results.Close()

	var count int64
	for range params {
		tag, err := results.Exec()
		if err != nil {
			return count, fmt.Errorf("insert price snapshot: %w", err)
		}
		count += tag.RowsAffected()
	}
	return count, nil
}

const insertBacktestResult = `
INSERT INTO backtest_results (
    run_id, slug, asset, epoch, entered, reason,
    feed_truncated, data_stale, avg_entry_price, total_cost,
    max_gross_exposure, pnl, roi
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
`

type InsertBacktestResultParams struct {
	RunID            string
	Slug             string
	Asset            string
	Epoch            int64
	Entered          bool
	Reason           string
	FeedTruncated    bool
	DataStale        bool
	AvgEntryPrice    float64
	TotalCost        float64
	MaxGrossExposure float64
	PnL              float64
	ROI              float64 // NaN for never-entered markets; float8 stores it
}

// InsertBacktestResultBatch writes one run's results in one round trip.
func (q *Queries) InsertBacktestResultBatch(ctx context.Context, params []InsertBacktestResultParams) (int64, error) {
	batch := &pgx.Batch{}
	for _, p := range params {
		batch.Queue(insertBacktestResult,
			p.RunID, p.Slug, p.Asset, p.Epoch, p.Entered, p.Reason,
			p.FeedTruncated, p.DataStale, p.AvgEntryPrice, p.TotalCost,
			p.MaxGrossExposure, p.PnL, p.ROI)
	}

	results := q.db.SendBatch(ctx, batch)
	defer results.Close()

	var count int64
	for range params {
		tag, err := results.Exec()
		if err != nil {
			return count, fmt.Errorf("insert backtest result: %w", err)
		}
		count += tag.RowsAffected()
	}
	return count, nil
}

const upsertMarketVector = `
INSERT INTO market_vectors (market_id, embedding)
VALUES ($1, $2)
ON CONFLICT (market_id) DO UPDATE SET embedding = EXCLUDED.embedding
`

func (q *Queries) UpsertMarketVector(ctx context.Context, marketID string, embedding pgvector.Vector) error {
	_, err := q.db.Exec(ctx, upsertMarketVector, marketID, embedding)
	if err != nil {
		return fmt.Errorf("upsert market vector %s: %w", marketID, err)
	}
	return nil
}

const nearestMarkets = `
SELECT m.id, m.platform, m.question, v.embedding <-> $1 AS distance
FROM market_vectors v
JOIN markets m ON m.id = v.market_id
WHERE m.platform <> $2
ORDER BY v.embedding <-> $1
LIMIT $3
`

type NearestMarketsRow struct {
	ID       string
	Platform string
	Question string
	Distance float64
}

// NearestMarkets returns the markets on other platforms whose title
// vectors are closest to the query vector.
func (q *Queries) NearestMarkets(ctx context.Context, embedding pgvector.Vector, excludePlatform string, limit int) ([]NearestMarketsRow, error) {
	rows, err := q.db.Query(ctx, nearestMarkets, embedding, excludePlatform, limit)
	if err != nil {
		return nil, fmt.Errorf("nearest markets: %w", err)
	}
	defer rows.Close()

	var out []NearestMarketsRow
	for rows.Next() {
		var r NearestMarketsRow
		if err := rows.Scan(&r.ID, &r.Platform, &r.Question, &r.Distance); err != nil {
			return nil, fmt.Errorf("scan nearest market: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
