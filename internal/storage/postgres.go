// Package storage is the persistence gateway. It is the only component
// with write access to the articles table, and it owns duplicate detection
// at the storage layer: insertion is a no-op on conflict, never an error.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Article types.
const (
	TypeNewsBrief   = "news_brief"
	TypeSpecOutlook = "spec_outlook"
)

// Confidence levels.
const (
	ConfidenceLow    = "low"
	ConfidenceMedium = "medium"
	ConfidenceHigh   = "high"
)

// SourceRef points at one upstream article the brief was written from.
type SourceRef struct {
	URL       string `json:"url"`
	Publisher string `json:"publisher"`
	Title     string `json:"title"`
}

// Payload is the structured json_payload column read by the web frontend.
type Payload struct {
	Sources    []SourceRef `json:"sources"`
	Disclaimer string      `json:"disclaimer"`
	IngestedAt time.Time   `json:"ingested_at"`
}

// Article is the persisted entity. Rows are inserted once and never
// mutated or deleted by this system.
type Article struct {
	Slug       string
	Type       string
	Asset      string // empty for news briefs
	Title      string
	BodyMD     string
	SourceHash string // empty for fallback outlooks
	Confidence string
	Payload    Payload
}

// Postgres implements the gateway against a shared Postgres database.
type Postgres struct {
	db *sql.DB
}

// Open connects, pings, and makes sure the schema exists. Any failure here
// is fatal to the run: without the store there is no durable state.
func Open(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	pg := &Postgres{db: db}
	if err := pg.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return pg, nil
}

func (p *Postgres) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS articles (
		id SERIAL PRIMARY KEY,
		slug TEXT UNIQUE NOT NULL,
		type TEXT NOT NULL,
		asset TEXT,
		title TEXT NOT NULL,
		body_md TEXT NOT NULL,
		json_payload JSONB,
		source_hash TEXT UNIQUE,
		confidence TEXT NOT NULL DEFAULT 'medium',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_articles_created_at ON articles(created_at);
	CREATE INDEX IF NOT EXISTS idx_articles_asset ON articles(asset);
	`

	_, err := p.db.ExecContext(ctx, schema)
	return err
}

// HasPublicationInHour reports whether any article was created within the
// given UTC hour bucket. This is the global rate gate: it relies on the
// store's read consistency instead of a lock, so it holds across
// overlapping invocations.
func (p *Postgres) HasPublicationInHour(ctx context.Context, hour time.Time) (bool, error) {
	start := hour.UTC().Truncate(time.Hour)
	end := start.Add(time.Hour)

	var exists bool
	err := p.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM articles WHERE created_at >= $1 AND created_at < $2)`,
		start, end,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query hour bucket: %w", err)
	}
	return exists, nil
}

// RecentAssets returns the asset tags of the n most recent articles that
// carry one. Used by the fallback picker to avoid immediate repeats.
func (p *Postgres) RecentAssets(ctx context.Context, n int) (map[string]bool, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT asset FROM articles WHERE asset IS NOT NULL ORDER BY created_at DESC LIMIT $1`, n)
	if err != nil {
		return nil, fmt.Errorf("query recent assets: %w", err)
	}
	defer rows.Close()

	assets := make(map[string]bool)
	for rows.Next() {
		var asset string
		if err := rows.Scan(&asset); err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		assets[asset] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assets: %w", err)
	}
	return assets, nil
}

// ArticleExists reports whether an article with this slug or source hash is
// already persisted.
func (p *Postgres) ArticleExists(ctx context.Context, slug, sourceHash string) (bool, error) {
	var exists bool
	err := p.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM articles WHERE slug = $1 OR ($2 <> '' AND source_hash = $2))`,
		slug, sourceHash,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query article exists: %w", err)
	}
	return exists, nil
}

// InsertArticle persists one article. A unique-constraint conflict on slug
// or source hash returns (0, nil): some concurrent run already published
// this, which is the accepted resolution of the hour-gate race.
func (p *Postgres) InsertArticle(ctx context.Context, a Article) (int64, error) {
	payload, err := json.Marshal(a.Payload)
	if err != nil {
		return 0, fmt.Errorf("marshal payload: %w", err)
	}

	var id int64
	err = p.db.QueryRowContext(ctx, `
		INSERT INTO articles (slug, type, asset, title, body_md, json_payload, source_hash, confidence)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT DO NOTHING
		RETURNING id`,
		a.Slug,
		a.Type,
		nullable(a.Asset),
		a.Title,
		a.BodyMD,
		payload,
		nullable(a.SourceHash),
		a.Confidence,
	).Scan(&id)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil // conflict, row already there
	}
	if err != nil {
		return 0, fmt.Errorf("insert article: %w", err)
	}
	return id, nil
}

func (p *Postgres) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
