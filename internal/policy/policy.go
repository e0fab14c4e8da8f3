// Package policy decides whether and what to publish this run. It owns the
// freshness/variety selection rules, deduplication against prior runs, and
// the at-most-one-per-hour rate gate. Everything it talks to comes in
// through narrow interfaces so the whole decision path is testable with
// fakes.
package policy

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/coinbrief/ingestor/internal/config"
	"github.com/coinbrief/ingestor/internal/feed"
	"github.com/coinbrief/ingestor/internal/fingerprint"
	"github.com/coinbrief/ingestor/internal/metrics"
	"github.com/coinbrief/ingestor/internal/storage"
)

// Disclaimer attached to every published article. The frontend shows it
// next to the body.
const Disclaimer = "AI-generated. Not investment advice."

// Store is the persistence gateway surface the policy needs. All four
// operations are single-row-scoped and independently idempotent, so no
// transaction spans them.
type Store interface {
	HasPublicationInHour(ctx context.Context, hour time.Time) (bool, error)
	RecentAssets(ctx context.Context, n int) (map[string]bool, error)
	ArticleExists(ctx context.Context, slug, sourceHash string) (bool, error)
	InsertArticle(ctx context.Context, a storage.Article) (int64, error)
}

// Source yields candidate items for one configured feed.
type Source interface {
	Fetch(ctx context.Context, src config.Source, limit int) ([]feed.Item, error)
}

// Extractor turns an article URL into title and body text.
type Extractor interface {
	Extract(ctx context.Context, url string) (title, text string, err error)
}

// Rewriter produces the published body text.
type Rewriter interface {
	NewsBrief(ctx context.Context, title, text string, sources []storage.SourceRef) (string, error)
	SpecOutlook(ctx context.Context, asset string) (string, error)
}

type Deps struct {
	Store     Store
	Source    Source
	Extractor Extractor
	Rewriter  Rewriter
	Config    *config.Config
	Log       *slog.Logger
	Metrics   *metrics.Run
	Now       func() time.Time // injectable clock for tests
}

// Result reports what one run did.
type Result struct {
	Published bool
	Slug      string
	Type      string
	Asset     string
	Fallback  bool
}

type Policy struct {
	deps Deps
}

func New(deps Deps) *Policy {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewRun()
	}
	return &Policy{deps: deps}
}

// Run executes one pass of the selection state machine: rate gate, fresh
// scan, candidate loop, fallback. It performs at most one publish attempt.
// Only store failures are fatal; everything per-item is recovered by
// skipping to the next candidate.
func (p *Policy) Run(ctx context.Context) (Result, error) {
	now := p.deps.Now().UTC()

	// Rate gate. One article per UTC hour across however many invocations
	// land in that hour. The small race between this read and the insert
	// below is resolved by the store's uniqueness on slug/source_hash.
	published, err := p.deps.Store.HasPublicationInHour(ctx, now)
	if err != nil {
		return Result{}, fmt.Errorf("hour gate: %w", err)
	}
	if published {
		p.deps.Log.Info("already published this hour, nothing to do",
			"hour", now.Truncate(time.Hour).Format(time.RFC3339))
		return Result{}, nil
	}

	candidates := p.scanFresh(ctx, now)

	if res, done, err := p.publishNews(ctx, now, candidates); err != nil || done {
		return res, err
	}

	return p.publishFallback(ctx, now)
}

// scanFresh pulls every configured feed and keeps items published within
// the freshness window, newest first. Items without a parseable timestamp
// cannot be judged fresh and are dropped. A dead feed is logged and
// skipped, never fatal.
func (p *Policy) scanFresh(ctx context.Context, now time.Time) []feed.Item {
	cfg := p.deps.Config

	var fresh []feed.Item
	for _, src := range cfg.Sources {
		items, err := p.deps.Source.Fetch(ctx, src, cfg.FeedItemLimit)
		if err != nil {
			p.deps.Log.Warn("feed unreachable, skipping source", "source", src.Name, "error", err)
			continue
		}
		p.deps.Metrics.AddFetched(len(items))

		for _, it := range items {
			if it.PublishedAt == nil {
				p.deps.Metrics.IncrementDroppedUndated()
				continue
			}
			if now.Sub(*it.PublishedAt) > cfg.FreshWindow {
				continue
			}
			fresh = append(fresh, it)
		}
	}

	// Newest first; ties keep source iteration order.
	sort.SliceStable(fresh, func(i, j int) bool {
		return fresh[i].PublishedAt.After(*fresh[j].PublishedAt)
	})

	p.deps.Metrics.AddFresh(len(fresh))
	return fresh
}

// publishNews walks the fresh candidates in order and publishes the first
// one that extracts cleanly, is not a duplicate, and rewrites successfully.
// Each failure advances to the next candidate: a failed rewrite abandons
// the candidate, not the run.
func (p *Policy) publishNews(ctx context.Context, now time.Time, candidates []feed.Item) (Result, bool, error) {
	cfg := p.deps.Config
	seen := make(map[string]bool)

	for _, it := range candidates {
		hash := fingerprint.URLDigest(it.URL)
		if seen[hash] {
			continue // same story syndicated across feeds
		}
		seen[hash] = true

		title, text, err := p.deps.Extractor.Extract(ctx, it.URL)
		if err != nil || len(text) < cfg.MinArticleChars {
			p.deps.Metrics.IncrementExtractionFailures()
			p.deps.Log.Warn("extraction unusable, skipping candidate", "url", it.URL, "error", err)
			continue
		}
		if title == "" {
			title = it.Title
		}

		slug := fingerprint.Slug(title, fingerprint.Digest(title))
		exists, err := p.deps.Store.ArticleExists(ctx, slug, hash)
		if err != nil {
			return Result{}, true, fmt.Errorf("duplicate check: %w", err)
		}
		if exists {
			p.deps.Metrics.IncrementDuplicates()
			p.deps.Log.Debug("already published, skipping candidate", "url", it.URL)
			continue
		}

		sources := []storage.SourceRef{{URL: it.URL, Publisher: it.SourceName, Title: it.Title}}
		body, err := p.deps.Rewriter.NewsBrief(ctx, title, text, sources)
		if err != nil {
			p.deps.Metrics.IncrementRewriteFailures()
			p.deps.Log.Warn("rewrite failed, skipping candidate", "url", it.URL, "error", err)
			continue
		}

		article := storage.Article{
			Slug:       slug,
			Type:       storage.TypeNewsBrief,
			Title:      title,
			BodyMD:     body,
			SourceHash: hash,
			Confidence: storage.ConfidenceMedium,
			Payload: storage.Payload{
				Sources:    sources,
				Disclaimer: Disclaimer,
				IngestedAt: now,
			},
		}

		id, err := p.deps.Store.InsertArticle(ctx, article)
		if err != nil {
			return Result{}, true, fmt.Errorf("insert article: %w", err)
		}
		if id == 0 {
			// Lost the race to a concurrent run. The hour is covered, stop.
			p.deps.Log.Info("insert was a no-op, concurrent run won", "slug", slug)
			return Result{}, true, nil
		}

		p.deps.Metrics.MarkPublished(false)
		p.deps.Log.Info("published news brief", "slug", slug, "source", it.SourceName, "url", it.URL)
		return Result{Published: true, Slug: slug, Type: storage.TypeNewsBrief}, true, nil
	}

	return Result{}, false, nil
}

// publishFallback picks the asset of the hour and publishes a speculative
// outlook for it. Selection is deterministic: the UTC hour hashes to a
// starting offset in the rotation, then the scan skips assets used in the
// recent lookback. When the lookback excludes the entire rotation, the raw
// offset pick wins so publication never stalls.
func (p *Policy) publishFallback(ctx context.Context, now time.Time) (Result, error) {
	cfg := p.deps.Config

	recent, err := p.deps.Store.RecentAssets(ctx, cfg.VarietyLookback)
	if err != nil {
		return Result{}, fmt.Errorf("recent assets: %w", err)
	}

	asset := pickAsset(now, cfg.Rotation, recent)

	body, err := p.deps.Rewriter.SpecOutlook(ctx, asset)
	if err != nil {
		// The fallback has a single candidate; abandoning it ends the run
		// without a publication, which is still a clean exit.
		p.deps.Metrics.IncrementRewriteFailures()
		p.deps.Log.Warn("fallback rewrite failed, run ends unpublished", "asset", asset, "error", err)
		return Result{}, nil
	}

	title := fmt.Sprintf("%s outlook: what traders are watching", strings.ToUpper(asset))
	slug := fingerprint.Slug(title, fingerprint.Digest(asset+now.Format(hourFormat)))

	article := storage.Article{
		Slug:       slug,
		Type:       storage.TypeSpecOutlook,
		Asset:      asset,
		Title:      title,
		BodyMD:     body,
		Confidence: storage.ConfidenceLow,
		Payload: storage.Payload{
			Disclaimer: Disclaimer,
			IngestedAt: now,
		},
	}

	id, err := p.deps.Store.InsertArticle(ctx, article)
	if err != nil {
		return Result{}, fmt.Errorf("insert fallback article: %w", err)
	}
	if id == 0 {
		p.deps.Log.Info("fallback insert was a no-op, concurrent run won", "slug", slug)
		return Result{}, nil
	}

	p.deps.Metrics.MarkPublished(true)
	p.deps.Log.Info("published fallback outlook", "slug", slug, "asset", asset)
	return Result{Published: true, Slug: slug, Type: storage.TypeSpecOutlook, Asset: asset, Fallback: true}, nil
}

const hourFormat = "2006010215"

// pickAsset derives the deterministic asset of the hour. The rotation must
// be non-empty; config validation enforces that.
func pickAsset(now time.Time, rotation []string, recent map[string]bool) string {
	bucket, _ := strconv.Atoi(now.UTC().Format(hourFormat))
	offset := bucket % len(rotation)

	for i := 0; i < len(rotation); i++ {
		asset := rotation[(offset+i)%len(rotation)]
		if !recent[asset] {
			return asset
		}
	}

	// Every rotation entry was used recently (lookback >= rotation size).
	// Variety loses to liveness: take the raw deterministic pick.
	return rotation[offset]
}
