package metrics

import (
	"sync"
	"time"
)

// Run collects counters for one invocation. The policy increments them as
// it works and the app logs a summary before exiting.
type Run struct {
	mu sync.Mutex

	ItemsFetched       int64
	FreshCandidates    int64
	DroppedUndated     int64
	DuplicatesSkipped  int64
	ExtractionFailures int64
	RewriteFailures    int64
	Published          int64
	FallbackUsed       bool

	startedAt time.Time
}

func NewRun() *Run {
	return &Run{startedAt: time.Now()}
}

func (r *Run) AddFetched(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ItemsFetched += int64(n)
}

func (r *Run) AddFresh(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.FreshCandidates += int64(n)
}

func (r *Run) IncrementDroppedUndated() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.DroppedUndated++
}

func (r *Run) IncrementDuplicates() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.DuplicatesSkipped++
}

func (r *Run) IncrementExtractionFailures() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ExtractionFailures++
}

func (r *Run) IncrementRewriteFailures() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.RewriteFailures++
}

func (r *Run) MarkPublished(fallback bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Published++
	r.FallbackUsed = fallback
}

// Summary is the end-of-run report logged before exit.
func (r *Run) Summary() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()

	return map[string]any{
		"items_fetched":       r.ItemsFetched,
		"fresh_candidates":    r.FreshCandidates,
		"dropped_undated":     r.DroppedUndated,
		"duplicates_skipped":  r.DuplicatesSkipped,
		"extraction_failures": r.ExtractionFailures,
		"rewrite_failures":    r.RewriteFailures,
		"published":           r.Published,
		"fallback_used":       r.FallbackUsed,
		"elapsed_ms":          time.Since(r.startedAt).Milliseconds(),
	}
}
