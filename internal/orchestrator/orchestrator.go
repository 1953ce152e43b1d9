// Package orchestrator drives the enrichment orchestrator: a fixed
// ordered list of source enrichers, run with bounded worker parallelism,
// a sliding rate-limit window, per-entity write serialization, and
// atomic checkpointing for resumability, per spec.md §4.13. Ported from
// original_source/tools/brain/enrichment_pipeline.py's
// EnrichmentPipeline; concurrency grounded on the teacher's
// golang.org/x/sync/errgroup fan-out idiom and its
// internal/storage/dolt/access_lock.go per-key mutex pattern.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/pmos/brain/internal/enrich"
	"github.com/pmos/brain/internal/obs"
)

// DefaultSources is the fixed, declaration-ordered source list the
// orchestrator drives when the caller does not narrow it, mirroring
// EnrichmentPipeline.SOURCES.
var DefaultSources = []string{"chat", "issue_tracker", "code_host", "doc_store", "calendar", "spreadsheet", "session"}

// Record pairs a raw enrichment record with the entity id it targets (for
// the per-entity mutex) and an inbox-relative identifier used for resume.
type Record struct {
	ID   string
	Data map[string]interface{}
}

// SourceLoader loads the batch of raw records available for one source.
// The out-of-scope API clients are responsible for producing these;
// the orchestrator only knows how to iterate whatever a loader returns.
type SourceLoader func(source string) ([]Record, error)

// Options configures one orchestrator run, defaulting per spec.md §4.13
// (max_workers=4, batch_size=10, rate_limit=60/min).
type Options struct {
	MaxWorkers     int
	BatchSize      int
	RateLimit      int
	CheckpointFile string
	Resume         bool
	DryRun         bool
	Sources        []string
}

func (o Options) resolve() Options {
	if o.MaxWorkers <= 0 {
		o.MaxWorkers = 4
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 10
	}
	if o.RateLimit <= 0 {
		o.RateLimit = 60
	}
	if len(o.Sources) == 0 {
		o.Sources = DefaultSources
	}
	return o
}

// RecordResult is one record's enrichment outcome.
type RecordResult struct {
	ID      string
	Source  string
	Success bool
	Fields  int
	Error   string
}

// Summary is the orchestrator run's final outcome.
type Summary struct {
	TotalEntities     int
	ProcessedEntities int
	Successful        int
	Failed            int
	SourcesCompleted  []string
	Results           []RecordResult
}

// Orchestrator drives a registry of enrichers over batches of records a
// loader supplies, with rate limiting, per-entity write serialization,
// and checkpointing.
type Orchestrator struct {
	registry *enrich.Registry
	loader   SourceLoader

	mu         sync.Mutex
	entityLock map[string]*sync.Mutex

	limiter *rateLimiter
}

// New creates an Orchestrator over registry, loading each source's
// records via loader.
func New(registry *enrich.Registry, loader SourceLoader) *Orchestrator {
	return &Orchestrator{
		registry:   registry,
		loader:     loader,
		entityLock: map[string]*sync.Mutex{},
	}
}

func (o *Orchestrator) lockFor(id string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	m, ok := o.entityLock[id]
	if !ok {
		m = &sync.Mutex{}
		o.entityLock[id] = m
	}
	return m
}

// Run drives every requested source in declaration order, skipping
// sources already marked complete in a resumed checkpoint, and persists
// a checkpoint after every batch. The returned Summary always reflects
// what was actually processed even when some records or sources failed,
// since per-record and per-source failures never abort the run
// (spec.md §7).
func (o *Orchestrator) Run(ctx context.Context, opts Options) (Summary, error) {
	opts = opts.resolve()
	logger := obs.Logger("orchestrator")

	cp, err := loadCheckpoint(opts.CheckpointFile)
	if err != nil || !opts.Resume {
		cp = newCheckpoint()
	}
	completed := toSet(cp.SourcesCompleted)

	o.limiter = newRateLimiter(opts.RateLimit)
	summary := Summary{SourcesCompleted: cp.SourcesCompleted}

	for _, source := range opts.Sources {
		select {
		case <-ctx.Done():
			saveCheckpoint(opts.CheckpointFile, cp)
			return summary, ctx.Err()
		default:
		}

		if completed[source] {
			logger.Info("skipping already-completed source", "source", source)
			continue
		}
		cp.CurrentSource = source

		enricher, err := o.registry.Get(source)
		if err != nil {
			logger.Warn("no enricher for source, skipping", "source", source, "error", err)
			cp.SourcesCompleted = append(cp.SourcesCompleted, source)
			summary.SourcesCompleted = cp.SourcesCompleted
			saveCheckpoint(opts.CheckpointFile, cp)
			continue
		}

		records, err := o.loader(source)
		if err != nil || len(records) == 0 {
			logger.Info("no data for source", "source", source)
			cp.SourcesCompleted = append(cp.SourcesCompleted, source)
			summary.SourcesCompleted = cp.SourcesCompleted
			saveCheckpoint(opts.CheckpointFile, cp)
			continue
		}

		records = resumeFrom(records, cp.LastEntityID)
		summary.TotalEntities += len(records)

		results, err := o.processSource(ctx, enricher, records, opts, cp, func() {
			saveCheckpoint(opts.CheckpointFile, cp)
		})
		if err != nil {
			saveCheckpoint(opts.CheckpointFile, cp)
			return summary, err
		}
		summary.Results = append(summary.Results, results...)
		for _, r := range results {
			summary.ProcessedEntities++
			if r.Success {
				summary.Successful++
			} else {
				summary.Failed++
			}
		}

		cp.SourcesCompleted = append(cp.SourcesCompleted, source)
		cp.CurrentSource = ""
		cp.LastEntityID = ""
		summary.SourcesCompleted = cp.SourcesCompleted
		saveCheckpoint(opts.CheckpointFile, cp)
	}

	return summary, nil
}

// resumeFrom skips every record up to and including lastID, so a resumed
// run does not reprocess records the crashed run already completed.
func resumeFrom(records []Record, lastID string) []Record {
	if lastID == "" {
		return records
	}
	for i, r := range records {
		if r.ID == lastID {
			return records[i+1:]
		}
	}
	return records
}

func (o *Orchestrator) processSource(ctx context.Context, enricher enrich.Enricher, records []Record, opts Options, cp *Checkpoint, onBatch func()) ([]RecordResult, error) {
	var all []RecordResult

	for start := 0; start < len(records); start += opts.BatchSize {
		end := start + opts.BatchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[start:end]

		o.limiter.Wait(ctx)

		results, err := o.processBatch(ctx, enricher, batch, opts)
		if err != nil {
			return all, err
		}
		all = append(all, results...)
		if len(batch) > 0 {
			cp.LastEntityID = batch[len(batch)-1].ID
		}
		onBatch()
	}
	return all, nil
}

func (o *Orchestrator) processBatch(ctx context.Context, enricher enrich.Enricher, batch []Record, opts Options) ([]RecordResult, error) {
	results := make([]RecordResult, len(batch))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.MaxWorkers)

	for i, rec := range batch {
		i, rec := i, rec
		g.Go(func() error {
			results[i] = o.enrichOne(gctx, enricher, rec, opts.DryRun)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// enrichOne enriches a single record end-to-end, serializing writes to
// the same entity id via a per-id mutex and retrying transient failures
// before counting a per-record failure (spec.md §7's per-record error
// capture, never aborting the batch).
func (o *Orchestrator) enrichOne(ctx context.Context, enricher enrich.Enricher, rec Record, dryRun bool) RecordResult {
	lock := o.lockFor(rec.ID)
	lock.Lock()
	defer lock.Unlock()

	var fields int
	op := func() error {
		var err error
		fields, err = enricher.Enrich(rec.Data, dryRun)
		return err
	}

	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2)
	err := backoff.Retry(op, backoff.WithContext(b, ctx))
	if err != nil {
		return RecordResult{ID: rec.ID, Source: enricher.SourceName(), Success: false, Error: err.Error()}
	}
	return RecordResult{ID: rec.ID, Source: enricher.SourceName(), Success: true, Fields: fields}
}

func toSet(vals []string) map[string]bool {
	m := make(map[string]bool, len(vals))
	for _, v := range vals {
		m[v] = true
	}
	return m
}

// rateLimiter enforces a sliding 60-second window of at most limit
// requests, blocking Wait callers until the window has room, per
// spec.md §4.13 / §5.
type rateLimiter struct {
	mu    sync.Mutex
	limit int
	times []time.Time
}

func newRateLimiter(limit int) *rateLimiter {
	return &rateLimiter{limit: limit}
}

// Wait blocks the caller until the sliding window has capacity for one
// more request, or ctx is canceled.
func (r *rateLimiter) Wait(ctx context.Context) {
	for {
		r.mu.Lock()
		now := time.Now()
		cutoff := now.Add(-60 * time.Second)
		kept := r.times[:0]
		for _, t := range r.times {
			if t.After(cutoff) {
				kept = append(kept, t)
			}
		}
		r.times = kept

		if len(r.times) < r.limit {
			r.times = append(r.times, now)
			r.mu.Unlock()
			return
		}
		wait := r.times[0].Add(60 * time.Second).Sub(now)
		r.mu.Unlock()

		if wait <= 0 {
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}
