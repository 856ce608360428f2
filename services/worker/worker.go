package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/postscraper/internal/scraper"
	"sjsage522/postscraper/logger"
	scrapeerrors "sjsage522/postscraper/pkg/errors"
)

// PageFetcher renders a work item into a parsed page
type PageFetcher interface {
	Fetch(ctx context.Context, item scraper.WorkItem) (*goquery.Document, error)
}

// RecordExtractor turns a parsed page into a record
type RecordExtractor interface {
	Extract(doc *goquery.Document, item scraper.WorkItem) scraper.ResultRecord
}

// FailureRecorder keeps a trace of items whose fetch failed
type FailureRecorder interface {
	LogError(key string, err error) error
}

// Options configures the pool
type Options struct {
	Workers       int
	Retries       int
	RetryDelay    time.Duration
	ProgressEvery int
}

// Stats summarises one Run
type Stats struct {
	Dispatched int
	Completed  int
	Failed     int
	Abandoned  int
}

// Worker runs fetch then extract for each item on a fixed-size pool
type Worker struct {
	fetcher   PageFetcher
	extractor RecordExtractor
	failures  FailureRecorder
	opts      Options
	logger    *logger.Logger

	mu    sync.Mutex
	stats Stats
}

// outcome is what a pool goroutine reports for one item
type outcome struct {
	record scraper.ResultRecord
	failed bool
	// abandoned items were interrupted by cancellation and produce no record
	abandoned bool
}

// NewWorker creates a new worker; failures may be nil
func NewWorker(
	fetcher PageFetcher,
	extractor RecordExtractor,
	opts Options,
	failures FailureRecorder,
	log *logger.Logger,
) *Worker {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = 5
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Worker{
		fetcher:   fetcher,
		extractor: extractor,
		failures:  failures,
		opts:      opts,
		logger:    log,
	}
}

// FilterItems drops items missing a required field and repeated urls
func FilterItems(items []scraper.WorkItem) []scraper.WorkItem {
	seen := make(map[string]bool, len(items))
	filtered := make([]scraper.WorkItem, 0, len(items))
	for _, item := range items {
		if !item.Valid() || seen[item.URL] {
			continue
		}
		seen[item.URL] = true
		filtered = append(filtered, item)
	}
	return filtered
}

// Run processes items and returns their records in completion order. A failed
// fetch yields a record with only name and url. If ctx is cancelled, dispatch
// stops, in-flight items finish, and the records gathered so far are returned
// along with the context error.
func (w *Worker) Run(ctx context.Context, items []scraper.WorkItem) ([]scraper.ResultRecord, error) {
	records := make([]scraper.ResultRecord, 0, len(items))
	err := w.RunInto(ctx, items, func(record scraper.ResultRecord) {
		records = append(records, record)
	})
	return records, err
}

// RunInto is Run with each record handed to emit as soon as it completes.
// emit is called from the calling goroutine only.
func (w *Worker) RunInto(ctx context.Context, items []scraper.WorkItem, emit func(scraper.ResultRecord)) error {
	dispatch := FilterItems(items)
	if dropped := len(items) - len(dispatch); dropped > 0 {
		w.logger.Warn().Int("dropped", dropped).Msg("Skipped items with missing fields or repeated urls")
	}

	jobs := make(chan scraper.WorkItem)
	outcomes := make(chan outcome)

	poolSize := min(w.opts.Workers, len(dispatch))
	var wg sync.WaitGroup
	for i := 0; i < poolSize; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range jobs {
				outcomes <- w.process(ctx, item)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, item := range dispatch {
			if ctx.Err() != nil {
				return
			}
			select {
			case jobs <- item:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	stats := Stats{Dispatched: len(dispatch)}
	for out := range outcomes {
		if out.abandoned {
			stats.Abandoned++
			continue
		}
		emit(out.record)
		stats.Completed++
		if out.failed {
			stats.Failed++
		}

		if stats.Completed%w.opts.ProgressEvery == 0 {
			w.logger.Info().
				Int("completed", stats.Completed).
				Int("total", stats.Dispatched).
				Int("failed", stats.Failed).
				Msgf("So far %d has been fetched ...", stats.Completed)
		}
	}

	w.mu.Lock()
	w.stats = stats
	w.mu.Unlock()

	w.logger.Info().
		Int("completed", stats.Completed).
		Int("failed", stats.Failed).
		Int("abandoned", stats.Abandoned).
		Msg("Fetch phase finished")

	if err := ctx.Err(); err != nil && stats.Completed < stats.Dispatched {
		return fmt.Errorf("fetch phase interrupted after %d of %d items: %w", stats.Completed, stats.Dispatched, err)
	}
	return nil
}

// Stats returns the figures of the last Run
func (w *Worker) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// process runs one item; any failure, including a panic, becomes an empty record
func (w *Worker) process(ctx context.Context, item scraper.WorkItem) (out outcome) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic while processing item: %v", r)
			w.logger.Error().
				Str("url", item.URL).
				Err(err).
				Str("stack", string(debug.Stack())).
				Msg("Item processing panicked")
			w.recordFailure(item, err)
			out = outcome{record: scraper.EmptyRecord(item), failed: true}
		}
	}()

	doc, err := w.fetch(ctx, item)
	if err != nil {
		if ctx.Err() != nil {
			w.logger.Debug().Str("url", item.URL).Err(err).Msg("Item abandoned by cancellation")
			return outcome{abandoned: true}
		}
		event := w.logger.Warn()
		var scrapeErr *scrapeerrors.ScrapeError
		if !errors.As(err, &scrapeErr) || !scrapeErr.IsFetchFailure() {
			event = w.logger.Error()
		}
		event.
			Str("url", item.URL).
			Str("name", item.Name).
			Err(err).
			Msg("Fetch failed, recording empty row")
		w.recordFailure(item, err)
		return outcome{record: scraper.EmptyRecord(item), failed: true}
	}

	return outcome{record: w.extractor.Extract(doc, item)}
}

// fetch calls the fetcher, retrying retryable errors up to opts.Retries times
func (w *Worker) fetch(ctx context.Context, item scraper.WorkItem) (*goquery.Document, error) {
	var lastErr error
	for attempt := 0; attempt <= w.opts.Retries; attempt++ {
		if attempt > 0 {
			w.logger.Debug().Str("url", item.URL).Int("attempt", attempt+1).Err(lastErr).Msg("Retrying fetch")
			select {
			case <-time.After(w.opts.RetryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		doc, err := w.fetcher.Fetch(ctx, item)
		if err == nil {
			return doc, nil
		}
		lastErr = err

		var scrapeErr *scrapeerrors.ScrapeError
		if !errors.As(err, &scrapeErr) || !scrapeErr.IsRetryable() {
			break
		}
	}
	return nil, lastErr
}

func (w *Worker) recordFailure(item scraper.WorkItem, err error) {
	if w.failures == nil {
		return
	}
	if logErr := w.failures.LogError(item.URL, err); logErr != nil {
		w.logger.Warn().Err(logErr).Msg("Could not write failure file")
	}
}
