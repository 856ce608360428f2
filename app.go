package main

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"sjsage522/postscraper/config"
	"sjsage522/postscraper/helpers"
	"sjsage522/postscraper/internal/scraper"
	"sjsage522/postscraper/logger"
	"sjsage522/postscraper/services/cache"
	"sjsage522/postscraper/services/publisher"
	"sjsage522/postscraper/services/store"
	"sjsage522/postscraper/services/worker"
)

const (
	timestampLayout  = "02-01-2006 15:04:05 PM"
	cachePingTimeout = 2 * time.Second
)

// batchRunner fetches items, handing each record over as it completes
type batchRunner interface {
	RunInto(ctx context.Context, items []scraper.WorkItem, emit func(scraper.ResultRecord)) error
}

// App wires one batch run: read queue, fetch, save, publish
type App struct {
	cfg       *config.Config
	runID     string
	store     *store.Store
	runner    batchRunner
	publisher publisher.Publisher
	closers   []func() error
	log       *logger.Logger
}

// NewApp builds the renderer selected by cfg and every optional service.
// Close must be called when the app is no longer needed.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	runID := uuid.NewString()
	log := logger.ForRun(runID)

	var (
		renderer scraper.Renderer
		closers  []func() error
	)
	switch cfg.Renderer {
	case config.RendererHTTP:
		static, err := scraper.NewStaticRenderer(cfg.ReadySelector, cfg.ProxyURL)
		if err != nil {
			return nil, err
		}
		renderer = static
	default:
		browser, err := scraper.NewBrowserRenderer(scraper.BrowserOptions{
			DriverPath:    cfg.DriverPath,
			BrowserPath:   cfg.BrowserPath,
			ProxyURL:      cfg.ProxyURL,
			ReadySelector: cfg.ReadySelector,
		}, logger.ForFetcher())
		if err != nil {
			return nil, err
		}
		renderer = browser
		closers = append(closers, browser.Close)
	}

	if cfg.MemcacheAddr != "" {
		cacheService := cache.NewMemcacheService(cfg.MemcacheAddr, cachePingTimeout)
		if err := cacheService.Ping(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.MemcacheAddr).Msg("Memcache unreachable, render cache disabled")
		} else {
			renderer = scraper.NewCachedRenderer(renderer, cacheService, cfg.RenderCacheTTL, logger.ForCache())
			log.Info().Str("addr", cfg.MemcacheAddr).Dur("ttl", cfg.RenderCacheTTL).Msg("Render cache enabled")
		}
	}

	app := newApp(cfg, runID, renderer, log)
	app.closers = append(app.closers, closers...)

	if cfg.RedisAddr != "" {
		redisPublisher := publisher.NewRedisPublisher(
			cfg.RedisAddr,
			cfg.RedisDB,
			cfg.RedisStream,
			cfg.RedisStreamCount,
			cfg.RedisStreamMaxLength,
		)
		if err := redisPublisher.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Redis unreachable, publishing disabled")
			redisPublisher.Close()
		} else {
			app.publisher = redisPublisher
			app.closers = append(app.closers, redisPublisher.Close)
			log.Info().
				Str("addr", cfg.RedisAddr).
				Int("db", cfg.RedisDB).
				Str("stream", cfg.RedisStream).
				Msg("Connected to Redis")
		}
	}

	return app, nil
}

// newApp assembles the pipeline around an already built renderer
func newApp(cfg *config.Config, runID string, renderer scraper.Renderer, log *logger.Logger) *App {
	fetcher := scraper.NewFetcher(
		renderer,
		cfg.PageLoadTimeout,
		logger.ForFetcher(),
		scraper.NoiseCleanups(cfg.NoiseSelectors)...,
	)
	extractor := scraper.NewExtractor(nil, logger.ForFetcher())

	var failures worker.FailureRecorder
	if cfg.ErrorLogFile != "" {
		errorFile := helpers.NewErrorFile(cfg.ErrorLogFile)
		log.Info().Str("path", errorFile.Path()).Msg("Recording failed items")
		failures = errorFile
	}

	w := worker.NewWorker(fetcher, extractor, worker.Options{
		Workers:       cfg.Workers,
		Retries:       cfg.FetchRetries,
		ProgressEvery: cfg.ProgressEvery,
	}, failures, logger.ForWorker())

	return &App{
		cfg:    cfg,
		runID:  runID,
		store:  store.NewStore(cfg.InputPath, cfg.OutputPath, logger.ForStore()),
		runner: w,
		log:    log,
	}
}

// Run processes the input queue once. Whatever happens during the fetch
// phase, the records gathered so far are saved before Run returns; the
// returned error is non-nil only when that save fails.
func (a *App) Run(ctx context.Context) (err error) {
	start := time.Now()
	a.log.Info().
		Str("environment", a.cfg.Environment).
		Str("renderer", a.cfg.Renderer).
		Int("workers", a.cfg.Workers).
		Msgf("Start time: %s", start.Format(timestampLayout))

	var (
		snapshot *store.Snapshot
		records  []scraper.ResultRecord
	)

	defer func() {
		if r := recover(); r != nil {
			a.log.Error().
				Str("stack", string(debug.Stack())).
				Msgf("Run aborted by panic: %v", r)
		}

		summary, saveErr := a.store.Save(snapshot, records)
		if saveErr != nil {
			logger.LogError("store", saveErr, "Saving results of run %s failed", a.runID)
			err = fmt.Errorf("save results: %w", saveErr)
			return
		}

		a.publish(records)

		end := time.Now()
		a.log.Info().
			Int("saved", summary.Merged).
			Int("remaining", summary.Remaining).
			Msgf("End time: %s", end.Format(timestampLayout))
		a.log.Info().Msgf("Total time taken: %.4f minutes", end.Sub(start).Minutes())
	}()

	snapshot, err = a.store.Snapshot()
	if err != nil {
		a.log.Error().
			Err(err).
			Str("stack", string(debug.Stack())).
			Msg("Could not read input queue")
		snapshot = nil
		return nil
	}

	runErr := a.runner.RunInto(ctx, snapshot.Items(), func(record scraper.ResultRecord) {
		records = append(records, record)
	})
	if runErr != nil {
		a.log.Error().
			Err(runErr).
			Int("collected", len(records)).
			Msg("Fetch phase ended early, saving partial results")
	}
	return nil
}

// publish fans new records out to Redis when a publisher is configured.
// A failure here never affects the saved artifacts.
func (a *App) publish(records []scraper.ResultRecord) {
	if a.publisher == nil || len(records) == 0 {
		return
	}

	// the run context may already be cancelled; publishing gets its own bound
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	published, err := publisher.PublishRecords(ctx, a.publisher, a.runID, records)
	if err != nil {
		logger.ForPublisher().Warn().Err(err).Int("published", published).Msg("Publishing records failed")
		return
	}
	logger.ForPublisher().Info().Int("published", published).Str("stream", a.cfg.RedisStream).Msg("Published records")
}

// Close releases the renderer and service connections
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn().Err(err).Msg("Cleanup failed")
		}
	}
}
