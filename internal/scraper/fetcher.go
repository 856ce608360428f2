package scraper

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/postscraper/logger"
	scrapeerrors "sjsage522/postscraper/pkg/errors"
)

// Fetcher renders a work item and hands back a cleaned, parsed page
type Fetcher struct {
	renderer Renderer
	timeout  time.Duration
	cleanups []Cleanup
	log      *logger.Logger
}

// NewFetcher creates a fetcher; cleanups run in order after parsing
func NewFetcher(renderer Renderer, timeout time.Duration, log *logger.Logger, cleanups ...Cleanup) *Fetcher {
	if log == nil {
		log = logger.Nop()
	}
	return &Fetcher{
		renderer: renderer,
		timeout:  timeout,
		cleanups: cleanups,
		log:      log,
	}
}

// NoiseCleanups turns configured selectors into cleanup steps
func NoiseCleanups(selectors []string) []Cleanup {
	cleanups := make([]Cleanup, 0, len(selectors))
	for _, sel := range selectors {
		cleanups = append(cleanups, RemoveSelector(sel))
	}
	return cleanups
}

// Fetch renders item.URL and parses the result. Errors are *errors.ScrapeError
// tagged with the url.
func (f *Fetcher) Fetch(ctx context.Context, item WorkItem) (*goquery.Document, error) {
	start := time.Now()

	markup, err := f.renderer.Render(ctx, item.URL, f.timeout)
	if err != nil {
		var scrapeErr *scrapeerrors.ScrapeError
		if errors.As(err, &scrapeErr) {
			return nil, err
		}
		return nil, scrapeerrors.NewNavigation(item.URL, "render failed", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, scrapeerrors.NewParsing(item.URL, "parse rendered markup", err)
	}

	for _, cleanup := range f.cleanups {
		cleanup(doc)
	}

	f.log.Debug().
		Str("url", item.URL).
		Int("bytes", len(markup)).
		Dur("elapsed", time.Since(start)).
		Msg("Fetched page")

	return doc, nil
}
