package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/postscraper/helpers"
	scrapeerrors "sjsage522/postscraper/pkg/errors"
)

// StaticRenderer fetches markup over plain HTTP, for server-rendered targets
type StaticRenderer struct {
	client        *http.Client
	readySelector string
}

// NewStaticRenderer creates a renderer that checks readySelector in the raw markup
func NewStaticRenderer(readySelector, proxyURL string) (*StaticRenderer, error) {
	// requests are bounded by the per-call context instead
	client, err := helpers.NewHTTPClient(0, proxyURL)
	if err != nil {
		return nil, scrapeerrors.NewConfiguration("static renderer client", err)
	}
	return &StaticRenderer{client: client, readySelector: readySelector}, nil
}

// Render fetches url; a page without the ready marker counts as a fetch timeout
func (r *StaticRenderer) Render(ctx context.Context, url string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	reader, err := helpers.FetchWithRandomHeaders(ctx, r.client, url)
	if err != nil {
		var statusErr *helpers.StatusError
		switch {
		case errors.As(err, &statusErr) && statusErr.RateLimited():
			return "", scrapeerrors.NewRateLimit(url, statusErr.RetryAfter)
		case errors.Is(err, context.DeadlineExceeded):
			return "", scrapeerrors.NewFetchTimeout(url, timeout, err)
		default:
			return "", scrapeerrors.NewNavigation(url, "http fetch", err)
		}
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return "", scrapeerrors.NewNavigation(url, "read body", err)
	}
	markup := string(body)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return "", scrapeerrors.NewParsing(url, "parse markup", err)
	}
	if doc.Find(r.readySelector).Length() == 0 {
		return "", scrapeerrors.NewFetchTimeout(url, timeout, fmt.Errorf("ready marker %q not found", r.readySelector))
	}

	return markup, nil
}
