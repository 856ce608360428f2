package scraper

import (
	"context"
	"errors"
	"time"

	"github.com/playwright-community/playwright-go"

	"sjsage522/postscraper/logger"
	scrapeerrors "sjsage522/postscraper/pkg/errors"
)

// BrowserOptions configures the headless browser renderer
type BrowserOptions struct {
	DriverPath    string // playwright driver directory, empty for the default cache dir
	BrowserPath   string // Chromium executable, empty for the bundled one
	ProxyURL      string
	ReadySelector string
}

// BrowserRenderer renders pages in a fresh headless Chromium per call
type BrowserRenderer struct {
	pw   *playwright.Playwright
	opts BrowserOptions
	log  *logger.Logger
}

// NewBrowserRenderer starts the playwright driver. Close must be called to stop it.
func NewBrowserRenderer(opts BrowserOptions, log *logger.Logger) (*BrowserRenderer, error) {
	if log == nil {
		log = logger.Nop()
	}

	pw, err := playwright.Run(runOptions(opts))
	if err != nil {
		return nil, scrapeerrors.NewSession("", "start playwright driver", err)
	}

	log.Info().
		Str("driver_path", opts.DriverPath).
		Str("ready_selector", opts.ReadySelector).
		Msg("Browser renderer started")

	return &BrowserRenderer{pw: pw, opts: opts, log: log}, nil
}

// InstallBrowser downloads the playwright driver and Chromium
func InstallBrowser(opts BrowserOptions) error {
	runOpts := runOptions(opts)
	runOpts.SkipInstallBrowsers = false
	runOpts.Browsers = []string{"chromium"}
	return playwright.Install(runOpts)
}

func runOptions(opts BrowserOptions) *playwright.RunOptions {
	return &playwright.RunOptions{
		DriverDirectory:     opts.DriverPath,
		SkipInstallBrowsers: true,
	}
}

// Render launches a browser, loads url, waits for the ready marker and returns
// the page content. The browser is closed on every path.
func (r *BrowserRenderer) Render(ctx context.Context, url string, timeout time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", scrapeerrors.NewNavigation(url, "cancelled before launch", err)
	}

	launch := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
	}
	if r.opts.BrowserPath != "" {
		launch.ExecutablePath = playwright.String(r.opts.BrowserPath)
	}
	if r.opts.ProxyURL != "" {
		launch.Proxy = &playwright.Proxy{Server: r.opts.ProxyURL}
	}

	browser, err := r.pw.Chromium.Launch(launch)
	if err != nil {
		return "", scrapeerrors.NewSession(url, "launch browser", err)
	}
	defer func() {
		if closeErr := browser.Close(); closeErr != nil {
			r.log.Debug().Str("url", url).Err(closeErr).Msg("Browser close failed")
		}
	}()

	// playwright calls take no context; closing the browser aborts them
	stop := context.AfterFunc(ctx, func() {
		_ = browser.Close()
	})
	defer stop()

	page, err := browser.NewPage()
	if err != nil {
		return "", scrapeerrors.NewSession(url, "open page", err)
	}

	ms := playwright.Float(float64(timeout.Milliseconds()))

	if _, err := page.Goto(url, playwright.PageGotoOptions{Timeout: ms}); err != nil {
		return "", scrapeerrors.NewNavigation(url, "load page", err)
	}

	err = page.Locator(r.opts.ReadySelector).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: ms,
	})
	if err != nil {
		if errors.Is(err, playwright.ErrTimeout) {
			return "", scrapeerrors.NewFetchTimeout(url, timeout, err)
		}
		return "", scrapeerrors.NewNavigation(url, "wait for ready marker", err)
	}

	content, err := page.Content()
	if err != nil {
		return "", scrapeerrors.NewNavigation(url, "read page content", err)
	}
	return content, nil
}

// Close stops the playwright driver
func (r *BrowserRenderer) Close() error {
	return r.pw.Stop()
}
