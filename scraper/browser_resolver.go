package scraper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"akiya_collector/config"
	"akiya_collector/httputil"
)

type BrowserOptions struct {
	Headless    bool
	PageTimeout time.Duration
	ProxyURL    string
}

// BrowserResolver renders the landing page in headless Chromium, for portals
// that build their file lists with JavaScript. The browser starts lazily and
// lives until Close.
type BrowserResolver struct {
	opts   BrowserOptions
	logger *zap.Logger

	mu      sync.Mutex
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
}

func NewBrowserResolver(opts BrowserOptions, logger *zap.Logger) (*BrowserResolver, error) {
	if opts.PageTimeout <= 0 {
		opts.PageTimeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BrowserResolver{opts: opts, logger: logger}, nil
}

func (r *BrowserResolver) ensureBrowser() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.context != nil {
		return nil
	}

	var err error
	r.pw, err = playwright.Run()
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	launch := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(r.opts.Headless),
		Args: []string{
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--disable-gpu",
			"--blink-settings=imagesEnabled=false",
		},
	}
	if r.opts.ProxyURL != "" {
		launch.Proxy = &playwright.Proxy{Server: r.opts.ProxyURL}
	}

	r.browser, err = r.pw.Chromium.Launch(launch)
	if err != nil {
		r.pw.Stop()
		r.pw = nil
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	r.context, err = r.browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent: playwright.String(httputil.UserAgent),
		Viewport:  &playwright.Size{Width: 1920, Height: 1080},
	})
	if err != nil {
		r.browser.Close()
		r.pw.Stop()
		r.browser, r.pw = nil, nil
		return fmt.Errorf("failed to create browser context: %w", err)
	}
	return nil
}

func (r *BrowserResolver) ResolveFileURL(ctx context.Context, ds *config.DatasetConfig) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := r.ensureBrowser(); err != nil {
		return "", err
	}

	page, err := r.context.NewPage()
	if err != nil {
		return "", fmt.Errorf("failed to create page: %w", err)
	}
	defer page.Close()

	timeout := float64(r.opts.PageTimeout.Milliseconds())
	r.logger.Info("loading landing page", zap.String("dataset", ds.ID), zap.String("url", ds.PageURL))

	if _, err := page.Goto(ds.PageURL, playwright.PageGotoOptions{
		Timeout:   playwright.Float(timeout),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return "", fmt.Errorf("navigate: %w", err)
	}

	if ds.WaitSelector != "" {
		if err := page.Locator(ds.WaitSelector).First().WaitFor(playwright.LocatorWaitForOptions{
			State:   playwright.WaitForSelectorStateAttached,
			Timeout: playwright.Float(timeout),
		}); err != nil {
			return "", fmt.Errorf("wait for %s: %w", ds.WaitSelector, err)
		}
	}

	link := page.Locator(ds.FileLinkSelector).First()
	if err := link.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: playwright.Float(timeout),
	}); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrLinkNotFound, ds.FileLinkSelector, err)
	}

	href, err := link.GetAttribute("href")
	if err != nil {
		return "", fmt.Errorf("read href: %w", err)
	}

	fileURL, err := absoluteURL(page.URL(), href)
	if err != nil {
		return "", err
	}
	r.logger.Info("resolved file url", zap.String("dataset", ds.ID), zap.String("url", fileURL))
	return fileURL, nil
}

func (r *BrowserResolver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	if r.context != nil {
		if err := r.context.Close(); err != nil {
			firstErr = err
		}
		r.context = nil
	}
	if r.browser != nil {
		if err := r.browser.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		r.browser = nil
	}
	if r.pw != nil {
		if err := r.pw.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
		r.pw = nil
	}
	return firstErr
}
