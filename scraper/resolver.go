package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"akiya_collector/config"
	"akiya_collector/httputil"
)

// ErrLinkNotFound means the landing page had no element matching the file link selector.
var ErrLinkNotFound = errors.New("file link not found")

// Resolver finds the download URL of a dataset's workbook on its landing page.
type Resolver interface {
	ResolveFileURL(ctx context.Context, ds *config.DatasetConfig) (string, error)
	Close() error
}

// NewResolver picks the resolver named in the scraper config.
func NewResolver(cfg config.ScraperConfig, clients *httputil.Clients, logger *zap.Logger) (Resolver, error) {
	switch cfg.Resolver {
	case "static":
		return NewStaticResolver(clients.Page, logger), nil
	case "browser", "":
		return NewBrowserResolver(BrowserOptions{
			Headless:    cfg.Headless,
			PageTimeout: cfg.PageTimeout,
			ProxyURL:    cfg.ProxyURL,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown resolver: %s", cfg.Resolver)
	}
}

// absoluteURL resolves href against the page it was found on.
func absoluteURL(pageURL, href string) (string, error) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", ErrLinkNotFound
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parse page url: %w", err)
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("parse link %q: %w", href, err)
	}
	return base.ResolveReference(ref).String(), nil
}
