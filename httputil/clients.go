package httputil

import (
	"context"
	"crypto/tls"
	"net/http"
	"net/url"
	"time"

	"akiya_collector/config"
)

// UserAgent is sent on every request; the statistics portal rejects default Go clients.
const UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

type Clients struct {
	Page     *http.Client // landing pages, for link discovery
	Download *http.Client // workbook downloads, follows redirects
}

func NewClients(cfg config.ScraperConfig) *Clients {
	transport := &http.Transport{
		Proxy:             http.ProxyFromEnvironment,
		ForceAttemptHTTP2: false,
		TLSNextProto:      make(map[string]func(string, *tls.Conn) http.RoundTripper),
	}
	if cfg.ProxyURL != "" {
		if proxyURL, err := url.Parse(cfg.ProxyURL); err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	return &Clients{
		Page:     &http.Client{Timeout: orDefault(cfg.PageTimeout, 30*time.Second), Transport: transport},
		Download: &http.Client{Timeout: orDefault(cfg.DownloadTimeout, 60*time.Second), Transport: transport},
	}
}

// NewRequest builds a GET request carrying the browser user agent.
func NewRequest(ctx context.Context, rawURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept-Language", "ja,en;q=0.8")
	return req, nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
