package scraper

import (
	"context"
	"fmt"
	"net/http"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"akiya_collector/config"
	"akiya_collector/httputil"
)

// StaticResolver reads the landing page over plain HTTP. It works when the
// download links are present in the served HTML.
type StaticResolver struct {
	client *http.Client
	logger *zap.Logger
}

func NewStaticResolver(client *http.Client, logger *zap.Logger) *StaticResolver {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StaticResolver{client: client, logger: logger}
}

func (r *StaticResolver) ResolveFileURL(ctx context.Context, ds *config.DatasetConfig) (string, error) {
	req, err := httputil.NewRequest(ctx, ds.PageURL)
	if err != nil {
		return "", err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch page: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parse page: %w", err)
	}

	href, ok := doc.Find(ds.FileLinkSelector).First().Attr("href")
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrLinkNotFound, ds.FileLinkSelector)
	}

	fileURL, err := absoluteURL(resp.Request.URL.String(), href)
	if err != nil {
		return "", err
	}
	r.logger.Info("resolved file url", zap.String("dataset", ds.ID), zap.String("url", fileURL))
	return fileURL, nil
}

func (r *StaticResolver) Close() error { return nil }
