package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"akiya_collector/httputil"
	"akiya_collector/identity"
)

const defaultRetryDelay = 3 * time.Second

// DownloadResult describes a workbook saved to disk.
type DownloadResult struct {
	Path string
	Size int64
	Hash string
}

// Downloader saves remote files into a directory, retrying transient failures.
type Downloader struct {
	client     *http.Client
	dir        string
	retries    int
	retryDelay time.Duration
	logger     *zap.Logger
}

func NewDownloader(client *http.Client, dir string, retries int, logger *zap.Logger) *Downloader {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Downloader{
		client:     client,
		dir:        dir,
		retries:    retries,
		retryDelay: defaultRetryDelay,
		logger:     logger,
	}
}

// Download fetches fileURL into dir/filename. The file is written under a
// temporary name and renamed once complete.
func (d *Downloader) Download(ctx context.Context, fileURL, filename string) (*DownloadResult, error) {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create download dir: %w", err)
	}
	dest := filepath.Join(d.dir, filename)

	var policy backoff.BackOff = backoff.NewConstantBackOff(d.retryDelay)
	if d.retries >= 0 {
		policy = backoff.WithMaxRetries(policy, uint64(d.retries))
	}

	attempt := 0
	op := func() error {
		attempt++
		err := d.fetch(ctx, fileURL, dest)
		if err != nil {
			d.logger.Warn("download attempt failed",
				zap.String("url", fileURL),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		}
		return err
	}
	if err := backoff.Retry(op, backoff.WithContext(policy, ctx)); err != nil {
		return nil, fmt.Errorf("download %s: %w", fileURL, err)
	}

	hash, size, err := identity.FileFingerprint(dest)
	if err != nil {
		return nil, fmt.Errorf("fingerprint: %w", err)
	}

	d.logger.Info("download complete",
		zap.String("path", dest),
		zap.Int64("bytes", size),
		zap.String("sha256", identity.Short(hash)),
	)
	return &DownloadResult{Path: dest, Size: size, Hash: hash}, nil
}

func (d *Downloader) fetch(ctx context.Context, fileURL, dest string) error {
	req, err := httputil.NewRequest(ctx, fileURL)
	if err != nil {
		return backoff.Permanent(err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("unexpected status %d", resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return backoff.Permanent(err)
		}
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return backoff.Permanent(err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return backoff.Permanent(err)
	}
	return nil
}
