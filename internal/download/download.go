package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"

	"github.com/sirupsen/logrus"
)

// hrefPattern finds the snapshot archive link on the published index page.
var hrefPattern = regexp.MustCompile(`href=["'](https?://[^"']+?)["']`)

// Client fetches the published snapshot archive. There is one fixed
// timeout and no retry; any failure here is fatal for the whole run.
type Client struct {
	http   *http.Client
	logger *logrus.Logger
}

// NewClient wraps an HTTP client whose timeout covers the full download.
func NewClient(httpClient *http.Client, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}

	return &Client{
		http:   httpClient,
		logger: logger,
	}
}

// LatestSnapshotURL scrapes the index page for the first archive link.
func (c *Client) LatestSnapshotURL(ctx context.Context, indexURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, indexURL, nil)
	if err != nil {
		return "", fmt.Errorf("build index request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch index page %s: %w", indexURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("index page %s returned status %d", indexURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read index page: %w", err)
	}

	matches := hrefPattern.FindSubmatch(body)
	if matches == nil {
		return "", fmt.Errorf("no snapshot link found on %s", indexURL)
	}

	url := string(matches[1])
	c.logger.WithField("url", url).Info("Resolved latest snapshot URL")
	return url, nil
}

// Fetch downloads the archive at url into dest, creating parent
// directories as needed.
func (c *Client) Fetch(ctx context.Context, url, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("create download directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build download request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s returned status %d", url, resp.StatusCode)
	}

	file, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	defer file.Close()

	written, err := io.Copy(file, resp.Body)
	if err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}

	c.logger.WithFields(logrus.Fields{
		"url":   url,
		"dest":  dest,
		"bytes": written,
	}).Info("Downloaded snapshot archive")
	return nil
}
