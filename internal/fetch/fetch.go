// Package fetch discovers input archive files on HTTP feed pages and
// downloads the missing ones into the local archive directory.
package fetch

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/voltatlas/cutout/internal/db"
	"github.com/voltatlas/cutout/internal/util"
)

// Discover scrapes each feed page for links to parquet archive files and
// returns the unique absolute URLs. Per-feed failures are accumulated and
// returned alongside whatever was found.
func Discover(ctx context.Context, client *http.Client, logger *slog.Logger, feedURLs []string) ([]string, error) {
	var discoveryErr error
	seen := make(map[string]struct{})
	var discovered []string

	logger.Debug("starting discovery across feed URLs", slog.Int("feed_count", len(feedURLs)))
	for i, feedURL := range feedURLs {
		select {
		case <-ctx.Done():
			logger.Warn("discovery cancelled")
			return discovered, errors.Join(discoveryErr, ctx.Err())
		default:
		}

		l := logger.With(slog.String("feed_url", feedURL), slog.Int("feed_num", i+1), slog.Int("total_feeds", len(feedURLs)))
		base, err := url.Parse(feedURL)
		if err != nil {
			l.Warn("skip: parse feed URL failed", "error", err)
			discoveryErr = errors.Join(discoveryErr, fmt.Errorf("parse feed %s: %w", feedURL, err))
			continue
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
		if err != nil {
			discoveryErr = errors.Join(discoveryErr, fmt.Errorf("create request %s: %w", feedURL, err))
			continue
		}

		resp, err := client.Do(req)
		if err != nil {
			l.Warn("skip: GET failed", "error", err)
			discoveryErr = errors.Join(discoveryErr, fmt.Errorf("discover GET %s: %w", feedURL, err))
			continue
		}
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			l.Warn("skip: bad status", "status", resp.Status)
			discoveryErr = errors.Join(discoveryErr, fmt.Errorf("discover status %s: %s", resp.Status, feedURL))
			continue
		}
		if readErr != nil {
			discoveryErr = errors.Join(discoveryErr, fmt.Errorf("discover read %s: %w", feedURL, readErr))
			continue
		}

		root, err := html.Parse(bytes.NewReader(body))
		if err != nil {
			discoveryErr = errors.Join(discoveryErr, fmt.Errorf("discover parse HTML %s: %w", feedURL, err))
			continue
		}

		newLinks := 0
		for _, link := range parseLinks(root, ".parquet") {
			abs, err := base.Parse(link)
			if err != nil {
				l.Warn("failed to resolve relative link", "link", link, "error", err)
				continue
			}
			s := abs.String()
			if _, exists := seen[s]; exists {
				continue
			}
			seen[s] = struct{}{}
			discovered = append(discovered, s)
			newLinks++
		}
		l.Debug("feed check complete", slog.Int("new_links", newLinks), slog.Int("total_unique_links", len(discovered)))
	}

	logger.Debug("finished discovery phase", slog.Int("total_unique_files", len(discovered)))
	return discovered, discoveryErr
}

// Download fetches the discovered archive files into dir, skipping files
// that already exist locally. Failures do not stop the loop; they are
// accumulated and returned joined.
func Download(ctx context.Context, conn *sql.DB, logger *slog.Logger, fileURLs []string, dir string) error {
	client := util.DefaultHTTPClient()
	var finalErr error
	skipped := 0

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create archive directory %s: %w", dir, err)
	}

	for i, fileURL := range fileURLs {
		select {
		case <-ctx.Done():
			logger.Warn("download cancelled")
			return errors.Join(finalErr, ctx.Err())
		default:
		}

		l := logger.With(slog.String("file_url", fileURL), slog.Int("file_num", i+1), slog.Int("total_files", len(fileURLs)))
		outPath := filepath.Join(dir, filepath.Base(fileURL))
		if _, err := os.Stat(outPath); err == nil {
			l.Debug("skipping download, file already present", slog.String("path", outPath))
			skipped++
			logState(ctx, l, conn, fileURL, db.EventSkipDownload, outPath, "already downloaded", nil)
			continue
		}

		if err := downloadOne(ctx, conn, l, client, fileURL, outPath); err != nil {
			finalErr = errors.Join(finalErr, fmt.Errorf("download %s: %w", fileURL, err))
		}
	}

	if skipped > 0 {
		logger.Info("skipped already downloaded files", slog.Int("skipped", skipped), slog.Int("total", len(fileURLs)))
	}
	return finalErr
}

func downloadOne(ctx context.Context, conn *sql.DB, logger *slog.Logger, client *http.Client, fileURL, outPath string) error {
	start := time.Now()
	logState(ctx, logger, conn, fileURL, db.EventDownloadStart, outPath, "", nil)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/octet-stream,*/*")

	data, err := util.DownloadFile(client, req)
	elapsed := time.Since(start)
	if err != nil {
		logState(ctx, logger, conn, fileURL, db.EventError, outPath, err.Error(), &elapsed)
		logger.Error("download failed", "error", err, slog.Duration("duration", elapsed.Round(time.Millisecond)))
		return err
	}

	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		saveErr := fmt.Errorf("save %s: %w", outPath, err)
		logState(ctx, logger, conn, fileURL, db.EventError, outPath, saveErr.Error(), &elapsed)
		return saveErr
	}

	elapsed = time.Since(start)
	logState(ctx, logger, conn, fileURL, db.EventDownloadEnd, outPath, "", &elapsed)
	logger.Info("downloaded archive file",
		slog.String("path", outPath),
		slog.Int("bytes", len(data)),
		slog.Duration("duration", elapsed.Round(time.Millisecond)),
	)
	return nil
}

// parseLinks walks the parsed document and collects href values with the
// given extension, case-insensitively.
func parseLinks(root *html.Node, ext string) []string {
	var links []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				if strings.EqualFold(filepath.Ext(strings.TrimSpace(attr.Val)), ext) {
					links = append(links, strings.TrimSpace(attr.Val))
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return links
}

func logState(ctx context.Context, logger *slog.Logger, conn *sql.DB, fileURL, event, path, message string, d *time.Duration) {
	if err := db.LogEvent(ctx, conn, fileURL, "", event, path, message, d); err != nil {
		logger.Warn("failed to record state event", slog.String("event", event), "error", err)
	}
}
