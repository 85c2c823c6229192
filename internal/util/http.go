// Package util holds small helpers shared across the fetch and prepare
// stages.
package util

import (
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultHTTPClient returns the client used for feed discovery and archive
// downloads. Input archives can be large, so the timeout is generous.
func DefaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 120 * time.Second}
}

// DownloadFile executes a pre-built request and returns the body bytes. The
// caller builds the request, including context and headers.
func DownloadFile(client *http.Client, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http do request for %s: %w", req.URL.String(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		limited := io.LimitReader(resp.Body, 512)
		body, _ := io.ReadAll(limited)
		return nil, fmt.Errorf("bad status %q fetching %s: %s", resp.Status, req.URL.String(), string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body from %s: %w", req.URL.String(), err)
	}
	return body, nil
}
