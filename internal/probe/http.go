// Package probe waits for a started service to begin answering on its local
// URL so dependent side effects (opening the browser tab) fire when the page
// will actually load.
package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultInterval = 2 * time.Second

// HTTPReady performs a single readiness check against url. Any HTTP response
// below 500 counts as ready; the service is up even if the path 404s.
func HTTPReady(ctx context.Context, client *http.Client, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 500 {
		return fmt.Errorf("status=%d", resp.StatusCode)
	}
	return nil
}

// WaitHTTP polls url until it answers or ctx is done. The caller bounds the
// wait through the context.
func WaitHTTP(ctx context.Context, url string) error {
	client := &http.Client{Timeout: defaultInterval}
	ticker := time.NewTicker(defaultInterval)
	defer ticker.Stop()

	for {
		if err := HTTPReady(ctx, client, url); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
