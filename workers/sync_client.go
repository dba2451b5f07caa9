package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// changeFeed reads "changed since" pages from the upstream sync service.
type changeFeed struct {
	baseURL      string
	endpointPath string
	serviceToken string
	httpClient   *http.Client
}

func (f *changeFeed) fetch(ctx context.Context, since time.Time, out interface{}) error {
	base, err := url.Parse(f.baseURL)
	if err != nil {
		return fmt.Errorf("invalid base sync service URL '%s': %w", f.baseURL, err)
	}

	endpointURL := base.JoinPath(f.endpointPath)
	q := endpointURL.Query()
	q.Set("since", since.UTC().Format(time.RFC3339))
	endpointURL.RawQuery = q.Encode()
	finalURL := endpointURL.String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, finalURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request to %s: %w", finalURL, err)
	}
	req.Header.Set("X-Service-Token", f.serviceToken)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request to sync service failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("sync service returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode sync service response: %w", err)
	}
	return nil
}

// poll runs sync once, then on every tick until ctx is done.
func poll(ctx context.Context, interval time.Duration, sync func(context.Context) error, onErr func(error)) {
	if err := sync(ctx); err != nil {
		onErr(err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := sync(ctx); err != nil {
				onErr(err)
			}
		case <-ctx.Done():
			return
		}
	}
}
