package maptiles

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"terrainav/internal/cache"
	"terrainav/internal/metrics"
	"terrainav/internal/ratelimit"
)

// UserAgent is sent on every tile request; the endpoint rejects the
// default Go client string.
const UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"

const (
	defaultMaxRetries = 10
	defaultRetryDelay = time.Second
)

// Client fetches map tiles for one layer, with optional disk caching
// and throttle detection.
type Client struct {
	httpClient *http.Client
	layer      Layer
	tileCache  *cache.TileCache
	limiter    *ratelimit.Handler
	maxRetries int
	retryDelay time.Duration
}

// NewClient creates a tile client honoring system proxy settings.
// tileCache and limiter may be nil to disable caching or throttle
// handling.
func NewClient(layer Layer, tileCache *cache.TileCache, limiter *ratelimit.Handler) *Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		layer:      layer,
		tileCache:  tileCache,
		limiter:    limiter,
		maxRetries: defaultMaxRetries,
		retryDelay: defaultRetryDelay,
	}
}

// Layer returns the layer this client fetches.
func (c *Client) Layer() Layer {
	return c.layer
}

// FetchTile downloads one tile, retrying transient failures with a
// short delay and backing off when the provider throttles.
func (c *Client) FetchTile(ctx context.Context, tile Tile) ([]byte, error) {
	if c.tileCache != nil {
		if data, ok := c.tileCache.Get(string(c.layer), tile.Zoom, tile.X, tile.Y); ok {
			return data, nil
		}
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx, string(c.layer)); err != nil {
				return nil, err
			}
		}

		data, err := c.fetchOnce(ctx, tile)
		if err == nil {
			metrics.TilesFetched.WithLabelValues(string(c.layer)).Inc()
			if c.tileCache != nil {
				if cacheErr := c.tileCache.Set(string(c.layer), tile.Zoom, tile.X, tile.Y, data); cacheErr != nil {
					// A full disk must not fail the download.
					lastErr = cacheErr
				}
			}
			return data, nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.retryDelay):
		}
	}

	metrics.TileFetchErrors.WithLabelValues(string(c.layer)).Inc()
	return nil, fmt.Errorf("tile %d/%d/%d failed after %d attempts: %w",
		tile.Zoom, tile.X, tile.Y, c.maxRetries, lastErr)
}

func (c *Client) fetchOnce(ctx context.Context, tile Tile) ([]byte, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tile.URL(c.layer), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tile: %w", err)
	}
	defer resp.Body.Close()

	if c.limiter != nil && c.limiter.CheckResponse(string(c.layer), resp) {
		metrics.RateLimitEvents.WithLabelValues(string(c.layer)).Inc()
		return nil, fmt.Errorf("tile request throttled with status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tile request failed with status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read tile body: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty tile body")
	}

	metrics.TileFetchDuration.WithLabelValues(string(c.layer)).Observe(time.Since(start).Seconds())
	return data, nil
}
