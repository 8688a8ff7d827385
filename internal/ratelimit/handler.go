package ratelimit

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"
)

// RetryStrategy defines the backoff intervals applied after a tile
// provider starts rejecting requests.
type RetryStrategy struct {
	Intervals  []time.Duration
	MaxRetries int
}

// DefaultRetryStrategy returns the escalating backoff used for the
// public tile endpoints, which throttle aggressively on bulk pulls.
func DefaultRetryStrategy() *RetryStrategy {
	return &RetryStrategy{
		Intervals: []time.Duration{
			5 * time.Minute,
			10 * time.Minute,
			15 * time.Minute,
			20 * time.Minute,
			30 * time.Minute,
		},
		MaxRetries: 10,
	}
}

// Event records one throttling occurrence for a layer.
type Event struct {
	Timestamp    time.Time `json:"timestamp"`
	Layer        string    `json:"layer"`
	StatusCode   int       `json:"statusCode"`
	RetryAttempt int       `json:"retryAttempt"`
	NextRetryAt  time.Time `json:"nextRetryAt"`
}

// Handler tracks which tile layers are currently throttled and when it
// is worth trying them again. Google signals throttling with 429, 403
// or 509 on the tile endpoint.
type Handler struct {
	mu       sync.RWMutex
	limited  map[string]*Event
	strategy *RetryStrategy
	onEvent  func(event Event)
}

// NewHandler creates a handler. A nil strategy selects the default.
func NewHandler(strategy *RetryStrategy) *Handler {
	if strategy == nil {
		strategy = DefaultRetryStrategy()
	}
	return &Handler{
		limited:  make(map[string]*Event),
		strategy: strategy,
	}
}

// SetOnEvent registers a callback invoked whenever a layer becomes
// throttled. Used by the CLI to surface the pause to the operator.
func (h *Handler) SetOnEvent(callback func(event Event)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onEvent = callback
}

// IsLimited reports whether a layer is currently throttled.
func (h *Handler) IsLimited(layer string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, limited := h.limited[layer]
	return limited
}

// CheckResponse inspects an HTTP response for throttling indicators.
// It returns true when the layer is rate limited, after recording the
// event. A successful response clears any previous limit.
func (h *Handler) CheckResponse(layer string, resp *http.Response) bool {
	throttled := resp.StatusCode == http.StatusTooManyRequests ||
		resp.StatusCode == http.StatusForbidden ||
		resp.StatusCode == 509

	if !throttled {
		h.clear(layer)
		return false
	}

	h.record(layer, resp.StatusCode)
	return true
}

// Wait blocks until the layer's retry window opens or the context is
// cancelled. It returns immediately when the layer is not throttled,
// and an error once the retry budget is exhausted.
func (h *Handler) Wait(ctx context.Context, layer string) error {
	h.mu.RLock()
	event, exists := h.limited[layer]
	h.mu.RUnlock()

	if !exists {
		return nil
	}
	if event.RetryAttempt >= h.strategy.MaxRetries {
		return fmt.Errorf("layer %s: rate limit retry budget exhausted after %d attempts", layer, event.RetryAttempt)
	}

	wait := time.Until(event.NextRetryAt)
	if wait <= 0 {
		return nil
	}

	log.Printf("[RateLimit] %s throttled (HTTP %d), waiting %s before retry %d",
		layer, event.StatusCode, wait.Round(time.Second), event.RetryAttempt+1)

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns a copy of the current event for a layer, or nil.
func (h *Handler) State(layer string) *Event {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if event, exists := h.limited[layer]; exists {
		eventCopy := *event
		return &eventCopy
	}
	return nil
}

func (h *Handler) record(layer string, statusCode int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	retryAttempt := 0
	if existing, exists := h.limited[layer]; exists {
		retryAttempt = existing.RetryAttempt + 1
	}

	var interval time.Duration
	if retryAttempt < len(h.strategy.Intervals) {
		interval = h.strategy.Intervals[retryAttempt]
	} else {
		interval = h.strategy.Intervals[len(h.strategy.Intervals)-1]
	}

	event := Event{
		Timestamp:    time.Now(),
		Layer:        layer,
		StatusCode:   statusCode,
		RetryAttempt: retryAttempt,
		NextRetryAt:  time.Now().Add(interval),
	}
	h.limited[layer] = &event

	log.Printf("[RateLimit] %s rate limited (HTTP %d, attempt %d). Next retry at %s",
		layer, statusCode, retryAttempt, event.NextRetryAt.Format(time.RFC3339))

	if h.onEvent != nil {
		go h.onEvent(event)
	}
}

func (h *Handler) clear(layer string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.limited[layer]; exists {
		delete(h.limited, layer)
		log.Printf("[RateLimit] %s rate limit cleared", layer)
	}
}
