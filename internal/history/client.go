// Package history talks to the backend REST API: full-range historical
// loads on a range change, and single-point pulls for the stream client's
// polling fallback. Responses are TTL-cached per range so flipping between
// ranges does not hammer the query engine.
package history

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/goth-coder/stream-bit/internal/domain"
	"github.com/goth-coder/stream-bit/pkg/cache"
	"github.com/goth-coder/stream-bit/pkg/logger"
)

// DefaultCacheTTL matches the backend's own TTL for range queries.
const DefaultCacheTTL = 3 * time.Minute

// chartResponse is the backend's chart-data envelope.
type chartResponse struct {
	Success bool         `json:"success"`
	Data    []chartPoint `json:"data"`
	Count   int          `json:"count"`
	Error   string       `json:"error,omitempty"`
}

type chartPoint struct {
	Timestamp string  `json:"timestamp"`
	Price     float64 `json:"price_brl"`
}

// Client wraps the backend REST endpoints the chart core depends on.
type Client struct {
	http  *resty.Client
	cache *cache.InMemoryCache[domain.TimeRange, []domain.Observation]
	log   *logrus.Entry
}

// NewClient creates a client for the given base URL (no trailing slash
// required).
func NewClient(baseURL string) *Client {
	http := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second)

	return &Client{
		http:  http,
		cache: cache.NewInMemoryCache[domain.TimeRange, []domain.Observation](DefaultCacheTTL),
		log:   logger.WithField("module", "history"),
	}
}

// Load fetches the full look-back window for a range, oldest first. A warm
// cache entry short-circuits the request.
func (c *Client) Load(ctx context.Context, r domain.TimeRange) ([]domain.Observation, error) {
	if obs, ok := c.cache.Get(r); ok {
		c.log.Debugf("cache hit for range %s (%d points)", r, len(obs))
		return obs, nil
	}

	obs, err := c.fetch(ctx, r.Hours())
	if err != nil {
		return nil, err
	}
	c.cache.Set(r, obs, 0)
	return obs, nil
}

// Latest pulls the most recent observation; this is the polling fallback
// path and is never cached.
func (c *Client) Latest(ctx context.Context) (domain.Observation, error) {
	obs, err := c.fetch(ctx, 1)
	if err != nil {
		return domain.Observation{}, err
	}
	if len(obs) == 0 {
		return domain.Observation{}, errors.New("backend returned no recent observations")
	}
	return obs[len(obs)-1], nil
}

// Invalidate drops the cached response for a range; the orchestrator calls
// it when the user forces a refresh of the current range.
func (c *Client) Invalidate(r domain.TimeRange) {
	c.cache.Delete(r)
}

func (c *Client) fetch(ctx context.Context, hours int) ([]domain.Observation, error) {
	var body chartResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("hours", strconv.Itoa(hours)).
		SetResult(&body).
		Get("/api/bitcoin/chart-data")
	if err != nil {
		return nil, errors.Wrap(err, "chart-data request")
	}
	if resp.IsError() {
		return nil, errors.Errorf("chart-data request: %s", resp.Status())
	}
	if !body.Success {
		return nil, errors.Errorf("chart-data request rejected: %s", body.Error)
	}

	obs := make([]domain.Observation, 0, len(body.Data))
	for _, p := range body.Data {
		ts, err := domain.ParseWireTime(p.Timestamp)
		if err != nil || p.Price <= 0 {
			// A single bad row must not sink the whole load.
			c.log.Warnf("skipping malformed history row ts=%q price=%v", p.Timestamp, p.Price)
			continue
		}
		obs = append(obs, domain.NewObservation(ts, p.Price))
	}

	// The backend usually returns ascending order; make it a guarantee.
	sort.Slice(obs, func(i, j int) bool { return obs[i].Before(obs[j]) })
	return obs, nil
}
