package eonet

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/couchcryptid/eonet-explorer/internal/domain"
	"github.com/couchcryptid/eonet-explorer/internal/observability"
)

// Client reads categories and event lists from the EONET v3 API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an EONET client rooted at baseURL (e.g. https://eonet.gsfc.nasa.gov/api/v3).
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		metrics: metrics,
		logger:  logger,
	}
}

// ListCategories fetches every category the catalog knows, unfiltered.
func (c *Client) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var resp categoriesResponse
	if err := c.getJSON(ctx, c.baseURL+"/categories", "categories", &resp); err != nil {
		return nil, err
	}
	return resp.Categories, nil
}

// ListEvents fetches the event list behind a category link, scoped by q.
func (c *Client) ListEvents(ctx context.Context, link string, q domain.EventQuery) ([]domain.Event, error) {
	if link == "" {
		return nil, fmt.Errorf("list events: empty category link")
	}
	sep := "?"
	if strings.Contains(link, "?") {
		sep = "&"
	}

	var resp eventsResponse
	if err := c.getJSON(ctx, link+sep+q.Params().Encode(), "events", &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

func (c *Client) getJSON(ctx context.Context, fullURL, api string, v any) error {
	start := time.Now()
	err := c.doRequest(ctx, fullURL, api, v)
	c.metrics.UpstreamDuration.WithLabelValues(api).Observe(time.Since(start).Seconds())

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	c.metrics.UpstreamRequests.WithLabelValues(api, outcome).Inc()
	return err
}

func (c *Client) doRequest(ctx context.Context, fullURL, api string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("eonet request", "api", api, "url", fullURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", api, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("eonet API error: status %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s response: %w", api, err)
	}
	return nil
}

// EONET API response types.

type categoriesResponse struct {
	Categories []domain.Category `json:"categories"`
}

type eventsResponse struct {
	Events []domain.Event `json:"events"`
}
