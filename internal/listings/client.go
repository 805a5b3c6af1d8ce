// Package listings talks to the TV listings scrape endpoint and owns the
// loaded listing set with its display filters.
package listings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"tvvoice/internal/domain"
	"tvvoice/internal/metrics"
)

// FetchError reports a failed scrape request.
type FetchError struct {
	DateIndex int
	Status    int
	// Remote is true when the endpoint answered with success=false.
	Remote bool
	Err    error
}

func (e *FetchError) Error() string {
	switch {
	case e.Remote:
		return fmt.Sprintf("scrape date %d failed: %v", e.DateIndex, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("scrape date %d: unexpected status %d: %v", e.DateIndex, e.Status, e.Err)
	default:
		return fmt.Sprintf("scrape date %d: %v", e.DateIndex, e.Err)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// UserMessage is the alert text shown for this failure.
func (e *FetchError) UserMessage() string {
	if e.Remote || e.Status != 0 {
		return "Failed to scrape listings. Please try again."
	}
	return "Network error. Please check your connection."
}

// Config controls the scrape client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client implements ports.ListingsSource over HTTP.
type Client struct {
	base   *url.URL
	http   *http.Client
	logger zerolog.Logger
}

func NewClient(cfg Config, logger zerolog.Logger) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		raw = "http://localhost:5000"
	}
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid listings base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid listings base URL %q: scheme must be http or https", raw)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{
		base:   base,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger.With().Str("component", "listings").Logger(),
	}, nil
}

// Fetch requests the listings for a zero-based index into the known dates.
func (c *Client) Fetch(ctx context.Context, dateIndex int) (domain.ScrapeResponse, error) {
	started := time.Now()
	resp, err := c.fetch(ctx, dateIndex)
	metrics.FetchDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.Fetches.WithLabelValues("error").Inc()
		c.logger.Warn().Err(err).Int("date", dateIndex).Msg("listings fetch failed")
		return domain.ScrapeResponse{}, err
	}
	metrics.Fetches.WithLabelValues("ok").Inc()
	c.logger.Debug().
		Int("date", dateIndex).
		Int("listings", len(resp.Listings)).
		Dur("elapsed", time.Since(started)).
		Msg("listings fetched")
	return resp, nil
}

// Dates bootstraps the date list through index 0.
func (c *Client) Dates(ctx context.Context) ([]string, string, error) {
	resp, err := c.Fetch(ctx, 0)
	if err != nil {
		return nil, "", err
	}
	return resp.Dates, resp.CurrentDate, nil
}

func (c *Client) fetch(ctx context.Context, dateIndex int) (domain.ScrapeResponse, error) {
	if dateIndex < 0 {
		return domain.ScrapeResponse{}, &FetchError{DateIndex: dateIndex, Err: errors.New("date index must not be negative")}
	}

	endpoint := *c.base
	endpoint.Path = strings.TrimRight(endpoint.Path, "/") + "/scrape"
	query := endpoint.Query()
	query.Set("date", strconv.Itoa(dateIndex))
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return domain.ScrapeResponse{}, &FetchError{DateIndex: dateIndex, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return domain.ScrapeResponse{}, &FetchError{DateIndex: dateIndex, Err: err}
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 8<<20))
	if err != nil {
		return domain.ScrapeResponse{}, &FetchError{DateIndex: dateIndex, Err: fmt.Errorf("read body: %w", err)}
	}

	var payload domain.ScrapeResponse
	decodeErr := json.Unmarshal(body, &payload)

	if res.StatusCode < 200 || res.StatusCode > 299 {
		detail := strings.TrimSpace(payload.Error)
		if detail == "" {
			detail = http.StatusText(res.StatusCode)
		}
		return domain.ScrapeResponse{}, &FetchError{DateIndex: dateIndex, Status: res.StatusCode, Err: errors.New(detail)}
	}
	if decodeErr != nil {
		return domain.ScrapeResponse{}, &FetchError{DateIndex: dateIndex, Err: fmt.Errorf("decode response: %w", decodeErr)}
	}
	if !payload.Success {
		detail := strings.TrimSpace(payload.Error)
		if detail == "" {
			detail = "scraper reported failure"
		}
		return domain.ScrapeResponse{}, &FetchError{DateIndex: dateIndex, Remote: true, Err: errors.New(detail)}
	}
	return payload, nil
}
