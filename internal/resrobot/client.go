package resrobot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"resboard/internal/config"
)

// FetchError reports a failed departure board request. URL never contains
// the access key.
type FetchError struct {
	URL    string
	Status int // 0 when no response was received
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d: %v", e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Client is an HTTP client for the ResRobot departureBoard API.
// It never retries; retry policy belongs to the caller.
type Client struct {
	apiBase     string
	apiKey      string
	duration    int // minutes
	maxJourneys int
	client      *http.Client
	logger      *slog.Logger
}

// NewClient creates a departure board client from the application config.
func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	return &Client{
		apiBase:     cfg.ResRobot.APIBase,
		apiKey:      cfg.ResRobot.APIKey,
		duration:    cfg.MaximumDuration,
		maxJourneys: cfg.MaximumEntries,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// URL builds the request URL for a route. Zero duration or entry limits
// are left to the API defaults.
func (c *Client) URL(route config.Route) (string, error) {
	u, err := url.Parse(c.apiBase)
	if err != nil {
		return "", fmt.Errorf("parse api base: %w", err)
	}
	q := u.Query()
	q.Set("accessId", c.apiKey)
	if c.duration > 0 {
		q.Set("duration", strconv.Itoa(c.duration))
	}
	if c.maxJourneys > 0 {
		q.Set("maxJourneys", strconv.Itoa(c.maxJourneys))
	}
	q.Set("id", route.From)
	if route.To != "" {
		q.Set("direction", route.To)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Departures fetches the departure board for a route.
func (c *Client) Departures(ctx context.Context, route config.Route) ([]Departure, error) {
	rawURL, err := c.URL(route)
	if err != nil {
		return nil, &FetchError{URL: c.apiBase, Err: err}
	}
	safeURL := redact(rawURL)

	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return nil, &FetchError{URL: safeURL, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: safeURL, Err: err}
	}
	defer resp.Body.Close()

	var result Response
	decodeErr := json.NewDecoder(resp.Body).Decode(&result)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := errors.New("unexpected status")
		if decodeErr == nil && result.ErrorCode != "" {
			err = fmt.Errorf("%s: %s", result.ErrorCode, result.ErrorText)
		}
		return nil, &FetchError{URL: safeURL, Status: resp.StatusCode, Err: err}
	}
	if decodeErr != nil {
		return nil, &FetchError{URL: safeURL, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", decodeErr)}
	}
	if result.ErrorCode != "" {
		return nil, &FetchError{URL: safeURL, Status: resp.StatusCode, Err: fmt.Errorf("%s: %s", result.ErrorCode, result.ErrorText)}
	}

	c.logger.Debug("departure board fetched", "from", route.From, "to", route.To, "count", len(result.Departures))
	return result.Departures, nil
}

// redact masks the access key so URLs can be logged.
func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid url>"
	}
	q := u.Query()
	if q.Has("accessId") {
		q.Set("accessId", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
