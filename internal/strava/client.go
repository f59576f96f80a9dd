// Package strava is a small client for the Strava v3 REST API.
package strava

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	// DefaultBaseURL is the Strava v3 API root.
	DefaultBaseURL = "https://www.strava.com/api/v3"

	// DefaultPerPage matches the batch size the web client has always asked for.
	DefaultPerPage = 30

	userAgent = "strava-leaderboard/1.0"
)

// Sentinel errors.
var (
	// ErrUpstream is returned when Strava fails or answers with an unexpected payload.
	ErrUpstream = errors.New("strava upstream error")

	// ErrUnauthorized is returned when the access token is rejected.
	ErrUnauthorized = errors.New("strava rejected the access token")

	// ErrRateLimited is returned when the rate limit is still exceeded after retries.
	ErrRateLimited = errors.New("strava rate limit exceeded")
)

// Client calls the Strava API with an authorized HTTP client.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	retryDelays []time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API root.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithRetryDelays sets the waits between attempts after a 429 response.
func WithRetryDelays(delays ...time.Duration) Option {
	return func(c *Client) {
		c.retryDelays = delays
	}
}

// NewClient creates a client. httpClient should carry the athlete's token,
// typically from oauth2.NewClient.
func NewClient(httpClient *http.Client, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	c := &Client{
		httpClient:  httpClient,
		baseURL:     DefaultBaseURL,
		retryDelays: []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListOptions selects a page of activities.
type ListOptions struct {
	Page    int
	PerPage int
	After   time.Time // only activities that started after this instant
}

// CurrentAthlete returns the athlete that owns the token.
func (c *Client) CurrentAthlete(ctx context.Context) (*Athlete, error) {
	body, err := c.get(ctx, "/athlete", nil)
	if err != nil {
		return nil, fmt.Errorf("fetching athlete: %w", err)
	}

	var athlete Athlete
	if err := json.Unmarshal(body, &athlete); err != nil {
		return nil, fmt.Errorf("parsing athlete: %w: %v", ErrUpstream, err)
	}
	return &athlete, nil
}

// ListActivities returns the athlete's activities, most recent first.
// A payload that is not a JSON list is reported as ErrUpstream.
func (c *Client) ListActivities(ctx context.Context, opts ListOptions) ([]SummaryActivity, error) {
	perPage := opts.PerPage
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	params := url.Values{"per_page": {strconv.Itoa(perPage)}}
	if opts.Page > 0 {
		params.Set("page", strconv.Itoa(opts.Page))
	}
	if !opts.After.IsZero() {
		params.Set("after", strconv.FormatInt(opts.After.Unix(), 10))
	}

	body, err := c.get(ctx, "/athlete/activities", params)
	if err != nil {
		return nil, fmt.Errorf("fetching activities: %w", err)
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("fetching activities: %w: response is not a list", ErrUpstream)
	}

	var activities []SummaryActivity
	if err := json.Unmarshal(trimmed, &activities); err != nil {
		return nil, fmt.Errorf("parsing activities: %w: %v", ErrUpstream, err)
	}
	return activities, nil
}

// get performs a GET with retry on rate limiting.
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var lastErr error
	for attempt := 0; attempt <= len(c.retryDelays); attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelays[attempt-1]):
			}
		}

		body, err := c.doSingleRequest(ctx, reqURL)
		if err == nil {
			return body, nil
		}
		if errors.Is(err, ErrRateLimited) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

func (c *Client) doSingleRequest(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response body: %v", ErrUpstream, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	return body, nil
}
