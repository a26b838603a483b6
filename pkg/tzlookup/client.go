// Package tzlookup talks to the public lookup services used to resolve a
// coordinate: a timezone-by-location service, a reverse geocoder for place
// labels and a forward geocoder for search.
package tzlookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"github.com/codeGROOVE-dev/tzclock/pkg/geo"
)

// Default service endpoints.
const (
	DefaultTimezoneURL = "https://api.bigdatacloud.net/data/timezone-by-location"
	DefaultReverseURL  = "https://nominatim.openstreetmap.org/reverse"
	DefaultSearchURL   = "https://nominatim.openstreetmap.org/search"
)

const (
	userAgent = "tzclock/1.0 (+https://github.com/codeGROOVE-dev/tzclock)"
	// MinQueryLength is the shortest query Search sends upstream.
	MinQueryLength = 3
	maxResults     = 5
)

var (
	// ErrMissingField is returned when a response lacks the field we need.
	ErrMissingField = errors.New("response missing field")
	// ErrStatus is returned for non-200 responses.
	ErrStatus = errors.New("unexpected HTTP status")
)

// HTTPClient interface for making HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Address holds the reverse-geocoded components used for labels.
type Address struct {
	City    string `json:"city"`
	Town    string `json:"town"`
	Country string `json:"country"`
}

// Place is a forward geocoding candidate.
type Place struct {
	Name        string         `json:"name"`
	DisplayName string         `json:"display_name"`
	Coordinate  geo.Coordinate `json:"coordinate"`
}

// Client queries the lookup services.
type Client struct {
	httpClient  HTTPClient
	logger      *slog.Logger
	timezoneURL string
	reverseURL  string
	searchURL   string
	attempts    uint
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client, typically an *httpcache.Client.
func WithHTTPClient(c HTTPClient) Option {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) {
		if logger != nil {
			cl.logger = logger
		}
	}
}

// WithBaseURLs overrides the service endpoints. Empty values keep the default.
func WithBaseURLs(timezoneURL, reverseURL, searchURL string) Option {
	return func(cl *Client) {
		if timezoneURL != "" {
			cl.timezoneURL = timezoneURL
		}
		if reverseURL != "" {
			cl.reverseURL = reverseURL
		}
		if searchURL != "" {
			cl.searchURL = searchURL
		}
	}
}

// WithAttempts sets how many times a request is tried on network errors,
// 429 or 5xx. Values below 1 mean a single attempt.
func WithAttempts(n uint) Option {
	return func(cl *Client) {
		cl.attempts = max(n, 1)
	}
}

// NewClient creates a lookup client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		logger:      slog.Default(),
		timezoneURL: DefaultTimezoneURL,
		reverseURL:  DefaultReverseURL,
		searchURL:   DefaultSearchURL,
		attempts:    3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TimezoneForCoordinates returns the IANA zone identifier for a coordinate.
func (c *Client) TimezoneForCoordinates(ctx context.Context, coord geo.Coordinate) (string, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(coord.Latitude, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(coord.Longitude, 'f', -1, 64))
	q.Set("localityLanguage", "en")
	q.Set("key", "free")

	var result struct {
		IANATimeID string `json:"ianaTimeId"`
	}
	if err := c.getJSON(ctx, c.timezoneURL, q, &result); err != nil {
		return "", fmt.Errorf("timezone lookup: %w", err)
	}
	zone := strings.TrimSpace(result.IANATimeID)
	if zone == "" {
		return "", fmt.Errorf("timezone lookup: %w: ianaTimeId", ErrMissingField)
	}
	return zone, nil
}

// ReverseGeocode returns the address components for a coordinate.
func (c *Client) ReverseGeocode(ctx context.Context, coord geo.Coordinate) (Address, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("lat", strconv.FormatFloat(coord.Latitude, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(coord.Longitude, 'f', -1, 64))

	var result struct {
		Address *Address `json:"address"`
		Error   string   `json:"error"`
	}
	if err := c.getJSON(ctx, c.reverseURL, q, &result); err != nil {
		return Address{}, fmt.Errorf("reverse geocode: %w", err)
	}
	if result.Address == nil {
		if result.Error != "" {
			return Address{}, fmt.Errorf("reverse geocode: %w: address (%s)", ErrMissingField, result.Error)
		}
		return Address{}, fmt.Errorf("reverse geocode: %w: address", ErrMissingField)
	}
	return *result.Address, nil
}

// Search returns up to five places matching query. Queries shorter than
// MinQueryLength return no results without contacting the service.
func (c *Client) Search(ctx context.Context, query string) ([]Place, error) {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < MinQueryLength {
		return nil, nil
	}
	q := url.Values{}
	q.Set("format", "json")
	q.Set("q", query)

	var raw []struct {
		Lat         string `json:"lat"`
		Lon         string `json:"lon"`
		DisplayName string `json:"display_name"`
	}
	if err := c.getJSON(ctx, c.searchURL, q, &raw); err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}

	places := make([]Place, 0, min(len(raw), maxResults))
	for _, r := range raw {
		if len(places) == maxResults {
			break
		}
		lat, err := strconv.ParseFloat(r.Lat, 64)
		if err != nil {
			c.logger.Debug("skipping search result with bad latitude", "lat", r.Lat, "error", err)
			continue
		}
		lon, err := strconv.ParseFloat(r.Lon, 64)
		if err != nil {
			c.logger.Debug("skipping search result with bad longitude", "lon", r.Lon, "error", err)
			continue
		}
		name, _, _ := strings.Cut(r.DisplayName, ",")
		places = append(places, Place{
			Name:        strings.TrimSpace(name),
			DisplayName: r.DisplayName,
			Coordinate:  geo.Coordinate{Latitude: lat, Longitude: lon},
		})
	}
	return places, nil
}

func (c *Client) getJSON(ctx context.Context, base string, q url.Values, v any) error {
	u := base + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.retryableDo(ctx, req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Debug("failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		preview := body[:min(len(body), 200)]
		c.logger.Debug("lookup JSON parse error", "url", u, "error", err, "body_preview", string(preview))
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

// retryableDo performs req with backoff and jitter on network errors, 429
// and 5xx. The returned response body must be closed by the caller.
func (c *Client) retryableDo(ctx context.Context, req *http.Request) (*http.Response, error) {
	var resp *http.Response
	var lastErr error

	err := retry.Do(
		func() error {
			var err error
			resp, err = c.httpClient.Do(req) //nolint:bodyclose // returned open on success, closed below on retryable status
			if err != nil {
				lastErr = err
				return err
			}
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
				if _, err := io.Copy(io.Discard, resp.Body); err != nil {
					c.logger.Debug("failed to drain error response body", "error", err)
				}
				if err := resp.Body.Close(); err != nil {
					c.logger.Debug("failed to close error response body", "error", err)
				}
				lastErr = fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
				return lastErr
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(100*time.Millisecond),
		retry.MaxDelay(time.Second),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.MaxJitter(100*time.Millisecond),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Debug("retrying lookup request", "attempt", n+1, "url", req.URL.String(), "error", err)
		}),
		retry.RetryIf(func(err error) bool {
			return err != nil && ctx.Err() == nil
		}),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("request aborted: %w", ctxErr)
		}
		if lastErr == nil {
			lastErr = err
		}
		return nil, fmt.Errorf("request failed after retries: %w", lastErr)
	}
	return resp, nil
}
