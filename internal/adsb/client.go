// Package adsb talks to the adsb.lol v2 API (readsb compatible JSON).
package adsb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"code.sztanpet.net/zvpsz/planes-around/internal/planes"
	"github.com/dustin/go-humanize"
	"github.com/juju/loggo"
	"golang.org/x/time/rate"
)

var logger = loggo.GetLogger("main.adsb")

// DefaultBaseURL is the public adsb.lol v2 endpoint.
const DefaultBaseURL = "https://api.adsb.lol/v2"

// MaxRadius is the largest radius in nautical miles the point endpoint accepts.
const MaxRadius = 250.0

// MinRequestDurr limits requests to at most one per MinRequestDurr
var MinRequestDurr = 1 * time.Second

// maxBodySize caps how much of a response is read, a busy area is well below this
var maxBodySize int64 = 8 << 20

// ErrNoAircraft is returned when the response lacks the "ac" array.
var ErrNoAircraft = errors.New("adsb: response has no aircraft list")

// Response is the body of the point endpoint.
type Response struct {
	Aircraft []planes.Raw `json:"ac"`
	Total    int          `json:"total"`
	Now      float64      `json:"now"`
}

// StatusError is returned for any non-200 response.
type StatusError struct {
	StatusCode int
	// RetryAfter is only set for 429 responses that carry a Retry-After header
	RetryAfter time.Duration
	Body       string
}

func (e *StatusError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("adsb: API returned status %d (retry after %v)", e.StatusCode, e.RetryAfter)
	}
	return fmt.Sprintf("adsb: API returned status %d: %s", e.StatusCode, e.Body)
}

type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a client for baseURL, every request is bounded by timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Every(MinRequestDurr), 1),
	}
}

// PointURL returns the URL of the point endpoint for the given position.
func (c *Client) PointURL(lat, lon, radiusNM float64) string {
	if radiusNM > MaxRadius {
		radiusNM = MaxRadius
	}
	return fmt.Sprintf("%s/point/%s/%s/%s", c.baseURL, ftoa(lat), ftoa(lon), ftoa(radiusNM))
}

// Point fetches every aircraft within radiusNM of lat/lon.
func (c *Client) Point(ctx context.Context, lat, lon, radiusNM float64) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := c.PointURL(lat, lon, radiusNM)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "planes-around")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("adsb: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("adsb: reading response failed: %w", err)
	}
	if int64(len(body)) > maxBodySize {
		return nil, fmt.Errorf("adsb: response larger than %v", humanize.IBytes(uint64(maxBodySize)))
	}
	logger.Tracef("GET %v: status %v, %v", url, resp.StatusCode, humanize.Bytes(uint64(len(body))))

	if resp.StatusCode != http.StatusOK {
		se := &StatusError{StatusCode: resp.StatusCode}
		if resp.StatusCode == http.StatusTooManyRequests {
			se.RetryAfter = parseRetryAfter(resp.Header)
		}
		if len(body) > 256 {
			body = body[:256]
		}
		se.Body = string(body)
		return nil, se
	}

	var r Response
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("adsb: parsing response failed: %w", err)
	}
	if r.Aircraft == nil {
		return nil, ErrNoAircraft
	}

	return &r, nil
}

func ftoa(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// parseRetryAfter understands both the delay-seconds and the HTTP-date form.
func parseRetryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}

	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}

	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}

	return 0
}
