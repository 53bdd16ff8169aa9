// Package google implements ports.GeocodeProvider with the Google Geocoding API.
package google

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/samirrijal/canvass/internal/core/domain"
	"github.com/samirrijal/canvass/internal/pkg/metrics"
)

// DefaultBaseURL is the Geocoding API JSON endpoint.
const DefaultBaseURL = "https://maps.googleapis.com/maps/api/geocode/json"

const (
	statusOK          = "OK"
	statusZeroResults = "ZERO_RESULTS"
)

type geocodeResponse struct {
	Results      []geocodeResult `json:"results"`
	Status       string          `json:"status"`
	ErrorMessage string          `json:"error_message"`
}

type geocodeResult struct {
	Geometry struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
		LocationType string `json:"location_type"`
	} `json:"geometry"`
	FormattedAddress string `json:"formatted_address"`
}

// Option configures the Geocoder.
type Option func(*Geocoder)

// WithHTTPClient sets the HTTP client used for API requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *Geocoder) {
		g.httpClient = hc
	}
}

// WithBaseURL points the Geocoder at another endpoint.
func WithBaseURL(u string) Option {
	return func(g *Geocoder) {
		g.baseURL = u
	}
}

// WithRateLimit caps requests per second. Non-positive rps disables limiting.
func WithRateLimit(rps float64) Option {
	return func(g *Geocoder) {
		if rps <= 0 {
			g.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// Geocoder calls the Google Geocoding API.
type Geocoder struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	limiter    *rate.Limiter
}

// New creates a Geocoder authenticated with apiKey.
func New(apiKey string, opts ...Option) *Geocoder {
	g := &Geocoder{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		limiter:    rate.NewLimiter(25, 25),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ReverseGeocode returns the formatted address of the first result at c.
func (g *Geocoder) ReverseGeocode(ctx context.Context, c domain.Coordinate) (string, bool, error) {
	resp, err := g.query(ctx, "reverse", url.Values{
		"latlng": {fmt.Sprintf("%f,%f", c.Lat, c.Lng)},
	})
	if err != nil || resp == nil {
		return "", false, err
	}
	return resp.Results[0].FormattedAddress, true, nil
}

// ForwardGeocode returns the location of the first result for address.
func (g *Geocoder) ForwardGeocode(ctx context.Context, address string) (domain.Coordinate, bool, error) {
	resp, err := g.query(ctx, "forward", url.Values{
		"address": {address},
	})
	if err != nil || resp == nil {
		return domain.Coordinate{}, false, err
	}
	loc := resp.Results[0].Geometry.Location
	return domain.Coordinate{Lat: loc.Lat, Lng: loc.Lng}, true, nil
}

// query performs one API request. A nil response with a nil error means
// the API had no result.
func (g *Geocoder) query(ctx context.Context, kind string, params url.Values) (*geocodeResponse, error) {
	if g.apiKey == "" {
		return nil, eris.New("google: api key not configured")
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "google: rate limit")
	}

	start := time.Now()
	resp, err := g.do(ctx, params)
	metrics.GeocodeLatency.WithLabelValues(kind).Observe(time.Since(start).Seconds())

	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
	case resp == nil:
		outcome = "no_result"
	}
	metrics.GeocodeRequests.WithLabelValues(kind, outcome).Inc()
	return resp, err
}

func (g *Geocoder) do(ctx context.Context, params url.Values) (*geocodeResponse, error) {
	params.Set("key", g.apiKey)
	reqURL := g.baseURL + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "google: build request")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "google: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("google: returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "google: read body")
	}

	var out geocodeResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrap(err, "google: parse response")
	}

	switch out.Status {
	case statusOK:
		if len(out.Results) == 0 {
			return nil, nil
		}
		return &out, nil
	case statusZeroResults:
		return nil, nil
	default:
		if out.ErrorMessage != "" {
			return nil, eris.Errorf("google: status %s: %s", out.Status, out.ErrorMessage)
		}
		return nil, eris.Errorf("google: status %s", out.Status)
	}
}
