// Package radiobrowser provides a client for the radio-browser.info
// station directory.
package radiobrowser

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/wavehop/wavehop/internal/domain/station"
)

// DefaultMirrors are the public radio-browser API mirrors, tried in order.
var DefaultMirrors = []string{
	"https://de1.api.radio-browser.info",
	"https://nl1.api.radio-browser.info",
	"https://at1.api.radio-browser.info",
}

// DefaultCountries is the curated country list used to build a diverse pool.
var DefaultCountries = []string{
	"The United States Of America",
	"The United Kingdom Of Great Britain And Northern Ireland",
	"Germany",
	"France",
	"Japan",
	"Brazil",
	"India",
	"Australia",
	"Mexico",
	"Nigeria",
}

// Client is a radio-browser directory client with mirror failover.
type Client struct {
	mirrors    []string
	countries  []string
	httpClient *http.Client
	maxRetries int
	retryDelay time.Duration
}

// Config represents directory client configuration.
type Config struct {
	Mirrors    []string
	Countries  []string
	Timeout    time.Duration
	MaxRetries int
}

// apiStation mirrors the station schema returned by the directory API.
type apiStation struct {
	StationUUID string `json:"stationuuid"`
	Name        string `json:"name"`
	Country     string `json:"country"`
	Tags        string `json:"tags"`
	URL         string `json:"url"`
	URLResolved string `json:"url_resolved"`
}

// New creates a new directory client.
func New(cfg Config) *Client {
	mirrors := cfg.Mirrors
	if len(mirrors) == 0 {
		mirrors = DefaultMirrors
	}
	countries := cfg.Countries
	if len(countries) == 0 {
		countries = DefaultCountries
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 2
	}

	return &Client{
		mirrors:    mirrors,
		countries:  countries,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		retryDelay: time.Second,
	}
}

// GetRandomStations retrieves up to count random stations from the directory.
func (c *Client) GetRandomStations(ctx context.Context, count int) ([]station.Station, error) {
	params := url.Values{}
	params.Set("order", "random")
	params.Set("limit", fmt.Sprintf("%d", count))
	params.Set("hidebroken", "true")

	raw, err := c.getStations(ctx, "/json/stations/search", params)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get random stations")
	}
	return DefaultChain().Apply(convertStations(raw)), nil
}

// GetStationsByCountry retrieves up to count random stations for a country.
func (c *Client) GetStationsByCountry(ctx context.Context, country string, count int) ([]station.Station, error) {
	if country == "" {
		return nil, errors.New("country is required")
	}

	params := url.Values{}
	params.Set("country", country)
	params.Set("order", "random")
	params.Set("limit", fmt.Sprintf("%d", count))
	params.Set("hidebroken", "true")

	raw, err := c.getStations(ctx, "/json/stations/search", params)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get stations for country %s", country)
	}
	return DefaultChain().Apply(convertStations(raw)), nil
}

// GetDiverseStations builds a geographically diverse station pool: it fans
// out across the curated country list, tolerates individual per-country
// failures, deduplicates the merged result, backfills with random stations
// when under-filled, then shuffles and truncates to count.
func (c *Client) GetDiverseStations(ctx context.Context, count int) ([]station.Station, error) {
	if count <= 0 {
		return nil, errors.New("count must be positive")
	}

	perCountry := count/len(c.countries) + 1
	var merged []station.Station

	for _, country := range c.countries {
		stations, err := c.GetStationsByCountry(ctx, country, perCountry)
		if err != nil {
			// Partial success: a single failing country must not fail the pool.
			zlog.Warn().Msgf("directory: country fetch failed, skipping: country=%s error=%v", country, err)
			continue
		}
		merged = append(merged, stations...)
	}

	merged = DefaultChain().Apply(merged)

	// Backfill with random stations when the diverse pool came up short.
	if len(merged) < count {
		need := count - len(merged)
		zlog.Debug().Msgf("directory: diverse pool under-filled, backfilling: have=%d need=%d", len(merged), need)

		random, err := c.GetRandomStations(ctx, need*2)
		if err != nil {
			zlog.Warn().Msgf("directory: backfill failed: error=%v", err)
		} else {
			merged = DefaultChain().Apply(append(merged, random...))
		}
	}

	if len(merged) == 0 {
		return nil, errors.New("no stations available from directory")
	}

	rand.Shuffle(len(merged), func(i, j int) {
		merged[i], merged[j] = merged[j], merged[i]
	})
	if len(merged) > count {
		merged = merged[:count]
	}

	return merged, nil
}

// ReportPlay registers a station click with the directory. Best-effort:
// the caller fires it asynchronously and the result never reaches the user.
func (c *Client) ReportPlay(ctx context.Context, stationID string) error {
	if stationID == "" {
		return errors.New("station id is required")
	}
	_, err := c.get(ctx, "/json/url/"+url.PathEscape(stationID), nil)
	if err != nil {
		return errors.Wrap(err, "failed to report play")
	}
	return nil
}

// getStations fetches and decodes a station list endpoint.
func (c *Client) getStations(ctx context.Context, path string, params url.Values) ([]apiStation, error) {
	body, err := c.get(ctx, path, params)
	if err != nil {
		return nil, err
	}

	var stations []apiStation
	if err := json.Unmarshal(body, &stations); err != nil {
		return nil, errors.Wrap(err, "failed to parse response")
	}
	return stations, nil
}

// get performs a GET against the first mirror that answers, retrying
// retryable failures with a linearly growing delay before moving on to
// the next mirror.
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	var lastErr error

	for _, mirror := range c.mirrors {
		reqURL := mirror + path
		if len(params) > 0 {
			reqURL += "?" + params.Encode()
		}

		for attempt := 0; attempt < c.maxRetries; attempt++ {
			body, err := c.getOnce(ctx, reqURL)
			if err == nil {
				return body, nil
			}
			lastErr = err

			if !isRetryable(err) {
				break
			}
			if attempt < c.maxRetries-1 {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(c.retryDelay * time.Duration(attempt+1)):
				}
			}
		}

		zlog.Debug().Msgf("directory: mirror failed, trying next: mirror=%s error=%v", mirror, lastErr)
	}

	return nil, errors.Wrap(lastErr, "all directory mirrors failed")
}

func (c *Client) getOnce(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("User-Agent", "wavehop/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("directory returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}
	return body, nil
}

// isRetryable checks if an error is worth retrying on the same mirror.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "status 5") ||
		strings.Contains(errStr, "status 429") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "EOF")
}

func convertStations(raw []apiStation) []station.Station {
	stations := make([]station.Station, 0, len(raw))
	for _, r := range raw {
		stations = append(stations, station.Station{
			ID:          r.StationUUID,
			Name:        r.Name,
			Country:     r.Country,
			Tags:        station.ParseTags(r.Tags),
			URL:         r.URL,
			ResolvedURL: r.URLResolved,
		})
	}
	return stations
}
