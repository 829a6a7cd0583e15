// Package epa looks up fuel economy on fueleconomy.gov.
package epa

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/fleetmarket/vinfill/internal/resilience"
)

const defaultBaseURL = "https://www.fueleconomy.gov"

// Client finds EPA ratings for a year/make/model.
type Client interface {
	// Lookup returns nil, nil when the EPA has no rated vehicle, which is
	// the norm above 8,500 lb GVWR.
	Lookup(ctx context.Context, year int, makeName, model string) (*Economy, error)
}

// Economy is the EPA rating of one vehicle configuration.
type Economy struct {
	ID           string
	Description  string
	MPGCity      float64
	MPGHighway   float64
	MPGCombined  float64
	FuelType     string
	Drive        string
	Transmission string
	// ATVType is the alternative fuel class, such as "EV" or "Hybrid".
	ATVType string
}

// MPGe returns the combined miles-per-gallon-equivalent for plug-in
// vehicles, whose comb08 is already expressed that way.
func (e *Economy) MPGe() (float64, bool) {
	switch e.ATVType {
	case "EV", "Plug-in Hybrid":
		return e.MPGCombined, e.MPGCombined > 0
	}
	return 0, false
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL points the client at another host (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithRateLimit caps requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithBackoff sets the retry policy.
func WithBackoff(b resilience.Backoff) Option {
	return func(c *httpClient) { c.backoff = b }
}

type httpClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	backoff resilience.Backoff
}

// NewClient returns a fueleconomy.gov client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
		limiter: rate.NewLimiter(10, 10),
		backoff: resilience.DefaultBackoff(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.backoff.OnRetry == nil {
		c.backoff.OnRetry = resilience.LogRetries("epa", "lookup")
	}
	return c
}

type option struct {
	text  string
	value string
}

func (c *httpClient) Lookup(ctx context.Context, year int, makeName, model string) (*Economy, error) {
	q := url.Values{}
	q.Set("year", strconv.Itoa(year))
	q.Set("make", makeName)
	q.Set("model", model)

	body, err := c.fetch(ctx, "/ws/rest/vehicle/menu/options?"+q.Encode())
	if err != nil {
		return nil, eris.Wrapf(err, "epa: options %d %s %s", year, makeName, model)
	}
	opts := parseOptions(body)
	if len(opts) == 0 {
		return nil, nil
	}

	// The first option is the base configuration; dealers refine later.
	id := opts[0].value
	body, err = c.fetch(ctx, "/ws/rest/vehicle/"+url.PathEscape(id))
	if err != nil {
		return nil, eris.Wrapf(err, "epa: vehicle %s", id)
	}
	econ, err := parseVehicle(body)
	if err != nil {
		return nil, err
	}
	econ.Description = opts[0].text
	return econ, nil
}

func (c *httpClient) fetch(ctx context.Context, path string) ([]byte, error) {
	return resilience.Retry(ctx, c.backoff, func(ctx context.Context) ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "epa: rate limiter")
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return nil, eris.Wrap(err, "epa: create request")
		}
		// The service answers XML unless asked otherwise.
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close() //nolint:errcheck

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "epa: read body")
		}
		if resp.StatusCode == http.StatusNoContent {
			return nil, nil
		}
		if resp.StatusCode != http.StatusOK {
			return nil, resilience.NewStatusError("epa", resp.StatusCode, body)
		}
		return body, nil
	})
}

// parseOptions reads menuItem, which the service sends as an object when
// there is exactly one match and as an array otherwise.
func parseOptions(body []byte) []option {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return nil
	}
	items := gjson.GetBytes(body, "menuItem")
	var out []option
	add := func(r gjson.Result) {
		if v := r.Get("value").String(); v != "" {
			out = append(out, option{text: r.Get("text").String(), value: v})
		}
	}
	switch {
	case items.IsArray():
		for _, r := range items.Array() {
			add(r)
		}
	case items.IsObject():
		add(items)
	}
	return out
}

func parseVehicle(body []byte) (*Economy, error) {
	if !gjson.ValidBytes(body) {
		return nil, eris.New("epa: invalid vehicle json")
	}
	v := gjson.ParseBytes(body)
	if !v.IsObject() {
		return nil, eris.New("epa: vehicle is not an object")
	}
	return &Economy{
		ID:           v.Get("id").String(),
		MPGCity:      number(v.Get("city08")),
		MPGHighway:   number(v.Get("highway08")),
		MPGCombined:  number(v.Get("comb08")),
		FuelType:     v.Get("fuelType1").String(),
		Drive:        v.Get("drive").String(),
		Transmission: v.Get("trany").String(),
		ATVType:      strings.TrimSpace(v.Get("atvType").String()),
	}, nil
}

// number reads a value the service may send as either a JSON number or a
// numeric string.
func number(r gjson.Result) float64 {
	if r.Type == gjson.Number {
		return r.Float()
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(r.String()), 64)
	if err != nil {
		return 0
	}
	return f
}

// String implements fmt.Stringer for logs.
func (e *Economy) String() string {
	return fmt.Sprintf("epa:%s %.0f/%.0f mpg", e.ID, e.MPGCity, e.MPGHighway)
}
