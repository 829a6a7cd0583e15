// Package nhtsa is a client for the NHTSA vPIC VIN decoder.
package nhtsa

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/fleetmarket/vinfill/internal/resilience"
)

const defaultBaseURL = "https://vpic.nhtsa.dot.gov"

// ErrNoResults is returned when vPIC answers without a result row.
var ErrNoResults = eris.New("nhtsa: no results")

// Client decodes VINs.
type Client interface {
	DecodeVIN(ctx context.Context, vin string) (*Decoded, error)
}

// Decoded holds the vPIC variables vinfill uses, as reported. vPIC sends
// every value as a string and uses "" for unknown.
type Decoded struct {
	VIN                string
	Make               string
	Model              string
	ModelYear          string
	Series             string
	Trim               string
	BodyClass          string
	VehicleType        string
	FuelTypePrimary    string
	DriveType          string
	EngineModel        string
	DisplacementL      string
	EngineCylinders    string
	EngineHP           string
	TransmissionStyle  string
	TransmissionSpeeds string
	GVWR               string
	WheelBase          string
	Axles              string
	AxleConfiguration  string
	BatteryV           string
	CurbWeightLB       string
	Seats              string
	TPMS               string
	BackupCamera       string
	ErrorCode          string
	ErrorText          string
}

// vPIC variable name for each Decoded field.
var variables = []struct {
	key string
	dst func(*Decoded) *string
}{
	{"VIN", func(d *Decoded) *string { return &d.VIN }},
	{"Make", func(d *Decoded) *string { return &d.Make }},
	{"Model", func(d *Decoded) *string { return &d.Model }},
	{"ModelYear", func(d *Decoded) *string { return &d.ModelYear }},
	{"Series", func(d *Decoded) *string { return &d.Series }},
	{"Trim", func(d *Decoded) *string { return &d.Trim }},
	{"BodyClass", func(d *Decoded) *string { return &d.BodyClass }},
	{"VehicleType", func(d *Decoded) *string { return &d.VehicleType }},
	{"FuelTypePrimary", func(d *Decoded) *string { return &d.FuelTypePrimary }},
	{"DriveType", func(d *Decoded) *string { return &d.DriveType }},
	{"EngineModel", func(d *Decoded) *string { return &d.EngineModel }},
	{"DisplacementL", func(d *Decoded) *string { return &d.DisplacementL }},
	{"EngineCylinders", func(d *Decoded) *string { return &d.EngineCylinders }},
	{"EngineHP", func(d *Decoded) *string { return &d.EngineHP }},
	{"TransmissionStyle", func(d *Decoded) *string { return &d.TransmissionStyle }},
	{"TransmissionSpeeds", func(d *Decoded) *string { return &d.TransmissionSpeeds }},
	{"GVWR", func(d *Decoded) *string { return &d.GVWR }},
	{"WheelBaseShort", func(d *Decoded) *string { return &d.WheelBase }},
	{"Axles", func(d *Decoded) *string { return &d.Axles }},
	{"AxleConfiguration", func(d *Decoded) *string { return &d.AxleConfiguration }},
	{"BatteryV", func(d *Decoded) *string { return &d.BatteryV }},
	{"CurbWeightLB", func(d *Decoded) *string { return &d.CurbWeightLB }},
	{"Seats", func(d *Decoded) *string { return &d.Seats }},
	{"TPMS", func(d *Decoded) *string { return &d.TPMS }},
	{"RearVisibilitySystem", func(d *Decoded) *string { return &d.BackupCamera }},
	{"ErrorCode", func(d *Decoded) *string { return &d.ErrorCode }},
	{"ErrorText", func(d *Decoded) *string { return &d.ErrorText }},
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

// WithBreaker sets the circuit breaker.
func WithBreaker(b *resilience.Breaker) Option {
	return func(c *httpClient) { c.breaker = b }
}

type httpClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	backoff resilience.Backoff
	breaker *resilience.Breaker
}

// NewClient returns a vPIC client. vPIC asks callers to stay well under
// its automated-traffic threshold, so the default is 5 requests a second.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 20 * time.Second},
		limiter: rate.NewLimiter(5, 5),
		backoff: resilience.DefaultBackoff(),
		breaker: resilience.NewBreaker("nhtsa", 5, 30*time.Second),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.backoff.OnRetry == nil {
		c.backoff.OnRetry = resilience.LogRetries("nhtsa", "decode_vin")
	}
	return c
}

func (c *httpClient) DecodeVIN(ctx context.Context, vin string) (*Decoded, error) {
	reqURL := fmt.Sprintf("%s/api/vehicles/DecodeVinValuesExtended/%s?format=json", c.baseURL, url.PathEscape(vin))

	body, err := resilience.Call(ctx, c.breaker, func(ctx context.Context) ([]byte, error) {
		return resilience.Retry(ctx, c.backoff, func(ctx context.Context) ([]byte, error) {
			return c.get(ctx, reqURL)
		})
	})
	if err != nil {
		return nil, eris.Wrapf(err, "nhtsa: decode %s", vin)
	}
	return parseDecoded(body)
}

func (c *httpClient) get(ctx context.Context, reqURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "nhtsa: rate limiter")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "nhtsa: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "nhtsa: read body")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, resilience.NewStatusError("nhtsa", resp.StatusCode, body)
	}
	return body, nil
}

func parseDecoded(body []byte) (*Decoded, error) {
	if !gjson.ValidBytes(body) {
		return nil, eris.New("nhtsa: invalid json")
	}
	row := gjson.GetBytes(body, "Results.0")
	if !row.Exists() || !row.IsObject() {
		return nil, ErrNoResults
	}
	d := &Decoded{}
	for _, v := range variables {
		*v.dst(d) = row.Get(v.key).String()
	}
	return d, nil
}
