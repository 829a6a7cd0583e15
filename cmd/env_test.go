package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetmarket/vinfill/internal/config"
	"github.com/fleetmarket/vinfill/internal/decode"
)

const f550VPIC = `{"Count":1,"Message":"Results returned successfully","Results":[{
	"VIN":"1FDUF5HT5REC12345","Make":"FORD","Model":"F-550","ModelYear":"2024",
	"Series":"F-550 DRW Super Duty","Trim":"XL","BodyClass":"Incomplete - Chassis Cab (Single Cab)",
	"FuelTypePrimary":"Diesel","DriveType":"4WD/4-Wheel Drive/4x4","EngineModel":"Power Stroke",
	"DisplacementL":"6.7","EngineCylinders":"8","EngineHP":"330",
	"TransmissionStyle":"Automatic","TransmissionSpeeds":"10",
	"GVWR":"Class 5: 16,001 - 19,500 lb (7,258 - 8,845 kg)","WheelBaseShort":"169",
	"TPMS":"Direct","RearVisibilitySystem":"Standard","ErrorCode":"0","ErrorText":"0 - VIN decoded clean."}]}`

// withConfig installs a test config pointing NHTSA at baseURL.
func withConfig(t *testing.T, baseURL string) {
	t.Helper()
	prev := cfg
	t.Cleanup(func() { cfg = prev })
	cfg = &config.Config{
		Store: config.StoreConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "vinfill.db")},
		NHTSA: config.NHTSAConfig{
			BaseURL: baseURL, RateLimit: 100, TimeoutSecs: 5,
			RetryAttempts: 1, BreakerThreshold: 5, BreakerCooldownSecs: 30,
		},
		EPA:    config.EPAConfig{Enabled: false, BaseURL: baseURL},
		Cache:  config.CacheConfig{Size: 16, TTLHours: 24},
		Drafts: config.DraftsConfig{Max: 16, DecodeTimeoutSecs: 5},
		Server: config.ServerConfig{Port: 8080},
		Batch:  config.BatchConfig{Concurrency: 2},
	}
}

func vpicServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(f550VPIC)) //nolint:errcheck
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestInitStore(t *testing.T) {
	withConfig(t, "http://localhost")

	st, err := initStore(context.Background())
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.NoError(t, st.Close())

	cfg.Store.Driver = "none"
	st, err = initStore(context.Background())
	require.NoError(t, err)
	assert.Nil(t, st)

	cfg.Store.Driver = "mongo"
	_, err = initStore(context.Background())
	assert.ErrorContains(t, err, "unsupported store driver")
}

func TestInitDecoder_EndToEnd(t *testing.T) {
	srv := vpicServer(t)
	withConfig(t, srv.URL)

	env, err := initDecoder(context.Background(), "decode")
	require.NoError(t, err)
	defer env.Close()

	res, err := env.Decoder.Decode(context.Background(), "1FDUF5HT5REC12345")
	require.NoError(t, err)
	assert.Equal(t, decode.OriginProvider, res.Origin)

	cached, err := env.Store.GetDecode(context.Background(), "1FDUF5HT5REC12345")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, []string{"nhtsa"}, cached.Sources)
}

func TestInitDecoder_InvalidConfig(t *testing.T) {
	withConfig(t, "not a url")
	_, err := initDecoder(context.Background(), "decode")
	assert.ErrorContains(t, err, "nhtsa.base_url")
}
