package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/fleetmarket/vinfill/internal/decode"
	"github.com/fleetmarket/vinfill/internal/payload"
)

type decoderFunc func(ctx context.Context, vin string) (decode.Result, error)

func (f decoderFunc) Decode(ctx context.Context, vin string) (decode.Result, error) { return f(ctx, vin) }

func staticDecoder(t *testing.T, raw map[string]any) decoderFunc {
	t.Helper()
	p, err := payload.FromMap(raw)
	require.NoError(t, err)
	return func(_ context.Context, vin string) (decode.Result, error) {
		return decode.Result{VIN: vin, Payload: p, Origin: decode.OriginMemory}, nil
	}
}

func TestDecodeReport(t *testing.T) {
	dec := staticDecoder(t, map[string]any{
		"year": 2023, "make": "Ram", "model": "ProMaster 3500",
		"overallHeight": 101, "wheelbase": "long",
	})

	rep, err := decodeReport(context.Background(), dec, "3C6URVJG8PE512345")
	require.NoError(t, err)
	assert.Equal(t, "Ram", rep.Fields["make"].Text)
	assert.Equal(t, "High Roof", rep.Fields["heightType"].Text)
	assert.Equal(t, []string{"heightType", "make", "model", "year"}, rep.Outcome.Provenance.Fields())
	require.Len(t, rep.Outcome.Skipped, 1)
	assert.Equal(t, "wheelbase", rep.Outcome.Skipped[0].Field)
}

func TestDecodeReport_Error(t *testing.T) {
	dec := decoderFunc(func(context.Context, string) (decode.Result, error) {
		return decode.Result{}, errors.New("nhtsa: status 503")
	})
	_, err := decodeReport(context.Background(), dec, "3C6URVJG8PE512345")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode 3C6URVJG8PE512345")
}

func TestRender(t *testing.T) {
	v := map[string]any{"vin": "3C6URVJG8PE512345", "fields": map[string]any{"year": 2023}}

	var buf bytes.Buffer
	require.NoError(t, render(&buf, "json", v))
	assert.JSONEq(t, `{"vin":"3C6URVJG8PE512345","fields":{"year":2023}}`, buf.String())

	buf.Reset()
	require.NoError(t, render(&buf, "yaml", v))
	var back map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &back))
	assert.Equal(t, "3C6URVJG8PE512345", back["vin"])

	assert.ErrorContains(t, render(&buf, "xml", v), "unknown format")
}

func TestRender_ReportJSON(t *testing.T) {
	dec := staticDecoder(t, map[string]any{"make": "Ford", payload.KeyDataSources: []string{"nhtsa"}})
	rep, err := decodeReport(context.Background(), dec, "1FDUF5HT5REC12345")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, render(&buf, "json", rep))

	var out struct {
		Decode struct {
			Payload map[string]any `json:"payload"`
		} `json:"decode"`
		Fields map[string]any `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "Ford", out.Decode.Payload["make"])
	assert.Equal(t, "Ford", out.Fields["make"])
}
