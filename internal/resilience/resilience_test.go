package resilience

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastBackoff() Backoff {
	return Backoff{Attempts: 3, Initial: time.Millisecond, Max: 2 * time.Millisecond, Factor: 2}
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	var calls, hooks int
	b := fastBackoff()
	b.OnRetry = func(int, error) { hooks++ }

	v, err := Retry(context.Background(), b, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", NewStatusError("nhtsa", http.StatusServiceUnavailable, nil)
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, hooks)
}

func TestRetry_StopsOnPermanentError(t *testing.T) {
	var calls int
	_, err := Retry(context.Background(), fastBackoff(), func(context.Context) (int, error) {
		calls++
		return 0, NewStatusError("epa", http.StatusNotFound, []byte("no such vehicle"))
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.EqualError(t, err, "epa: status 404: no such vehicle")
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	var calls int
	_, err := Retry(context.Background(), fastBackoff(), func(context.Context) (int, error) {
		calls++
		return 0, io.ErrUnexpectedEOF
	})
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, 3, calls)
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	b := fastBackoff()
	b.Initial = time.Hour
	b.Max = time.Hour
	b.OnRetry = func(int, error) { cancel() }

	var calls int
	_, err := Retry(ctx, b, func(context.Context) (int, error) {
		calls++
		return 0, NewStatusError("nhtsa", http.StatusBadGateway, nil)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestBackoff_Delay(t *testing.T) {
	b := Backoff{Initial: 100 * time.Millisecond, Max: 300 * time.Millisecond, Factor: 2}
	assert.Equal(t, 100*time.Millisecond, b.Delay(0))
	assert.Equal(t, 200*time.Millisecond, b.Delay(1))
	assert.Equal(t, 300*time.Millisecond, b.Delay(5))

	b.Jitter = 0.5
	for i := 0; i < 20; i++ {
		d := b.Delay(0)
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.LessOrEqual(t, d, 150*time.Millisecond)
	}
}

func TestRetryable(t *testing.T) {
	assert.False(t, Retryable(nil))
	assert.False(t, Retryable(errors.New("bad json")))
	assert.False(t, Retryable(context.Canceled))
	assert.False(t, Retryable(eris.Wrap(context.DeadlineExceeded, "nhtsa: decode")))
	assert.True(t, Retryable(eris.Wrap(NewStatusError("nhtsa", 429, nil), "nhtsa: decode")))
	assert.False(t, Retryable(NewStatusError("nhtsa", 400, nil)))
	assert.True(t, Retryable(io.ErrUnexpectedEOF))
}

func TestNewStatusError_TruncatesBody(t *testing.T) {
	body := make([]byte, 1000)
	for i := range body {
		body[i] = 'x'
	}
	se := NewStatusError("epa", 500, body)
	assert.Len(t, se.Body, 256)
}

func TestBreaker_OpensAndRecovers(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewBreaker("nhtsa", 2, time.Minute)
	b.now = func() time.Time { return now }

	fail := func(context.Context) (int, error) { return 0, NewStatusError("nhtsa", 503, nil) }
	ok := func(context.Context) (int, error) { return 1, nil }

	_, _ = Call(context.Background(), b, fail)
	assert.Equal(t, Closed, b.State())
	_, _ = Call(context.Background(), b, fail)
	assert.Equal(t, Open, b.State())

	_, err := Call(context.Background(), b, ok)
	assert.ErrorIs(t, err, ErrBreakerOpen)

	now = now.Add(time.Minute)
	assert.Equal(t, HalfOpen, b.State())
	v, err := Call(context.Background(), b, ok)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.Equal(t, Closed, b.State())
}

func TestBreaker_FailedProbeReopens(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewBreaker("epa", 1, time.Second)
	b.now = func() time.Time { return now }

	fail := func(context.Context) (int, error) { return 0, NewStatusError("epa", 502, nil) }
	_, _ = Call(context.Background(), b, fail)
	require.Equal(t, Open, b.State())

	now = now.Add(time.Second)
	_, _ = Call(context.Background(), b, fail)
	assert.Equal(t, Open, b.State())
}

func TestBreaker_CancelledProbeKeepsHalfOpen(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewBreaker("nhtsa", 1, time.Minute)
	b.now = func() time.Time { return now }

	_, _ = Call(context.Background(), b, func(context.Context) (int, error) {
		return 0, NewStatusError("nhtsa", 503, nil)
	})
	require.Equal(t, Open, b.State())

	now = now.Add(time.Minute)
	for _, cause := range []error{context.Canceled, context.DeadlineExceeded} {
		_, err := Call(context.Background(), b, func(context.Context) (int, error) {
			return 0, eris.Wrap(cause, "nhtsa: get")
		})
		require.ErrorIs(t, err, cause)
		assert.Equal(t, HalfOpen, b.State())
	}

	_, err := Call(context.Background(), b, func(context.Context) (int, error) { return 1, nil })
	require.NoError(t, err)
	assert.Equal(t, Closed, b.State())
}

func TestBreaker_IgnoresPermanentErrors(t *testing.T) {
	b := NewBreaker("nhtsa", 1, time.Minute)
	for i := 0; i < 3; i++ {
		_, err := Call(context.Background(), b, func(context.Context) (int, error) {
			return 0, NewStatusError("nhtsa", 404, nil)
		})
		require.Error(t, err)
	}
	assert.Equal(t, Closed, b.State())
	assert.Equal(t, "closed", b.State().String())
}
