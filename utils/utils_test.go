package utils

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRetryStopsOnSuccess(t *testing.T) {
	r := &RetryConfig{MaxAttempts: 5, BaseDelay: time.Millisecond, Logger: NewLoggerTo(&bytes.Buffer{})}

	calls := 0
	err := r.Do(context.Background(), "ping", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})

	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestRetryWrapsLastError(t *testing.T) {
	r := &RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond}
	boom := errors.New("boom")

	calls := 0
	err := r.Do(context.Background(), "ping", func(context.Context) error {
		calls++
		return boom
	})

	require.ErrorIs(t, err, boom)
	require.Equal(t, 2, calls)
}

func TestRetryZeroAttemptsRunsOnce(t *testing.T) {
	r := &RetryConfig{}
	calls := 0
	_ = r.Do(context.Background(), "ping", func(context.Context) error {
		calls++
		return errors.New("fail")
	})
	require.Equal(t, 1, calls)
}

func TestRetryHonoursCancelledContext(t *testing.T) {
	r := &RetryConfig{MaxAttempts: 3, BaseDelay: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.Do(ctx, "ping", func(context.Context) error { return errors.New("fail") })
	require.ErrorIs(t, err, context.Canceled)
}

func TestLoggerDebugLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerTo(&buf)
	l.SetLevel("info")
	l.Debug("hidden %d", 1)
	require.Empty(t, buf.String())

	l.SetLevel("DEBUG")
	l.Debug("shown %d", 2)
	require.True(t, strings.Contains(buf.String(), "shown 2"))
}

func TestRunLockIsExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "etl.lock")

	first, err := AcquireRunLock(path)
	require.NoError(t, err)

	_, err = AcquireRunLock(path)
	require.ErrorIs(t, err, ErrRunInProgress)

	require.NoError(t, first.Release())

	again, err := AcquireRunLock(path)
	require.NoError(t, err)
	require.NoError(t, again.Release())
}
