package startup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func TestFibonacci(t *testing.T) {
	next := Fibonacci(time.Millisecond)
	var got []time.Duration
	for i := 0; i < 6; i++ {
		got = append(got, next())
	}
	assert.Equal(t, []time.Duration{1, 1, 2, 3, 5, 8}, scale(got, time.Millisecond))
}

func scale(ds []time.Duration, unit time.Duration) []time.Duration {
	out := make([]time.Duration, len(ds))
	for i, d := range ds {
		out[i] = d / unit
	}
	return out
}

func TestRetry(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 3, time.Microsecond, nil, func(attempt int) error {
		calls++
		if attempt < 3 {
			return errors.New("flaky")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryStopsOnNonRetryable(t *testing.T) {
	calls := 0
	permanent := errors.New("permanent")
	err := Retry(context.Background(), 5, time.Microsecond, func(err error) bool { return !errors.Is(err, permanent) }, func(int) error {
		calls++
		return permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestStartOrdersDependencies(t *testing.T) {
	var started, stopped []string
	dep := func(name string, needs ...string) Func {
		return Func{
			Name:      name,
			Needs:     needs,
			StartFunc: func(context.Context) error { started = append(started, name); return nil },
			StopFunc:  func(context.Context) error { stopped = append(stopped, name); return nil },
		}
	}

	s := NewStartup(noopLogger(), 1)
	s.AddDependency(dep("importer", "store", "keywords"))
	s.AddDependency(dep("store"))
	s.AddDependency(dep("keywords"))

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, []string{"store", "keywords", "importer"}, started)
	assert.Equal(t, StatusStarted, s.Status("importer"))

	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, []string{"keywords", "store", "importer"}, stopped)
}

func TestStartRetriesFailedDependency(t *testing.T) {
	attempts := 0
	s := NewStartup(noopLogger(), 3).WithBackoffUnit(time.Microsecond)
	s.AddDependency(Func{Name: "store", StartFunc: func(context.Context) error {
		attempts++
		if attempts < 2 {
			return errors.New("connection refused")
		}
		return nil
	}})

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, 2, attempts)
}

func TestStartGivesUp(t *testing.T) {
	s := NewStartup(noopLogger(), 2).WithBackoffUnit(time.Microsecond)
	s.AddDependency(Func{Name: "store", StartFunc: func(context.Context) error { return errors.New("down") }})

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "startup failed after 2 attempts")
	assert.Equal(t, StatusFailed, s.Status("store"))
}

func TestStartDetectsCycles(t *testing.T) {
	s := NewStartup(noopLogger(), 1)
	s.AddDependency(Func{Name: "a", Needs: []string{"b"}})
	s.AddDependency(Func{Name: "b", Needs: []string{"a"}})

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}
