package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTicker counts ticks and can hold a tick open until the test says so.
type fakeTicker struct {
	mu      sync.Mutex
	calls   int
	entered chan struct{}
	proceed chan struct{}
	err     error
}

func (f *fakeTicker) OnTick(ctx context.Context, now time.Time) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.proceed != nil {
		<-f.proceed
	}
	return f.err
}

func (f *fakeTicker) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// grantedLease hands out the lease unconditionally and records releases.
type grantedLease struct {
	mu       sync.Mutex
	releases int
}

func (g *grantedLease) acquire(ctx context.Context) (func(), bool, error) {
	return func() {
		g.mu.Lock()
		g.releases++
		g.mu.Unlock()
	}, true, nil
}

func (g *grantedLease) releaseCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.releases
}

func TestTickSkippedWhileStillRunning(t *testing.T) {
	tk := &fakeTicker{
		entered: make(chan struct{}),
		proceed: make(chan struct{}),
	}
	lease := &grantedLease{}
	s := New(nil, tk)
	s.acquireLease = lease.acquire

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.job.Run()
	}()
	<-tk.entered

	// The next minute fires while the first tick is still dispatching; it
	// must return without ticking again.
	s.job.Run()
	assert.Equal(t, 1, tk.callCount())

	close(tk.proceed)
	<-done
	assert.Equal(t, 1, tk.callCount())
	assert.Equal(t, 1, lease.releaseCount())

	// With the first tick finished the job runs again.
	tk.entered, tk.proceed = nil, nil
	s.job.Run()
	assert.Equal(t, 2, tk.callCount())
}

func TestTickSkippedWithoutLease(t *testing.T) {
	tk := &fakeTicker{}
	s := New(nil, tk)
	s.acquireLease = func(ctx context.Context) (func(), bool, error) {
		return nil, false, nil
	}

	s.job.Run()
	assert.Zero(t, tk.callCount())
}

func TestTickSkippedOnLeaseError(t *testing.T) {
	tk := &fakeTicker{}
	s := New(nil, tk)
	s.acquireLease = func(ctx context.Context) (func(), bool, error) {
		return nil, false, errors.New("connection reset")
	}

	s.job.Run()
	assert.Zero(t, tk.callCount())
}

func TestLeaseReleasedAfterFailedTick(t *testing.T) {
	tk := &fakeTicker{err: errors.New("dispatch exploded")}
	lease := &grantedLease{}
	s := New(nil, tk)
	s.acquireLease = lease.acquire

	s.job.Run()
	require.Equal(t, 1, tk.callCount())
	assert.Equal(t, 1, lease.releaseCount())
}

func TestFieldsFrom(t *testing.T) {
	fields := fieldsFrom([]interface{}{"now", "2026-03-14", "entries", 3})
	assert.Equal(t, map[string]interface{}{"now": "2026-03-14", "entries": 3}, fields)

	// Odd trailing value and non-string keys are dropped rather than panicking.
	fields = fieldsFrom([]interface{}{"key", "value", 42, "ignored", "dangling"})
	assert.Equal(t, map[string]interface{}{"key": "value"}, fields)
}
