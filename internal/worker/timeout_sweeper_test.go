package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeClock struct{ now time.Time }

func (c fakeClock) Now() time.Time { return c.now }

type fakeSweeper struct {
	calls int
	at    time.Time
	err   error
}

func (f *fakeSweeper) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	f.calls++
	f.at = now
	return 2, f.err
}

func TestSweepUsesClock(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store := &fakeSweeper{}
	w := NewTimeoutSweeper(store, nil, fakeClock{now}, time.Minute, zerolog.Nop())

	w.sweep(context.Background())

	if store.calls != 1 {
		t.Fatalf("sweep calls = %d, want 1", store.calls)
	}
	if !store.at.Equal(now) {
		t.Errorf("sweep time = %v, want %v", store.at, now)
	}
}

func TestSweepSurvivesStoreError(t *testing.T) {
	store := &fakeSweeper{err: errors.New("db down")}
	w := NewTimeoutSweeper(store, nil, fakeClock{time.Now()}, time.Minute, zerolog.Nop())

	// Must not panic; the next tick retries.
	w.sweep(context.Background())
	w.sweep(context.Background())

	if store.calls != 2 {
		t.Errorf("sweep calls = %d, want 2", store.calls)
	}
}
