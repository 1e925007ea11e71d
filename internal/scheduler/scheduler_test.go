package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewInvalidSpec(t *testing.T) {
	for _, spec := range []string{"", "every day", "61 * * * *"} {
		if _, err := New(spec, time.UTC, func(context.Context) error { return nil }, discardLogger()); err == nil {
			t.Errorf("New(%q) expected error", spec)
		}
	}
}

func TestRunFiresOnSchedule(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var calls atomic.Int32
	s, err := New("@every 1s", time.UTC, func(context.Context) error {
		if calls.Add(1) == 2 {
			cancel()
		}
		return errors.New("logged, not fatal")
	}, discardLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		t.Fatal("job did not fire twice before the deadline")
	}
	if got := calls.Load(); got < 2 {
		t.Errorf("job ran %d times, want at least 2", got)
	}
}

func TestRunOnStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	// Once a year, so only the start run happens during the test.
	s, err := New("0 0 1 1 *", time.UTC, func(context.Context) error {
		calls.Add(1)
		cancel()
		return nil
	}, discardLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.SetRunOnStart(true)

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("job ran %d times, want 1", got)
	}
}

func TestRunSkipsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	s, err := New("0 0 1 1 *", time.UTC, func(context.Context) error {
		calls.Add(1)
		return nil
	}, discardLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.SetRunOnStart(true)

	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := calls.Load(); got != 0 {
		t.Errorf("job ran %d times after cancel, want 0", got)
	}
}
