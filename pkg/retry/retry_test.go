package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), DefaultConfig(), func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	cfg := Config{
		MaxAttempts:  5,
		InitialDelay: 1 * time.Millisecond,
		MaxDelay:     10 * time.Millisecond,
		Multiplier:   2.0,
	}
	err := Do(context.Background(), cfg, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	cfg := Config{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
	base := errors.New("always fails")
	err := Do(context.Background(), cfg, func() error {
		calls++
		return base
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	if !errors.Is(err, base) {
		t.Errorf("expected wrapped base error, got %v", err)
	}
}

func TestDo_NonRetryableStopsImmediately(t *testing.T) {
	calls := 0
	cfg := Config{
		MaxAttempts:  5,
		InitialDelay: 1 * time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
	base := errors.New("bad request")
	err := Do(context.Background(), cfg, func() error {
		calls++
		return NonRetryable(base)
	})
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if !IsNonRetryable(err) {
		t.Errorf("expected non-retryable error, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Errorf("expected wrapped base error, got %v", err)
	}
}

func TestDo_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{
		MaxAttempts:  10,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
	}
	calls := 0
	err := Do(ctx, cfg, func() error {
		calls++
		cancel()
		return errors.New("transient")
	})
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call before cancellation, got %d", calls)
	}
}

func TestDo_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"negative initial delay", Config{InitialDelay: -1}},
		{"negative max delay", Config{MaxDelay: -1}},
		{"negative multiplier", Config{Multiplier: -1}},
		{"max delay below initial", Config{InitialDelay: time.Second, MaxDelay: time.Millisecond}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Do(context.Background(), tt.cfg, func() error { return nil })
			if err == nil {
				t.Error("expected config validation error")
			}
		})
	}
}

func TestDo_ZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Config{}, func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDoWithResult(t *testing.T) {
	cfg := Config{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
	calls := 0
	result, err := DoWithResult(context.Background(), cfg, func() (string, error) {
		calls++
		if calls < 2 {
			return "", errors.New("transient")
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "ok" {
		t.Errorf("expected ok, got %q", result)
	}
}

func TestPresets(t *testing.T) {
	if q := Quick(); q.MaxAttempts != 10 || q.InitialDelay != 50*time.Millisecond {
		t.Errorf("unexpected Quick preset: %+v", q)
	}
	if p := Persistent(); p.MaxAttempts != 30 || p.MaxDelay != 10*time.Second {
		t.Errorf("unexpected Persistent preset: %+v", p)
	}
}
