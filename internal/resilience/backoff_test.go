package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestBackoffConfig_Delay_Growth(t *testing.T) {
	cfg := BackoffConfig{
		Base:       100 * time.Millisecond,
		Max:        10 * time.Second,
		Multiplier: 2.0,
	}

	expected := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
	}
	for i, want := range expected {
		if got := cfg.Delay(i); got != want {
			t.Errorf("Delay(%d) = %v, want %v", i, got, want)
		}
	}
}

func TestBackoffConfig_Delay_NonDecreasing(t *testing.T) {
	cfg := DefaultBackoffConfig()

	prev := time.Duration(0)
	for i := 0; i < 20; i++ {
		d := cfg.Delay(i)
		if d < prev {
			t.Fatalf("Delay(%d) = %v decreased from %v", i, d, prev)
		}
		prev = d
	}
}

func TestBackoffConfig_Delay_Capped(t *testing.T) {
	cfg := BackoffConfig{
		Base:       1 * time.Second,
		Max:        10 * time.Second,
		Multiplier: 2.0,
	}

	if got := cfg.Delay(10); got != 10*time.Second {
		t.Errorf("Delay(10) = %v, want cap of 10s", got)
	}
	// Large failure counts overflow the float math; still capped.
	if got := cfg.Delay(1000); got != 10*time.Second {
		t.Errorf("Delay(1000) = %v, want cap of 10s", got)
	}
}

func TestBackoffConfig_Wait_Cancellation(t *testing.T) {
	cfg := BackoffConfig{
		Base:       time.Hour,
		Max:        time.Hour,
		Multiplier: 2.0,
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := cfg.Wait(ctx, 0); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait on cancelled context = %v, want context.Canceled", err)
	}
}

func TestIsPermissionDenied(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{ErrPermissionDenied, true},
		{fmt.Errorf("starting recognizer: %w", ErrPermissionDenied), true},
		{errors.New("microphone permission denied by user"), true},
		{errors.New("recognition error: not-allowed"), true},
		{errors.New("401 invalid api key"), true},
		{errors.New("connection reset by peer"), false},
		{errors.New("no speech detected"), false},
	}

	for _, tt := range tests {
		if got := IsPermissionDenied(tt.err); got != tt.want {
			t.Errorf("IsPermissionDenied(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
