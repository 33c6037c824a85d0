package connection

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBackoffDefaultSequence(t *testing.T) {
	b := NewBackoff()

	expected := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		32 * time.Second,
		60 * time.Second,
		60 * time.Second, // stays at max
	}
	for i, exp := range expected {
		base := b.Current()
		d := b.Next()
		if base != exp {
			t.Errorf("attempt %d: base = %v, want %v", i, base, exp)
		}
		if d < base || d > time.Duration(float64(base)*(1+JitterFactor)) {
			t.Errorf("attempt %d: delay %v outside [%v, +25%%]", i, d, base)
		}
	}
	if b.Attempts() != len(expected) {
		t.Errorf("Attempts() = %d, want %d", b.Attempts(), len(expected))
	}
}

func TestBackoffWithoutJitter(t *testing.T) {
	b := NewBackoffWithConfig(BackoffConfig{
		Initial:    10 * time.Millisecond,
		Max:        35 * time.Millisecond,
		Multiplier: 2,
	})
	for i, want := range []time.Duration{10, 20, 35, 35} {
		if got := b.Next(); got != want*time.Millisecond {
			t.Errorf("Next() #%d = %v, want %v", i, got, want*time.Millisecond)
		}
	}
}

func TestBackoffReset(t *testing.T) {
	b := NewBackoffWithConfig(BackoffConfig{Initial: time.Millisecond})
	b.Next()
	b.Next()
	b.Reset()
	if b.Attempts() != 0 || b.Current() != time.Millisecond {
		t.Errorf("after Reset: attempts %d, current %v", b.Attempts(), b.Current())
	}
}

func TestBackoffConfigDefaults(t *testing.T) {
	b := NewBackoffWithConfig(BackoffConfig{Multiplier: 0.5, Jitter: -1})
	if b.cfg.Initial != InitialBackoff || b.cfg.Max != MaxBackoff || b.cfg.Multiplier != BackoffMultiplier || b.cfg.Jitter != 0 {
		t.Errorf("unexpected config %+v", b.cfg)
	}
}

func TestBackoffWaitHonoursContext(t *testing.T) {
	b := NewBackoffWithConfig(BackoffConfig{Initial: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := b.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() = %v, want context.Canceled", err)
	}

	b = NewBackoffWithConfig(BackoffConfig{Initial: time.Millisecond})
	if err := b.Wait(context.Background()); err != nil {
		t.Errorf("Wait() = %v", err)
	}
}
