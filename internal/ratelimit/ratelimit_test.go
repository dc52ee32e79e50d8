package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestWaitRespectsRange(t *testing.T) {
	l := New(Range{Lo: 10 * time.Millisecond, Hi: 20 * time.Millisecond}, Range{Lo: 0, Hi: 0}, 0, Range{})

	start := time.Now()
	if err := l.Wait(context.Background(), ClassPage); err != nil {
		t.Fatalf("wait error: %v", err)
	}
	elapsed := time.Since(start)
	if elapsed < 10*time.Millisecond {
		t.Errorf("expected delay >= 10ms, got %v", elapsed)
	}
	if elapsed > 200*time.Millisecond {
		t.Errorf("delay suspiciously long: %v", elapsed)
	}
}

func TestWaitUnknownClassIsNoop(t *testing.T) {
	l := New(Range{}, Range{}, 0, Range{})
	start := time.Now()
	if err := l.Wait(context.Background(), Class("bogus")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Since(start) > 50*time.Millisecond {
		t.Errorf("unknown class should not delay")
	}
}

func TestWaitCancelledContext(t *testing.T) {
	l := New(Range{Lo: time.Second, Hi: time.Second}, Range{}, 0, Range{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := l.Wait(ctx, ClassPage)
	if err == nil {
		t.Fatal("expected context cancellation error")
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Errorf("cancelled wait should return immediately")
	}
}

func TestAfterParcelThinkingPause(t *testing.T) {
	l := New(Range{}, Range{}, 3, Range{Lo: 5 * time.Millisecond, Hi: 5 * time.Millisecond})

	for i := 0; i < 2; i++ {
		start := time.Now()
		if err := l.AfterParcel(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if time.Since(start) > 2*time.Millisecond {
			t.Errorf("parcel %d should not trigger a thinking pause", i+1)
		}
	}

	start := time.Now()
	if err := l.AfterParcel(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 5*time.Millisecond {
		t.Errorf("3rd parcel should trigger a thinking pause, elapsed %v", elapsed)
	}
}

func TestAfterParcelDisabled(t *testing.T) {
	l := New(Range{}, Range{}, 0, Range{Lo: time.Second, Hi: time.Second})
	start := time.Now()
	for i := 0; i < 10; i++ {
		if err := l.AfterParcel(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if time.Since(start) > 50*time.Millisecond {
		t.Errorf("think_every_n=0 should disable thinking pauses entirely")
	}
}
