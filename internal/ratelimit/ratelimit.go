// Package ratelimit implements the jittered, per-class request pacing
// from spec.md §4.A: a lo/hi delay range per request class, plus a
// periodic "thinking pause" inserted by the caller every N parcels.
// A Limiter is per-worker — it coordinates nothing across jobs, since
// at most one job runs at a time (spec.md §5).
package ratelimit

import (
	"context"
	"math/rand"
	"time"
)

// Class names an outbound request category with its own delay range.
type Class string

const (
	ClassPage     Class = "page"
	ClassDocument Class = "document"
)

// Range is an inclusive [Lo, Hi] delay window.
type Range struct {
	Lo time.Duration
	Hi time.Duration
}

// sample returns a uniformly distributed duration in [r.Lo, r.Hi].
func (r Range) sample() time.Duration {
	if r.Hi <= r.Lo {
		return r.Lo
	}
	span := int64(r.Hi - r.Lo)
	return r.Lo + time.Duration(rand.Int63n(span+1))
}

// Limiter emits jittered delays between outbound requests of a given
// class and tracks a per-N "thinking pause" counter.
type Limiter struct {
	ranges      map[Class]Range
	thinkEveryN int
	thinkRange  Range
	parcelCount int
}

// New constructs a Limiter from per-class ranges.
func New(page, document Range, thinkEveryN int, think Range) *Limiter {
	return &Limiter{
		ranges: map[Class]Range{
			ClassPage:     page,
			ClassDocument: document,
		},
		thinkEveryN: thinkEveryN,
		thinkRange:  think,
	}
}

// Wait blocks for a jittered delay in the configured range for class,
// or returns early if ctx is cancelled.
func (l *Limiter) Wait(ctx context.Context, class Class) error {
	r, ok := l.ranges[class]
	if !ok {
		return nil
	}
	return sleepCtx(ctx, r.sample())
}

// AfterParcel is called once per completed parcel. Every ThinkEveryN
// calls it blocks for a long "thinking pause" to further disguise
// throughput, per spec.md §4.A.
func (l *Limiter) AfterParcel(ctx context.Context) error {
	l.parcelCount++
	if l.thinkEveryN <= 0 || l.parcelCount%l.thinkEveryN != 0 {
		return nil
	}
	return sleepCtx(ctx, l.thinkRange.sample())
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
