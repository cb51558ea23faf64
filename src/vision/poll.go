package vision

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"kakao-autopilot/src/screenshot"
	"kakao-autopilot/src/timing"
)

// Polling re-runs a strategy on a fixed interval until it succeeds or the timeout elapses.
// Any error other than context cancellation is treated as transient and retried.
type Polling struct {
	Strategy Strategy
	Interval time.Duration
	Timeout  time.Duration
	Clock    timing.Clock
}

func (p Polling) Name() string { return p.Strategy.Name() }

func (p Polling) Locate(ctx context.Context, region screenshot.Region) (Candidate, error) {
	clock := p.Clock
	if clock == nil {
		clock = timing.RealClock{}
	}
	interval := p.Interval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	deadline := clock.Now().Add(p.Timeout)
	attempts := 0
	var lastErr error
	for {
		attempts++
		cand, err := p.Strategy.Locate(ctx, region)
		if err == nil {
			return cand, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Candidate{}, err
		}
		lastErr = err
		if !errors.Is(err, ErrNotFound) {
			log.Printf("vision: %s attempt %d transient error: %v", p.Strategy.Name(), attempts, err)
		}
		if !clock.Now().Add(interval).Before(deadline) {
			break
		}
		clock.Sleep(interval)
		if err := ctx.Err(); err != nil {
			return Candidate{}, err
		}
	}
	return Candidate{}, fmt.Errorf("%w: %s after %d attempts: %v", ErrTimeout, p.Strategy.Name(), attempts, lastErr)
}
