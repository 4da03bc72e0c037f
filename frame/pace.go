package frame

import (
	"context"
	"time"
)

// A Pacer decides when the next frame starts.
type Pacer interface {
	// Wait blocks until the next frame may start.
	// It returns early with ctx.Err() if ctx is done.
	Wait(ctx context.Context) error
}

// Uncapped starts every frame as soon as the previous one is presented.
type Uncapped struct{}

func (Uncapped) Wait(ctx context.Context) error { return nil }

// A Ticker starts frames at a fixed rate. Frames that take longer than
// the period are not made up for.
type Ticker struct {
	t *time.Ticker
}

// Every returns a Ticker with period d.
func Every(d time.Duration) *Ticker {
	return &Ticker{t: time.NewTicker(d)}
}

// PerSecond returns a Ticker running at fps frames per second,
// or Uncapped if fps is not positive.
func PerSecond(fps int) Pacer {
	if fps <= 0 {
		return Uncapped{}
	}
	return Every(time.Second / time.Duration(fps))
}

func (t *Ticker) Wait(ctx context.Context) error {
	select {
	case <-t.t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop releases the ticker.
func (t *Ticker) Stop() { t.t.Stop() }
