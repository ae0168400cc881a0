package playback

import (
	"context"
	"sync"
	"time"
)

// Clock is a looping frame counter.
//
// All exported methods are safe for concurrent use.
type Clock struct {
	mu         sync.RWMutex
	start, end float64
	frame      float64

	retime chan time.Duration
}

// New returns a Clock positioned at start.
func New(start, end float64) *Clock {
	if end < start {
		end = start
	}
	return &Clock{start: start, end: end, frame: start, retime: make(chan time.Duration, 1)}
}

// Current returns the current frame.
func (c *Clock) Current() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.frame
}

// Range returns the playback range.
func (c *Clock) Range() (start, end float64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.start, c.end
}

// Advance moves one frame forward, wrapping from end back to start, and
// returns the new frame.
func (c *Clock) Advance() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frame++
	if c.frame > c.end {
		c.frame = c.start
	}
	return c.frame
}

// Seek jumps to frame. Frames outside the range are allowed; the next
// Advance wraps back into it.
func (c *Clock) Seek(frame float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frame = frame
}

// SetRange changes the playback range, keeping the current frame when it is
// still inside.
func (c *Clock) SetRange(start, end float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if end < start {
		end = start
	}
	c.start, c.end = start, end
	if c.frame < start || c.frame > end {
		c.frame = start
	}
}

// SetInterval changes the tick interval of a running Run loop. Only the most
// recent pending value is kept.
func (c *Clock) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	for {
		select {
		case c.retime <- d:
			return
		default:
		}
		select {
		case <-c.retime:
		default:
		}
	}
}

// Run advances the clock every interval and calls onTick with the new frame.
// It blocks until ctx is cancelled.
func (c *Clock) Run(ctx context.Context, interval time.Duration, onTick func(frame float64)) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case d := <-c.retime:
			t.Reset(d)
		case <-t.C:
			f := c.Advance()
			if onTick != nil {
				onTick(f)
			}
		}
	}
}

// Interval converts a frame duration in seconds to a ticker interval,
// never shorter than one millisecond.
func Interval(frameDuration float64) time.Duration {
	d := time.Duration(frameDuration * float64(time.Second))
	if d < time.Millisecond {
		d = time.Millisecond
	}
	return d
}
