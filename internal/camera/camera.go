// Package camera provides the capture devices used by attendance sessions.
package camera

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/kozaktomas/attendance/internal/attendance"
)

// Options configure a Camera burst.
type Options struct {
	Frames   int
	Interval time.Duration
	MaxSize  int
	LockFile string // empty disables the device lock
}

// Camera takes bursts from a Source. While acquired it holds an exclusive
// lock on LockFile so two sessions cannot share one physical camera.
type Camera struct {
	source Source
	opts   Options
	lock   *flock.Flock

	mu   sync.Mutex
	held bool
}

var _ attendance.Device = (*Camera)(nil)

// New creates a camera over source.
func New(source Source, opts Options) *Camera {
	if opts.Frames <= 0 {
		opts.Frames = 1
	}
	c := &Camera{source: source, opts: opts}
	if opts.LockFile != "" {
		c.lock = flock.New(opts.LockFile)
	}
	return c
}

// Acquire takes the device lock and checks that the source answers.
func (c *Camera) Acquire(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.held {
		return nil
	}
	if c.lock != nil {
		ok, err := c.lock.TryLock()
		if err != nil {
			return fmt.Errorf("%w: lock %s: %w", attendance.ErrDeviceUnavailable, c.opts.LockFile, err)
		}
		if !ok {
			return fmt.Errorf("%w: camera in use (%s)", attendance.ErrDeviceUnavailable, c.opts.LockFile)
		}
	}

	if _, err := c.source.Grab(ctx); err != nil {
		c.unlock()
		return fmt.Errorf("%w: %w", attendance.ErrDeviceUnavailable, err)
	}

	c.held = true
	return nil
}

// Burst grabs Options.Frames stills spaced by Options.Interval.
func (c *Camera) Burst(ctx context.Context) ([]attendance.Frame, error) {
	c.mu.Lock()
	held := c.held
	c.mu.Unlock()
	if !held {
		return nil, fmt.Errorf("%w: camera not acquired", attendance.ErrDeviceUnavailable)
	}

	frames := make([]attendance.Frame, 0, c.opts.Frames)
	for i := range c.opts.Frames {
		if i > 0 && c.opts.Interval > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.opts.Interval):
			}
		}
		data, err := c.source.Grab(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: frame %d: %w", attendance.ErrDeviceUnavailable, i, err)
		}
		frame, err := NormalizeFrame(data, c.opts.MaxSize)
		if err != nil {
			return nil, fmt.Errorf("%w: frame %d: %w", attendance.ErrDeviceUnavailable, i, err)
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

// Release drops the device lock. A burst still running finishes on its own.
func (c *Camera) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.held {
		return
	}
	c.held = false
	c.unlock()
}

func (c *Camera) unlock() {
	if c.lock == nil {
		return
	}
	_ = c.lock.Unlock()
}
