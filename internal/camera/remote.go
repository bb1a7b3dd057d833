package camera

import (
	"context"
	"fmt"
	"sync"

	"github.com/kozaktomas/attendance/internal/attendance"
)

// Remote is a camera held by a browser. Frames arrive with each capture
// request and go straight to the session, so the device itself never holds a
// burst; Burst only answers captures that came without frames.
type Remote struct {
	maxSize int
	ready   bool

	mu       sync.Mutex
	acquired bool
}

var _ attendance.Device = (*Remote)(nil)

// NewRemote creates a remote camera. ready reports whether the client has
// opened its camera.
func NewRemote(ready bool, maxSize int) *Remote {
	return &Remote{ready: ready, maxSize: maxSize}
}

// Prepare normalizes uploaded frames into a burst.
func (r *Remote) Prepare(frames [][]byte) ([]attendance.Frame, error) {
	burst := make([]attendance.Frame, 0, len(frames))
	for i, data := range frames {
		frame, err := NormalizeFrame(data, r.maxSize)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		burst = append(burst, frame)
	}
	return burst, nil
}

// Acquire implements attendance.Device.
func (r *Remote) Acquire(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.ready {
		return fmt.Errorf("%w: client camera not ready", attendance.ErrDeviceUnavailable)
	}
	r.acquired = true
	return nil
}

// Burst implements attendance.Device. A browser camera cannot be triggered
// from the server.
func (r *Remote) Burst(_ context.Context) ([]attendance.Frame, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.acquired {
		return nil, fmt.Errorf("%w: camera not acquired", attendance.ErrDeviceUnavailable)
	}
	return nil, fmt.Errorf("%w: no frames received from client", attendance.ErrDeviceUnavailable)
}

// Release implements attendance.Device.
func (r *Remote) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.acquired = false
}
