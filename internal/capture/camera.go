package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/lehigh-university-libraries/scanstudy/internal/models"
)

// Facing selects the front ("user") or rear ("environment") camera
type Facing string

const (
	FacingUser        Facing = "user"
	FacingEnvironment Facing = "environment"
)

// ParseFacing validates a facing string
func ParseFacing(s string) (Facing, error) {
	switch Facing(s) {
	case FacingUser, FacingEnvironment:
		return Facing(s), nil
	case "":
		return FacingEnvironment, nil
	default:
		return "", fmt.Errorf("invalid camera facing %q (must be 'user' or 'environment')", s)
	}
}

// Stream is an open camera. It holds the hardware until Close is called.
type Stream interface {
	Snapshot(ctx context.Context) (*models.CapturedImage, error)
	Close() error
}

// Device opens camera streams. Open may block until the host grants or
// denies access; it must return a *PermissionError on denial and a
// *DeviceError for any device-level failure.
type Device interface {
	Open(ctx context.Context, facing Facing) (Stream, error)
}

// ErrNoStream is returned when capturing without an open camera
var ErrNoStream = errors.New("camera is not open")

// WithStream opens a stream, runs fn and releases the stream on every exit path
func WithStream(ctx context.Context, device Device, facing Facing, fn func(Stream) error) (err error) {
	stream, err := device.Open(ctx, facing)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := stream.Close(); cerr != nil {
			slog.Warn("Failed to release camera", "facing", facing, "err", cerr)
		}
	}()
	return fn(stream)
}

// CaptureFromCamera takes a single still from the requested camera
func CaptureFromCamera(ctx context.Context, device Device, facing Facing) (*models.CapturedImage, error) {
	var captured *models.CapturedImage
	err := WithStream(ctx, device, facing, func(s Stream) error {
		img, err := s.Snapshot(ctx)
		if err != nil {
			return err
		}
		captured = img
		return nil
	})
	if err != nil {
		return nil, err
	}
	return captured, nil
}

// ErrCancelled is returned by Start and Capture when Cancel or another Start
// preempted them while the device was busy
var ErrCancelled = errors.New("camera request cancelled")

// Camera keeps at most one stream open and guarantees it is released on
// capture, cancel and device switch. The lock is never held while the device
// opens or takes a picture, so Cancel always returns promptly.
type Camera struct {
	device Device

	mu     sync.Mutex
	ticket uint64
	cancel context.CancelFunc // aborts the pending open or snapshot
	busy   chan struct{}      // closed once the pending open or snapshot has settled
	stream Stream
	facing Facing
}

// NewCamera wraps a device
func NewCamera(device Device) *Camera {
	return &Camera{device: device}
}

// Start tears down any open stream and opens the requested camera. The
// returned ticket identifies the stream for Release.
func (c *Camera) Start(ctx context.Context, facing Facing) (uint64, error) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	defer close(done)

	c.mu.Lock()
	old, oldFacing, pending := c.detachLocked()
	ticket := c.ticket
	c.cancel = cancel
	c.busy = done
	c.mu.Unlock()

	closeStream(old, oldFacing)
	// the previous open or snapshot must settle before the device is opened again
	if pending != nil {
		select {
		case <-pending:
		case <-ctx.Done():
		}
	}

	var (
		stream Stream
		err    = ctx.Err()
	)
	if err == nil {
		stream, err = c.device.Open(ctx, facing)
		if err == nil && stream == nil {
			err = &DeviceError{Facing: facing, Err: errors.New("device returned no stream")}
		}
	}

	c.mu.Lock()
	if c.ticket != ticket {
		c.mu.Unlock()
		cancel()
		if err == nil {
			closeStream(stream, facing)
		}
		return 0, ErrCancelled
	}
	c.busy = nil
	if err != nil {
		c.cancel = nil
		c.mu.Unlock()
		cancel()
		return 0, err
	}
	c.stream = stream
	c.facing = facing
	c.mu.Unlock()

	slog.Info("Camera opened", "facing", facing)
	return ticket, nil
}

// Switch reopens the camera with the other facing
func (c *Camera) Switch(ctx context.Context, facing Facing) (uint64, error) {
	return c.Start(ctx, facing)
}

// Capture takes a still from the open stream and releases the camera
func (c *Camera) Capture(ctx context.Context) (*models.CapturedImage, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	if c.stream == nil {
		c.mu.Unlock()
		return nil, ErrNoStream
	}
	stream, facing, ticket := c.stream, c.facing, c.ticket
	openCancel := c.cancel
	done := make(chan struct{})
	c.stream = nil
	c.busy = done
	c.cancel = func() {
		cancel()
		if openCancel != nil {
			openCancel()
		}
	}
	c.mu.Unlock()

	defer func() {
		closeStream(stream, facing)
		close(done)
	}()

	img, err := stream.Snapshot(ctx)

	c.mu.Lock()
	if c.ticket != ticket {
		c.mu.Unlock()
		return nil, ErrCancelled
	}
	c.detachLocked()
	c.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if img == nil {
		return nil, &DeviceError{Facing: facing, Err: errors.New("camera returned no image")}
	}
	img.Source = "camera"
	return img, nil
}

// Cancel aborts a pending open or capture and releases the camera if it is open
func (c *Camera) Cancel() {
	c.mu.Lock()
	stream, facing, _ := c.detachLocked()
	c.mu.Unlock()
	closeStream(stream, facing)
}

// Release is Cancel for the stream opened under ticket; it does nothing once
// another Start, Capture or Cancel has taken over.
func (c *Camera) Release(ticket uint64) {
	c.mu.Lock()
	if c.ticket != ticket {
		c.mu.Unlock()
		return
	}
	stream, facing, _ := c.detachLocked()
	c.mu.Unlock()
	closeStream(stream, facing)
}

// Active reports whether a stream is open, or being captured from, and which camera it uses
func (c *Camera) Active() (Facing, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.facing, c.facing != ""
}

// detachLocked invalidates the current ticket, aborts pending device calls and
// hands the open stream to the caller to close outside the lock.
func (c *Camera) detachLocked() (Stream, Facing, chan struct{}) {
	c.ticket++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	stream, facing, busy := c.stream, c.facing, c.busy
	c.stream, c.facing, c.busy = nil, "", nil
	return stream, facing, busy
}

func closeStream(stream Stream, facing Facing) {
	if stream == nil {
		return
	}
	if err := stream.Close(); err != nil {
		slog.Warn("Failed to release camera", "facing", facing, "err", err)
	}
	slog.Debug("Camera released", "facing", facing)
}
