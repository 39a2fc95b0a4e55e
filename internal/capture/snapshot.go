package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/lehigh-university-libraries/scanstudy/internal/models"
)

const maxSnapshotBytes = 20 * 1024 * 1024

// SnapshotDevice is a network camera that serves a still image per facing,
// e.g. http://phone.local:8080/shot.jpg for the rear camera.
type SnapshotDevice struct {
	URLs   map[Facing]string
	Client *http.Client
}

// NewSnapshotDevice builds a device from per-facing snapshot URLs; empty URLs are skipped
func NewSnapshotDevice(userURL, environmentURL string) *SnapshotDevice {
	urls := map[Facing]string{}
	if userURL != "" {
		urls[FacingUser] = userURL
	}
	if environmentURL != "" {
		urls[FacingEnvironment] = environmentURL
	}
	return &SnapshotDevice{
		URLs:   urls,
		Client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Open probes the camera so permission and availability problems surface before capture
func (d *SnapshotDevice) Open(ctx context.Context, facing Facing) (Stream, error) {
	url, ok := d.URLs[facing]
	if !ok {
		return nil, &DeviceError{Facing: facing, Err: errors.New("no camera configured")}
	}

	s := &snapshotStream{device: d, facing: facing, url: url}
	if _, err := s.fetch(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

type snapshotStream struct {
	device *SnapshotDevice
	facing Facing
	url    string

	mu     sync.Mutex
	closed bool
}

func (s *snapshotStream) Snapshot(ctx context.Context) (*models.CapturedImage, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrNoStream
	}

	data, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}

	img, err := FromFile("snapshot", "", data)
	if err != nil {
		return nil, &DeviceError{Facing: s.facing, Err: err}
	}
	img.Source = "camera"
	return img, nil
}

func (s *snapshotStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *snapshotStream) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, &DeviceError{Facing: s.facing, Err: err}
	}

	client := s.device.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &DeviceError{Facing: s.facing, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &PermissionError{Err: fmt.Errorf("camera returned HTTP %d", resp.StatusCode)}
	case resp.StatusCode != http.StatusOK:
		return nil, &DeviceError{Facing: s.facing, Err: fmt.Errorf("camera returned HTTP %d", resp.StatusCode)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSnapshotBytes))
	if err != nil {
		return nil, &DeviceError{Facing: s.facing, Err: fmt.Errorf("failed to read snapshot: %w", err)}
	}
	return data, nil
}
