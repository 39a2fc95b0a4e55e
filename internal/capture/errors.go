package capture

import "fmt"

// InvalidInputError is returned when a file is not a usable image
type InvalidInputError struct {
	MediaType string
	Reason    string
}

func (e *InvalidInputError) Error() string {
	if e.MediaType == "" {
		return "invalid image input: " + e.Reason
	}
	return fmt.Sprintf("invalid image input (%s): %s", e.MediaType, e.Reason)
}

// PermissionError is returned when access to the camera was denied.
// Denial is terminal for that attempt; callers should offer file upload instead.
type PermissionError struct {
	Err error
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("camera permission denied: %v", e.Err)
}

func (e *PermissionError) Unwrap() error { return e.Err }

// DeviceError is returned when no camera is available or it cannot be used
type DeviceError struct {
	Facing Facing
	Err    error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("camera %q unavailable: %v", e.Facing, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }
