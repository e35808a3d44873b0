package livecall

import (
	"errors"
	"fmt"

	"github.com/kronitek/coldcall/pkg/audio"
)

// Microphone errors surfaced by [Call.Start]. Each maps to a distinct,
// actionable message via [UserMessage]; none of them leaves the session in an
// unrecoverable state, so the caller can always offer a retry.
var (
	// ErrMicPermission indicates the user or OS denied microphone access.
	ErrMicPermission = errors.New("livecall: microphone access denied")

	// ErrMicNotFound indicates no recording device is present.
	ErrMicNotFound = errors.New("livecall: no microphone found")

	// ErrMicBusy indicates the microphone exists but could not be read, most
	// commonly because another process holds it.
	ErrMicBusy = errors.New("livecall: microphone busy or unreadable")
)

// classifyDeviceErr wraps a device error in the matching package sentinel so
// callers can branch with errors.Is. Unrecognised errors pass through wrapped.
func classifyDeviceErr(err error) error {
	switch {
	case errors.Is(err, audio.ErrPermissionDenied):
		return fmt.Errorf("%w: %v", ErrMicPermission, err)
	case errors.Is(err, audio.ErrDeviceNotFound):
		return fmt.Errorf("%w: %v", ErrMicNotFound, err)
	case errors.Is(err, audio.ErrDeviceBusy):
		return fmt.Errorf("%w: %v", ErrMicBusy, err)
	default:
		return fmt.Errorf("livecall: audio device: %w", err)
	}
}

// UserMessage maps a live-call error to the actionable message shown to the
// trainee. Returns an empty string for a nil error.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMicPermission):
		return "Microphone access was denied. Allow microphone access for this application and try the call again."
	case errors.Is(err, ErrMicNotFound):
		return "No microphone was found. Plug in or enable a recording device and try the call again."
	case errors.Is(err, ErrMicBusy):
		return "The microphone could not be read. Close other applications that may be using it and try the call again."
	default:
		return "The voice call failed unexpectedly. Check your connection and try again."
	}
}
