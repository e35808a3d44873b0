// Package audio defines the interfaces and types for local audio device access
// and PCM stream conversion within coldcall.
//
// The two primary abstractions are:
//
//   - [Device] opens the local microphone and speaker in a given [Format].
//   - [InputStream] / [OutputStream] are the active capture and playback handles.
//
// Implementations wrap a platform audio backend (PortAudio, ALSA, a browser
// bridge, ...). The interfaces are intentionally narrow to keep the live-call
// orchestration decoupled from device details; [pkg/audio/mock] provides a
// scriptable in-memory implementation for tests.
package audio

import (
	"context"
	"errors"
)

// Device open errors. Implementations must wrap the platform error in the
// matching sentinel so the live-call layer can surface a distinct,
// user-actionable message for each case.
var (
	// ErrPermissionDenied indicates the user or OS denied microphone access.
	ErrPermissionDenied = errors.New("audio: microphone permission denied")

	// ErrDeviceNotFound indicates no capture device is present.
	ErrDeviceNotFound = errors.New("audio: no input device found")

	// ErrDeviceBusy indicates the capture device exists but is claimed by
	// another process or is unreadable.
	ErrDeviceBusy = errors.New("audio: input device busy or unreadable")
)

// InputStream is an exclusive microphone capture handle.
//
// Implementations must be safe for concurrent use.
type InputStream interface {
	// Frames returns a read-only channel delivering captured [AudioFrame]
	// values in the format the stream was opened with. The channel is closed
	// when the stream is closed or the device fails mid-capture; call Err
	// afterwards to distinguish the two.
	Frames() <-chan AudioFrame

	// Err returns the error that terminated capture, or nil if the stream was
	// closed cleanly.
	Err() error

	// Close releases the microphone. Safe to call more than once.
	Close() error
}

// OutputStream is a playback handle. Frames written to it are played in
// order; Write must not block longer than the duration of the frame being
// enqueued.
type OutputStream interface {
	// Write enqueues a frame for playback.
	Write(frame AudioFrame) error

	// Close stops playback, discards queued frames, and releases the output
	// device. Safe to call more than once.
	Close() error
}

// Device is the entry point for a local audio backend.
//
// Implementations must be safe for concurrent use.
type Device interface {
	// OpenInput acquires the microphone and begins capturing in the requested
	// format. Errors are wrapped in the package sentinels where applicable.
	OpenInput(ctx context.Context, format Format) (InputStream, error)

	// OpenOutput acquires the speaker for playback in the requested format.
	OpenOutput(ctx context.Context, format Format) (OutputStream, error)
}
