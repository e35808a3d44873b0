// Package mock provides an in-memory [audio.Device] implementation for tests.
//
// The device captures nothing by itself: tests feed frames through
// [Device.Push] and inspect what was played via [Device.Played]. Open errors
// can be injected to exercise the live-call error taxonomy.
package mock

import (
	"context"
	"sync"

	"github.com/kronitek/coldcall/pkg/audio"
)

// Compile-time interface assertions.
var (
	_ audio.Device       = (*Device)(nil)
	_ audio.InputStream  = (*inputStream)(nil)
	_ audio.OutputStream = (*outputStream)(nil)
)

// Device is a scriptable in-memory audio device.
// All exported methods are safe for concurrent use.
type Device struct {
	// OpenInputErr, when non-nil, is returned by OpenInput. Use the
	// audio package sentinels to simulate permission/device failures.
	OpenInputErr error

	// OpenOutputErr, when non-nil, is returned by OpenOutput.
	OpenOutputErr error

	mu          sync.Mutex
	input       *inputStream
	output      *outputStream
	inputFormat audio.Format
}

// OpenInput returns the scripted error if set, otherwise a stream that
// delivers frames passed to [Device.Push]. The requested format is recorded
// and available via [Device.InputFormat].
func (d *Device) OpenInput(_ context.Context, format audio.Format) (audio.InputStream, error) {
	if d.OpenInputErr != nil {
		return nil, d.OpenInputErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.input = &inputStream{frames: make(chan audio.AudioFrame, 64)}
	d.inputFormat = format
	return d.input, nil
}

// InputFormat returns the format the input stream was last opened with.
func (d *Device) InputFormat() audio.Format {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inputFormat
}

// OpenOutput returns the scripted error if set, otherwise a sink that records
// every frame written to it.
func (d *Device) OpenOutput(_ context.Context, _ audio.Format) (audio.OutputStream, error) {
	if d.OpenOutputErr != nil {
		return nil, d.OpenOutputErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.output = &outputStream{}
	return d.output, nil
}

// Push feeds a captured frame into the open input stream.
// No-op when no input stream is open or it has been closed.
func (d *Device) Push(frame audio.AudioFrame) {
	d.mu.Lock()
	in := d.input
	d.mu.Unlock()
	if in != nil {
		in.push(frame)
	}
}

// FailCapture terminates the open input stream with err, simulating a device
// failure mid-capture.
func (d *Device) FailCapture(err error) {
	d.mu.Lock()
	in := d.input
	d.mu.Unlock()
	if in != nil {
		in.fail(err)
	}
}

// Played returns a copy of all frames written to the output stream so far.
func (d *Device) Played() []audio.AudioFrame {
	d.mu.Lock()
	out := d.output
	d.mu.Unlock()
	if out == nil {
		return nil
	}
	return out.played()
}

// InputClosed reports whether the input stream has been closed.
func (d *Device) InputClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.input != nil && d.input.isClosed()
}

// OutputClosed reports whether the output stream has been closed.
func (d *Device) OutputClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.output != nil && d.output.isClosed()
}

type inputStream struct {
	frames chan audio.AudioFrame

	mu     sync.Mutex
	err    error
	closed bool
}

func (s *inputStream) Frames() <-chan audio.AudioFrame { return s.frames }

func (s *inputStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *inputStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.frames)
	return nil
}

func (s *inputStream) push(frame audio.AudioFrame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.frames <- frame:
	default:
		// Drop when the consumer is not keeping up, like a real device would.
	}
}

func (s *inputStream) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.err = err
	s.closed = true
	close(s.frames)
}

func (s *inputStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type outputStream struct {
	mu     sync.Mutex
	frames []audio.AudioFrame
	closed bool
}

func (s *outputStream) Write(frame audio.AudioFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.frames = append(s.frames, frame)
	return nil
}

func (s *outputStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *outputStream) played() []audio.AudioFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]audio.AudioFrame, len(s.frames))
	copy(out, s.frames)
	return out
}

func (s *outputStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
