// Package extcmd provides an [audio.Device] backed by external capture and
// playback commands. By default it shells out to arecord and aplay, the ALSA
// command line tools, exchanging raw s16le PCM over pipes. Any command that
// reads or writes raw PCM on its standard streams can be substituted, which
// keeps the trainer free of cgo audio bindings.
package extcmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kronitek/coldcall/pkg/audio"
)

// Compile-time interface assertions.
var (
	_ audio.Device       = (*Device)(nil)
	_ audio.InputStream  = (*inputStream)(nil)
	_ audio.OutputStream = (*outputStream)(nil)
)

// frameInterval is the capture chunk size. 20 ms frames keep latency low
// while staying well above the pipe syscall overhead.
const frameInterval = 20 * time.Millisecond

// CommandFunc builds the argv for a capture or playback command in the given
// format. The first element is the executable name.
type CommandFunc func(format audio.Format) []string

// Option is a functional option for configuring a [Device].
type Option func(*Device)

// WithCaptureCommand replaces the default arecord invocation. The command
// must write raw s16le PCM in the requested format to stdout.
func WithCaptureCommand(fn CommandFunc) Option {
	return func(d *Device) {
		d.captureCmd = fn
	}
}

// WithPlaybackCommand replaces the default aplay invocation. The command must
// read raw s16le PCM in the requested format from stdin.
func WithPlaybackCommand(fn CommandFunc) Option {
	return func(d *Device) {
		d.playbackCmd = fn
	}
}

// Device opens microphone and speaker streams by spawning external commands.
type Device struct {
	captureCmd  CommandFunc
	playbackCmd CommandFunc
}

// New creates a Device. Without options it uses arecord for capture and aplay
// for playback.
func New(opts ...Option) *Device {
	d := &Device{
		captureCmd: func(f audio.Format) []string {
			return []string{"arecord", "-q", "-t", "raw", "-f", "S16_LE",
				"-r", strconv.Itoa(f.SampleRate), "-c", strconv.Itoa(f.Channels)}
		},
		playbackCmd: func(f audio.Format) []string {
			return []string{"aplay", "-q", "-t", "raw", "-f", "S16_LE",
				"-r", strconv.Itoa(f.SampleRate), "-c", strconv.Itoa(f.Channels)}
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// OpenInput starts the capture command and begins framing its stdout.
func (d *Device) OpenInput(ctx context.Context, format audio.Format) (audio.InputStream, error) {
	argv := d.captureCmd(format)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("extcmd: capture pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: %v", audio.ErrDeviceNotFound, err)
		}
		return nil, fmt.Errorf("extcmd: start %q: %w", argv[0], err)
	}

	s := &inputStream{
		cmd:    cmd,
		stderr: &stderr,
		frames: make(chan audio.AudioFrame, 32),
	}
	go s.readLoop(stdout, format)
	return s, nil
}

// OpenOutput starts the playback command with its stdin as the frame sink.
func (d *Device) OpenOutput(ctx context.Context, format audio.Format) (audio.OutputStream, error) {
	argv := d.playbackCmd(format)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stderr = io.Discard

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("extcmd: playback pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: %v", audio.ErrDeviceNotFound, err)
		}
		return nil, fmt.Errorf("extcmd: start %q: %w", argv[0], err)
	}

	return &outputStream{cmd: cmd, stdin: stdin}, nil
}

// classifyStderr maps the capture tool's error output onto the audio package
// sentinels so the live-call layer can show a specific message. The matching
// is best-effort; unrecognised failures pass through as-is.
func classifyStderr(text string, cause error) error {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "permission"):
		return fmt.Errorf("%w: %s", audio.ErrPermissionDenied, strings.TrimSpace(text))
	case strings.Contains(lower, "busy") || strings.Contains(lower, "resource"):
		return fmt.Errorf("%w: %s", audio.ErrDeviceBusy, strings.TrimSpace(text))
	case strings.Contains(lower, "no such") || strings.Contains(lower, "not found"):
		return fmt.Errorf("%w: %s", audio.ErrDeviceNotFound, strings.TrimSpace(text))
	default:
		return cause
	}
}

type inputStream struct {
	cmd    *exec.Cmd
	stderr *bytes.Buffer
	frames chan audio.AudioFrame

	mu     sync.Mutex
	err    error
	closed bool

	closeOnce sync.Once
}

func (s *inputStream) Frames() <-chan audio.AudioFrame { return s.frames }

func (s *inputStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close kills the capture process. The read loop observes the resulting pipe
// error and closes the frame channel. Safe to call more than once.
func (s *inputStream) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		if s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}
	})
	return nil
}

// readLoop frames the capture command's stdout into fixed-duration chunks.
func (s *inputStream) readLoop(r io.Reader, format audio.Format) {
	defer close(s.frames)

	frameBytes := format.SampleRate * format.Channels * 2 * int(frameInterval/time.Millisecond) / 1000
	var elapsed time.Duration

	for {
		buf := make([]byte, frameBytes)
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			s.frames <- audio.AudioFrame{
				Data:       buf[:n],
				SampleRate: format.SampleRate,
				Channels:   format.Channels,
				Timestamp:  elapsed,
			}
			elapsed += frameInterval
		}
		if err != nil {
			s.finish(err)
			return
		}
	}
}

// finish waits for the capture process and records why capture ended. A
// deliberate Close and a plain end of stream are both clean.
func (s *inputStream) finish(readErr error) {
	waitErr := s.cmd.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true

	if errors.Is(readErr, io.EOF) || errors.Is(readErr, io.ErrUnexpectedEOF) {
		if waitErr != nil {
			s.err = classifyStderr(s.stderr.String(), fmt.Errorf("extcmd: capture exited: %w", waitErr))
		}
		return
	}
	s.err = classifyStderr(s.stderr.String(), fmt.Errorf("extcmd: capture read: %w", readErr))
}

type outputStream struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser

	mu     sync.Mutex
	closed bool
}

// Write pushes the frame's PCM into the playback process. The process's own
// buffering paces actual output.
func (s *outputStream) Write(frame audio.AudioFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("extcmd: playback closed")
	}
	if _, err := s.stdin.Write(frame.Data); err != nil {
		return fmt.Errorf("extcmd: playback write: %w", err)
	}
	return nil
}

// Close ends the PCM stream and waits for the playback process to drain.
// Safe to call more than once.
func (s *outputStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	_ = s.stdin.Close()
	return s.cmd.Wait()
}
