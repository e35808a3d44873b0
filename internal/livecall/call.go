// Package livecall orchestrates one live voice call against a duplex voice
// backend.
//
// A [Call] runs two concurrent pipelines for the duration of the call: the
// capture path reads microphone frames, converts them to the 16 kHz mono PCM
// the backend expects, and streams them out; the playback path schedules the
// backend's 24 kHz synthesised audio for gapless output. Partial transcript
// fragments from both speakers accumulate until the backend signals the end
// of a turn, at which point they are flushed into the session transcript as a
// single atomic append. The backend may also invoke the connect side-channel
// mid-stream, which marks the simulation as connected and ends the call.
//
// All exit paths (manual stop, backend close, capture failure, connect)
// converge on the same ordered teardown exactly once.
package livecall

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/kronitek/coldcall/internal/gatekeeper"
	"github.com/kronitek/coldcall/internal/observe"
	"github.com/kronitek/coldcall/internal/session"
	"github.com/kronitek/coldcall/pkg/audio"
	"github.com/kronitek/coldcall/pkg/provider/live"
	"github.com/kronitek/coldcall/pkg/types"
)

// ErrAlreadyStarted is returned by [Call.Start] when the call is running or
// has already run. A Call is single-use; create a new one to retry.
var ErrAlreadyStarted = errors.New("livecall: call already started")

var (
	// captureFormat is what the live backends accept as input audio.
	captureFormat = audio.Format{SampleRate: 16000, Channels: 1}

	// playbackFormat is what the live backends emit as synthesised audio.
	playbackFormat = audio.Format{SampleRate: 24000, Channels: 1}
)

// defaultDialMaxElapsed bounds the total time spent retrying the initial
// backend dial before the error is surfaced to the caller.
const defaultDialMaxElapsed = 15 * time.Second

// Option is a functional option for configuring a [Call].
type Option func(*Call)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(c *Call) {
		c.log = log
	}
}

// WithMetrics sets the metrics sink. Defaults to observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Call) {
		c.metrics = m
	}
}

// WithVoice sets the provider-specific voice name for the gatekeeper's
// synthesised speech. Empty selects the provider default.
func WithVoice(voice string) Option {
	return func(c *Call) {
		c.voice = voice
	}
}

// WithCaptureFormat overrides the format the microphone is opened in, for
// devices that capture best at a native rate or channel count. The capture
// pipeline converts to the backend's 16 kHz mono regardless, so this is a
// device hint, not a wire format. Zero fields keep the defaults.
func WithCaptureFormat(f audio.Format) Option {
	return func(c *Call) {
		c.captureHint = f
	}
}

// WithClock overrides the playback scheduling clock. Useful in tests.
func WithClock(clock Clock) Option {
	return func(c *Call) {
		c.clock = clock
	}
}

// WithDialBackOff overrides the retry policy for the initial backend dial.
// The factory is invoked once per Start. Useful in tests to avoid real
// exponential waits.
func WithDialBackOff(factory func() backoff.BackOff) Option {
	return func(c *Call) {
		c.newBackOff = factory
	}
}

// Call is one live voice call bound to a running simulation session.
// Create with [New], run with [Call.Start], end with [Call.Stop].
type Call struct {
	provider    live.Provider
	device      audio.Device
	sess        *session.Session
	voice       string
	captureHint audio.Format
	log         *slog.Logger
	metrics     *observe.Metrics
	clock       Clock
	newBackOff  func() backoff.BackOff

	mu      sync.Mutex
	started bool
	startAt time.Time
	handle  live.SessionHandle
	input   audio.InputStream
	output  audio.OutputStream
	sched   *Scheduler
	cancel  context.CancelFunc
	errVal  error

	stopOnce sync.Once
	done     chan struct{}
}

// New creates a Call that will stream between device and provider, appending
// reconciled transcript turns to sess. Options are applied in order.
func New(provider live.Provider, device audio.Device, sess *session.Session, opts ...Option) *Call {
	c := &Call{
		provider: provider,
		device:   device,
		sess:     sess,
		done:     make(chan struct{}),
		newBackOff: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.MaxElapsedTime = defaultDialMaxElapsed
			return bo
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	return c
}

// Start acquires the microphone and speaker, dials the live backend with
// bounded retries, and launches the capture and playback loops. It returns
// once the call is running; the loops run until [Call.Stop], a backend close,
// a device failure, or the connect side-channel ends the call.
//
// Device errors are classified into the package sentinels so the caller can
// show a distinct message per cause. On any Start failure every resource
// acquired so far is released and the session remains usable, so the caller
// can always offer a retry.
func (c *Call) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	c.mu.Unlock()

	sc := c.sess.Scenario()
	locale := c.sess.Locale()

	openFormat := captureFormat
	if c.captureHint.SampleRate > 0 {
		openFormat.SampleRate = c.captureHint.SampleRate
	}
	if c.captureHint.Channels > 0 {
		openFormat.Channels = c.captureHint.Channels
	}
	input, err := c.device.OpenInput(ctx, openFormat)
	if err != nil {
		return classifyDeviceErr(err)
	}
	output, err := c.device.OpenOutput(ctx, playbackFormat)
	if err != nil {
		_ = input.Close()
		return classifyDeviceErr(err)
	}

	handle, err := c.dial(ctx, live.SessionConfig{
		Voice:        c.voice,
		Instructions: gatekeeper.LiveInstructions(sc, locale),
		Locale:       locale,
	})
	if err != nil {
		_ = input.Close()
		_ = output.Close()
		return fmt.Errorf("livecall: connect: %w", err)
	}

	callCtx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	c.input = input
	c.output = output
	c.handle = handle
	c.sched = NewScheduler(output, c.clock)
	c.cancel = cancel
	c.startAt = time.Now()
	c.mu.Unlock()

	handle.OnConnectCall(func() {
		c.log.Info("gatekeeper connected the call", "scenario", sc.ID)
		c.sess.MarkConnected()
		// The handler runs on the session's receive goroutine and must not
		// block, so teardown happens off to the side.
		go func() { _ = c.Stop() }()
	})

	c.metrics.ActiveLiveCalls.Add(callCtx, 1)
	c.log.Info("live call started", "scenario", sc.ID, "locale", locale)

	g, gctx := errgroup.WithContext(callCtx)
	g.Go(func() error { return c.captureLoop(gctx, input, handle) })
	g.Go(func() error { return c.receiveLoop(gctx, handle) })
	go func() {
		c.finish(g.Wait())
	}()

	return nil
}

// dial connects to the live backend, retrying transient failures under the
// configured backoff policy before surfacing an error.
func (c *Call) dial(ctx context.Context, cfg live.SessionConfig) (live.SessionHandle, error) {
	var handle live.SessionHandle
	op := func() error {
		h, err := c.provider.Connect(ctx, cfg)
		if err != nil {
			c.log.Warn("live dial failed, retrying", "err", err)
			return err
		}
		handle = h
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(c.newBackOff(), ctx)); err != nil {
		return nil, err
	}
	return handle, nil
}

// captureLoop streams converted microphone frames to the backend until the
// context is cancelled or the input stream ends. It never touches the
// playback path, so a stalled speaker cannot hold up capture.
func (c *Call) captureLoop(ctx context.Context, input audio.InputStream, handle live.SessionHandle) error {
	frames := audio.ConvertStream(input.Frames(), captureFormat)
	// Teardown closes the input stream, which ends the conversion goroutine;
	// draining here keeps it from blocking on a full channel in the meantime.
	defer func() { go audio.Drain(frames) }()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-frames:
			if !ok {
				if err := input.Err(); err != nil {
					return classifyDeviceErr(err)
				}
				return nil
			}
			if err := handle.SendAudio(frame.Data); err != nil {
				return fmt.Errorf("livecall: send audio: %w", err)
			}
		}
	}
}

// receiveLoop schedules inbound synthesised audio for playback and
// accumulates partial transcript fragments until the backend signals the end
// of a turn. It exits when the backend closes the audio stream or the context
// is cancelled.
func (c *Call) receiveLoop(ctx context.Context, handle live.SessionHandle) error {
	var pendingUser, pendingGatekeeper strings.Builder

	audioCh := handle.Audio()
	transcripts := handle.Transcripts()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case chunk, ok := <-audioCh:
			if !ok {
				if err := handle.Err(); err != nil {
					return fmt.Errorf("livecall: session: %w", err)
				}
				// Backend ended the session cleanly. Cancel so the capture
				// loop exits too and teardown can run.
				c.cancelPipelines()
				return nil
			}
			frame := audio.AudioFrame{
				Data:       chunk,
				SampleRate: playbackFormat.SampleRate,
				Channels:   playbackFormat.Channels,
			}
			if _, err := c.sched.Play(frame); err != nil && !errors.Is(err, ErrHalted) {
				return fmt.Errorf("livecall: playback: %w", err)
			}

		case ev, ok := <-transcripts:
			if !ok {
				transcripts = nil
				continue
			}
			switch ev.Source {
			case live.SourceUser:
				pendingUser.WriteString(ev.Text)
			case live.SourceGatekeeper:
				pendingGatekeeper.WriteString(ev.Text)
			}
			if ev.TurnComplete {
				c.flushTurns(&pendingUser, &pendingGatekeeper)
			}
		}
	}
}

// flushTurns converts the accumulated fragments of a completed turn into
// transcript turns and appends them in one atomic update. Empty buffers
// produce no turn. Both buffers are reset afterwards.
func (c *Call) flushTurns(user, gk *strings.Builder) {
	var turns []types.Turn
	if text := strings.TrimSpace(user.String()); text != "" {
		turns = append(turns, types.Turn{Speaker: types.SpeakerUser, Text: text})
	}
	if text := strings.TrimSpace(gk.String()); text != "" {
		turns = append(turns, types.Turn{Speaker: types.SpeakerGatekeeper, Text: text})
	}
	user.Reset()
	gk.Reset()
	if len(turns) == 0 {
		return
	}
	if err := c.sess.AppendTurns(turns...); err != nil {
		c.log.Warn("dropping reconciled voice turns", "err", err, "turns", len(turns))
	}
}

// cancelPipelines cancels the call context, unwinding both pipeline loops.
func (c *Call) cancelPipelines() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// finish runs the ordered teardown exactly once: stop microphone capture,
// cancel the pipeline loops, halt and release scheduled playback, close the
// backend session, then publish the call's outcome. A context.Canceled run
// error means a clean user-initiated stop.
func (c *Call) finish(runErr error) {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		if runErr != nil && !errors.Is(runErr, context.Canceled) {
			c.errVal = runErr
		}
		input, output, handle := c.input, c.output, c.handle
		sched, cancel, startAt := c.sched, c.cancel, c.startAt
		c.mu.Unlock()

		_ = input.Close()
		cancel()
		sched.Halt()
		_ = output.Close()
		_ = handle.Close()

		seconds := time.Since(startAt).Seconds()
		c.metrics.RecordLiveCall(context.Background(), seconds)
		c.metrics.ActiveLiveCalls.Add(context.Background(), -1)
		c.log.Info("live call ended", "seconds", seconds, "err", c.Err())

		close(c.done)
	})
}

// Stop ends the call and blocks until teardown has completed, so dependent
// state transitions (ending the simulation, starting a new call) never race
// an open microphone or session. Safe to call any number of times; a Stop
// before Start is a no-op.
func (c *Call) Stop() error {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-c.done
	return c.Err()
}

// Done returns a channel closed once teardown has completed.
func (c *Call) Done() <-chan struct{} {
	return c.done
}

// Err returns the error that ended the call, or nil for a clean stop.
// Meaningful once Done is closed.
func (c *Call) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errVal
}
