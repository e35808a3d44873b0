package extcmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kronitek/coldcall/pkg/audio"
)

// staticCommand ignores the format and returns argv as-is.
func staticCommand(argv ...string) CommandFunc {
	return func(audio.Format) []string { return argv }
}

func TestCaptureFramesCommandOutput(t *testing.T) {
	// 3200 bytes at 16 kHz mono is exactly five 20 ms frames.
	d := New(WithCaptureCommand(staticCommand("head", "-c", "3200", "/dev/zero")))

	in, err := d.OpenInput(context.Background(), audio.Format{SampleRate: 16000, Channels: 1})
	if err != nil {
		t.Fatalf("OpenInput: %v", err)
	}
	defer in.Close()

	var frames int
	var total int
	for frame := range in.Frames() {
		if frame.SampleRate != 16000 || frame.Channels != 1 {
			t.Errorf("frame format = %dHz/%dch, want 16000Hz/1ch", frame.SampleRate, frame.Channels)
		}
		frames++
		total += len(frame.Data)
	}
	if frames != 5 || total != 3200 {
		t.Errorf("captured %d frames / %d bytes, want 5 / 3200", frames, total)
	}
	if err := in.Err(); err != nil {
		t.Errorf("Err = %v, want nil after clean end of stream", err)
	}
}

func TestCaptureCloseStopsProcess(t *testing.T) {
	// cat on /dev/zero produces forever; Close must end the stream anyway.
	d := New(WithCaptureCommand(staticCommand("cat", "/dev/zero")))

	in, err := d.OpenInput(context.Background(), audio.Format{SampleRate: 16000, Channels: 1})
	if err != nil {
		t.Fatalf("OpenInput: %v", err)
	}

	<-in.Frames() // capture is live
	if err := in.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := in.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-in.Frames():
			if !ok {
				if err := in.Err(); err != nil {
					t.Errorf("Err = %v, want nil after deliberate Close", err)
				}
				return
			}
		case <-deadline:
			t.Fatal("frame channel did not close after Close")
		}
	}
}

func TestPlaybackWritesToCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.pcm")
	d := New(WithPlaybackCommand(staticCommand("sh", "-c", "cat > "+path)))

	out, err := d.OpenOutput(context.Background(), audio.Format{SampleRate: 24000, Channels: 1})
	if err != nil {
		t.Fatalf("OpenOutput: %v", err)
	}

	want := []byte{1, 2, 3, 4, 5, 6}
	if err := out.Write(audio.AudioFrame{Data: want, SampleRate: 24000, Channels: 1}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := out.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := out.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sink: %v", err)
	}
	if string(got) != string(want) {
		t.Errorf("playback sink = %v, want %v", got, want)
	}
}

func TestMissingCommandIsDeviceNotFound(t *testing.T) {
	d := New(WithCaptureCommand(staticCommand("coldcall-no-such-binary")))
	if _, err := d.OpenInput(context.Background(), audio.Format{SampleRate: 16000, Channels: 1}); !errors.Is(err, audio.ErrDeviceNotFound) {
		t.Errorf("OpenInput = %v, want ErrDeviceNotFound", err)
	}

	d = New(WithPlaybackCommand(staticCommand("coldcall-no-such-binary")))
	if _, err := d.OpenOutput(context.Background(), audio.Format{SampleRate: 24000, Channels: 1}); !errors.Is(err, audio.ErrDeviceNotFound) {
		t.Errorf("OpenOutput = %v, want ErrDeviceNotFound", err)
	}
}

func TestCaptureFailureIsClassified(t *testing.T) {
	d := New(WithCaptureCommand(staticCommand(
		"sh", "-c", "echo 'arecord: main:831: audio open error: Device or resource busy' >&2; exit 1",
	)))

	in, err := d.OpenInput(context.Background(), audio.Format{SampleRate: 16000, Channels: 1})
	if err != nil {
		t.Fatalf("OpenInput: %v", err)
	}
	audio.Drain(in.Frames())

	if err := in.Err(); !errors.Is(err, audio.ErrDeviceBusy) {
		t.Errorf("Err = %v, want ErrDeviceBusy", err)
	}
}

func TestClassifyStderr(t *testing.T) {
	cause := fmt.Errorf("exit status 1")
	tests := []struct {
		stderr string
		want   error
	}{
		{"audio open error: Permission denied", audio.ErrPermissionDenied},
		{"audio open error: Device or resource busy", audio.ErrDeviceBusy},
		{"unable to open slave: No such device", audio.ErrDeviceNotFound},
	}
	for _, tt := range tests {
		if got := classifyStderr(tt.stderr, cause); !errors.Is(got, tt.want) {
			t.Errorf("classifyStderr(%q) = %v, want %v", tt.stderr, got, tt.want)
		}
	}
	if got := classifyStderr("something else entirely", cause); !errors.Is(got, cause) {
		t.Errorf("unrecognised stderr = %v, want the original cause", got)
	}
}
