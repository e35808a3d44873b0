package openai_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/kronitek/coldcall/pkg/provider/live"
	"github.com/kronitek/coldcall/pkg/provider/live/openai"
)

// ── Helpers ───────────────────────────────────────────────────────────────────

// wsURL converts an httptest server HTTP URL to a WebSocket URL.
func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// startRealtimeServer launches a test WebSocket server. The handler function
// receives the accepted *websocket.Conn. The server is automatically closed
// when the test finishes.
func startRealtimeServer(t *testing.T, handler func(conn *websocket.Conn, r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "done")
		handler(conn, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// readJSON reads one WebSocket text frame and decodes it into v.
func readJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("readJSON: %v", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("readJSON unmarshal: %v", err)
	}
}

// writeJSON marshals v and sends it as a text frame.
func writeJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	data, _ := json.Marshal(v)
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Logf("writeJSON: %v (may be expected on close)", err)
	}
}

// newProvider creates a Provider pointing at the given test server.
func newProvider(srv *httptest.Server) *openai.Provider {
	return openai.New("test-api-key", openai.WithBaseURL(wsURL(srv)))
}

// ── TestConnect ────────────────────────────────────────────────────────────────

func TestConnect_SendsSessionUpdate(t *testing.T) {
	t.Parallel()

	type sessionUpdate struct {
		Type    string `json:"type"`
		Session struct {
			Voice             string `json:"voice"`
			Instructions      string `json:"instructions"`
			InputAudioFormat  string `json:"input_audio_format"`
			OutputAudioFormat string `json:"output_audio_format"`
			Tools             []struct {
				Type string `json:"type"`
				Name string `json:"name"`
			} `json:"tools"`
			InputAudioTranscription *struct {
				Model string `json:"model"`
			} `json:"input_audio_transcription"`
		} `json:"session"`
	}

	received := make(chan sessionUpdate, 1)

	srv := startRealtimeServer(t, func(conn *websocket.Conn, _ *http.Request) {
		var msg sessionUpdate
		readJSON(t, conn, &msg)
		received <- msg
		<-conn.CloseRead(context.Background()).Done()
	})

	p := newProvider(srv)
	handle, err := p.Connect(context.Background(), live.SessionConfig{
		Voice:        "alloy",
		Instructions: "You answer the phone.",
	})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer handle.Close()

	select {
	case msg := <-received:
		if msg.Type != "session.update" {
			t.Errorf("type = %q; want session.update", msg.Type)
		}
		if msg.Session.Voice != "alloy" {
			t.Errorf("voice = %q; want alloy", msg.Session.Voice)
		}
		if msg.Session.Instructions != "You answer the phone." {
			t.Errorf("instructions = %q", msg.Session.Instructions)
		}
		if msg.Session.InputAudioFormat != "pcm16" || msg.Session.OutputAudioFormat != "pcm16" {
			t.Errorf("audio formats = %q/%q; want pcm16/pcm16",
				msg.Session.InputAudioFormat, msg.Session.OutputAudioFormat)
		}
		if len(msg.Session.Tools) == 0 || msg.Session.Tools[0].Name != "connect_call" {
			t.Errorf("tools = %+v; want connect_call declared", msg.Session.Tools)
		}
		if msg.Session.InputAudioTranscription == nil {
			t.Error("input audio transcription should be enabled")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for session.update")
	}
}

func TestConnect_SendsAuthHeaderAndModel(t *testing.T) {
	t.Parallel()

	type connInfo struct {
		auth  string
		beta  string
		query string
	}
	info := make(chan connInfo, 1)

	srv := startRealtimeServer(t, func(conn *websocket.Conn, r *http.Request) {
		info <- connInfo{
			auth:  r.Header.Get("Authorization"),
			beta:  r.Header.Get("OpenAI-Beta"),
			query: r.URL.RawQuery,
		}
		var raw map[string]any
		readJSON(t, conn, &raw)
		<-conn.CloseRead(context.Background()).Done()
	})

	p := openai.New("secret-key", openai.WithBaseURL(wsURL(srv)), openai.WithModel("custom-realtime"))
	handle, err := p.Connect(context.Background(), live.SessionConfig{})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer handle.Close()

	select {
	case got := <-info:
		if got.auth != "Bearer secret-key" {
			t.Errorf("Authorization = %q; want Bearer secret-key", got.auth)
		}
		if got.beta != "realtime=v1" {
			t.Errorf("OpenAI-Beta = %q; want realtime=v1", got.beta)
		}
		if !strings.Contains(got.query, "model=custom-realtime") {
			t.Errorf("query %q should contain model=custom-realtime", got.query)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout")
	}
}

func TestConnect_CancelledContext_ReturnsError(t *testing.T) {
	t.Parallel()

	srv := startRealtimeServer(t, func(conn *websocket.Conn, _ *http.Request) {
		<-conn.CloseRead(context.Background()).Done()
	})

	p := newProvider(srv)
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // already cancelled

	_, err := p.Connect(ctx, live.SessionConfig{})
	if err == nil {
		t.Fatal("Connect with cancelled context should return an error")
	}
}

// ── TestSendAudio ──────────────────────────────────────────────────────────────

func TestSendAudio_EncodesAndSends(t *testing.T) {
	t.Parallel()

	type appendMsg struct {
		Type  string `json:"type"`
		Audio string `json:"audio"`
	}

	audioMsg := make(chan appendMsg, 1)

	srv := startRealtimeServer(t, func(conn *websocket.Conn, _ *http.Request) {
		// Consume session.update.
		var raw map[string]any
		readJSON(t, conn, &raw)

		var msg appendMsg
		readJSON(t, conn, &msg)
		audioMsg <- msg

		<-conn.CloseRead(context.Background()).Done()
	})

	p := newProvider(srv)
	handle, err := p.Connect(context.Background(), live.SessionConfig{})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer handle.Close()

	wantPCM := []byte{0x01, 0x02, 0x03, 0x04}
	if err := handle.SendAudio(wantPCM); err != nil {
		t.Fatalf("SendAudio: %v", err)
	}

	select {
	case msg := <-audioMsg:
		if msg.Type != "input_audio_buffer.append" {
			t.Errorf("type = %q; want input_audio_buffer.append", msg.Type)
		}
		got, err := base64.StdEncoding.DecodeString(msg.Audio)
		if err != nil {
			t.Fatalf("base64 decode: %v", err)
		}
		if string(got) != string(wantPCM) {
			t.Errorf("decoded audio = %v; want %v", got, wantPCM)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for audio message")
	}
}

func TestSendAudio_AfterClose_ReturnsError(t *testing.T) {
	t.Parallel()

	srv := startRealtimeServer(t, func(conn *websocket.Conn, _ *http.Request) {
		var raw map[string]any
		readJSON(t, conn, &raw)
		<-conn.CloseRead(context.Background()).Done()
	})

	p := newProvider(srv)
	handle, err := p.Connect(context.Background(), live.SessionConfig{})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := handle.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := handle.SendAudio([]byte{1, 2, 3}); err == nil {
		t.Fatal("SendAudio after Close should return an error")
	}
}

// ── TestAudio ──────────────────────────────────────────────────────────────────

func TestAudio_DeliversDecodedPCM(t *testing.T) {
	t.Parallel()

	wantPCM := []byte{0xAA, 0xBB, 0xCC, 0xDD}
	encoded := base64.StdEncoding.EncodeToString(wantPCM)

	srv := startRealtimeServer(t, func(conn *websocket.Conn, _ *http.Request) {
		var raw map[string]any
		readJSON(t, conn, &raw)

		writeJSON(t, conn, map[string]any{
			"type":  "response.audio.delta",
			"delta": encoded,
		})

		<-conn.CloseRead(context.Background()).Done()
	})

	p := newProvider(srv)
	handle, err := p.Connect(context.Background(), live.SessionConfig{})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer handle.Close()

	select {
	case chunk, ok := <-handle.Audio():
		if !ok {
			t.Fatal("Audio channel closed unexpectedly")
		}
		if string(chunk) != string(wantPCM) {
			t.Errorf("audio chunk = %v; want %v", chunk, wantPCM)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for audio chunk")
	}
}

// ── TestTranscripts ────────────────────────────────────────────────────────────

func TestTranscripts_GatekeeperDelta(t *testing.T) {
	t.Parallel()

	srv := startRealtimeServer(t, func(conn *websocket.Conn, _ *http.Request) {
		var raw map[string]any
		readJSON(t, conn, &raw)

		writeJSON(t, conn, map[string]any{
			"type":  "response.audio_transcript.delta",
			"delta": "Who may I say is calling?",
		})

		<-conn.CloseRead(context.Background()).Done()
	})

	p := newProvider(srv)
	handle, err := p.Connect(context.Background(), live.SessionConfig{})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer handle.Close()

	select {
	case ev, ok := <-handle.Transcripts():
		if !ok {
			t.Fatal("Transcripts channel closed unexpectedly")
		}
		if ev.Source != live.SourceGatekeeper {
			t.Errorf("source = %q; want %q", ev.Source, live.SourceGatekeeper)
		}
		if ev.Text != "Who may I say is calling?" {
			t.Errorf("transcript text = %q", ev.Text)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for transcript")
	}
}

func TestTranscripts_UserTranscriptionCompleted(t *testing.T) {
	t.Parallel()

	srv := startRealtimeServer(t, func(conn *websocket.Conn, _ *http.Request) {
		var raw map[string]any
		readJSON(t, conn, &raw)

		writeJSON(t, conn, map[string]any{
			"type":       "conversation.item.input_audio_transcription.completed",
			"transcript": "Hello, this is Alex from Kronitek.",
		})

		<-conn.CloseRead(context.Background()).Done()
	})

	p := newProvider(srv)
	handle, err := p.Connect(context.Background(), live.SessionConfig{})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer handle.Close()

	select {
	case ev, ok := <-handle.Transcripts():
		if !ok {
			t.Fatal("Transcripts channel closed unexpectedly")
		}
		if ev.Source != live.SourceUser {
			t.Errorf("source = %q; want %q", ev.Source, live.SourceUser)
		}
		if ev.Text != "Hello, this is Alex from Kronitek." {
			t.Errorf("transcript text = %q", ev.Text)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for transcript")
	}
}

func TestTranscripts_ResponseDoneEmitsTurnBoundary(t *testing.T) {
	t.Parallel()

	srv := startRealtimeServer(t, func(conn *websocket.Conn, _ *http.Request) {
		var raw map[string]any
		readJSON(t, conn, &raw)

		writeJSON(t, conn, map[string]any{"type": "response.done"})

		<-conn.CloseRead(context.Background()).Done()
	})

	p := newProvider(srv)
	handle, err := p.Connect(context.Background(), live.SessionConfig{})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer handle.Close()

	select {
	case ev, ok := <-handle.Transcripts():
		if !ok {
			t.Fatal("Transcripts channel closed unexpectedly")
		}
		if !ev.TurnComplete {
			t.Errorf("event = %+v; want TurnComplete marker", ev)
		}
		if ev.Text != "" {
			t.Errorf("turn boundary should carry no text, got %q", ev.Text)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for turn boundary")
	}
}

// ── TestOnConnectCall ──────────────────────────────────────────────────────────

func TestOnConnectCall_RoutesFunctionCallToHandler(t *testing.T) {
	t.Parallel()

	toolOutput := make(chan string, 2)

	srv := startRealtimeServer(t, func(conn *websocket.Conn, _ *http.Request) {
		var raw map[string]any
		readJSON(t, conn, &raw)

		writeJSON(t, conn, map[string]any{
			"type":      "response.function_call_arguments.done",
			"name":      "connect_call",
			"call_id":   "call-1",
			"arguments": "{}",
		})

		// The session replies with a function_call_output item and a
		// response.create trigger.
		for range 2 {
			var resp map[string]any
			readJSON(t, conn, &resp)
			data, _ := json.Marshal(resp)
			toolOutput <- string(data)
		}

		<-conn.CloseRead(context.Background()).Done()
	})

	p := newProvider(srv)
	handle, err := p.Connect(context.Background(), live.SessionConfig{})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer handle.Close()

	handlerCalled := make(chan struct{}, 1)
	handle.OnConnectCall(func() {
		handlerCalled <- struct{}{}
	})

	select {
	case <-handlerCalled:
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for connect handler to be called")
	}

	select {
	case first := <-toolOutput:
		if !strings.Contains(first, "function_call_output") || !strings.Contains(first, "call-1") {
			t.Errorf("first response %q should be a function_call_output for call-1", first)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for function_call_output")
	}

	select {
	case second := <-toolOutput:
		if !strings.Contains(second, "response.create") {
			t.Errorf("second response %q should trigger response.create", second)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for response.create")
	}
}

func TestOnConnectCall_IgnoresOtherFunctions(t *testing.T) {
	t.Parallel()

	eventSent := make(chan struct{})

	srv := startRealtimeServer(t, func(conn *websocket.Conn, _ *http.Request) {
		var raw map[string]any
		readJSON(t, conn, &raw)

		writeJSON(t, conn, map[string]any{
			"type":      "response.function_call_arguments.done",
			"name":      "unrelated_function",
			"call_id":   "call-1",
			"arguments": "{}",
		})
		close(eventSent)

		<-conn.CloseRead(context.Background()).Done()
	})

	p := newProvider(srv)
	handle, err := p.Connect(context.Background(), live.SessionConfig{})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer handle.Close()

	called := make(chan struct{}, 1)
	handle.OnConnectCall(func() {
		called <- struct{}{}
	})

	select {
	case <-eventSent:
	case <-time.After(3 * time.Second):
		t.Fatal("timeout")
	}

	select {
	case <-called:
		t.Error("handler should not fire for an unrelated function")
	case <-time.After(100 * time.Millisecond):
	}
}

// ── TestClose ──────────────────────────────────────────────────────────────────

func TestClose_Idempotent(t *testing.T) {
	t.Parallel()

	srv := startRealtimeServer(t, func(conn *websocket.Conn, _ *http.Request) {
		var raw map[string]any
		readJSON(t, conn, &raw)
		<-conn.CloseRead(context.Background()).Done()
	})

	p := newProvider(srv)
	handle, err := p.Connect(context.Background(), live.SessionConfig{})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}

	if err := handle.Close(); err != nil {
		t.Fatalf("first Close() returned error: %v", err)
	}
	if err := handle.Close(); err != nil {
		t.Fatalf("second Close() returned error: %v", err)
	}
}

func TestClose_ClosesChannels(t *testing.T) {
	t.Parallel()

	srv := startRealtimeServer(t, func(conn *websocket.Conn, _ *http.Request) {
		var raw map[string]any
		readJSON(t, conn, &raw)
		<-conn.CloseRead(context.Background()).Done()
	})

	p := newProvider(srv)
	handle, err := p.Connect(context.Background(), live.SessionConfig{})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}

	_ = handle.Close()

	select {
	case _, open := <-handle.Audio():
		if open {
			t.Error("Audio channel should be closed after Close()")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for Audio channel to close")
	}

	select {
	case _, open := <-handle.Transcripts():
		if open {
			t.Error("Transcripts channel should be closed after Close()")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for Transcripts channel to close")
	}
}

// ── TestErr ────────────────────────────────────────────────────────────────────

func TestErr_SurfacesServerError(t *testing.T) {
	t.Parallel()

	srv := startRealtimeServer(t, func(conn *websocket.Conn, _ *http.Request) {
		var raw map[string]any
		readJSON(t, conn, &raw)

		writeJSON(t, conn, map[string]any{
			"type": "error",
			"error": map[string]any{
				"type":    "invalid_request_error",
				"message": "rate limit reached",
			},
		})

		<-conn.CloseRead(context.Background()).Done()
	})

	p := newProvider(srv)
	handle, err := p.Connect(context.Background(), live.SessionConfig{})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer handle.Close()

	deadline := time.After(3 * time.Second)
	for {
		if got := handle.Err(); got != nil {
			if !strings.Contains(got.Error(), "rate limit reached") {
				t.Errorf("Err() = %v; want rate limit reached", got)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("timeout waiting for server error to surface")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
