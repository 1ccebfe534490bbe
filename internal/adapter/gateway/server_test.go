package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"noelle/internal/domain"
	"noelle/internal/infra/config"
)

// --- test doubles ---

type testBus struct {
	mu       sync.Mutex
	handlers []domain.EventHandler
}

func (b *testBus) Publish(ctx context.Context, event domain.Event) {
	b.mu.Lock()
	hs := make([]domain.EventHandler, len(b.handlers))
	copy(hs, b.handlers)
	b.mu.Unlock()
	for _, h := range hs {
		h(ctx, event)
	}
}

func (b *testBus) Subscribe(_ domain.EventType, _ domain.EventHandler) func() { return func() {} }

func (b *testBus) SubscribeAll(handler domain.EventHandler) func() {
	b.mu.Lock()
	b.handlers = append(b.handlers, handler)
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		b.handlers = nil
		b.mu.Unlock()
	}
}

func (b *testBus) Close() {}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAuth() Authenticator {
	return NewStaticTokenAuth([]config.TokenConfig{{Token: "test-token", Name: "tester"}})
}

type serverOption func(*config.GatewayConfig)

func startTestServer(t *testing.T, bus domain.EventBus, opts ...serverOption) *Server {
	t.Helper()
	cfg := config.GatewayConfig{Addr: "127.0.0.1:0"}
	for _, o := range opts {
		o(&cfg)
	}
	srv := NewServer(bus, newTestAuth(), cfg, testLogger())
	return runTestServer(t, srv)
}

func runTestServer(t *testing.T, srv *Server) *Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	go func() {
		// The test may have cancelled the context already.
		_ = srv.Start(ctx)
	}()

	deadline := time.Now().Add(3 * time.Second)
	for srv.BoundAddr() == "" {
		if time.Now().After(deadline) {
			t.Fatal("server did not start in time")
		}
		time.Sleep(5 * time.Millisecond)
	}

	t.Cleanup(func() {
		srv.Stop(context.Background())
	})
	return srv
}

func dialWS(t *testing.T, addr, token, content string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	url := "ws://" + addr + "/ws?token=" + token
	if content != "" {
		url += "&content=" + content
	}
	ws, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { ws.Close(websocket.StatusNormalClosure, "") })
	return ws
}

// call sends one request and returns its response, skipping event frames.
func call(t *testing.T, ws *websocket.Conn, id uint64, method string, payload any) Frame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := wsjson.Write(ctx, ws, Frame{Type: FrameTypeRequest, ID: id, Method: method, Payload: raw}); err != nil {
		t.Fatalf("write: %v", err)
	}
	for {
		var f Frame
		if err := wsjson.Read(ctx, ws, &f); err != nil {
			t.Fatalf("read: %v", err)
		}
		if f.Type == FrameTypeResponse && f.ID == id {
			return f
		}
	}
}

// nextEvent reads frames until an event on channel arrives.
func nextEvent(t *testing.T, ws *websocket.Conn, channel string) Frame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	for {
		var f Frame
		if err := wsjson.Read(ctx, ws, &f); err != nil {
			t.Fatalf("waiting for %s: %v", channel, err)
		}
		if f.Type == FrameTypeEvent && f.Method == channel {
			return f
		}
	}
}

func waitConnected(t *testing.T, srv *Server, n int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for srv.Connected() != n {
		if time.Now().After(deadline) {
			t.Fatalf("Connected = %d, want %d", srv.Connected(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// --- tests ---

func TestServerLifecycle(t *testing.T) {
	srv := startTestServer(t, &testBus{})

	if srv.BoundAddr() == "" {
		t.Fatal("BoundAddr is empty")
	}
}

func TestServerAuthReject(t *testing.T) {
	srv := startTestServer(t, &testBus{})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, _, err := websocket.Dial(ctx, "ws://"+srv.BoundAddr()+"/ws?token=bad-token", nil)
	if err == nil {
		t.Fatal("expected auth rejection")
	}
}

func TestServerRPCRoundtrip(t *testing.T) {
	srv := startTestServer(t, &testBus{})
	srv.RegisterHandler("echo", func(_ context.Context, _ *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		return payload, nil
	})

	ws := dialWS(t, srv.BoundAddr(), "test-token", "")
	resp := call(t, ws, 1, "echo", map[string]string{"msg": "hello"})

	if resp.Error != "" {
		t.Errorf("error = %q", resp.Error)
	}
	if string(resp.Payload) != `{"msg":"hello"}` {
		t.Errorf("payload = %s", resp.Payload)
	}
}

func TestServerHandlerSeesContentID(t *testing.T) {
	srv := startTestServer(t, &testBus{})
	srv.RegisterHandler("whoami", func(_ context.Context, client *ClientInfo, _ json.RawMessage) (json.RawMessage, error) {
		return json.Marshal(client.ContentID)
	})

	ws := dialWS(t, srv.BoundAddr(), "test-token", "content-7")
	resp := call(t, ws, 1, "whoami", nil)

	if string(resp.Payload) != `"content-7"` {
		t.Errorf("payload = %s, want \"content-7\"", resp.Payload)
	}
}

func TestServerUnknownMethod(t *testing.T) {
	srv := startTestServer(t, &testBus{})

	ws := dialWS(t, srv.BoundAddr(), "test-token", "")
	resp := call(t, ws, 2, "nonexistent", nil)

	if resp.Error == "" {
		t.Fatal("expected error for unknown method")
	}
	if resp.Code != string(domain.CodeRPCMethodNotFound) {
		t.Errorf("Code = %q, want %q", resp.Code, domain.CodeRPCMethodNotFound)
	}
}

func TestServerHandlerPanicRecovered(t *testing.T) {
	srv := startTestServer(t, &testBus{})
	srv.RegisterHandler("boom", func(context.Context, *ClientInfo, json.RawMessage) (json.RawMessage, error) {
		panic("kaboom")
	})
	srv.RegisterHandler("echo", func(_ context.Context, _ *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		return payload, nil
	})

	ws := dialWS(t, srv.BoundAddr(), "test-token", "")
	if resp := call(t, ws, 1, "boom", nil); resp.Error == "" {
		t.Fatal("expected error from panicking handler")
	}
	if resp := call(t, ws, 2, "echo", 1); string(resp.Payload) != "1" {
		t.Errorf("connection unusable after panic: payload = %s", resp.Payload)
	}
}

func TestServerRateLimit(t *testing.T) {
	srv := startTestServer(t, &testBus{}, func(c *config.GatewayConfig) {
		c.RateLimit.RequestsPerSecond = 0.001
		c.RateLimit.Burst = 1
	})
	srv.RegisterHandler("echo", func(_ context.Context, _ *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		return payload, nil
	})

	ws := dialWS(t, srv.BoundAddr(), "test-token", "")
	if resp := call(t, ws, 1, "echo", 1); resp.Error != "" {
		t.Fatalf("first call error = %q", resp.Error)
	}
	resp := call(t, ws, 2, "echo", 2)
	if resp.Code != string(domain.CodeRateLimit) {
		t.Errorf("Code = %q, want %q", resp.Code, domain.CodeRateLimit)
	}
}

func TestServerSendToTargetsContent(t *testing.T) {
	srv := startTestServer(t, &testBus{})
	srv.RegisterHandler("ping", func(context.Context, *ClientInfo, json.RawMessage) (json.RawMessage, error) {
		return okResult, nil
	})

	a := dialWS(t, srv.BoundAddr(), "test-token", "window-a")
	b := dialWS(t, srv.BoundAddr(), "test-token", "window-b")
	waitConnected(t, srv, 2)

	srv.SendTo("window-b", "window-maximized", true)
	srv.SendTo("window-a", "shortcut-called", "CmdOrCtrl+Enter")

	ev := nextEvent(t, a, "shortcut-called")
	if string(ev.Payload) != `"CmdOrCtrl+Enter"` {
		t.Errorf("payload = %s", ev.Payload)
	}
	ev = nextEvent(t, b, "window-maximized")
	if string(ev.Payload) != "true" {
		t.Errorf("payload = %s", ev.Payload)
	}

	// Had a's event leaked to b it would be queued ahead of this response.
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := wsjson.Write(ctx, b, Frame{Type: FrameTypeRequest, ID: 9, Method: "ping"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var f Frame
	if err := wsjson.Read(ctx, b, &f); err != nil {
		t.Fatalf("read: %v", err)
	}
	if f.Type != FrameTypeResponse {
		t.Errorf("b received %s %q, want the ping response", f.Type, f.Method)
	}
}

func TestServerForwardsBusEvents(t *testing.T) {
	bus := &testBus{}
	srv := startTestServer(t, bus)

	ws := dialWS(t, srv.BoundAddr(), "test-token", "window-a")
	waitConnected(t, srv, 1)

	bus.Publish(context.Background(), domain.NewEvent(domain.EventThemeChanged, domain.ThemeChangedPayload{IsDark: true, Mode: "dark"}))
	ev := nextEvent(t, ws, ChannelThemeChanged)
	if string(ev.Payload) != "true" {
		t.Errorf("theme payload = %s, want true", ev.Payload)
	}

	bus.Publish(context.Background(), domain.NewEvent(domain.EventConfigChanged, map[string]any{"fontSize": 16}))
	ev = nextEvent(t, ws, ChannelConfigChange)
	var settings map[string]any
	if err := json.Unmarshal(ev.Payload, &settings); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if settings["fontSize"] != float64(16) {
		t.Errorf("fontSize = %v", settings["fontSize"])
	}
}

func TestServerOnDisconnect(t *testing.T) {
	srv := NewServer(nil, newTestAuth(), config.GatewayConfig{Addr: "127.0.0.1:0"}, testLogger())
	left := make(chan string, 1)
	srv.OnDisconnect(func(c *ClientInfo) { left <- c.ContentID })
	runTestServer(t, srv)

	ws := dialWS(t, srv.BoundAddr(), "test-token", "window-z")
	waitConnected(t, srv, 1)
	ws.Close(websocket.StatusNormalClosure, "")

	select {
	case id := <-left:
		if id != "window-z" {
			t.Errorf("ContentID = %q", id)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("OnDisconnect not called")
	}
}

func TestServerStopAfterBoundAddrEndsServe(t *testing.T) {
	bus := &testBus{}
	srv := NewServer(bus, newTestAuth(), config.GatewayConfig{Addr: "127.0.0.1:0"}, testLogger())

	done := make(chan error, 1)
	go func() { done <- srv.Start(context.Background()) }()

	deadline := time.Now().Add(3 * time.Second)
	for srv.BoundAddr() == "" {
		if time.Now().After(deadline) {
			t.Fatal("server did not start in time")
		}
		time.Sleep(time.Millisecond)
	}
	if err := srv.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start returned %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Start kept serving after Stop")
	}

	bus.mu.Lock()
	n := len(bus.handlers)
	bus.mu.Unlock()
	if n != 0 {
		t.Errorf("bus subscriptions after Stop = %d, want 0", n)
	}
}

func TestServerStopBeforeStart(t *testing.T) {
	srv := NewServer(&testBus{}, newTestAuth(), config.GatewayConfig{Addr: "127.0.0.1:0"}, testLogger())
	if err := srv.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- srv.Start(context.Background()) }()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start after Stop = %v, want nil", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Start served after Stop")
	}
	if srv.BoundAddr() != "" {
		t.Errorf("BoundAddr = %q after a stopped Start", srv.BoundAddr())
	}
}
