package rpc

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-temi/internal/log"
	"github.com/teslashibe/go-temi/pkg/protocol"
	"github.com/teslashibe/go-temi/pkg/temi"
)

func startServer(t *testing.T, backend temi.Service, opts ...Option) (*Server, string) {
	t.Helper()

	srv := NewServer(backend, append([]Option{WithLogger(log.Discard())}, opts...)...)
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	srv.RegisterRoutes(app)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go app.Listener(ln)
	t.Cleanup(func() { app.ShutdownWithTimeout(time.Second) })

	return srv, "ws://" + ln.Addr().String() + Path
}

func dialClient(t *testing.T, url string, opts ...Option) *Client {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, err := Dial(ctx, url, append([]Option{WithLogger(log.Discard())}, opts...)...)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func onlySession(t *testing.T, srv *Server) *session {
	t.Helper()
	waitFor(t, "session", func() bool { return srv.SessionCount() == 1 })
	srv.mu.RLock()
	defer srv.mu.RUnlock()
	for _, s := range srv.sessions {
		return s
	}
	return nil
}

func TestCallRoundTrip(t *testing.T) {
	mock := temi.NewMock()
	_, url := startServer(t, mock)
	c := dialClient(t, url)

	if err := c.Speak(temi.NewTtsRequest("hello", false)); err != nil {
		t.Fatalf("Speak() error = %v", err)
	}
	locations, err := c.GetLocations()
	if err != nil || len(locations) != 2 || locations[1] != "kitchen" {
		t.Errorf("GetLocations() = %v, %v", locations, err)
	}
	saved, err := c.SaveLocation("lobby")
	if err != nil || !saved {
		t.Errorf("SaveLocation() = %v, %v", saved, err)
	}
	if err := c.TurnBy(90, 1); err != nil {
		t.Fatalf("TurnBy() error = %v", err)
	}
	session, err := c.StartTelepresence("Ada", "u1")
	if err != nil || session != "session-1" {
		t.Errorf("StartTelepresence() = %q, %v", session, err)
	}
	battery, err := c.GetBatteryData()
	if err != nil || battery == nil || battery.Level != 80 {
		t.Errorf("GetBatteryData() = %+v, %v", battery, err)
	}

	call, ok := mock.LastCall(protocol.MethodTurnBy)
	if !ok || call.Args[0] != 90 || call.Args[1] != float32(1) {
		t.Errorf("turnBy call = %+v", call)
	}
	call, ok = mock.LastCall(protocol.MethodStartTelepresence)
	if !ok || call.Args[0] != "Ada" || call.Args[1] != "u1" {
		t.Errorf("startTelepresence call = %+v", call)
	}
}

func TestRemoteError(t *testing.T) {
	mock := temi.NewMock()
	_, url := startServer(t, mock)
	c := dialClient(t, url)

	mock.SetErr(errors.New("navigation busy"))
	err := c.GoTo("kitchen")

	var remote *RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("GoTo() error = %v, want *RemoteError", err)
	}
	if remote.Method != protocol.MethodGoTo || remote.Message != "navigation busy" {
		t.Errorf("remote error = %+v", remote)
	}
}

func TestUnknownMethod(t *testing.T) {
	_, url := startServer(t, temi.NewMock())
	c := dialClient(t, url)

	err := c.call("fly", nil, nil)
	if err == nil || !strings.Contains(err.Error(), "unknown method") {
		t.Errorf("call() error = %v, want unknown method", err)
	}
}

func TestEventsReachRobotListeners(t *testing.T) {
	mock := temi.NewMock()
	_, url := startServer(t, mock)
	c := dialClient(t, url)

	robot := temi.New(temi.AppInfo{PackageName: "com.example.skill"}, temi.WithLogger(log.Discard()))
	t.Cleanup(robot.Close)
	robot.SetService(c)

	proxy := mock.Callback()
	if proxy == nil {
		t.Fatal("register should reach the backend")
	}
	if proxy.OnWakeupWord("hey temi") {
		t.Error("no listener yet, event should not be handled")
	}

	words := make(chan string, 1)
	robot.AddWakeupWordListener(func(w string) { words <- w })
	if !proxy.OnWakeupWord("hey temi") {
		t.Error("event should be handled once a listener exists")
	}
	select {
	case w := <-words:
		if w != "hey temi" {
			t.Errorf("wakeup word = %q", w)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("listener was not called")
	}

	if proxy.OnGoToLocationStatusChanged("kitchen", temi.GoToGoing, 0, "") {
		t.Error("go-to event has no listener and should not be handled")
	}
}

func TestAlertClickOverWire(t *testing.T) {
	mock := temi.NewMock()
	_, url := startServer(t, mock)
	c := dialClient(t, url)

	robot := temi.New(temi.AppInfo{PackageName: "com.example.skill"}, temi.WithLogger(log.Discard()))
	t.Cleanup(robot.Close)
	robot.SetService(c)

	alert := temi.NewAlertNotification("Door", "Someone is here", "Open")
	clicks := make(chan int, 2)
	if err := robot.ShowAlertNotification(alert, func(b int) { clicks <- b }); err != nil {
		t.Fatalf("ShowAlertNotification() error = %v", err)
	}

	mock.Callback().OnNotificationBtnClicked(temi.NotificationCallback{NotificationID: alert.NotificationID, Event: 1})
	select {
	case b := <-clicks:
		if b != 1 {
			t.Errorf("button = %d, want 1", b)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("alert callback was not called")
	}
}

func TestAckWithoutCallback(t *testing.T) {
	srv, url := startServer(t, temi.NewMock())
	dialClient(t, url)

	sess := onlySession(t, srv)
	if sess.proxy.OnUserUpdated(temi.UserInfo{UserID: "u1"}) {
		t.Error("client without callback should ack false")
	}
	if srv.Stats().AckTimeouts != 0 {
		t.Error("ack should have arrived before the timeout")
	}
}

func TestAckTimeout(t *testing.T) {
	srv, url := startServer(t, temi.NewMock(), WithCallTimeout(50*time.Millisecond))

	// A raw socket that never answers events.
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()

	sess := onlySession(t, srv)
	if sess.proxy.OnTtsStatusChanged(temi.TtsRequest{Status: temi.TtsStarted}) {
		t.Error("unanswered event should report false")
	}
	if got := srv.Stats().AckTimeouts; got != 1 {
		t.Errorf("AckTimeouts = %d, want 1", got)
	}
}

func TestPing(t *testing.T) {
	_, url := startServer(t, temi.NewMock())
	c := dialClient(t, url)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := c.Ping(ctx); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}

func TestClosedClient(t *testing.T) {
	_, url := startServer(t, temi.NewMock())
	c := dialClient(t, url)

	c.Close()
	<-c.Done()
	if !errors.Is(c.Err(), ErrClosed) {
		t.Errorf("Err() = %v, want ErrClosed", c.Err())
	}
	if err := c.Speak(temi.NewTtsRequest("hi", false)); !errors.Is(err, ErrClosed) {
		t.Errorf("Speak() after close = %v, want ErrClosed", err)
	}
}

// lockedBuffer collects log output written from several goroutines.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestPongFailureLogged(t *testing.T) {
	_, url := startServer(t, temi.NewMock())

	var out lockedBuffer
	logger := slog.New(slog.NewTextHandler(&out, &slog.HandlerOptions{Level: slog.LevelDebug}))
	c := dialClient(t, url, WithLogger(logger))
	c.Close()
	<-c.Done()

	ping, err := protocol.NewPingMessage("p1")
	if err != nil {
		t.Fatal(err)
	}
	c.answerPing(ping)
	if !strings.Contains(out.String(), "pong not sent") {
		t.Errorf("log = %q, want pong failure", out.String())
	}
}

// rawServer upgrades with gorilla and hands the socket to fn.
func rawServer(t *testing.T, fn func(*websocket.Conn)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		fn(conn)
	}))
	t.Cleanup(ts.Close)
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func TestServiceDropsConnection(t *testing.T) {
	url := rawServer(t, func(conn *websocket.Conn) {
		conn.ReadMessage()
	})
	c := dialClient(t, url)

	err := c.ShowTopBar()
	if err == nil {
		t.Fatal("call on dropped connection should fail")
	}
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Done should close when the service hangs up")
	}
	if c.Err() == nil {
		t.Error("Err() should explain the disconnect")
	}
}

func TestCallTimeout(t *testing.T) {
	url := rawServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	c := dialClient(t, url, WithCallTimeout(50*time.Millisecond))

	if _, err := c.GetSerialNumber(); !errors.Is(err, ErrTimeout) {
		t.Errorf("GetSerialNumber() error = %v, want ErrTimeout", err)
	}
}

func TestDeliverEventUnknown(t *testing.T) {
	robot := temi.New(temi.AppInfo{}, temi.WithLogger(log.Discard()))
	defer robot.Close()

	msg, _ := protocol.NewEvent("e1", "onLevitate", nil)
	if _, err := deliverEvent(robot.Callback(), msg); err == nil {
		t.Error("unknown event should fail to decode")
	}
}

func TestRoutes(t *testing.T) {
	srv := NewServer(temi.NewMock(), WithLogger(log.Discard()))
	app := fiber.New()
	srv.RegisterRoutes(app)
	srv.RegisterAPIRoutes(app.Group("/api"))

	tests := []struct {
		path string
		want int
	}{
		{Path, fiber.StatusUpgradeRequired},
		{"/api/stats", fiber.StatusOK},
		{"/api/sessions", fiber.StatusOK},
	}
	for _, tt := range tests {
		resp, err := app.Test(httptest.NewRequest("GET", tt.path, nil))
		if err != nil {
			t.Fatalf("GET %s: %v", tt.path, err)
		}
		if resp.StatusCode != tt.want {
			t.Errorf("GET %s status = %d, want %d", tt.path, resp.StatusCode, tt.want)
		}
	}
}
