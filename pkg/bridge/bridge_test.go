package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-temi/internal/log"
	"github.com/teslashibe/go-temi/pkg/protocol"
	"github.com/teslashibe/go-temi/pkg/temi"
)

func newBridge(t *testing.T, connected bool) (*Bridge, *temi.Robot, *temi.MockService) {
	t.Helper()
	robot := temi.New(temi.AppInfo{PackageName: "com.example.skill"}, temi.WithLogger(log.Discard()))
	t.Cleanup(robot.Close)

	mock := temi.NewMock()
	if connected {
		robot.SetService(mock)
	}
	b := New(robot, WithLogger(log.Discard()))
	t.Cleanup(b.Close)
	return b, robot, mock
}

func do(t *testing.T, b *Bridge, method, path, body string) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := b.App().Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	out := map[string]any{}
	data, _ := io.ReadAll(resp.Body)
	if len(data) > 0 {
		json.Unmarshal(data, &out)
	}
	return resp.StatusCode, out
}

func TestStatus(t *testing.T) {
	b, _, _ := newBridge(t, true)

	code, body := do(t, b, "GET", "/api/status", "")
	if code != 200 {
		t.Fatalf("status = %d", code)
	}
	if body["ready"] != true || body["serial_number"] != "00119140017" || body["package_name"] != "com.example.skill" {
		t.Errorf("body = %v", body)
	}
	if body["wakeup_word"] != "hey temi" {
		t.Errorf("wakeup_word = %v", body["wakeup_word"])
	}
}

func TestStatusWithConnectionStats(t *testing.T) {
	robot := temi.New(temi.AppInfo{PackageName: "com.example.skill"}, temi.WithLogger(log.Discard()))
	t.Cleanup(robot.Close)
	b := New(robot, WithLogger(log.Discard()), WithConnectionStats(func() any {
		return map[string]int{"binds": 3}
	}))
	t.Cleanup(b.Close)

	_, body := do(t, b, "GET", "/api/status", "")
	conn, ok := body["connection"].(map[string]any)
	if !ok || conn["binds"] != float64(3) {
		t.Errorf("connection = %v", body["connection"])
	}
	if body["ready"] != false {
		t.Errorf("ready = %v, want false", body["ready"])
	}
}

func TestNotReady(t *testing.T) {
	b, _, _ := newBridge(t, false)

	tests := []struct {
		method, path, body string
	}{
		{"GET", "/api/locations", ""},
		{"POST", "/api/goto", `{"location":"kitchen"}`},
		{"POST", "/api/speak", `{"speech":"hi"}`},
		{"GET", "/api/battery", ""},
		{"POST", "/api/notifications", `{"title":"hi"}`},
		{"POST", "/api/alerts", `{"notification_id":"a1","title":"hi"}`},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			code, body := do(t, b, tt.method, tt.path, tt.body)
			if code != 503 {
				t.Errorf("status = %d, want 503", code)
			}
			if body["error"] != temi.ErrNotReady.Error() {
				t.Errorf("error = %v", body["error"])
			}
		})
	}
}

func TestLocations(t *testing.T) {
	b, _, mock := newBridge(t, true)

	code, body := do(t, b, "GET", "/api/locations", "")
	locs, _ := body["locations"].([]any)
	if code != 200 || len(locs) != 2 {
		t.Errorf("GET locations = %d %v", code, body)
	}

	if code, _ := do(t, b, "POST", "/api/locations", `{"name":"lobby"}`); code != 201 {
		t.Errorf("save status = %d, want 201", code)
	}
	if code, _ := do(t, b, "POST", "/api/locations", `{"name":"  "}`); code != 400 {
		t.Errorf("blank save status = %d, want 400", code)
	}

	mock.SaveResult = false
	if code, _ := do(t, b, "POST", "/api/locations", `{"name":"lobby"}`); code != 409 {
		t.Errorf("rejected save status = %d, want 409", code)
	}

	if code, _ := do(t, b, "DELETE", "/api/locations/front%20door", ""); code != 200 {
		t.Errorf("delete status = %d, want 200", code)
	}
	call, ok := mock.LastCall(protocol.MethodDeleteLocation)
	if !ok || call.Args[0] != "front door" {
		t.Errorf("deleteLocation call = %+v", call)
	}
}

func TestGoTo(t *testing.T) {
	b, _, mock := newBridge(t, true)

	if code, _ := do(t, b, "POST", "/api/goto", `{"location":"kitchen"}`); code != 202 {
		t.Errorf("status = %d, want 202", code)
	}
	if call, ok := mock.LastCall(protocol.MethodGoTo); !ok || call.Args[0] != "kitchen" {
		t.Errorf("goTo call = %+v", call)
	}

	code, body := do(t, b, "POST", "/api/goto", `{"location":""}`)
	if code != 400 || body["error"] != temi.ErrEmptyLocation.Error() {
		t.Errorf("empty goto = %d %v", code, body)
	}
	if code, _ := do(t, b, "POST", "/api/goto", `{bad`); code != 400 {
		t.Errorf("bad body status = %d, want 400", code)
	}
}

func TestMotion(t *testing.T) {
	b, _, mock := newBridge(t, true)

	if code, _ := do(t, b, "POST", "/api/turn", `{"degrees":90}`); code != 202 {
		t.Errorf("turn status = %d", code)
	}
	if call, ok := mock.LastCall(protocol.MethodTurnBy); !ok || call.Args[0] != 90 {
		t.Errorf("turnBy call = %+v", call)
	}

	code, body := do(t, b, "POST", "/api/tilt", `{"angle":80}`)
	if code != 202 || body["angle"] != float64(temi.MaxTiltAngle) {
		t.Errorf("tilt = %d %v", code, body)
	}
	if call, ok := mock.LastCall(protocol.MethodTiltAngle); !ok || call.Args[0] != temi.MaxTiltAngle {
		t.Errorf("tiltAngle call = %+v", call)
	}

	if code, _ := do(t, b, "POST", "/api/tilt", `{"by":-5}`); code != 202 {
		t.Errorf("tilt by status = %d", code)
	}
	if code, _ := do(t, b, "POST", "/api/tilt", `{"angle":1,"by":1}`); code != 400 {
		t.Errorf("ambiguous tilt status = %d, want 400", code)
	}

	if code, _ := do(t, b, "POST", "/api/follow", ""); code != 202 {
		t.Errorf("follow status = %d", code)
	}
	if code, _ := do(t, b, "POST", "/api/stop", `{"speech":true}`); code != 204 {
		t.Errorf("stop status = %d", code)
	}
	if mock.CallCount(protocol.MethodStopMovement) != 1 || mock.CallCount(protocol.MethodCancelAll) != 1 {
		t.Errorf("calls = %+v", mock.Calls())
	}
	if code, _ := do(t, b, "POST", "/api/stop", ""); code != 204 {
		t.Errorf("stop without body status = %d", code)
	}
}

func TestSpeak(t *testing.T) {
	b, _, mock := newBridge(t, true)

	code, body := do(t, b, "POST", "/api/speak", `{"speech":"hello"}`)
	if code != 202 || body["id"] == "" {
		t.Fatalf("speak = %d %v", code, body)
	}
	call, ok := mock.LastCall(protocol.MethodSpeak)
	if !ok {
		t.Fatal("speak not forwarded")
	}
	req := call.Args[0].(temi.TtsRequest)
	if req.Speech != "hello" || req.PackageName != "com.example.skill" || req.ID.String() != body["id"] {
		t.Errorf("speak request = %+v", req)
	}

	if code, _ := do(t, b, "POST", "/api/speak", `{"speech":" "}`); code != 400 {
		t.Errorf("empty speech status = %d, want 400", code)
	}
}

func TestQueries(t *testing.T) {
	b, _, mock := newBridge(t, true)

	code, body := do(t, b, "GET", "/api/battery", "")
	if code != 200 || body["level"] != float64(80) {
		t.Errorf("battery = %d %v", code, body)
	}
	_, body = do(t, b, "GET", "/api/contacts", "")
	if contacts, _ := body["contacts"].([]any); len(contacts) != 1 {
		t.Errorf("contacts = %v", body)
	}
	_, body = do(t, b, "GET", "/api/recent-calls", "")
	if calls, ok := body["calls"].([]any); !ok || len(calls) != 0 {
		t.Errorf("recent calls = %v", body)
	}

	mock.Battery = nil
	if code, _ := do(t, b, "GET", "/api/battery", ""); code != 502 {
		t.Errorf("missing battery status = %d, want 502", code)
	}
}

func TestTelepresence(t *testing.T) {
	b, _, mock := newBridge(t, true)

	code, body := do(t, b, "POST", "/api/telepresence", `{"display_name":"Ada","peer_id":"u1"}`)
	if code != 201 || body["session_id"] != "session-1" {
		t.Errorf("telepresence = %d %v", code, body)
	}
	if code, _ := do(t, b, "POST", "/api/telepresence", `{"display_name":"Ada"}`); code != 400 {
		t.Errorf("missing peer status = %d, want 400", code)
	}

	mock.SessionID = ""
	if code, _ := do(t, b, "POST", "/api/telepresence", `{"peer_id":"u1"}`); code != 502 {
		t.Errorf("failed call status = %d, want 502", code)
	}
}

func TestAlerts(t *testing.T) {
	b, robot, mock := newBridge(t, true)

	code, body := do(t, b, "POST", "/api/alerts", `{"title":"Door","buttons":["ok"]}`)
	id, _ := body["notification_id"].(string)
	if code != 201 || id == "" {
		t.Fatalf("show alert = %d %v", code, body)
	}
	if robot.PendingAlerts() != 1 {
		t.Errorf("PendingAlerts() = %d, want 1", robot.PendingAlerts())
	}

	if code, _ := do(t, b, "DELETE", "/api/alerts/"+id, ""); code != 204 {
		t.Errorf("remove status = %d, want 204", code)
	}
	if robot.PendingAlerts() != 0 {
		t.Errorf("PendingAlerts() = %d after remove", robot.PendingAlerts())
	}

	mock.SetErr(errors.New("service busy"))
	if code, _ := do(t, b, "POST", "/api/notifications", `{"title":"hi"}`); code != 502 {
		t.Errorf("failed notification status = %d, want 502", code)
	}
}

func TestEventsRequiresUpgrade(t *testing.T) {
	b, _, _ := newBridge(t, true)
	if code, _ := do(t, b, "GET", "/ws/events", ""); code != 426 {
		t.Errorf("status = %d, want 426", code)
	}
}

// serve runs b on a local listener and returns its address.
func serve(t *testing.T, b *Bridge) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return ln.Addr().String()
}

type event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// connectEvents dials /ws/events and consumes the status greeting.
func connectEvents(t *testing.T, b *Bridge, addr string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws/events", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	var ev event
	if err := conn.ReadJSON(&ev); err != nil || ev.Event != EventStatus {
		t.Fatalf("greeting = %+v, %v", ev, err)
	}
	waitFor(t, func() bool { return b.Clients() >= 1 })
	return conn
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNoListenersWithoutStream(t *testing.T) {
	_, robot, mock := newBridge(t, true)

	cb := mock.Callback()
	if robot.Callback().HasActiveNlpListeners() {
		t.Error("HasActiveNlpListeners() = true with no stream client")
	}
	if cb.OnNlpCompleted(temi.NlpResult{Action: temi.DefaultAction}) {
		t.Error("nlp event handled with no stream client")
	}
	if cb.OnGoToLocationStatusChanged("kitchen", temi.GoToStart, 0, "") {
		t.Error("go-to event handled with no stream client")
	}
}

func TestEventStream(t *testing.T) {
	b, robot, mock := newBridge(t, true)
	addr := serve(t, b)

	conn := connectEvents(t, b, addr)
	defer conn.Close()

	cb := mock.Callback()
	if !cb.HasActiveNlpListeners() {
		t.Error("HasActiveNlpListeners() = false while a stream client is connected")
	}
	if !cb.OnGoToLocationStatusChanged("kitchen", temi.GoToGoing, 0, "") {
		t.Error("go-to event not handled while the bridge is listening")
	}
	robot.Sync()

	var ev event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read: %v", err)
	}
	var status temi.GoToLocationStatus
	json.Unmarshal(ev.Data, &status)
	if ev.Event != EventGoTo || status.Location != "kitchen" || status.Status != temi.GoToGoing {
		t.Errorf("event = %s %+v", ev.Event, status)
	}
}

func TestLastClientUnsubscribes(t *testing.T) {
	b, _, mock := newBridge(t, true)
	addr := serve(t, b)
	cb := mock.Callback()

	first := connectEvents(t, b, addr)
	second := connectEvents(t, b, addr)
	waitFor(t, func() bool { return b.Clients() == 2 })

	first.Close()
	waitFor(t, func() bool { return b.Clients() == 1 })
	if !cb.HasActiveNlpListeners() {
		t.Error("listeners dropped while a client is still connected")
	}

	second.Close()
	waitFor(t, func() bool { return !cb.HasActiveNlpListeners() })
	if cb.OnWakeupWord("hey temi") {
		t.Error("wakeup word handled after the last client left")
	}
}

func TestCallWatchEnds(t *testing.T) {
	b, robot, mock := newBridge(t, true)

	for range 3 {
		if code, _ := do(t, b, "POST", "/api/telepresence", `{"peer_id":"u1"}`); code != 201 {
			t.Fatalf("telepresence status = %d", code)
		}
		if b.watchedCalls() != 1 {
			t.Fatalf("watchedCalls() = %d, want 1", b.watchedCalls())
		}
		cb := mock.Callback()
		if !cb.OnTelepresenceStatusChanged(temi.CallState{SessionID: "session-1", State: temi.CallEnded}) {
			t.Fatal("call end not handled while watched")
		}
		robot.Sync()
		if b.watchedCalls() != 0 {
			t.Fatalf("watchedCalls() = %d after end, want 0", b.watchedCalls())
		}
		if cb.OnTelepresenceStatusChanged(temi.CallState{SessionID: "session-1", State: temi.CallEnded}) {
			t.Error("call still watched after it ended")
		}
	}
}

func TestCloseUnsubscribes(t *testing.T) {
	b, robot, mock := newBridge(t, true)
	addr := serve(t, b)
	conn := connectEvents(t, b, addr)
	defer conn.Close()

	if code, _ := do(t, b, "POST", "/api/telepresence", `{"peer_id":"u1"}`); code != 201 {
		t.Fatalf("telepresence status = %d", code)
	}
	b.Close()

	cb := mock.Callback()
	if cb.OnWakeupWord("hey temi") {
		t.Error("wakeup word still handled after Close")
	}
	if cb.OnTelepresenceStatusChanged(temi.CallState{SessionID: "session-1", State: temi.CallStarted}) {
		t.Error("call still watched after Close")
	}
	if b.watchedCalls() != 0 {
		t.Errorf("watchedCalls() = %d after Close", b.watchedCalls())
	}
	robot.Sync()
}
