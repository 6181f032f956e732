package temi

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-temi/internal/log"
)

var errTransport = errors.New("transport closed")

func newTestRobot(t *testing.T, app AppInfo) *Robot {
	t.Helper()
	r := New(app, WithLogger(log.Discard()))
	t.Cleanup(r.Close)
	return r
}

func testApp() AppInfo {
	return AppInfo{PackageName: "com.example.skill"}
}

// recorder collects values delivered to listeners.
type recorder[T any] struct {
	mu     sync.Mutex
	values []T
}

func (r *recorder[T]) add(v T) {
	r.mu.Lock()
	r.values = append(r.values, v)
	r.mu.Unlock()
}

func (r *recorder[T]) get() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]T, len(r.values))
	copy(out, r.values)
	return out
}

func TestReadyListenerBeforeConnect(t *testing.T) {
	r := newTestRobot(t, testApp())

	var got recorder[bool]
	r.AddOnRobotReadyListener(got.add)

	if vals := got.get(); len(vals) != 1 || vals[0] {
		t.Fatalf("ready listener got %v, want [false]", vals)
	}

	r.SetService(NewMock())
	r.Sync()

	if vals := got.get(); len(vals) != 2 || !vals[1] {
		t.Fatalf("ready listener got %v, want [false true]", vals)
	}
}

func TestReadyListenerAfterConnect(t *testing.T) {
	r := newTestRobot(t, testApp())
	r.SetService(NewMock())
	r.Sync()

	var got recorder[bool]
	r.AddOnRobotReadyListener(got.add)

	if vals := got.get(); len(vals) != 1 || !vals[0] {
		t.Fatalf("ready listener got %v, want [true]", vals)
	}
	if !r.IsReady() {
		t.Error("IsReady() = false after SetService")
	}
}

func TestReadyListenerOnDisconnect(t *testing.T) {
	r := newTestRobot(t, testApp())
	r.SetService(NewMock())

	var got recorder[bool]
	sub := r.AddOnRobotReadyListener(got.add)
	r.SetService(nil)
	r.Sync()

	vals := got.get()
	if len(vals) == 0 || vals[len(vals)-1] {
		t.Fatalf("ready listener got %v, want last value false", vals)
	}
	if r.IsReady() {
		t.Error("IsReady() = true after SetService(nil)")
	}

	sub.Close()
	r.SetService(NewMock())
	r.Sync()
	if n := len(got.get()); n != len(vals) {
		t.Errorf("closed ready listener still notified: %d calls, want %d", n, len(vals))
	}
}

func TestSetServiceRegistersCallback(t *testing.T) {
	r := newTestRobot(t, testApp())
	mock := NewMock()
	r.SetService(mock)

	call, ok := mock.LastCall("register")
	if !ok {
		t.Fatal("Register was not called")
	}
	if app := call.Args[0].(AppInfo); app.PackageName != "com.example.skill" {
		t.Errorf("registered package = %q", app.PackageName)
	}
	if mock.Callback() != r.Callback() {
		t.Error("registered callback should be the robot's sink")
	}
}

func TestDisconnectedDefaults(t *testing.T) {
	r := newTestRobot(t, testApp())

	if got := r.GetLocations(); got == nil || len(got) != 0 {
		t.Errorf("GetLocations() = %#v, want empty list", got)
	}
	if r.SaveLocation("kitchen") {
		t.Error("SaveLocation() = true while disconnected")
	}
	if r.DeleteLocation("kitchen") {
		t.Error("DeleteLocation() = true while disconnected")
	}
	if got := r.GetSerialNumber(); got != "" {
		t.Errorf("GetSerialNumber() = %q, want empty", got)
	}
	if got := r.GetBatteryData(); got != nil {
		t.Errorf("GetBatteryData() = %+v, want nil", got)
	}
	if got := r.StartTelepresence("Ada", "u1"); got != "" {
		t.Errorf("StartTelepresence() = %q, want empty", got)
	}
	if got := r.GetAdminInfo(); got != nil {
		t.Errorf("GetAdminInfo() = %+v, want nil", got)
	}
	if got := r.GetAllContacts(); got == nil || len(got) != 0 {
		t.Errorf("GetAllContacts() = %#v, want empty list", got)
	}
	if got := r.GetRecentCalls(); got == nil || len(got) != 0 {
		t.Errorf("GetRecentCalls() = %#v, want empty list", got)
	}
	if got := r.GetWakeupWord(); got != "" {
		t.Errorf("GetWakeupWord() = %q, want empty", got)
	}
	if err := r.GoTo("kitchen"); err != nil {
		t.Errorf("GoTo() error = %v, want nil while disconnected", err)
	}

	// Fire-and-forget calls must not panic.
	r.Speak(NewTtsRequest("hello", false))
	r.CancelAllTtsRequests()
	r.BeWithMe()
	r.StopMovement()
	r.SkidJoy(1, 0)
	r.TurnBy(90)
	r.TiltAngle(10)
	r.TiltBy(5)
	r.ShowAppList()
	r.ShowTopBar()
	r.HideTopBar()
	r.ToggleWakeup(true)
	r.ToggleNavigationBillboard(true)
	r.Wakeup()
	r.LockContexts([]string{"ctx"})
	r.ReleaseContexts([]string{"ctx"})
	r.OnStart(ActivityInfo{PackageName: "com.example.skill", ActivityName: "Main"})
}

func TestDisconnectedErrors(t *testing.T) {
	r := newTestRobot(t, testApp())

	checks := map[string]error{
		"ShowNormalNotification":  r.ShowNormalNotification(NormalNotification{Title: "hi"}),
		"ShowAlertNotification":   r.ShowAlertNotification(NewAlertNotification("hi", ""), nil),
		"RemoveAlertNotification": r.RemoveAlertNotification(NewAlertNotification("hi", "")),
		"UpdateMediaBar":          r.UpdateMediaBar(MediaBarData{Title: "song"}),
		"PauseMediaBar":           r.PauseMediaBar(),
		"SetMediaPlaying":         r.SetMediaPlaying(true),
		"ShareActivityObject":     r.ShareActivityObject(ActivityStreamObject{Title: "hi"}),
	}
	for name, err := range checks {
		if !errors.Is(err, ErrNotReady) {
			t.Errorf("%s error = %v, want ErrNotReady", name, err)
		}
	}
}

func TestTransportFailureDefaults(t *testing.T) {
	r := newTestRobot(t, testApp())
	mock := NewMock()
	r.SetService(mock)
	mock.SetErr(errTransport)

	if got := r.GetLocations(); len(got) != 0 {
		t.Errorf("GetLocations() = %v, want empty on transport failure", got)
	}
	if r.SaveLocation("kitchen") {
		t.Error("SaveLocation() = true on transport failure")
	}
	if got := r.GetSerialNumber(); got != "" {
		t.Errorf("GetSerialNumber() = %q, want empty", got)
	}
	if got := r.StartTelepresence("Ada", "u1"); got != "" {
		t.Errorf("StartTelepresence() = %q, want empty", got)
	}
	if got := r.GetBatteryData(); got != nil {
		t.Errorf("GetBatteryData() = %+v, want nil", got)
	}
	if err := r.GoTo("kitchen"); err != nil {
		t.Errorf("GoTo() error = %v, transport failures must be swallowed", err)
	}

	err := r.ShowNormalNotification(NormalNotification{Title: "hi"})
	if !errors.Is(err, errTransport) {
		t.Errorf("ShowNormalNotification() error = %v, want wrapped transport error", err)
	}
}

func TestForwarding(t *testing.T) {
	r := newTestRobot(t, testApp())
	mock := NewMock()
	r.SetService(mock)

	if got := r.GetLocations(); len(got) != 2 || got[0] != "home base" {
		t.Errorf("GetLocations() = %v", got)
	}
	if !r.SaveLocation("desk") {
		t.Error("SaveLocation() = false")
	}
	if got := r.GetSerialNumber(); got != "00119140017" {
		t.Errorf("GetSerialNumber() = %q", got)
	}
	if got := r.StartTelepresence("Ada", "u1"); got != "session-1" {
		t.Errorf("StartTelepresence() = %q", got)
	}
	if got := r.GetBatteryData(); got == nil || got.Level != 80 {
		t.Errorf("GetBatteryData() = %+v", got)
	}

	r.Speak(NewTtsRequest("hello", true))
	call, ok := mock.LastCall("speak")
	if !ok {
		t.Fatal("Speak was not forwarded")
	}
	if req := call.Args[0].(TtsRequest); req.PackageName != "com.example.skill" || req.Speech != "hello" {
		t.Errorf("forwarded TtsRequest = %+v", req)
	}

	r.TurnBy(90)
	call, _ = mock.LastCall("turnBy")
	if call.Args[0].(int) != 90 || call.Args[1].(float32) != 1.0 {
		t.Errorf("turnBy args = %v, want [90 1]", call.Args)
	}

	if err := r.SetMediaPlaying(true); err != nil {
		t.Fatalf("SetMediaPlaying() error = %v", err)
	}
	call, _ = mock.LastCall("setMediaPlaying")
	if call.Args[1].(string) != "com.example.skill" {
		t.Errorf("setMediaPlaying package = %v", call.Args[1])
	}

	if err := r.UpdateMediaBar(MediaBarData{Title: "song"}); err != nil {
		t.Fatalf("UpdateMediaBar() error = %v", err)
	}
	call, _ = mock.LastCall("updateMediaBar")
	if data := call.Args[0].(MediaBarData); data.PackageName != "com.example.skill" {
		t.Errorf("media bar package = %q", data.PackageName)
	}
}

func TestGoToEmptyLocation(t *testing.T) {
	r := newTestRobot(t, testApp())
	mock := NewMock()
	r.SetService(mock)

	for _, loc := range []string{"", "   "} {
		if err := r.GoTo(loc); !errors.Is(err, ErrEmptyLocation) {
			t.Errorf("GoTo(%q) error = %v, want ErrEmptyLocation", loc, err)
		}
	}
	if n := mock.CallCount("goTo"); n != 0 {
		t.Errorf("goTo forwarded %d times, want 0", n)
	}

	if err := r.GoTo("kitchen"); err != nil {
		t.Fatalf("GoTo() error = %v", err)
	}
	if n := mock.CallCount("goTo"); n != 1 {
		t.Errorf("goTo forwarded %d times, want 1", n)
	}
}

func TestMotionClamping(t *testing.T) {
	r := newTestRobot(t, testApp())
	mock := NewMock()
	r.SetService(mock)

	r.TiltAngle(90)
	call, _ := mock.LastCall("tiltAngle")
	if call.Args[0].(int) != MaxTiltAngle {
		t.Errorf("tiltAngle = %v, want %d", call.Args[0], MaxTiltAngle)
	}

	r.TiltAngle(-90)
	call, _ = mock.LastCall("tiltAngle")
	if call.Args[0].(int) != MinTiltAngle {
		t.Errorf("tiltAngle = %v, want %d", call.Args[0], MinTiltAngle)
	}

	r.SkidJoy(3, -2)
	call, _ = mock.LastCall("skidJoy")
	if call.Args[0].(float32) != 1 || call.Args[1].(float32) != -1 {
		t.Errorf("skidJoy = %v, want [1 -1]", call.Args)
	}
}

func TestKioskOnlyToggles(t *testing.T) {
	tests := []struct {
		name  string
		app   AppInfo
		calls int
	}{
		{name: "regular app", app: testApp(), calls: 0},
		{name: "kiosk app", app: AppInfo{PackageName: "com.example.kiosk", MetaData: map[string]bool{MetaDataKiosk: true}}, calls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRobot(t, tt.app)
			mock := NewMock()
			r.SetService(mock)

			r.ToggleWakeup(true)
			r.ToggleNavigationBillboard(true)

			if n := mock.CallCount("toggleWakeup"); n != tt.calls {
				t.Errorf("toggleWakeup calls = %d, want %d", n, tt.calls)
			}
			if n := mock.CallCount("toggleNavigationBillboard"); n != tt.calls {
				t.Errorf("toggleNavigationBillboard calls = %d, want %d", n, tt.calls)
			}
		})
	}
}

func TestShareActivityObject(t *testing.T) {
	r := New(testApp(), WithLogger(log.Discard()))
	mock := NewMock()
	r.SetService(mock)

	path := filepath.Join(t.TempDir(), "photo.png")
	if err := os.WriteFile(path, []byte("\x89PNG\r\n\x1a\nrest"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := r.ShareActivityObject(ActivityStreamObject{Title: "visit", LocalFile: path}); err != nil {
		t.Fatalf("ShareActivityObject() error = %v", err)
	}
	r.Close() // waits for the background upload

	call, ok := mock.LastCall("shareActivityStreamObject")
	if !ok {
		t.Fatal("object was not shared")
	}
	obj := call.Args[0].(ActivityStreamObject)
	if obj.ID == "" {
		t.Error("shared object should have an ID")
	}
	if obj.Date.IsZero() {
		t.Error("shared object should have a date")
	}
	if obj.MediaType != "image/png" {
		t.Errorf("MediaType = %q, want image/png", obj.MediaType)
	}
	if len(obj.MediaData) == 0 {
		t.Error("MediaData should contain the file")
	}
}

func TestShareAfterClose(t *testing.T) {
	r := New(testApp(), WithLogger(log.Discard()))
	mock := NewMock()
	r.SetService(mock)
	r.Close()

	if err := r.ShareActivityObject(ActivityStreamObject{Title: "late"}); !errors.Is(err, ErrClosed) {
		t.Fatalf("ShareActivityObject() error = %v, want ErrClosed", err)
	}
	if n := mock.CallCount("shareActivityStreamObject"); n != 0 {
		t.Errorf("shareActivityStreamObject calls = %d, want 0", n)
	}
}

func TestPrepareActivityStreamObjectMissingFile(t *testing.T) {
	_, err := prepareActivityStreamObject(ActivityStreamObject{LocalFile: "/nonexistent/file.jpg"}, time.Now())
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSubscriptionCloseIdempotent(t *testing.T) {
	r := newTestRobot(t, testApp())
	sub := r.AddTtsListener(func(TtsRequest) {})
	sub.Close()
	sub.Close()

	var nilSub *Subscription
	nilSub.Close()

	if n := r.listeners.tts.len(); n != 0 {
		t.Errorf("tts listeners = %d, want 0", n)
	}
}
