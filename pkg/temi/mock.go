package temi

import "sync"

// MockService implements Service for testing.
// Result fields are returned as-is; Err, when set, fails every call.
type MockService struct {
	Err error

	Locations    []string
	SaveResult   bool
	DeleteResult bool
	SerialNumber string
	Battery      *BatteryData
	Admin        *UserInfo
	Contacts     []UserInfo
	RecentCalls  []RecentCall
	WakeupWord   string
	SessionID    string

	// Tracking
	mu       sync.Mutex
	calls    []MockCall
	callback Callback
}

// MockCall records a method invocation for verification.
type MockCall struct {
	Method string
	Args   []any
}

var _ Service = (*MockService)(nil)

// NewMock creates a mock service with sensible defaults.
func NewMock() *MockService {
	return &MockService{
		Locations:    []string{"home base", "kitchen"},
		SaveResult:   true,
		DeleteResult: true,
		SerialNumber: "00119140017",
		Battery:      &BatteryData{Level: 80},
		Admin:        &UserInfo{UserID: "admin", Name: "Admin"},
		Contacts:     []UserInfo{{UserID: "u1", Name: "Ada"}},
		WakeupWord:   "hey temi",
		SessionID:    "session-1",
	}
}

func (m *MockService) record(method string, args ...any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{Method: method, Args: args})
	return m.Err
}

// SetErr changes Err while calls may be in flight.
func (m *MockService) SetErr(err error) {
	m.mu.Lock()
	m.Err = err
	m.mu.Unlock()
}

// Calls returns all recorded calls.
func (m *MockService) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times method was invoked.
func (m *MockService) CallCount(method string) int {
	n := 0
	for _, c := range m.Calls() {
		if c.Method == method {
			n++
		}
	}
	return n
}

// LastCall returns the most recent call of method.
func (m *MockService) LastCall(method string) (MockCall, bool) {
	calls := m.Calls()
	for i := len(calls) - 1; i >= 0; i-- {
		if calls[i].Method == method {
			return calls[i], true
		}
	}
	return MockCall{}, false
}

// Callback returns the callback passed to the last Register.
func (m *MockService) Callback() Callback {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callback
}

func (m *MockService) Register(app AppInfo, cb Callback) error {
	if err := m.record("register", app); err != nil {
		return err
	}
	m.mu.Lock()
	m.callback = cb
	m.mu.Unlock()
	return nil
}

func (m *MockService) OnStart(activity ActivityInfo) error { return m.record("onStart", activity) }
func (m *MockService) Speak(req TtsRequest) error { return m.record("speak", req) }
func (m *MockService) CancelAll() error { return m.record("cancelAll") }
func (m *MockService) LockContexts(c []string) error { return m.record("lockContexts", c) }
func (m *MockService) ReleaseContexts(c []string) error { return m.record("releaseContexts", c) }
func (m *MockService) Wakeup() error { return m.record("wakeup") }
func (m *MockService) ToggleWakeup(disable bool) error { return m.record("toggleWakeup", disable) }
func (m *MockService) GoTo(location string) error { return m.record("goTo", location) }
func (m *MockService) BeWithMe() error { return m.record("beWithMe") }
func (m *MockService) StopMovement() error { return m.record("stopMovement") }
func (m *MockService) SkidJoy(x, y float32) error { return m.record("skidJoy", x, y) }
func (m *MockService) ShowAppList() error { return m.record("showAppList") }
func (m *MockService) ShowTopBar() error { return m.record("showTopBar") }
func (m *MockService) HideTopBar() error { return m.record("hideTopBar") }
func (m *MockService) PauseMediaBar() error { return m.record("pauseMediaBar") }

func (m *MockService) TurnBy(degrees int, speed float32) error {
	return m.record("turnBy", degrees, speed)
}

func (m *MockService) TiltAngle(degrees int, speed float32) error {
	return m.record("tiltAngle", degrees, speed)
}

func (m *MockService) TiltBy(degrees int, speed float32) error {
	return m.record("tiltBy", degrees, speed)
}

func (m *MockService) ToggleNavigationBillboard(hide bool) error {
	return m.record("toggleNavigationBillboard", hide)
}

func (m *MockService) GetWakeupWord() (string, error) {
	return m.WakeupWord, m.record("getWakeupWord")
}

func (m *MockService) GetLocations() ([]string, error) {
	return m.Locations, m.record("getLocations")
}

func (m *MockService) SaveLocation(name string) (bool, error) {
	return m.SaveResult, m.record("saveLocation", name)
}

func (m *MockService) DeleteLocation(name string) (bool, error) {
	return m.DeleteResult, m.record("deleteLocation", name)
}

func (m *MockService) GetSerialNumber() (string, error) {
	return m.SerialNumber, m.record("getSerialNumber")
}

func (m *MockService) GetBatteryData() (*BatteryData, error) {
	return m.Battery, m.record("getBatteryData")
}

func (m *MockService) StartTelepresence(displayName, peerID string) (string, error) {
	return m.SessionID, m.record("startTelepresence", displayName, peerID)
}

func (m *MockService) GetAdminInfo() (*UserInfo, error) {
	return m.Admin, m.record("getAdminInfo")
}

func (m *MockService) GetAllContacts() ([]UserInfo, error) {
	return m.Contacts, m.record("getAllContacts")
}

func (m *MockService) GetRecentCalls() ([]RecentCall, error) {
	return m.RecentCalls, m.record("getRecentCalls")
}

func (m *MockService) ShareActivityStreamObject(obj ActivityStreamObject) error {
	return m.record("shareActivityStreamObject", obj)
}

func (m *MockService) ShowNormalNotification(n NormalNotification) error {
	return m.record("showNormalNotification", n)
}

func (m *MockService) ShowAlertNotification(n AlertNotification) error {
	return m.record("showAlertNotification", n)
}

func (m *MockService) RemoveAlertNotification(n AlertNotification) error {
	return m.record("removeAlertNotification", n)
}

func (m *MockService) UpdateMediaBar(data MediaBarData) error {
	return m.record("updateMediaBar", data)
}

func (m *MockService) SetMediaPlaying(playing bool, packageName string) error {
	return m.record("setMediaPlaying", playing, packageName)
}
