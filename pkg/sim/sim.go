// Package sim is an in-memory temi service for development and tests.
//
// It keeps the robot's state (locations, contacts, media bar,
// notifications) and plays back the status sequences a real robot
// reports, one step every StepDelay, through the registered callbacks.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-temi/internal/log"
	"github.com/teslashibe/go-temi/pkg/protocol"
	"github.com/teslashibe/go-temi/pkg/temi"
)

// HomeBase is the charging dock location. It always exists.
const HomeBase = "home base"

// DefaultStepDelay is the pause between two reported statuses.
const DefaultStepDelay = 500 * time.Millisecond

// ErrUnknownAlert is returned by ClickAlert for an alert that is not shown.
var ErrUnknownAlert = errors.New("sim: alert not shown")

// ErrUnknownCall is returned by EndCall for a session that was never started.
var ErrUnknownCall = errors.New("sim: unknown call session")

// Service simulates a robot.
type Service struct {
	logger *slog.Logger
	step   time.Duration

	mu        sync.Mutex
	callbacks map[string]temi.Callback
	calls     []string

	locations   []string
	serial      string
	battery     temi.BatteryData
	admin       temi.UserInfo
	contacts    []temi.UserInfo
	recentCalls []temi.RecentCall
	wakeupWord  string

	wakeupDisabled  bool
	billboardHidden bool
	topBarVisible   bool
	contexts        map[string]bool
	heading         int
	tilt            int

	mediaBar      temi.MediaBarData
	notifications []temi.NormalNotification
	alerts        map[string]temi.AlertNotification
	activity      []temi.ActivityStreamObject

	stopMove     context.CancelFunc
	speechCtx    context.Context
	cancelSpeech context.CancelFunc
	lastSpeech   chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	// runMu orders wg.Add in run against Close.
	runMu  sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

var _ temi.Service = (*Service)(nil)

// Option configures a Service.
type Option func(*Service)

// WithStepDelay sets the pause between reported statuses.
func WithStepDelay(d time.Duration) Option {
	return func(s *Service) {
		s.step = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithLocations adds saved locations next to the home base.
func WithLocations(names ...string) Option {
	return func(s *Service) {
		for _, n := range names {
			if n = normalize(n); n != "" && !slices.Contains(s.locations, n) {
				s.locations = append(s.locations, n)
			}
		}
	}
}

// WithContacts replaces the contact list.
func WithContacts(users ...temi.UserInfo) Option {
	return func(s *Service) {
		s.contacts = users
	}
}

// New creates a simulated robot.
func New(opts ...Option) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		step:       DefaultStepDelay,
		callbacks:  make(map[string]temi.Callback),
		locations:  []string{HomeBase},
		serial:     "00119140017",
		battery:    temi.BatteryData{Level: 100, Charging: true},
		admin:      temi.UserInfo{UserID: "admin", Name: "Admin", Role: "admin"},
		wakeupWord: "hey temi",
		contexts:   make(map[string]bool),
		alerts:     make(map[string]temi.AlertNotification),
		ctx:        ctx,
		cancel:     cancel,
	}
	s.speechCtx, s.cancelSpeech = context.WithCancel(ctx)
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.Component("sim")
	}
	return s
}

// Close stops every running sequence and waits for it to finish.
func (s *Service) Close() {
	s.runMu.Lock()
	s.closed = true
	s.runMu.Unlock()

	s.cancel()
	s.wg.Wait()
}

// Calls returns the methods invoked so far, in order.
func (s *Service) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.calls)
}

// record notes a call; the caller must hold s.mu.
func (s *Service) record(method string) {
	s.calls = append(s.calls, method)
}

func (s *Service) observers() []temi.Callback {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]temi.Callback, 0, len(s.callbacks))
	for _, cb := range s.callbacks {
		out = append(out, cb)
	}
	return out
}

// emit calls fn for every registered application.
func (s *Service) emit(fn func(temi.Callback)) {
	for _, cb := range s.observers() {
		fn(cb)
	}
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (s *Service) Register(app temi.AppInfo, cb temi.Callback) error {
	if cb == nil {
		return fmt.Errorf("sim: register %s: nil callback", app.PackageName)
	}
	s.mu.Lock()
	s.record(protocol.MethodRegister)
	s.callbacks[app.PackageName] = cb
	s.mu.Unlock()
	s.logger.Info("application registered", "package", app.PackageName, "kiosk", app.Kiosk())
	return nil
}

func (s *Service) OnStart(activity temi.ActivityInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(protocol.MethodOnStart)
	s.logger.Debug("activity started", "package", activity.PackageName, "activity", activity.ActivityName)
	return nil
}

func (s *Service) LockContexts(contexts []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(protocol.MethodLockContexts)
	for _, c := range contexts {
		s.contexts[c] = true
	}
	return nil
}

func (s *Service) ReleaseContexts(contexts []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(protocol.MethodReleaseContexts)
	for _, c := range contexts {
		delete(s.contexts, c)
	}
	return nil
}

// LockedContexts returns the contexts currently locked.
func (s *Service) LockedContexts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.contexts))
	for c := range s.contexts {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

func (s *Service) Wakeup() error {
	s.mu.Lock()
	s.record(protocol.MethodWakeup)
	s.mu.Unlock()
	s.emitAsync(func(cb temi.Callback) { cb.OnConversationViewAttaches(true) })
	return nil
}

func (s *Service) GetWakeupWord() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(protocol.MethodGetWakeupWord)
	return s.wakeupWord, nil
}

func (s *Service) ToggleWakeup(disable bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(protocol.MethodToggleWakeup)
	s.wakeupDisabled = disable
	return nil
}

func (s *Service) GetLocations() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(protocol.MethodGetLocations)
	return slices.Clone(s.locations), nil
}

func (s *Service) SaveLocation(name string) (bool, error) {
	name = normalize(name)

	s.mu.Lock()
	s.record(protocol.MethodSaveLocation)
	if name == "" || slices.Contains(s.locations, name) {
		s.mu.Unlock()
		return false, nil
	}
	s.locations = append(s.locations, name)
	locations := slices.Clone(s.locations)
	s.mu.Unlock()

	s.emitAsync(func(cb temi.Callback) { cb.OnLocationsUpdated(locations) })
	return true, nil
}

func (s *Service) DeleteLocation(name string) (bool, error) {
	name = normalize(name)

	s.mu.Lock()
	s.record(protocol.MethodDeleteLocation)
	i := slices.Index(s.locations, name)
	if i < 0 || name == HomeBase {
		s.mu.Unlock()
		return false, nil
	}
	s.locations = slices.Delete(s.locations, i, i+1)
	locations := slices.Clone(s.locations)
	s.mu.Unlock()

	s.emitAsync(func(cb temi.Callback) { cb.OnLocationsUpdated(locations) })
	return true, nil
}

func (s *Service) SkidJoy(x, y float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(protocol.MethodSkidJoy)
	s.logger.Debug("joystick", "x", x, "y", y)
	return nil
}

func (s *Service) TurnBy(degrees int, speed float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(protocol.MethodTurnBy)
	s.heading = ((s.heading+degrees)%360 + 360) % 360
	return nil
}

func (s *Service) TiltAngle(degrees int, speed float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(protocol.MethodTiltAngle)
	s.tilt = clampTilt(degrees)
	return nil
}

func (s *Service) TiltBy(degrees int, speed float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(protocol.MethodTiltBy)
	s.tilt = clampTilt(s.tilt + degrees)
	return nil
}

func clampTilt(deg int) int {
	return max(temi.MinTiltAngle, min(temi.MaxTiltAngle, deg))
}

func (s *Service) ToggleNavigationBillboard(hide bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(protocol.MethodToggleNavigationBillboard)
	s.billboardHidden = hide
	return nil
}

func (s *Service) GetSerialNumber() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(protocol.MethodGetSerialNumber)
	return s.serial, nil
}

func (s *Service) GetBatteryData() (*temi.BatteryData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(protocol.MethodGetBatteryData)
	b := s.battery
	return &b, nil
}

// SetBattery changes the reported battery state.
func (s *Service) SetBattery(level int, charging bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.battery = temi.BatteryData{Level: max(0, min(100, level)), Charging: charging}
}

func (s *Service) ShowAppList() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(protocol.MethodShowAppList)
	return nil
}

func (s *Service) ShowTopBar() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(protocol.MethodShowTopBar)
	s.topBarVisible = true
	return nil
}

func (s *Service) HideTopBar() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(protocol.MethodHideTopBar)
	s.topBarVisible = false
	return nil
}

func (s *Service) GetAdminInfo() (*temi.UserInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(protocol.MethodGetAdminInfo)
	a := s.admin
	return &a, nil
}

func (s *Service) GetAllContacts() ([]temi.UserInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(protocol.MethodGetAllContacts)
	return slices.Clone(s.contacts), nil
}

func (s *Service) GetRecentCalls() ([]temi.RecentCall, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(protocol.MethodGetRecentCalls)
	return slices.Clone(s.recentCalls), nil
}

func (s *Service) StartTelepresence(displayName, peerID string) (string, error) {
	session := uuid.NewString()

	s.mu.Lock()
	s.record(protocol.MethodStartTelepresence)
	s.recentCalls = append(s.recentCalls, temi.RecentCall{
		UserID:    peerID,
		Name:      displayName,
		SessionID: session,
		CallType:  "outgoing",
		Timestamp: time.Now(),
	})
	s.mu.Unlock()

	s.run(s.ctx, func(ctx context.Context) {
		for _, state := range []temi.CallStatus{temi.CallInitialized, temi.CallStarted} {
			if !s.sleep(ctx) {
				return
			}
			call := temi.CallState{SessionID: session, State: state}
			s.emit(func(cb temi.Callback) { cb.OnTelepresenceStatusChanged(call) })
		}
	})
	return session, nil
}

func (s *Service) ShareActivityStreamObject(obj temi.ActivityStreamObject) error {
	s.mu.Lock()
	s.record(protocol.MethodShareActivityStreamObject)
	s.activity = append(s.activity, obj)
	s.mu.Unlock()

	msg := temi.ActivityStreamPublishMessage{ObjectID: obj.ID, Success: true}
	s.emitAsync(func(cb temi.Callback) { cb.OnActivityStreamPublish(msg) })
	return nil
}

// Activity returns the shared activity stream objects.
func (s *Service) Activity() []temi.ActivityStreamObject {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.activity)
}

// emitAsync delivers one event on its own goroutine after a step.
func (s *Service) emitAsync(fn func(temi.Callback)) {
	s.run(s.ctx, func(ctx context.Context) {
		if s.sleep(ctx) {
			s.emit(fn)
		}
	})
}
