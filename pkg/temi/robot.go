package temi

import (
	"log/slog"
	"sync"

	"github.com/teslashibe/go-temi/internal/log"
)

// Robot is the application's handle on the robot service.
//
// It is safe for concurrent use. The service reference starts absent; the
// hosting environment supplies it through SetService once the connection is
// bound (see pkg/binder), and clears it on disconnect.
type Robot struct {
	app    AppInfo
	logger *slog.Logger

	ui      Poster
	ownedUI *Dispatcher

	mu       sync.RWMutex
	service  Service
	mediaBar *mediaBarController

	listeners registries
	sink      *callbackSink

	alertsMu sync.Mutex
	alerts   map[string]*pendingAlert

	// closed, guarded by mu, stops new background work once Close runs.
	closed     bool
	background sync.WaitGroup
}

// pendingAlert is one click callback waiting for its notification.
type pendingAlert struct {
	onClick func(button int)
}

// Option configures a Robot.
type Option func(*Robot)

// WithDispatcher delivers listener callbacks through p instead of a
// dispatcher owned by the Robot.
func WithDispatcher(p Poster) Option {
	return func(r *Robot) {
		r.ui = p
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Robot) {
		r.logger = l
	}
}

// New creates a disconnected Robot for the given application.
func New(app AppInfo, opts ...Option) *Robot {
	r := &Robot{
		app:      app,
		mediaBar: newMediaBarController(nil),
		alerts:   make(map[string]*pendingAlert),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = log.Component("temi")
	}
	if r.ui == nil {
		r.ownedUI = NewDispatcher(r.logger)
		r.ui = r.ownedUI
	}
	r.sink = &callbackSink{robot: r, logger: r.logger}
	return r
}

// App returns the application identity sent to the service.
func (r *Robot) App() AppInfo {
	return r.app
}

// Close waits for background work and stops the owned dispatcher.
// It does not close the service; that belongs to whoever bound it.
func (r *Robot) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.background.Wait()
	if r.ownedUI != nil {
		r.ownedUI.Close()
	}
}

// Sync blocks until every listener delivery queued so far has run.
// It is a no-op when a custom dispatcher without Sync is in use.
func (r *Robot) Sync() {
	if s, ok := r.ui.(interface{ Sync() }); ok {
		s.Sync()
	}
}

// SetService binds (non-nil) or unbinds (nil) the remote service.
// It registers the callback sink with a new service and notifies every
// ready listener with the new state.
func (r *Robot) SetService(svc Service) {
	r.logger.Debug("setService", "ready", svc != nil)

	r.mu.Lock()
	r.service = svc
	r.mediaBar = newMediaBarController(svc)
	r.mu.Unlock()

	if svc != nil {
		if err := svc.Register(r.app, r.sink); err != nil {
			r.logger.Error("register callback failed", "package", r.app.PackageName, "error", err)
		}
	}

	ready := svc != nil
	r.ui.Post(func() {
		for _, fn := range r.listeners.ready.snapshot() {
			fn(ready)
		}
	})
}

// IsReady reports whether a service is bound.
func (r *Robot) IsReady() bool {
	return r.current() != nil
}

// Callback returns the sink that must be registered with the service.
// SetService does this already; it is exposed for hosts that bind
// services by other means.
func (r *Robot) Callback() Callback {
	return r.sink
}

func (r *Robot) current() Service {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.service
}

func (r *Robot) currentMediaBar() *mediaBarController {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.mediaBar
}

// AddOnRobotReadyListener registers fn and immediately invokes it with the
// current state on the calling goroutine. Later changes arrive through the
// dispatcher.
func (r *Robot) AddOnRobotReadyListener(fn func(ready bool)) *Subscription {
	r.logger.Debug("addOnRobotReadyListener")
	sub := r.listeners.ready.add(fn)
	fn(r.IsReady())
	return sub
}

// AddWakeupWordListener registers fn for wakeup word detection.
func (r *Robot) AddWakeupWordListener(fn func(wakeupWord string)) *Subscription {
	r.logger.Debug("addWakeupWordListener")
	return r.listeners.wakeupWord.add(fn)
}

// AddTtsListener registers fn for speech status changes.
func (r *Robot) AddTtsListener(fn func(req TtsRequest)) *Subscription {
	r.logger.Debug("addTtsListener")
	return r.listeners.tts.add(fn)
}

// AddNlpListener registers fn for NLP results. While at least one is
// registered the service treats the application as handling utterances.
func (r *Robot) AddNlpListener(fn func(result NlpResult)) *Subscription {
	r.logger.Debug("addNlpListener")
	return r.listeners.nlp.add(fn)
}

// AddConversationViewAttachesListener registers fn for conversation view
// attach and detach.
func (r *Robot) AddConversationViewAttachesListener(fn func(attached bool)) *Subscription {
	r.logger.Debug("addConversationViewAttachesListener")
	return r.listeners.conversationView.add(fn)
}

// AddOnBeWithMeStatusChangedListener registers fn for follow-me status.
func (r *Robot) AddOnBeWithMeStatusChangedListener(fn func(status string)) *Subscription {
	r.logger.Debug("addOnBeWithMeStatusChangedListener")
	return r.listeners.beWithMe.add(fn)
}

// AddOnGoToLocationStatusChangedListener registers fn for navigation status.
func (r *Robot) AddOnGoToLocationStatusChangedListener(fn func(status GoToLocationStatus)) *Subscription {
	r.logger.Debug("addOnGoToLocationStatusChangedListener")
	return r.listeners.goToLocation.add(fn)
}

// AddOnLocationsUpdatedListener registers fn for saved location changes.
func (r *Robot) AddOnLocationsUpdatedListener(fn func(locations []string)) *Subscription {
	r.logger.Debug("addOnLocationsUpdatedListener")
	return r.listeners.locationsUpdated.add(fn)
}

// AddOnTelepresenceStatusChangedListener registers fn for the call with the
// given session ID, as returned by StartTelepresence.
func (r *Robot) AddOnTelepresenceStatusChangedListener(sessionID string, fn func(state CallState)) *Subscription {
	r.logger.Debug("addOnTelepresenceStatusChangedListener", "session", sessionID)
	return r.listeners.telepresence.add(telepresenceListener{sessionID: sessionID, fn: fn})
}

// AddOnUsersUpdatedListener registers fn for user updates. With no userIDs
// every update is delivered; otherwise only updates for the listed users.
func (r *Robot) AddOnUsersUpdatedListener(userIDs []string, fn func(user UserInfo)) *Subscription {
	r.logger.Debug("addOnUsersUpdatedListener", "filter", len(userIDs))
	return r.listeners.usersUpdated.add(newUsersListener(userIDs, fn))
}

// AddOnWelcomingModeStatusChangedListener registers fn for welcoming mode.
func (r *Robot) AddOnWelcomingModeStatusChangedListener(fn func(status string)) *Subscription {
	r.logger.Debug("addOnWelcomingModeStatusChangedListener")
	return r.listeners.welcomingMode.add(fn)
}

// SetMediaButtonListener installs the single media bar listener, replacing
// any previous one.
func (r *Robot) SetMediaButtonListener(l MediaButtonListener) {
	r.listeners.mu.Lock()
	r.listeners.mediaButton = l
	r.listeners.mu.Unlock()
}

// RemoveMediaButtonListener clears the media bar listener.
func (r *Robot) RemoveMediaButtonListener() {
	r.SetMediaButtonListener(nil)
}

// SetActivityStreamPublishListener installs the single publish listener;
// nil clears it.
func (r *Robot) SetActivityStreamPublishListener(fn func(msg ActivityStreamPublishMessage)) {
	r.listeners.mu.Lock()
	r.listeners.activityStreamPublish = fn
	r.listeners.mu.Unlock()
}

// PendingAlerts returns the number of alert callbacks still waiting for a click.
func (r *Robot) PendingAlerts() int {
	r.alertsMu.Lock()
	defer r.alertsMu.Unlock()
	return len(r.alerts)
}

// takeAlert removes and returns the callback for id.
func (r *Robot) takeAlert(id string) func(int) {
	r.alertsMu.Lock()
	defer r.alertsMu.Unlock()
	p, ok := r.alerts[id]
	if !ok {
		return nil
	}
	delete(r.alerts, id)
	return p.onClick
}

// putAlert installs p for id and returns the entry it replaced, if any.
func (r *Robot) putAlert(id string, p *pendingAlert) *pendingAlert {
	r.alertsMu.Lock()
	defer r.alertsMu.Unlock()
	prev := r.alerts[id]
	r.alerts[id] = p
	return prev
}

// revertAlert undoes putAlert(id, p) unless p was already claimed or
// replaced. prev, when set, becomes pending again.
func (r *Robot) revertAlert(id string, p, prev *pendingAlert) {
	r.alertsMu.Lock()
	defer r.alertsMu.Unlock()
	if r.alerts[id] != p {
		return
	}
	if prev != nil {
		r.alerts[id] = prev
	} else {
		delete(r.alerts, id)
	}
}
