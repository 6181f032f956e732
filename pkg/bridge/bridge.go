// Package bridge serves a local HTTP API over a temi.Robot.
//
// Dashboards and scripts use it to drive the robot manually and to watch
// its events on /ws/events without linking the SDK themselves.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-temi/internal/log"
	"github.com/teslashibe/go-temi/pkg/hub"
	"github.com/teslashibe/go-temi/pkg/temi"
)

// Event names on /ws/events.
const (
	EventStatus           = "status"
	EventReady            = "ready"
	EventWakeupWord       = "wakeup_word"
	EventTts              = "tts"
	EventNlp              = "nlp"
	EventConversationView = "conversation_view"
	EventBeWithMe         = "be_with_me"
	EventGoTo             = "goto"
	EventLocations        = "locations"
	EventTelepresence     = "telepresence"
	EventUser             = "user"
	EventWelcomingMode    = "welcoming_mode"
	EventAlertClicked     = "alert_clicked"
)

const shutdownTimeout = 5 * time.Second

// Bridge is the HTTP front end of one Robot.
type Bridge struct {
	robot  *temi.Robot
	app    *fiber.App
	hub    *hub.Hub
	logger *slog.Logger

	connStats func() any

	readySub *temi.Subscription

	mu      sync.Mutex
	closed  bool
	streams int
	events  []*temi.Subscription
	calls   map[*temi.Subscription]struct{}
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) {
		b.logger = l
	}
}

// WithConnectionStats adds fn's result to /api/status as "connection".
func WithConnectionStats(fn func() any) Option {
	return func(b *Bridge) {
		b.connStats = fn
	}
}

// New creates a bridge over robot. The bridge listens to the robot's
// events only while at least one /ws/events client is connected, so the
// service sees them as handled only while someone is watching.
func New(robot *temi.Robot, opts ...Option) *Bridge {
	b := &Bridge{
		robot: robot,
		calls: make(map[*temi.Subscription]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = log.Component("bridge")
	}
	b.hub = hub.New("events", hub.WithLogger(b.logger))

	b.app = fiber.New(fiber.Config{
		AppName:               "temi bridge",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})
	b.routes()
	b.readySub = robot.AddOnRobotReadyListener(func(ready bool) {
		b.publish(EventReady, fiber.Map{"ready": ready})
	})
	return b
}

func (b *Bridge) routes() {
	b.app.Use(recover.New())
	// CORS for browser dashboards
	b.app.Use(cors.New())

	api := b.app.Group("/api")
	api.Get("/status", b.handleStatus)
	api.Get("/locations", b.ready, b.handleGetLocations)
	api.Post("/locations", b.ready, b.handleSaveLocation)
	api.Delete("/locations/:name", b.ready, b.handleDeleteLocation)
	api.Post("/goto", b.ready, b.handleGoTo)
	api.Post("/follow", b.ready, b.handleFollow)
	api.Post("/stop", b.ready, b.handleStop)
	api.Post("/turn", b.ready, b.handleTurn)
	api.Post("/tilt", b.ready, b.handleTilt)
	api.Post("/speak", b.ready, b.handleSpeak)
	api.Get("/battery", b.ready, b.handleBattery)
	api.Get("/contacts", b.ready, b.handleContacts)
	api.Get("/recent-calls", b.ready, b.handleRecentCalls)
	api.Post("/telepresence", b.ready, b.handleTelepresence)
	api.Post("/notifications", b.handleNotification)
	api.Post("/alerts", b.handleShowAlert)
	api.Delete("/alerts/:id", b.handleRemoveAlert)

	// WebSocket upgrade middleware
	b.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	b.app.Get("/ws/events", websocket.New(b.handleEventsWS))
}

// subscribe registers the stream listeners for every event kind that the
// service asks the application to handle.
func (b *Bridge) subscribe() []*temi.Subscription {
	r := b.robot
	return []*temi.Subscription{
		r.AddWakeupWordListener(func(word string) {
			b.publish(EventWakeupWord, fiber.Map{"wakeup_word": word})
		}),
		r.AddTtsListener(func(req temi.TtsRequest) {
			b.publish(EventTts, req)
		}),
		r.AddNlpListener(func(result temi.NlpResult) {
			b.publish(EventNlp, result)
		}),
		r.AddConversationViewAttachesListener(func(attached bool) {
			b.publish(EventConversationView, fiber.Map{"attached": attached})
		}),
		r.AddOnBeWithMeStatusChangedListener(func(status string) {
			b.publish(EventBeWithMe, fiber.Map{"status": status})
		}),
		r.AddOnGoToLocationStatusChangedListener(func(status temi.GoToLocationStatus) {
			b.publish(EventGoTo, status)
		}),
		r.AddOnLocationsUpdatedListener(func(locations []string) {
			b.publish(EventLocations, fiber.Map{"locations": locations})
		}),
		r.AddOnUsersUpdatedListener(nil, func(user temi.UserInfo) {
			b.publish(EventUser, user)
		}),
		r.AddOnWelcomingModeStatusChangedListener(func(status string) {
			b.publish(EventWelcomingMode, fiber.Map{"status": status})
		}),
	}
}

// attach counts a stream client in and subscribes for the first one.
func (b *Bridge) attach() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streams++
	if b.streams == 1 && !b.closed {
		b.events = b.subscribe()
	}
}

// detach counts a stream client out and unsubscribes after the last one.
func (b *Bridge) detach() {
	b.mu.Lock()
	b.streams--
	var events []*temi.Subscription
	if b.streams == 0 {
		events, b.events = b.events, nil
	}
	b.mu.Unlock()
	closeAll(events)
}

// callWatch is the listener of one telepresence session started through
// the bridge. The subscription may end before Add returns it.
type callWatch struct {
	mu    sync.Mutex
	sub   *temi.Subscription
	ended bool
}

// watchCall streams a telepresence session until it ends.
func (b *Bridge) watchCall(sessionID string) {
	w := &callWatch{}
	sub := b.robot.AddOnTelepresenceStatusChangedListener(sessionID, func(state temi.CallState) {
		b.publish(EventTelepresence, state)
		switch state.State {
		case temi.CallEnded, temi.CallDeclined, temi.CallNotAnswered:
			w.mu.Lock()
			w.ended = true
			sub := w.sub
			w.mu.Unlock()
			if sub != nil {
				b.endCall(sub)
			}
		}
	})

	w.mu.Lock()
	w.sub = sub
	ended := w.ended
	if !ended {
		b.mu.Lock()
		if b.closed {
			ended = true
		} else {
			b.calls[sub] = struct{}{}
		}
		b.mu.Unlock()
	}
	w.mu.Unlock()
	if ended {
		sub.Close()
	}
}

func (b *Bridge) endCall(sub *temi.Subscription) {
	b.mu.Lock()
	delete(b.calls, sub)
	b.mu.Unlock()
	sub.Close()
}

// watchedCalls returns the number of telepresence sessions still streamed.
func (b *Bridge) watchedCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls)
}

func closeAll(subs []*temi.Subscription) {
	for _, s := range subs {
		s.Close()
	}
}

func (b *Bridge) publish(event string, data any) {
	if err := b.hub.Publish(event, data); err != nil {
		b.logger.Error("encode event failed", "event", event, "error", err)
	}
}

// App returns the underlying Fiber app.
func (b *Bridge) App() *fiber.App {
	return b.app
}

// Clients returns the number of connected event stream clients.
func (b *Bridge) Clients() int {
	return b.hub.ClientCount()
}

// Run listens on addr until ctx ends.
func (b *Bridge) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return b.Serve(ctx, ln)
}

// Serve serves on ln until ctx ends, then shuts the server down and
// unsubscribes from the robot.
func (b *Bridge) Serve(ctx context.Context, ln net.Listener) error {
	go b.hub.Run(ctx)

	b.logger.Info("bridge listening", "addr", ln.Addr().String())
	errc := make(chan error, 1)
	go func() { errc <- b.app.Listener(ln) }()

	select {
	case err := <-errc:
		b.Close()
		return err
	case <-ctx.Done():
		err := b.app.ShutdownWithTimeout(shutdownTimeout)
		b.Close()
		return err
	}
}

// Close unsubscribes from the robot.
func (b *Bridge) Close() {
	b.mu.Lock()
	b.closed = true
	subs := b.events
	b.events = nil
	for sub := range b.calls {
		subs = append(subs, sub)
	}
	clear(b.calls)
	b.mu.Unlock()

	b.readySub.Close()
	closeAll(subs)
}

func (b *Bridge) handleEventsWS(c *websocket.Conn) {
	greeting, err := json.Marshal(hub.Event{Event: EventStatus, Data: b.status()})
	if err != nil {
		b.logger.Error("encode status failed", "error", err)
		return
	}
	b.attach()
	defer b.detach()
	b.hub.Serve(c, greeting)
}

// ready rejects requests while no service is bound.
func (b *Bridge) ready(c *fiber.Ctx) error {
	if !b.robot.IsReady() {
		return fiber.NewError(fiber.StatusServiceUnavailable, temi.ErrNotReady.Error())
	}
	return c.Next()
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}

// serviceError maps a robot error to an HTTP error.
func serviceError(err error) error {
	switch {
	case errors.Is(err, temi.ErrNotReady):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	case errors.Is(err, temi.ErrEmptyLocation), errors.Is(err, temi.ErrEmptyNotificationID):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	default:
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	}
}
