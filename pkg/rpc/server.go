package rpc

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/teslashibe/go-temi/pkg/protocol"
	"github.com/teslashibe/go-temi/pkg/temi"
)

// Path is the WebSocket route served by RegisterRoutes.
const Path = "/ws/sdk"

// Server exposes a temi.Service backend to remote clients, one session per
// socket.
type Server struct {
	backend temi.Service
	logger  *slog.Logger
	timeout time.Duration

	mu       sync.RWMutex
	sessions map[string]*session

	// Stats
	messagesReceived atomic.Uint64
	messagesSent     atomic.Uint64
	requestsServed   atomic.Uint64
	eventsSent       atomic.Uint64
	ackTimeouts      atomic.Uint64
}

// NewServer creates a server for backend.
func NewServer(backend temi.Service, opts ...Option) *Server {
	o := buildOptions("rpc-server", opts)
	return &Server{
		backend:  backend,
		logger:   o.logger,
		timeout:  o.timeout,
		sessions: make(map[string]*session),
	}
}

// RegisterRoutes mounts the SDK socket on a Fiber app.
func (s *Server) RegisterRoutes(app *fiber.App) {
	app.Use(Path, func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get(Path, websocket.New(s.handleSession))
}

// RegisterAPIRoutes registers session inspection routes.
func (s *Server) RegisterAPIRoutes(api fiber.Router) {
	api.Get("/sessions", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"sessions": s.Sessions(),
			"count":    s.SessionCount(),
		})
	})
	api.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(s.Stats())
	})
}

// SessionCount returns the number of connected clients.
func (s *Server) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Stats contains server statistics
type Stats struct {
	SessionCount     int    `json:"session_count"`
	MessagesReceived uint64 `json:"messages_received"`
	MessagesSent     uint64 `json:"messages_sent"`
	RequestsServed   uint64 `json:"requests_served"`
	EventsSent       uint64 `json:"events_sent"`
	AckTimeouts      uint64 `json:"ack_timeouts"`
}

// Stats returns server statistics
func (s *Server) Stats() Stats {
	return Stats{
		SessionCount:     s.SessionCount(),
		MessagesReceived: s.messagesReceived.Load(),
		MessagesSent:     s.messagesSent.Load(),
		RequestsServed:   s.requestsServed.Load(),
		EventsSent:       s.eventsSent.Load(),
		AckTimeouts:      s.ackTimeouts.Load(),
	}
}

// SessionInfo describes a connected client.
type SessionInfo struct {
	ID          string    `json:"id"`
	PackageName string    `json:"package_name,omitempty"`
	Connected   time.Time `json:"connected"`
	LastSeen    time.Time `json:"last_seen"`
}

// Sessions returns info about all connected clients.
func (s *Server) Sessions() []SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]SessionInfo, 0, len(s.sessions))
	for _, sess := range s.sessions {
		infos = append(infos, sess.info())
	}
	return infos
}

func (s *Server) handleSession(c *websocket.Conn) {
	sess := &session{
		id:        uuid.NewString(),
		server:    s,
		conn:      c,
		connected: time.Now(),
		lastSeen:  time.Now(),
		acks:      make(map[string]chan bool),
		done:      make(chan struct{}),
	}
	sess.logger = s.logger.With("session", sess.id)
	sess.proxy = &proxyCallback{s: sess}

	s.mu.Lock()
	s.sessions[sess.id] = sess
	count := len(s.sessions)
	s.mu.Unlock()
	sess.logger.Info("client connected", "total", count)

	defer func() {
		// The conn is recycled once this handler returns, so no write may
		// start after done is closed.
		sess.writeMu.Lock()
		close(sess.done)
		sess.writeMu.Unlock()

		s.mu.Lock()
		delete(s.sessions, sess.id)
		count := len(s.sessions)
		s.mu.Unlock()
		sess.logger.Info("client disconnected", "total", count)
	}()

	sess.readLoop()
}

type session struct {
	id        string
	server    *Server
	conn      *websocket.Conn
	logger    *slog.Logger
	proxy     *proxyCallback
	connected time.Time

	writeMu sync.Mutex

	mu       sync.Mutex
	lastSeen time.Time
	app      temi.AppInfo
	acks     map[string]chan bool

	done chan struct{}
}

func (s *session) info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionInfo{
		ID:          s.id,
		PackageName: s.app.PackageName,
		Connected:   s.connected,
		LastSeen:    s.lastSeen,
	}
}

func (s *session) readLoop() {
	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPingHandler(func(appData string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return s.conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.logger.Debug("read error", "error", err)
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(pongWait))

		s.mu.Lock()
		s.lastSeen = time.Now()
		s.mu.Unlock()
		s.server.messagesReceived.Add(1)

		msg, err := protocol.ParseMessage(data)
		if err != nil {
			s.logger.Warn("parse error", "error", err)
			continue
		}

		switch msg.Type {
		case protocol.TypeRequest:
			go s.handleRequest(msg)
		case protocol.TypeAck:
			s.handleAck(msg)
		case protocol.TypePing:
			s.handlePing(msg)
		}
	}
}

func (s *session) handleRequest(msg *protocol.Message) {
	var (
		res any
		err error
	)
	func() {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("backend panic: %v", p)
			}
		}()
		res, err = s.serve(msg)
	}()

	var resp *protocol.Message
	if err == nil {
		resp, err = protocol.NewResponse(msg.ID, msg.Method, res)
	}
	if err != nil {
		s.logger.Debug("request failed", "method", msg.Method, "error", err)
		resp = protocol.NewErrorResponse(msg.ID, msg.Method, err)
	}

	s.server.requestsServed.Add(1)
	if err := s.send(resp); err != nil {
		s.logger.Debug("response not sent", "method", msg.Method, "error", err)
	}
}

func (s *session) serve(msg *protocol.Message) (any, error) {
	backend := s.server.backend
	if msg.Method == protocol.MethodRegister {
		var app temi.AppInfo
		if err := msg.ParseData(&app); err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.app = app
		s.mu.Unlock()
		s.logger.Info("application registered", "package", app.PackageName)
		return nil, backend.Register(app, s.proxy)
	}

	h, ok := handlers[msg.Method]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownMethod, msg.Method)
	}
	return h(backend, msg)
}

func (s *session) handleAck(msg *protocol.Message) {
	ack, err := msg.GetAckData()
	if err != nil {
		s.logger.Warn("bad ack", "event", msg.Method, "error", err)
		return
	}

	s.mu.Lock()
	ch, ok := s.acks[msg.ID]
	delete(s.acks, msg.ID)
	s.mu.Unlock()
	if ok {
		ch <- ack.Handled
	}
}

func (s *session) handlePing(msg *protocol.Message) {
	ping, err := msg.GetPingData()
	if err != nil {
		return
	}
	pong, err := protocol.NewPongMessage(msg.ID, ping.Timestamp, time.Now().UnixMilli())
	if err != nil {
		return
	}
	if err := s.send(pong); err != nil {
		s.logger.Debug("pong not sent", "error", err)
	}
}

// emit pushes an event to the client. For acked events it waits up to the
// call timeout for the client's answer and reports false on timeout.
func (s *session) emit(name string, data any) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	id := uuid.NewString()
	msg, err := protocol.NewEvent(id, name, data)
	if err != nil {
		s.logger.Error("encode event failed", "event", name, "error", err)
		return false
	}

	acked := protocol.AckedEvents[name]
	var ch chan bool
	if acked {
		ch = make(chan bool, 1)
		s.mu.Lock()
		s.acks[id] = ch
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			delete(s.acks, id)
			s.mu.Unlock()
		}()
	}

	if err := s.send(msg); err != nil {
		s.logger.Debug("event not sent", "event", name, "error", err)
		return false
	}
	s.server.eventsSent.Add(1)
	if !acked {
		return false
	}

	timer := time.NewTimer(s.server.timeout)
	defer timer.Stop()
	select {
	case handled := <-ch:
		return handled
	case <-s.done:
		return false
	case <-timer.C:
		s.server.ackTimeouts.Add(1)
		s.logger.Warn("ack timed out", "event", name)
		return false
	}
}

func (s *session) send(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	s.server.messagesSent.Add(1)
	return nil
}
