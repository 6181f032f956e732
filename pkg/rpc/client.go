// Package rpc carries the temi service contract over a WebSocket.
//
// Client implements temi.Service for an application; Server exposes any
// temi.Service backend to remote clients. Both speak the envelope defined
// in pkg/protocol.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-temi/pkg/protocol"
	"github.com/teslashibe/go-temi/pkg/temi"
)

// Client is a connection to a remote temi service.
type Client struct {
	conn    *websocket.Conn
	logger  *slog.Logger
	timeout time.Duration

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan *protocol.Message
	err     error

	cbMu     sync.RWMutex
	callback temi.Callback

	done      chan struct{}
	closeOnce sync.Once
}

var _ temi.Service = (*Client)(nil)

// Dial connects to the service at url.
func Dial(ctx context.Context, url string, opts ...Option) (*Client, error) {
	o := buildOptions("rpc", opts)

	conn, _, err := o.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("rpc: dial %s: %w", url, err)
	}
	o.logger.Info("connected", "url", url)
	return newClient(conn, o), nil
}

func newClient(conn *websocket.Conn, o options) *Client {
	c := &Client{
		conn:    conn,
		logger:  o.logger,
		timeout: o.timeout,
		pending: make(map[string]chan *protocol.Message),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	go c.keepalive()
	return c
}

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err reports why the connection ended, or nil while it is open.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close sends a close frame and tears the connection down.
func (c *Client) Close() error {
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	c.shutdown(ErrClosed)
	return nil
}

func (c *Client) shutdown(err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.err = err
		c.pending = make(map[string]chan *protocol.Message)
		c.mu.Unlock()
		close(c.done)
		c.conn.Close()
	})
}

// Ping measures the application level round trip to the service.
func (c *Client) Ping(ctx context.Context) (time.Duration, error) {
	id := uuid.NewString()
	msg, err := protocol.NewPingMessage(id)
	if err != nil {
		return 0, err
	}
	start := time.Now()
	if _, err := c.roundTrip(ctx, id, "ping", msg); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}

// call sends method with params and decodes the response into result
// (which may be nil).
func (c *Client) call(method string, params, result any) error {
	id := uuid.NewString()
	msg, err := protocol.NewRequest(id, method, params)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	resp, err := c.roundTrip(ctx, id, method, msg)
	if err != nil {
		return err
	}
	if resp.Error != "" {
		return &RemoteError{Method: method, Message: resp.Error}
	}
	if result != nil {
		return resp.ParseData(result)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, id, method string, msg *protocol.Message) (*protocol.Message, error) {
	ch := make(chan *protocol.Message, 1)

	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.send(msg); err != nil {
		return nil, fmt.Errorf("rpc: %s: %w", method, err)
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-c.done:
		return nil, ErrClosed
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("rpc: %s: %w", method, ErrTimeout)
		}
		return nil, ctx.Err()
	}
}

func (c *Client) send(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// readLoop is the only reader of the connection. Events are delivered
// inline so the callback sees them in arrival order.
func (c *Client) readLoop() {
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				err = ErrClosed
			}
			c.logger.Debug("read loop ended", "error", err)
			c.shutdown(err)
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		msg, err := protocol.ParseMessage(data)
		if err != nil {
			c.logger.Warn("dropping malformed frame", "error", err)
			continue
		}

		switch msg.Type {
		case protocol.TypeResponse, protocol.TypePong:
			c.resolve(msg)
		case protocol.TypeEvent:
			c.handleEvent(msg)
		case protocol.TypePing:
			c.answerPing(msg)
		default:
			c.logger.Debug("ignoring message", "type", msg.Type)
		}
	}
}

func (c *Client) resolve(msg *protocol.Message) {
	c.mu.Lock()
	ch, ok := c.pending[msg.ID]
	delete(c.pending, msg.ID)
	c.mu.Unlock()

	if !ok {
		c.logger.Debug("response for unknown request", "id", msg.ID, "method", msg.Method)
		return
	}
	ch <- msg
}

func (c *Client) handleEvent(msg *protocol.Message) {
	c.cbMu.RLock()
	cb := c.callback
	c.cbMu.RUnlock()

	handled := false
	if cb != nil {
		var err error
		handled, err = deliverEvent(cb, msg)
		if err != nil {
			c.logger.Warn("dropping event", "event", msg.Method, "error", err)
		}
	}

	if !protocol.AckedEvents[msg.Method] {
		return
	}
	ack, err := protocol.NewAck(msg.ID, msg.Method, handled)
	if err != nil {
		return
	}
	if err := c.send(ack); err != nil {
		c.logger.Error("ack failed", "event", msg.Method, "error", err)
	}
}

func (c *Client) answerPing(msg *protocol.Message) {
	ping, err := msg.GetPingData()
	if err != nil {
		return
	}
	pong, err := protocol.NewPongMessage(msg.ID, ping.Timestamp, time.Now().UnixMilli())
	if err != nil {
		return
	}
	if err := c.send(pong); err != nil {
		c.logger.Debug("pong not sent", "error", err)
	}
}

func (c *Client) keepalive() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.logger.Debug("keepalive ping failed", "error", err)
				c.shutdown(err)
				return
			}
		}
	}
}

func get[T any](c *Client, method string, params any) (T, error) {
	var out T
	err := c.call(method, params, &out)
	return out, err
}

// Register installs cb for events and announces app to the service.
func (c *Client) Register(app temi.AppInfo, cb temi.Callback) error {
	c.cbMu.Lock()
	c.callback = cb
	c.cbMu.Unlock()
	return c.call(protocol.MethodRegister, app, nil)
}

func (c *Client) OnStart(activity temi.ActivityInfo) error {
	return c.call(protocol.MethodOnStart, activity, nil)
}

func (c *Client) Speak(req temi.TtsRequest) error {
	return c.call(protocol.MethodSpeak, req, nil)
}

func (c *Client) CancelAll() error {
	return c.call(protocol.MethodCancelAll, nil, nil)
}

func (c *Client) LockContexts(contexts []string) error {
	return c.call(protocol.MethodLockContexts, contexts, nil)
}

func (c *Client) ReleaseContexts(contexts []string) error {
	return c.call(protocol.MethodReleaseContexts, contexts, nil)
}

func (c *Client) Wakeup() error {
	return c.call(protocol.MethodWakeup, nil, nil)
}

func (c *Client) GetWakeupWord() (string, error) {
	return get[string](c, protocol.MethodGetWakeupWord, nil)
}

func (c *Client) ToggleWakeup(disable bool) error {
	return c.call(protocol.MethodToggleWakeup, disable, nil)
}

func (c *Client) GoTo(location string) error {
	return c.call(protocol.MethodGoTo, location, nil)
}

func (c *Client) GetLocations() ([]string, error) {
	return get[[]string](c, protocol.MethodGetLocations, nil)
}

func (c *Client) SaveLocation(name string) (bool, error) {
	return get[bool](c, protocol.MethodSaveLocation, name)
}

func (c *Client) DeleteLocation(name string) (bool, error) {
	return get[bool](c, protocol.MethodDeleteLocation, name)
}

func (c *Client) BeWithMe() error {
	return c.call(protocol.MethodBeWithMe, nil, nil)
}

func (c *Client) StopMovement() error {
	return c.call(protocol.MethodStopMovement, nil, nil)
}

func (c *Client) SkidJoy(x, y float32) error {
	return c.call(protocol.MethodSkidJoy, protocol.JoystickParams{X: x, Y: y}, nil)
}

func (c *Client) TurnBy(degrees int, speed float32) error {
	return c.call(protocol.MethodTurnBy, protocol.MotionParams{Degrees: degrees, Speed: speed}, nil)
}

func (c *Client) TiltAngle(degrees int, speed float32) error {
	return c.call(protocol.MethodTiltAngle, protocol.MotionParams{Degrees: degrees, Speed: speed}, nil)
}

func (c *Client) TiltBy(degrees int, speed float32) error {
	return c.call(protocol.MethodTiltBy, protocol.MotionParams{Degrees: degrees, Speed: speed}, nil)
}

func (c *Client) ToggleNavigationBillboard(hide bool) error {
	return c.call(protocol.MethodToggleNavigationBillboard, hide, nil)
}

func (c *Client) GetSerialNumber() (string, error) {
	return get[string](c, protocol.MethodGetSerialNumber, nil)
}

func (c *Client) GetBatteryData() (*temi.BatteryData, error) {
	return get[*temi.BatteryData](c, protocol.MethodGetBatteryData, nil)
}

func (c *Client) ShowAppList() error {
	return c.call(protocol.MethodShowAppList, nil, nil)
}

func (c *Client) ShowTopBar() error {
	return c.call(protocol.MethodShowTopBar, nil, nil)
}

func (c *Client) HideTopBar() error {
	return c.call(protocol.MethodHideTopBar, nil, nil)
}

func (c *Client) StartTelepresence(displayName, peerID string) (string, error) {
	return get[string](c, protocol.MethodStartTelepresence, protocol.TelepresenceParams{
		DisplayName: displayName,
		PeerID:      peerID,
	})
}

func (c *Client) GetAdminInfo() (*temi.UserInfo, error) {
	return get[*temi.UserInfo](c, protocol.MethodGetAdminInfo, nil)
}

func (c *Client) GetAllContacts() ([]temi.UserInfo, error) {
	return get[[]temi.UserInfo](c, protocol.MethodGetAllContacts, nil)
}

func (c *Client) GetRecentCalls() ([]temi.RecentCall, error) {
	return get[[]temi.RecentCall](c, protocol.MethodGetRecentCalls, nil)
}

func (c *Client) ShareActivityStreamObject(obj temi.ActivityStreamObject) error {
	return c.call(protocol.MethodShareActivityStreamObject, obj, nil)
}

func (c *Client) ShowNormalNotification(n temi.NormalNotification) error {
	return c.call(protocol.MethodShowNormalNotification, n, nil)
}

func (c *Client) ShowAlertNotification(n temi.AlertNotification) error {
	return c.call(protocol.MethodShowAlertNotification, n, nil)
}

func (c *Client) RemoveAlertNotification(n temi.AlertNotification) error {
	return c.call(protocol.MethodRemoveAlertNotification, n, nil)
}

func (c *Client) UpdateMediaBar(data temi.MediaBarData) error {
	return c.call(protocol.MethodUpdateMediaBar, data, nil)
}

func (c *Client) PauseMediaBar() error {
	return c.call(protocol.MethodPauseMediaBar, nil, nil)
}

func (c *Client) SetMediaPlaying(playing bool, packageName string) error {
	return c.call(protocol.MethodSetMediaPlaying, protocol.MediaPlayingParams{
		Playing:     playing,
		PackageName: packageName,
	}, nil)
}
