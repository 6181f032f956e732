package rpc

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-temi/internal/dial"
	"github.com/teslashibe/go-temi/internal/log"
)

const (
	// writeWait is how long to wait for a write to complete
	writeWait = 10 * time.Second

	// pongWait is how long to wait for a pong response
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize bounds a single frame; activity stream media is inlined
	maxMessageSize = 16 << 20

	// DefaultCallTimeout bounds requests and event acks
	DefaultCallTimeout = 5 * time.Second
)

type options struct {
	timeout time.Duration
	logger  *slog.Logger
	dialer  *websocket.Dialer
}

// Option configures a Client or a Server.
type Option func(*options)

// WithCallTimeout sets how long a request waits for its response, and how
// long the server waits for an event ack.
func WithCallTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithDialer replaces the shared dialer. Servers ignore it.
func WithDialer(d *websocket.Dialer) Option {
	return func(o *options) {
		o.dialer = d
	}
}

func buildOptions(component string, opts []Option) options {
	o := options{
		timeout: DefaultCallTimeout,
		dialer:  dial.Dialer,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.Component(component)
	}
	return o
}
