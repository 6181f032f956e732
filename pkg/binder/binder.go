// Package binder keeps a temi.Robot bound to the remote service.
//
// It dials the service, hands the connection to the robot, and when the
// connection drops it unbinds the robot and dials again after a delay,
// until its context ends.
package binder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-temi/internal/log"
	"github.com/teslashibe/go-temi/pkg/rpc"
	"github.com/teslashibe/go-temi/pkg/temi"
)

// DefaultReconnectDelay is the pause between a lost connection and the
// next dial.
const DefaultReconnectDelay = 2 * time.Second

// Conn is a live connection to the service.
type Conn interface {
	temi.Service
	Done() <-chan struct{}
	Err() error
	Close() error
}

// DialFunc opens a connection to the service.
type DialFunc func(ctx context.Context) (Conn, error)

// Target receives the bound service; *temi.Robot satisfies it.
type Target interface {
	SetService(svc temi.Service)
}

// RPCDialer dials url with pkg/rpc.
func RPCDialer(url string, opts ...rpc.Option) DialFunc {
	return func(ctx context.Context) (Conn, error) {
		c, err := rpc.Dial(ctx, url, opts...)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// Binder drives the connection of one Target.
type Binder struct {
	target      Target
	dial        DialFunc
	logger      *slog.Logger
	delay       time.Duration
	maxAttempts int

	mu      sync.RWMutex
	current Conn

	// Stats
	binds        atomic.Int64
	dialFailures atomic.Int64
}

// Option configures a Binder.
type Option func(*Binder)

// WithReconnectDelay sets the pause between dial attempts.
func WithReconnectDelay(d time.Duration) Option {
	return func(b *Binder) {
		b.delay = d
	}
}

// WithMaxAttempts stops Run after n consecutive failed dials. 0 means
// unlimited.
func WithMaxAttempts(n int) Option {
	return func(b *Binder) {
		b.maxAttempts = n
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Binder) {
		b.logger = l
	}
}

// New creates a binder for target.
func New(target Target, dial DialFunc, opts ...Option) *Binder {
	b := &Binder{
		target: target,
		dial:   dial,
		delay:  DefaultReconnectDelay,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = log.Component("binder")
	}
	return b
}

// Run dials, binds and re-dials until ctx ends. The target is unbound and
// the connection closed before Run returns.
func (b *Binder) Run(ctx context.Context) error {
	attempts := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, err := b.dial(ctx)
		if err != nil {
			attempts++
			b.dialFailures.Add(1)

			if b.maxAttempts > 0 && attempts >= b.maxAttempts {
				return fmt.Errorf("binder: max dial attempts (%d) reached: %w", b.maxAttempts, err)
			}
			b.logger.Warn("service connection failed, retrying",
				"error", err,
				"attempt", attempts,
				"retry_in", b.delay,
			)
			if !b.wait(ctx) {
				return ctx.Err()
			}
			continue
		}

		attempts = 0
		b.bind(conn)

		select {
		case <-conn.Done():
			b.logger.Warn("service connection lost", "error", conn.Err())
			b.unbind()
		case <-ctx.Done():
			b.unbind()
			conn.Close()
			return ctx.Err()
		}

		if !b.wait(ctx) {
			return ctx.Err()
		}
	}
}

func (b *Binder) wait(ctx context.Context) bool {
	t := time.NewTimer(b.delay)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (b *Binder) bind(conn Conn) {
	b.mu.Lock()
	b.current = conn
	b.mu.Unlock()

	b.binds.Add(1)
	b.logger.Info("service bound")
	b.target.SetService(conn)
}

func (b *Binder) unbind() {
	b.mu.Lock()
	b.current = nil
	b.mu.Unlock()

	b.logger.Info("service unbound")
	b.target.SetService(nil)
}

// Connected reports whether a connection is bound.
func (b *Binder) Connected() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.current != nil
}

// Stats contains binder statistics.
type Stats struct {
	Connected    bool  `json:"connected"`
	Binds        int64 `json:"binds"`
	DialFailures int64 `json:"dial_failures"`
}

// Stats returns binder statistics.
func (b *Binder) Stats() Stats {
	return Stats{
		Connected:    b.Connected(),
		Binds:        b.binds.Load(),
		DialFailures: b.dialFailures.Load(),
	}
}
