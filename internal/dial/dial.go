// Package dial provides a shared WebSocket dialer with sensible defaults.
// Use this instead of websocket.DefaultDialer to ensure timeouts are set.
package dial

import (
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Default timeouts for dialing the robot service.
const (
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultConnectTimeout   = 5 * time.Second
	DefaultKeepAlive        = 30 * time.Second
)

// Dialer is a shared WebSocket dialer with production-ready defaults.
var Dialer = NewDialer(DefaultHandshakeTimeout)

// NewDialer creates a WebSocket dialer with the given handshake timeout.
// For most cases, use the shared Dialer variable instead.
func NewDialer(handshakeTimeout time.Duration) *websocket.Dialer {
	return &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
		NetDialContext: (&net.Dialer{
			Timeout:   DefaultConnectTimeout,
			KeepAlive: DefaultKeepAlive,
		}).DialContext,
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
	}
}
