// Package protocol defines the WebSocket message types of the SDK link
// between an application (client) and the robot service.
//
// Every frame is a JSON Message. Requests are answered by a response with
// the same ID; events pushed by the service are answered by an ack carrying
// AckData when the callback reports whether it was handled.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Client → Service messages
	TypeRequest MessageType = "request" // Remote method invocation
	TypeAck     MessageType = "ack"     // Reply to an event

	// Service → Client messages
	TypeResponse MessageType = "response" // Result of a request
	TypeEvent    MessageType = "event"    // Callback notification

	// Bidirectional
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	ID        string          `json:"id,omitempty"`
	Method    string          `json:"method,omitempty"` // request method or event name
	Timestamp int64           `json:"ts,omitempty"`     // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, id, method string, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s data: %w", msgType, err)
		}
	}

	return &Message{
		Type:      msgType,
		ID:        id,
		Method:    method,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided value.
// Absent data leaves v untouched.
func (m *Message) ParseData(v interface{}) error {
	if len(m.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("failed to parse %s %q data: %w", m.Type, m.Method, err)
	}
	return nil
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("failed to parse message: missing type")
	}
	return &msg, nil
}

// =============================================================================
// Parameter types for methods and events with more than one argument
// =============================================================================

// GoToStatusData is the payload of EventGoToLocationStatus.
type GoToStatusData struct {
	Location      string `json:"location"`
	Status        string `json:"status"`
	DescriptionID int    `json:"description_id"`
	Description   string `json:"description"`
}

// MotionParams carries turn and tilt requests.
type MotionParams struct {
	Degrees int     `json:"degrees"`
	Speed   float32 `json:"speed"`
}

// JoystickParams carries a skid joystick command, each axis in [-1, 1].
type JoystickParams struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

// TelepresenceParams carries a call request.
type TelepresenceParams struct {
	DisplayName string `json:"display_name"`
	PeerID      string `json:"peer_id"`
}

// MediaPlayingParams carries a media bar play state change.
type MediaPlayingParams struct {
	Playing     bool   `json:"playing"`
	PackageName string `json:"package_name"`
}

// AckData answers an event whose callback reports handling.
type AckData struct {
	Handled bool `json:"handled"`
}

// PingData contains ping information
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData contains pong response
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}
