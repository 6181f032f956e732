package hub

// Event is the frame sent to browser clients.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Publish broadcasts an Event frame.
func (h *Hub) Publish(event string, data any) error {
	return h.BroadcastJSON(Event{Event: event, Data: data})
}
