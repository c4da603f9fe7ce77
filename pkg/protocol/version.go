package protocol

// ProtocolVersion is the wire protocol version reported by the health check
// and advertised to WebSocket clients on connect.
const ProtocolVersion = 1

// EventFrame is the envelope pushed to WebSocket clients for every bus event.
type EventFrame struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// NewEvent wraps name/payload into the wire envelope.
func NewEvent(name string, payload interface{}) *EventFrame {
	return &EventFrame{Type: name, Payload: payload}
}
