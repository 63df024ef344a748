package protocol

import "encoding/json"

// Message is a single websocket frame exchanged with the pub/sub service,
// in both directions.
type Message struct {
	Type       string          `json:"type,omitempty"`
	Channel    string          `json:"channel,omitempty"`
	ClientData json.RawMessage `json:"client_data,omitempty"`
	Room       string          `json:"room,omitempty"`
	Message    json.RawMessage `json:"message,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	ClientID   string          `json:"client_id,omitempty"`
	ID         string          `json:"id,omitempty"`
	Timestamp  int64           `json:"timestamp,omitempty"`
	Error      string          `json:"error,omitempty"`

	// Callback pairs a request with its reply. It is a pointer because 0 is
	// a valid callback id.
	Callback *int `json:"callback,omitempty"`
}

// Message type constants.
const (
	MessageTypeHandshake   = "handshake"
	MessageTypeSubscribe   = "subscribe"
	MessageTypeUnsubscribe = "unsubscribe"
	MessageTypePublish     = "publish"

	MessageTypeObservableMembers     = "observable_members"
	MessageTypeObservableMemberJoin  = "observable_member_join"
	MessageTypeObservableMemberLeave = "observable_member_leave"
)

// ObservablePrefix marks rooms whose membership is broadcast to subscribers.
const ObservablePrefix = "observable-"

// CallbackID returns a pointer suitable for Message.Callback.
func CallbackID(id int) *int {
	return &id
}

// IsReply reports whether m answers the request sent with callback id.
func (m *Message) IsReply(id int) bool {
	return m.Type == "" && m.Callback != nil && *m.Callback == id
}
