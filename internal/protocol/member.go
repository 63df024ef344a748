package protocol

import "encoding/json"

// Member is a client connected to an observable room.
//
// A Member decoded from the wire remembers its original bytes and encodes
// back to exactly those bytes, so fields this package does not model are
// relayed untouched.
type Member struct {
	ID         string          `json:"id"`
	ClientData json.RawMessage `json:"clientData,omitempty"`
	AuthData   json.RawMessage `json:"authData,omitempty"`

	raw json.RawMessage
}

type memberFields Member

// UnmarshalJSON implements json.Unmarshaler.
func (m *Member) UnmarshalJSON(data []byte) error {
	var fields memberFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*m = Member(fields)
	m.raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (m Member) MarshalJSON() ([]byte, error) {
	if len(m.raw) > 0 {
		return m.raw, nil
	}
	return json.Marshal(memberFields(m))
}
