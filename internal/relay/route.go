package relay

import (
	"encoding/json"

	"github.com/BioHazard786/droprelay/internal/protocol"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// addressedTo reports whether payload is an object whose targetId is the
// string clientID. Anything else, including a missing or non-string
// targetId, is not addressed to us.
func addressedTo(payload json.RawMessage, clientID string) bool {
	if clientID == "" {
		return false
	}
	target := gjson.GetBytes(payload, "targetId")
	return target.Type == gjson.String && target.Str == clientID
}

// withMember returns payload with its member field set to m. Existing keys
// keep their order; member is appended unless already present.
func withMember(payload json.RawMessage, m protocol.Member) (json.RawMessage, error) {
	member, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return sjson.SetRawBytes(payload, "member", member)
}
