package relay

import (
	"encoding/json"
	"fmt"

	"github.com/BioHazard786/droprelay/internal/protocol"
	"github.com/pion/webrtc/v4"
	"github.com/tidwall/gjson"
)

// describeSignal summarises a relayed payload for debug logs, e.g.
// "sdp offer from browser-Yx3". It never fails: payloads that are not
// recognisable WebRTC signals are described as "data".
func describeSignal(payload json.RawMessage, from protocol.Member) string {
	kind := "data"

	if raw := gjson.GetBytes(payload, "sdp"); raw.Exists() {
		var desc webrtc.SessionDescription
		if err := json.Unmarshal([]byte(raw.Raw), &desc); err == nil {
			kind = "sdp " + desc.Type.String()
		} else {
			kind = "sdp"
		}
	} else if raw := gjson.GetBytes(payload, "candidate"); raw.Exists() {
		var cand webrtc.ICECandidateInit
		if err := json.Unmarshal([]byte(raw.Raw), &cand); err == nil && cand.SDPMid != nil {
			kind = fmt.Sprintf("ice candidate (mid %s)", *cand.SDPMid)
		} else {
			kind = "ice candidate"
		}
	}

	return kind + " from " + memberLabel(from)
}

// memberLabel renders a member as name-id, or just the id when the member
// advertised no name.
func memberLabel(m protocol.Member) string {
	name := gjson.GetBytes(m.ClientData, "name")
	if name.Type == gjson.String && name.Str != "" {
		return name.Str + "-" + m.ID
	}
	return m.ID
}
