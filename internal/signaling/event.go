package signaling

import (
	"encoding/json"

	"github.com/BioHazard786/droprelay/internal/protocol"
)

// EventKind identifies what happened in the room.
type EventKind int

const (
	EventOpened EventKind = iota + 1
	EventSubscriptionOpened
	EventMembersSnapshot
	EventMemberJoined
	EventMemberLeft
	EventDataReceived
	EventClosed
)

func (k EventKind) String() string {
	switch k {
	case EventOpened:
		return "opened"
	case EventSubscriptionOpened:
		return "subscription_opened"
	case EventMembersSnapshot:
		return "members_snapshot"
	case EventMemberJoined:
		return "member_joined"
	case EventMemberLeft:
		return "member_left"
	case EventDataReceived:
		return "data_received"
	case EventClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Event is one room lifecycle, membership or data notification. Which
// fields are set depends on Kind:
//
//	EventOpened             ClientID, or Err
//	EventSubscriptionOpened Err (nil on success)
//	EventMembersSnapshot    Members
//	EventMemberJoined       Member
//	EventMemberLeft         Member
//	EventDataReceived       Payload and the sending Member
//	EventClosed             Err, when the connection was lost
type Event struct {
	Kind     EventKind
	ClientID string
	Members  []protocol.Member
	Member   protocol.Member
	Payload  json.RawMessage
	Err      error
}
