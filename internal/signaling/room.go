package signaling

import "github.com/BioHazard786/droprelay/internal/protocol"

// DefaultRoomHash is used when no room hash is supplied. Paired clients
// rely on the same literal, so it must not change.
const DefaultRoomHash = "smitty_werbenjagermanjensen"

const roomPrefix = "videostream-"

// Names holds the two channel names derived from a room hash.
type Names struct {
	// Room is the plain room name. The relay publishes here.
	Room string

	// Observable is the membership-tracked room name. The relay subscribes
	// here, so its own publishes are never echoed back to it.
	Observable string
}

// RoomNames derives the channel names for hash. The same hash always yields
// the same names; that is the only addressing mechanism peers share.
func RoomNames(hash string) Names {
	if hash == "" {
		hash = DefaultRoomHash
	}
	room := roomPrefix + hash
	return Names{
		Room:       room,
		Observable: protocol.ObservablePrefix + room,
	}
}
