package domain

// Identity is an authenticated username. A raw string coming off the wire
// must pass through the auth layer before it becomes an Identity, so the
// router and presence registry never operate on unverified client input.
type Identity string

// EndpointID is the server-assigned opaque identifier for one client's
// persistent signaling channel.
type EndpointID string

// RoomID identifies the set of endpoints attached to one streamer's session.
type RoomID string

const liveRoomPrefix = "live_"

// LiveRoomID derives the room id for a streamer. The "live_" prefix is the
// wire convention the clients already speak; it is never parsed back.
func LiveRoomID(streamer Identity) RoomID {
	return RoomID(liveRoomPrefix + string(streamer))
}

type Role string

const (
	RoleBroadcaster Role = "broadcaster"
	RoleViewer      Role = "viewer"
)
