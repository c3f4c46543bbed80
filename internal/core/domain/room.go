package domain

import "time"

// BroadcasterState is the presence record for one active live stream.
// Its existence is the sole source of truth for "is this streamer live".
type BroadcasterState struct {
	Streamer  Identity  `json:"streamer"`
	RoomID    RoomID    `json:"room_id"`
	StartedAt time.Time `json:"started_at"`
}

// Member is one channel endpoint inside a room, tagged with the identity
// of its occupant.
type Member struct {
	Endpoint EndpointID
	User     Identity
}

// Room is the set of endpoints associated with one streamer's session.
// Membership is mutated only by the router's join and leave paths.
type Room struct {
	ID        RoomID
	Streamer  Identity
	Members   map[EndpointID]Identity
	CreatedAt time.Time
}

// MemberList returns a snapshot of the room's members.
func (r *Room) MemberList() []Member {
	members := make([]Member, 0, len(r.Members))
	for endpoint, user := range r.Members {
		members = append(members, Member{Endpoint: endpoint, User: user})
	}
	return members
}

// Membership is the reverse-index entry mapping an endpoint back to the
// room and role it holds, maintained incrementally on join and leave.
type Membership struct {
	RoomID RoomID
	User   Identity
	Role   Role
}

// Departure is the snapshot the router hands to the lifecycle handler when
// an endpoint is removed: what the endpoint was, and who is still in the
// room after removal.
type Departure struct {
	Endpoint   EndpointID
	Membership Membership
	Remaining  []Member
}
