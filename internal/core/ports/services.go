package ports

import (
	"context"
	"encoding/json"

	"livesignal/internal/core/domain"
)

// RoomRouter manages admission of endpoints into per-streamer rooms and
// relays opaque signaling payloads between specific endpoints.
type RoomRouter interface {
	// Join adds the endpoint to the streamer's room. When the joining
	// identity equals the streamer identity the streamer is marked live;
	// otherwise, while the streamer is live, the other room members are
	// notified of a new viewer. Joining twice with the same arguments is
	// a no-op. An unknown streamer is silently ignored. An endpoint
	// belongs to at most one room: joining a different streamer's room
	// removes it from the previous one, and that departure snapshot is
	// returned so the caller can deliver the leave consequences.
	Join(ctx context.Context, streamer domain.Identity, endpoint domain.EndpointID, user domain.Identity) (*domain.Departure, error)

	// Relay delivers the payload to target verbatim, with the sender's
	// endpoint id attached by the router. Delivery is fire-and-forget: a
	// disconnected target drops the message without error to the sender.
	Relay(ctx context.Context, target domain.EndpointID, payload json.RawMessage, sender domain.EndpointID) error

	// Leave removes the endpoint from whichever room it belonged to and
	// returns the departure snapshot, or nil if the endpoint had never
	// joined. Empty rooms are garbage-collected.
	Leave(ctx context.Context, endpoint domain.EndpointID) (*domain.Departure, error)
}

// SessionLifecycle tracks the per-endpoint state machine
// connected -> joined -> disconnected and reacts to channel closure.
type SessionLifecycle interface {
	OnConnect(endpoint domain.EndpointID)
	OnJoin(ctx context.Context, endpoint domain.EndpointID, user, streamer domain.Identity) error
	OnDisconnect(ctx context.Context, endpoint domain.EndpointID) error
}

// IdentityDirectory is the external collaborator that answers whether a
// username exists. The signaling core never authenticates by itself.
type IdentityDirectory interface {
	Exists(ctx context.Context, name string) (bool, error)
}

// EndpointSender abstracts the transport's ability to push an event to a
// connected endpoint. Sends are fire-and-forget.
type EndpointSender interface {
	Send(endpoint domain.EndpointID, event string, payload interface{}) error
	IsConnected(endpoint domain.EndpointID) bool
}

// MetricsSink receives signaling events worth counting. Implementations
// must tolerate being nil-checked away in tests.
type MetricsSink interface {
	RecordConnectionOpened()
	RecordConnectionClosed()
	RecordStreamStarted(streamer domain.Identity)
	RecordStreamStopped(streamer domain.Identity)
	RecordViewerJoined(room domain.RoomID)
	RecordViewerLeft(room domain.RoomID)
	RecordSignalRelayed()
	RecordSignalDropped()
	RecordJoinIgnored()
}
