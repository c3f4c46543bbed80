package domain

import "encoding/json"

// Outbound event names. These are the wire contract with the browser
// clients and must not change.
const (
	EventNewViewer    = "new_viewer"
	EventViewerLeft   = "viewer_left"
	EventStreamStatus = "stream_status"
	EventWebRTCSignal = "webrtc_signal"
)

// NewViewerEvent tells the broadcaster (and any other members) that a
// viewer joined while the stream is live.
type NewViewerEvent struct {
	ViewerID   EndpointID `json:"viewer_id"`
	ViewerUser Identity   `json:"viewer_user"`
}

// ViewerLeftEvent tells remaining room members a viewer disconnected.
type ViewerLeftEvent struct {
	ViewerID EndpointID `json:"viewer_id"`
}

// StreamStatusEvent announces a change of the broadcast itself. The only
// status emitted today is "stopped", on broadcaster disconnect.
type StreamStatusEvent struct {
	Status string `json:"status"`
}

const StreamStatusStopped = "stopped"

// SignalEnvelope is the relay unit delivered to a target endpoint. The
// payload is opaque SDP or ICE data; the sender id is attached by the
// router, never taken from the sender's message.
type SignalEnvelope struct {
	Signal    json.RawMessage `json:"signal"`
	SenderSID EndpointID      `json:"sender_sid"`
}
