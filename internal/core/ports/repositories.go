package ports

import (
	"context"

	"livesignal/internal/core/domain"
)

// PresenceRepository is the authoritative registry of who is currently
// live-broadcasting. At most one record exists per streamer identity, and
// the record's existence is the sole source of truth for "is X live".
type PresenceRepository interface {
	// MarkLive inserts or overwrites the streamer's presence record.
	// Calling it twice for the same streamer is not an error.
	MarkLive(ctx context.Context, state *domain.BroadcasterState) error
	// Clear removes the record if present; clearing an absent streamer
	// is a no-op.
	Clear(ctx context.Context, streamer domain.Identity) error
	IsLive(ctx context.Context, streamer domain.Identity) (bool, error)
	ListLive(ctx context.Context) ([]*domain.BroadcasterState, error)
}
