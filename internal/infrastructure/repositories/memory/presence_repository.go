package memory

import (
	"context"
	"sync"

	"livesignal/internal/core/domain"
	"livesignal/internal/core/ports"
)

type MemoryPresenceRepository struct {
	live map[domain.Identity]*domain.BroadcasterState
	mu   sync.RWMutex
}

func NewMemoryPresenceRepository() ports.PresenceRepository {
	return &MemoryPresenceRepository{
		live: make(map[domain.Identity]*domain.BroadcasterState),
	}
}

func (r *MemoryPresenceRepository) MarkLive(ctx context.Context, state *domain.BroadcasterState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.live[state.Streamer] = state
	return nil
}

func (r *MemoryPresenceRepository) Clear(ctx context.Context, streamer domain.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.live, streamer)
	return nil
}

func (r *MemoryPresenceRepository) IsLive(ctx context.Context, streamer domain.Identity) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, live := r.live[streamer]
	return live, nil
}

func (r *MemoryPresenceRepository) ListLive(ctx context.Context) ([]*domain.BroadcasterState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	states := make([]*domain.BroadcasterState, 0, len(r.live))
	for _, state := range r.live {
		states = append(states, state)
	}

	return states, nil
}
