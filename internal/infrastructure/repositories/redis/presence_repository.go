package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"livesignal/internal/core/domain"
	"livesignal/internal/core/ports"
	"livesignal/pkg/retry"

	"github.com/redis/go-redis/v9"
)

// RedisPresenceRepository keeps the live-streamer set in Redis so other
// processes (page rendering, a second signaling instance) can answer "who
// is live". Streamer records live under a per-identity key plus a set of
// live identities. Transient Redis failures are retried with backoff.
type RedisPresenceRepository struct {
	client   *redis.Client
	prefix   string
	retryCfg retry.Config
}

func NewRedisPresenceRepository(client *redis.Client) ports.PresenceRepository {
	return &RedisPresenceRepository{
		client:   client,
		prefix:   "livesignal:presence:",
		retryCfg: retry.DefaultConfig(),
	}
}

func (r *RedisPresenceRepository) streamerKey(streamer domain.Identity) string {
	return r.prefix + string(streamer)
}

func (r *RedisPresenceRepository) liveSetKey() string {
	return r.prefix + "live"
}

func (r *RedisPresenceRepository) MarkLive(ctx context.Context, state *domain.BroadcasterState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal broadcaster state: %w", err)
	}

	return retry.Retry(ctx, r.retryCfg, func() error {
		pipe := r.client.TxPipeline()
		pipe.Set(ctx, r.streamerKey(state.Streamer), data, 0)
		pipe.SAdd(ctx, r.liveSetKey(), string(state.Streamer))
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("failed to mark streamer live in Redis: %w", err)
		}
		return nil
	})
}

func (r *RedisPresenceRepository) Clear(ctx context.Context, streamer domain.Identity) error {
	return retry.Retry(ctx, r.retryCfg, func() error {
		pipe := r.client.TxPipeline()
		pipe.Del(ctx, r.streamerKey(streamer))
		pipe.SRem(ctx, r.liveSetKey(), string(streamer))
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("failed to clear streamer presence in Redis: %w", err)
		}
		return nil
	})
}

func (r *RedisPresenceRepository) IsLive(ctx context.Context, streamer domain.Identity) (bool, error) {
	live, err := r.client.SIsMember(ctx, r.liveSetKey(), string(streamer)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check streamer presence in Redis: %w", err)
	}
	return live, nil
}

func (r *RedisPresenceRepository) ListLive(ctx context.Context) ([]*domain.BroadcasterState, error) {
	streamers, err := r.client.SMembers(ctx, r.liveSetKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list live streamers from Redis: %w", err)
	}

	var states []*domain.BroadcasterState
	for _, streamer := range streamers {
		data, err := r.client.Get(ctx, r.streamerKey(domain.Identity(streamer))).Result()
		if err == redis.Nil {
			// Record expired between SMEMBERS and GET
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get broadcaster state from Redis: %w", err)
		}

		var state domain.BroadcasterState
		if err := json.Unmarshal([]byte(data), &state); err != nil {
			return nil, fmt.Errorf("failed to unmarshal broadcaster state: %w", err)
		}
		states = append(states, &state)
	}

	return states, nil
}
