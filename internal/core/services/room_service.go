package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"livesignal/internal/core/domain"
	"livesignal/internal/core/ports"

	"go.uber.org/zap"
)

// roomService is the room router: membership bookkeeping, the join side
// effect chain and 1:1 signal relay. Rooms and the endpoint reverse index
// form a single mutual-exclusion domain so the live/not-live check-then-act
// in Join and the snapshot-then-purge in Leave are atomic with respect to
// concurrent joins and disconnects. Sends happen outside the lock.
type roomService struct {
	presence  ports.PresenceRepository
	directory ports.IdentityDirectory
	sender    ports.EndpointSender
	metrics   ports.MetricsSink

	mu          sync.Mutex
	rooms       map[domain.RoomID]*domain.Room
	memberships map[domain.EndpointID]domain.Membership

	logger *zap.SugaredLogger
}

func NewRoomService(
	presence ports.PresenceRepository,
	directory ports.IdentityDirectory,
	sender ports.EndpointSender,
	metrics ports.MetricsSink,
	logger *zap.SugaredLogger,
) ports.RoomRouter {
	return &roomService{
		presence:    presence,
		directory:   directory,
		sender:      sender,
		metrics:     metrics,
		rooms:       make(map[domain.RoomID]*domain.Room),
		memberships: make(map[domain.EndpointID]domain.Membership),
		logger:      logger,
	}
}

func (s *roomService) Join(ctx context.Context, streamer domain.Identity, endpoint domain.EndpointID, user domain.Identity) (*domain.Departure, error) {
	exists, err := s.directory.Exists(ctx, string(streamer))
	if err != nil {
		return nil, fmt.Errorf("failed to check streamer identity: %w", err)
	}
	if !exists {
		// Silently ignored by contract: no room is created and the
		// client gets no error. Logged for observability.
		s.logger.Warnw("join ignored, unknown streamer",
			"streamer", streamer,
			"endpoint", endpoint,
		)
		if s.metrics != nil {
			s.metrics.RecordJoinIgnored()
		}
		return nil, nil
	}

	roomID := domain.LiveRoomID(streamer)

	role := domain.RoleViewer
	if user == streamer {
		role = domain.RoleBroadcaster
	}

	s.mu.Lock()
	if current, ok := s.memberships[endpoint]; ok && current.RoomID == roomID {
		// Idempotent join: membership, presence and notifications all
		// stay exactly as they were.
		s.mu.Unlock()
		return nil, nil
	}

	// Presence goes first: a failure here must leave no membership
	// behind, or a retry would hit the idempotency no-op above and the
	// stream could never go live on this channel.
	var live bool
	if role == domain.RoleBroadcaster {
		if err := s.presence.MarkLive(ctx, &domain.BroadcasterState{
			Streamer:  streamer,
			RoomID:    roomID,
			StartedAt: time.Now(),
		}); err != nil {
			s.mu.Unlock()
			return nil, fmt.Errorf("failed to mark streamer live: %w", err)
		}
	} else {
		live, err = s.presence.IsLive(ctx, streamer)
		if err != nil {
			s.mu.Unlock()
			return nil, fmt.Errorf("failed to check streamer presence: %w", err)
		}
	}

	// An endpoint occupies one room at a time: joining a different
	// streamer's room purges the old membership first.
	var moved *domain.Departure
	if current, ok := s.memberships[endpoint]; ok {
		moved = s.purgeLocked(endpoint, current)
	}

	room, ok := s.rooms[roomID]
	if !ok {
		room = &domain.Room{
			ID:        roomID,
			Streamer:  streamer,
			Members:   make(map[domain.EndpointID]domain.Identity),
			CreatedAt: time.Now(),
		}
		s.rooms[roomID] = room
	}

	room.Members[endpoint] = user
	s.memberships[endpoint] = domain.Membership{RoomID: roomID, User: user, Role: role}

	// Viewers of a not-yet-live stream wait in the room silently until a
	// future stream_status event or a poll.
	var notify []domain.EndpointID
	started := role == domain.RoleBroadcaster
	if role == domain.RoleViewer && live {
		for member := range room.Members {
			if member != endpoint {
				notify = append(notify, member)
			}
		}
	}
	s.mu.Unlock()

	s.logger.Infow("endpoint joined room",
		"room", roomID,
		"endpoint", endpoint,
		"user", user,
		"role", role,
	)

	if started && s.metrics != nil {
		s.metrics.RecordStreamStarted(streamer)
	}

	if len(notify) > 0 {
		event := domain.NewViewerEvent{ViewerID: endpoint, ViewerUser: user}
		for _, member := range notify {
			if err := s.sender.Send(member, domain.EventNewViewer, event); err != nil {
				s.logger.Debugw("new_viewer notification dropped",
					"room", roomID,
					"member", member,
					"error", err,
				)
			}
		}
		if s.metrics != nil {
			s.metrics.RecordViewerJoined(roomID)
		}
	}

	return moved, nil
}

func (s *roomService) Relay(ctx context.Context, target domain.EndpointID, payload json.RawMessage, sender domain.EndpointID) error {
	// Room membership is deliberately not re-validated per relay; any
	// connected endpoint is addressable by id.
	if !s.sender.IsConnected(target) {
		s.logger.Debugw("relay dropped, target not connected",
			"target", target,
			"sender", sender,
		)
		if s.metrics != nil {
			s.metrics.RecordSignalDropped()
		}
		return nil
	}

	envelope := domain.SignalEnvelope{Signal: payload, SenderSID: sender}
	if err := s.sender.Send(target, domain.EventWebRTCSignal, envelope); err != nil {
		// Fire-and-forget: the sender's negotiation stalls and recovers
		// client-side. Never surfaced as an error.
		s.logger.Debugw("relay send failed",
			"target", target,
			"sender", sender,
			"error", err,
		)
		if s.metrics != nil {
			s.metrics.RecordSignalDropped()
		}
		return nil
	}

	if s.metrics != nil {
		s.metrics.RecordSignalRelayed()
	}
	return nil
}

func (s *roomService) Leave(ctx context.Context, endpoint domain.EndpointID) (*domain.Departure, error) {
	s.mu.Lock()
	membership, ok := s.memberships[endpoint]
	if !ok {
		s.mu.Unlock()
		return nil, nil
	}
	departure := s.purgeLocked(endpoint, membership)
	s.mu.Unlock()

	s.logger.Infow("endpoint left room",
		"room", membership.RoomID,
		"endpoint", endpoint,
		"role", membership.Role,
		"remaining", len(departure.Remaining),
	)

	return departure, nil
}

// purgeLocked removes the endpoint's membership and garbage-collects the
// room when it empties. Callers hold s.mu.
func (s *roomService) purgeLocked(endpoint domain.EndpointID, membership domain.Membership) *domain.Departure {
	delete(s.memberships, endpoint)

	var remaining []domain.Member
	if room, exists := s.rooms[membership.RoomID]; exists {
		delete(room.Members, endpoint)
		remaining = room.MemberList()
		if len(room.Members) == 0 {
			delete(s.rooms, membership.RoomID)
		}
	}

	return &domain.Departure{
		Endpoint:   endpoint,
		Membership: membership,
		Remaining:  remaining,
	}
}
