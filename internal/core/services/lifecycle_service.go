package services

import (
	"context"
	"fmt"
	"sync"

	"livesignal/internal/core/domain"
	"livesignal/internal/core/ports"

	"go.uber.org/zap"
)

type sessionState int

const (
	stateConnected sessionState = iota // channel open, no room yet
	stateJoined
)

// lifecycleService drives the per-endpoint state machine and is the only
// place disconnect consequences are decided: a broadcaster's departure ends
// the stream and tells everyone, a viewer's departure tells the room it
// actually occupied, and everything else is a no-op.
type lifecycleService struct {
	router   ports.RoomRouter
	presence ports.PresenceRepository
	sender   ports.EndpointSender
	metrics  ports.MetricsSink

	mu       sync.Mutex
	sessions map[domain.EndpointID]sessionState

	logger *zap.SugaredLogger
}

func NewLifecycleService(
	router ports.RoomRouter,
	presence ports.PresenceRepository,
	sender ports.EndpointSender,
	metrics ports.MetricsSink,
	logger *zap.SugaredLogger,
) ports.SessionLifecycle {
	return &lifecycleService{
		router:   router,
		presence: presence,
		sender:   sender,
		metrics:  metrics,
		sessions: make(map[domain.EndpointID]sessionState),
		logger:   logger,
	}
}

func (s *lifecycleService) OnConnect(endpoint domain.EndpointID) {
	s.mu.Lock()
	s.sessions[endpoint] = stateConnected
	s.mu.Unlock()
}

func (s *lifecycleService) OnJoin(ctx context.Context, endpoint domain.EndpointID, user, streamer domain.Identity) error {
	moved, err := s.router.Join(ctx, streamer, endpoint, user)
	if err != nil {
		return fmt.Errorf("join failed: %w", err)
	}

	s.mu.Lock()
	s.sessions[endpoint] = stateJoined
	s.mu.Unlock()

	if moved == nil {
		return nil
	}

	// Joining a different streamer's room is an implicit departure from
	// the previous one, with the same consequences as a disconnect.
	s.logger.Infow("endpoint switched rooms",
		"endpoint", endpoint,
		"from", moved.Membership.RoomID,
		"to", domain.LiveRoomID(streamer),
	)
	if moved.Membership.Role == domain.RoleBroadcaster {
		return s.broadcasterDisconnected(ctx, moved)
	}
	s.viewerDisconnected(moved)
	return nil
}

func (s *lifecycleService) OnDisconnect(ctx context.Context, endpoint domain.EndpointID) error {
	s.mu.Lock()
	_, known := s.sessions[endpoint]
	delete(s.sessions, endpoint)
	s.mu.Unlock()

	// Membership bookkeeping is purged unconditionally, even for sessions
	// this instance never saw connect (double disconnect is a no-op
	// inside Leave).
	departure, err := s.router.Leave(ctx, endpoint)
	if err != nil {
		return fmt.Errorf("leave failed: %w", err)
	}
	if departure == nil {
		if known {
			s.logger.Debugw("unjoined endpoint disconnected", "endpoint", endpoint)
		}
		return nil
	}

	if departure.Membership.Role == domain.RoleBroadcaster {
		return s.broadcasterDisconnected(ctx, departure)
	}
	s.viewerDisconnected(departure)
	return nil
}

func (s *lifecycleService) broadcasterDisconnected(ctx context.Context, departure *domain.Departure) error {
	streamer := departure.Membership.User
	if err := s.presence.Clear(ctx, streamer); err != nil {
		return fmt.Errorf("failed to clear presence for %s: %w", streamer, err)
	}

	s.logger.Infow("broadcaster disconnected, stream stopped",
		"streamer", streamer,
		"room", departure.Membership.RoomID,
		"viewers_notified", len(departure.Remaining),
	)

	event := domain.StreamStatusEvent{Status: domain.StreamStatusStopped}
	for _, member := range departure.Remaining {
		if err := s.sender.Send(member.Endpoint, domain.EventStreamStatus, event); err != nil {
			s.logger.Debugw("stream_status notification dropped",
				"member", member.Endpoint,
				"error", err,
			)
		}
	}

	if s.metrics != nil {
		s.metrics.RecordStreamStopped(streamer)
	}
	return nil
}

func (s *lifecycleService) viewerDisconnected(departure *domain.Departure) {
	// Delivered only to the room the viewer actually occupied, via the
	// reverse index kept by the router.
	event := domain.ViewerLeftEvent{ViewerID: departure.Endpoint}
	for _, member := range departure.Remaining {
		if err := s.sender.Send(member.Endpoint, domain.EventViewerLeft, event); err != nil {
			s.logger.Debugw("viewer_left notification dropped",
				"member", member.Endpoint,
				"error", err,
			)
		}
	}

	if s.metrics != nil {
		s.metrics.RecordViewerLeft(departure.Membership.RoomID)
	}
}
