package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"livesignal/internal/core/domain"
	"livesignal/internal/core/ports"
	"livesignal/internal/core/services"
	"livesignal/pkg/tracing"
	"livesignal/pkg/utils"
	"livesignal/pkg/validation"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Should be configured properly for production
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// SignalMessage is the inbound wire frame.
type SignalMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// OutboundMessage is the outbound wire frame.
type OutboundMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

type JoinLiveRoomPayload struct {
	Username string `json:"username"`
	Streamer string `json:"streamer"`
}

type WebRTCSignalPayload struct {
	TargetSID string          `json:"target_sid"`
	Signal    json.RawMessage `json:"signal"`
}

type ConnectedPayload struct {
	EndpointID domain.EndpointID `json:"endpoint_id"`
}

// endpointConn serializes writes; gorilla connections allow only one
// concurrent writer and relays arrive from other endpoints' goroutines.
type endpointConn struct {
	conn     *websocket.Conn
	identity domain.Identity

	writeMu sync.Mutex
}

func (c *endpointConn) writeJSON(v interface{}, deadline time.Duration) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(deadline))
	return c.conn.WriteJSON(v)
}

// WebSocketServer is the signaling transport: it owns the persistent
// channels, assigns opaque endpoint ids, feeds inbound events to the
// lifecycle handler and router, and implements the EndpointSender port
// for outbound fire-and-forget delivery.
type WebSocketServer struct {
	lifecycle ports.SessionLifecycle
	router    ports.RoomRouter
	auth      services.AuthService
	metrics   ports.MetricsSink

	connections map[domain.EndpointID]*endpointConn
	mu          sync.RWMutex

	pingInterval time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration

	msgRate        rate.Limit
	msgBurst       int
	maxMessageSize int64

	logger *zap.SugaredLogger
}

func NewWebSocketServer(
	lifecycle ports.SessionLifecycle,
	router ports.RoomRouter,
	auth services.AuthService,
	metrics ports.MetricsSink,
	logger *zap.SugaredLogger,
) *WebSocketServer {
	return &WebSocketServer{
		lifecycle:    lifecycle,
		router:       router,
		auth:         auth,
		metrics:      metrics,
		connections:  make(map[domain.EndpointID]*endpointConn),
		pingInterval: 30 * time.Second,
		readTimeout:  60 * time.Second,
		writeTimeout: 10 * time.Second,
		msgRate:      rate.Inf,
		msgBurst:     1,
		logger:       logger,
	}
}

// Attach wires the session lifecycle and router after construction. The
// room service needs the server as its sender, so the server is built
// first and attached once the services exist.
func (s *WebSocketServer) Attach(lifecycle ports.SessionLifecycle, router ports.RoomRouter) {
	s.lifecycle = lifecycle
	s.router = router
}

// SetPingInterval sets ping interval for WebSocket connections
func (s *WebSocketServer) SetPingInterval(interval time.Duration) {
	s.pingInterval = interval
}

// SetReadTimeout sets the pong/read timeout for WebSocket connections
func (s *WebSocketServer) SetReadTimeout(timeout time.Duration) {
	s.readTimeout = timeout
}

// SetWriteTimeout sets the write timeout for WebSocket connections
func (s *WebSocketServer) SetWriteTimeout(timeout time.Duration) {
	s.writeTimeout = timeout
}

// SetMessageRateLimit caps inbound messages per connection. Zero burst
// disables limiting.
func (s *WebSocketServer) SetMessageRateLimit(perSecond float64, burst int, maxMessageSize int64) {
	if burst > 0 {
		s.msgRate = rate.Limit(perSecond)
		s.msgBurst = burst
	}
	s.maxMessageSize = maxMessageSize
}

func (s *WebSocketServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	claims, err := s.auth.ValidateToken(r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	identity := claims.Identity()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	endpoint := domain.EndpointID(utils.GenerateEndpointID())
	ec := &endpointConn{conn: conn, identity: identity}

	s.mu.Lock()
	s.connections[endpoint] = ec
	s.mu.Unlock()

	s.lifecycle.OnConnect(endpoint)
	if s.metrics != nil {
		s.metrics.RecordConnectionOpened()
	}

	s.logger.Infow("endpoint connected",
		"endpoint", endpoint,
		"identity", identity,
	)

	// Tell the client its server-assigned endpoint id
	if err := ec.writeJSON(OutboundMessage{
		Type:    "connected",
		Payload: ConnectedPayload{EndpointID: endpoint},
	}, s.writeTimeout); err != nil {
		s.logger.Warnw("failed to send connected ack", "endpoint", endpoint, "error", err)
	}

	if s.maxMessageSize > 0 {
		conn.SetReadLimit(s.maxMessageSize)
	}
	conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.readTimeout))
		return nil
	})

	pingTicker := time.NewTicker(s.pingInterval)
	defer pingTicker.Stop()

	messageChan := make(chan SignalMessage, 10)
	errorChan := make(chan error, 1)
	limiter := rate.NewLimiter(s.msgRate, s.msgBurst)

	go func() {
		for {
			var msg SignalMessage
			if err := conn.ReadJSON(&msg); err != nil {
				errorChan <- err
				return
			}
			conn.SetReadDeadline(time.Now().Add(s.readTimeout))
			messageChan <- msg
		}
	}()

	for {
		select {
		case msg := <-messageChan:
			if !limiter.Allow() {
				s.logger.Warnw("message rate limit exceeded, dropping message",
					"endpoint", endpoint,
					"type", msg.Type,
				)
				continue
			}
			if err := s.handleMessage(context.Background(), ec, endpoint, msg); err != nil {
				s.logger.Infow("error handling message from endpoint",
					"endpoint", endpoint,
					"type", msg.Type,
					"error", err,
				)
				s.sendError(ec, err.Error())
			}

		case <-pingTicker.C:
			ec.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			ec.writeMu.Unlock()
			if err != nil {
				s.logger.Infow("error sending ping", "endpoint", endpoint, "error", err)
				goto cleanup
			}

		case err := <-errorChan:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				s.logger.Infow("error reading message from endpoint", "endpoint", endpoint, "error", err)
			}
			goto cleanup
		}
	}

cleanup:
	s.mu.Lock()
	delete(s.connections, endpoint)
	s.mu.Unlock()

	if err := s.lifecycle.OnDisconnect(context.Background(), endpoint); err != nil {
		s.logger.Infow("error handling disconnect", "endpoint", endpoint, "error", err)
	}
	if s.metrics != nil {
		s.metrics.RecordConnectionClosed()
	}

	s.logger.Infow("endpoint disconnected", "endpoint", endpoint)
}

func (s *WebSocketServer) handleMessage(ctx context.Context, ec *endpointConn, endpoint domain.EndpointID, msg SignalMessage) error {
	if msg.Type == "" {
		return fmt.Errorf("message type is required")
	}

	ctx, span := tracing.TraceSignalMessage(ctx, msg.Type, string(endpoint))
	defer span.End()

	switch msg.Type {
	case "join_live_room":
		return s.handleJoinLiveRoom(ctx, ec, endpoint, msg)
	case "webrtc_signal":
		return s.handleWebRTCSignal(ctx, endpoint, msg)
	default:
		return fmt.Errorf("unknown message type: %s", msg.Type)
	}
}

func (s *WebSocketServer) handleJoinLiveRoom(ctx context.Context, ec *endpointConn, endpoint domain.EndpointID, msg SignalMessage) error {
	var payload JoinLiveRoomPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("invalid join_live_room payload: %w", err)
	}

	if err := validation.ValidateUsername(payload.Streamer); err != nil {
		return fmt.Errorf("invalid streamer: %w", err)
	}

	// The session identity is authoritative; the wire username is only
	// kept for compatibility with existing clients.
	if payload.Username != "" && domain.Identity(payload.Username) != ec.identity {
		s.logger.Warnw("join username does not match session identity",
			"endpoint", endpoint,
			"claimed", payload.Username,
			"session", ec.identity,
		)
	}

	return s.lifecycle.OnJoin(ctx, endpoint, ec.identity, domain.Identity(payload.Streamer))
}

func (s *WebSocketServer) handleWebRTCSignal(ctx context.Context, endpoint domain.EndpointID, msg SignalMessage) error {
	var payload WebRTCSignalPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("invalid webrtc_signal payload: %w", err)
	}

	if err := validation.ValidateEndpointID(payload.TargetSID); err != nil {
		return fmt.Errorf("invalid target_sid: %w", err)
	}
	if len(payload.Signal) == 0 {
		return fmt.Errorf("signal is required")
	}

	// The signal body stays opaque; offers, answers and candidates are a
	// client-side concern.
	return s.router.Relay(ctx, domain.EndpointID(payload.TargetSID), payload.Signal, endpoint)
}

// Send implements ports.EndpointSender.
func (s *WebSocketServer) Send(endpoint domain.EndpointID, event string, payload interface{}) error {
	s.mu.RLock()
	ec, exists := s.connections[endpoint]
	s.mu.RUnlock()

	if !exists {
		return domain.ErrEndpointNotConnected
	}

	return ec.writeJSON(OutboundMessage{Type: event, Payload: payload}, s.writeTimeout)
}

// IsConnected implements ports.EndpointSender.
func (s *WebSocketServer) IsConnected(endpoint domain.EndpointID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.connections[endpoint]
	return exists
}

// ConnectionCount returns the number of open signaling channels.
func (s *WebSocketServer) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.connections)
}

func (s *WebSocketServer) sendError(ec *endpointConn, message string) {
	ec.writeJSON(OutboundMessage{
		Type:    "error",
		Payload: map[string]string{"message": message},
	}, s.writeTimeout)
}
