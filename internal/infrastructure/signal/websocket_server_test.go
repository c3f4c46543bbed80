package signal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"livesignal/internal/core/domain"
	"livesignal/internal/core/ports"
	"livesignal/internal/core/services"
	"livesignal/internal/infrastructure/directory"
	"livesignal/internal/infrastructure/repositories/memory"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testStack struct {
	server   *httptest.Server
	ws       *WebSocketServer
	auth     services.AuthService
	presence ports.PresenceRepository
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()

	logger := zap.NewNop().Sugar()
	auth := services.NewAuthService("test-secret", time.Hour)
	presence := memory.NewMemoryPresenceRepository()
	users := directory.NewStaticDirectory([]string{"alice", "bob", "carol"})

	ws := NewWebSocketServer(nil, nil, auth, nil, logger)
	router := services.NewRoomService(presence, users, ws, nil, logger)
	lifecycle := services.NewLifecycleService(router, presence, ws, nil, logger)
	ws.Attach(lifecycle, router)

	server := httptest.NewServer(http.HandlerFunc(ws.HandleWebSocket))
	t.Cleanup(server.Close)

	return &testStack{server: server, ws: ws, auth: auth, presence: presence}
}

// connect dials the signaling socket as the given user and consumes the
// connected ack, returning the server-assigned endpoint id.
func (s *testStack) connect(t *testing.T, user string) (*websocket.Conn, string) {
	t.Helper()

	token, err := s.auth.GenerateToken(domain.Identity(user))
	require.NoError(t, err)

	wsURL := "ws" + strings.TrimPrefix(s.server.URL, "http") + "?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	msg := readMessage(t, conn, time.Second)
	require.Equal(t, "connected", msg.Type)

	var ack struct {
		EndpointID string `json:"endpoint_id"`
	}
	require.NoError(t, json.Unmarshal(mustMarshal(t, msg.Payload), &ack))
	require.NotEmpty(t, ack.EndpointID)
	return conn, ack.EndpointID
}

type testWireMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

func readMessage(t *testing.T, conn *websocket.Conn, timeout time.Duration) testWireMessage {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(timeout))
	var msg testWireMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

// expectSilence asserts no message arrives before the deadline.
func expectSilence(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(timeout))
	var msg testWireMessage
	err := conn.ReadJSON(&msg)
	require.Error(t, err, "expected no message, got %+v", msg)
}

func mustMarshal(t *testing.T, v interface{}) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func sendJoin(t *testing.T, conn *websocket.Conn, user, streamer string) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type": "join_live_room",
		"payload": map[string]string{
			"username": user,
			"streamer": streamer,
		},
	}))
}

func waitForLive(t *testing.T, presence ports.PresenceRepository, streamer string, want bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		live, err := presence.IsLive(context.Background(), domain.Identity(streamer))
		require.NoError(t, err)
		if live == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("streamer %s live state never became %v", streamer, want)
}

func TestWebSocketServer_RejectsInvalidToken(t *testing.T) {
	stack := newTestStack(t)

	wsURL := "ws" + strings.TrimPrefix(stack.server.URL, "http") + "?token=garbage"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)

	assert.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
}

func TestWebSocketServer_BroadcastAndView(t *testing.T) {
	stack := newTestStack(t)

	aliceConn, _ := stack.connect(t, "alice")
	sendJoin(t, aliceConn, "alice", "alice")
	waitForLive(t, stack.presence, "alice", true)

	bobConn, bobID := stack.connect(t, "bob")
	sendJoin(t, bobConn, "bob", "alice")

	// Broadcaster hears about the viewer.
	msg := readMessage(t, aliceConn, 2*time.Second)
	assert.Equal(t, "new_viewer", msg.Type)

	var viewer struct {
		ViewerID   string `json:"viewer_id"`
		ViewerUser string `json:"viewer_user"`
	}
	require.NoError(t, json.Unmarshal(mustMarshal(t, msg.Payload), &viewer))
	assert.Equal(t, bobID, viewer.ViewerID)
	assert.Equal(t, "bob", viewer.ViewerUser)

	// The viewer itself hears nothing.
	expectSilence(t, bobConn, 200*time.Millisecond)
}

func TestWebSocketServer_SignalRelay(t *testing.T) {
	stack := newTestStack(t)

	aliceConn, aliceID := stack.connect(t, "alice")
	sendJoin(t, aliceConn, "alice", "alice")
	waitForLive(t, stack.presence, "alice", true)

	bobConn, bobID := stack.connect(t, "bob")
	sendJoin(t, bobConn, "bob", "alice")
	readMessage(t, aliceConn, 2*time.Second) // new_viewer

	offer := map[string]interface{}{"type": "offer", "sdp": "v=0"}
	require.NoError(t, bobConn.WriteJSON(map[string]interface{}{
		"type": "webrtc_signal",
		"payload": map[string]interface{}{
			"target_sid": aliceID,
			"signal":     offer,
		},
	}))

	msg := readMessage(t, aliceConn, 2*time.Second)
	assert.Equal(t, "webrtc_signal", msg.Type)

	var envelope struct {
		Signal    map[string]interface{} `json:"signal"`
		SenderSID string                 `json:"sender_sid"`
	}
	require.NoError(t, json.Unmarshal(mustMarshal(t, msg.Payload), &envelope))
	assert.Equal(t, bobID, envelope.SenderSID)
	assert.Equal(t, "offer", envelope.Signal["type"])
}

func TestWebSocketServer_RelayToUnknownTargetIsDropped(t *testing.T) {
	stack := newTestStack(t)

	aliceConn, _ := stack.connect(t, "alice")
	sendJoin(t, aliceConn, "alice", "alice")
	waitForLive(t, stack.presence, "alice", true)

	require.NoError(t, aliceConn.WriteJSON(map[string]interface{}{
		"type": "webrtc_signal",
		"payload": map[string]interface{}{
			"target_sid": "gone-endpoint",
			"signal":     map[string]string{"type": "offer"},
		},
	}))

	// No error frame, no echo: the drop is invisible to the sender.
	expectSilence(t, aliceConn, 200*time.Millisecond)
}

func TestWebSocketServer_UnknownStreamerJoinIgnored(t *testing.T) {
	stack := newTestStack(t)

	bobConn, _ := stack.connect(t, "bob")
	sendJoin(t, bobConn, "bob", "nosuchuser")

	expectSilence(t, bobConn, 200*time.Millisecond)

	live, err := stack.presence.IsLive(context.Background(), "nosuchuser")
	require.NoError(t, err)
	assert.False(t, live)
}

func TestWebSocketServer_ViewerDisconnect(t *testing.T) {
	stack := newTestStack(t)

	aliceConn, _ := stack.connect(t, "alice")
	sendJoin(t, aliceConn, "alice", "alice")
	waitForLive(t, stack.presence, "alice", true)

	bobConn, bobID := stack.connect(t, "bob")
	sendJoin(t, bobConn, "bob", "alice")
	readMessage(t, aliceConn, 2*time.Second) // new_viewer

	bobConn.Close()

	msg := readMessage(t, aliceConn, 2*time.Second)
	assert.Equal(t, "viewer_left", msg.Type)

	var left struct {
		ViewerID string `json:"viewer_id"`
	}
	require.NoError(t, json.Unmarshal(mustMarshal(t, msg.Payload), &left))
	assert.Equal(t, bobID, left.ViewerID)

	// The stream itself is still live.
	live, err := stack.presence.IsLive(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, live)
}

func TestWebSocketServer_BroadcasterDisconnectStopsStream(t *testing.T) {
	stack := newTestStack(t)

	aliceConn, _ := stack.connect(t, "alice")
	sendJoin(t, aliceConn, "alice", "alice")
	waitForLive(t, stack.presence, "alice", true)

	bobConn, _ := stack.connect(t, "bob")
	sendJoin(t, bobConn, "bob", "alice")
	readMessage(t, aliceConn, 2*time.Second) // new_viewer

	aliceConn.Close()

	msg := readMessage(t, bobConn, 2*time.Second)
	assert.Equal(t, "stream_status", msg.Type)

	var status struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(mustMarshal(t, msg.Payload), &status))
	assert.Equal(t, "stopped", status.Status)

	waitForLive(t, stack.presence, "alice", false)
}

func TestWebSocketServer_MalformedMessageGetsError(t *testing.T) {
	stack := newTestStack(t)

	conn, _ := stack.connect(t, "alice")
	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type": "no_such_type",
	}))

	msg := readMessage(t, conn, 2*time.Second)
	assert.Equal(t, "error", msg.Type)
}
