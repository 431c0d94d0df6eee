package controller

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sharetube/tuneverse/internal/broadcast"
	"github.com/sharetube/tuneverse/internal/directory"
	"github.com/sharetube/tuneverse/internal/domain"
	"github.com/sharetube/tuneverse/internal/identity"
	conninmemory "github.com/sharetube/tuneverse/internal/repository/connection/inmemory"
	roominmemory "github.com/sharetube/tuneverse/internal/repository/room/inmemory"
	"github.com/sharetube/tuneverse/internal/scheduler"
	"github.com/sharetube/tuneverse/internal/service/room"
	"github.com/sharetube/tuneverse/pkg/clocksync"
	"github.com/sharetube/tuneverse/pkg/randstr"
	"github.com/sharetube/tuneverse/pkg/wsconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func newTestServer(t *testing.T, verifier iVerifier) *httptest.Server {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	logger := slog.Default()
	connRepo := conninmemory.NewRepo(logger)
	publisher := broadcast.NewPublisher(connRepo, logger)
	sched := scheduler.New(logger)
	t.Cleanup(sched.Stop)
	mirror := directory.NewMirror(directory.Noop{}, 64, logger)
	go mirror.Run(ctx)

	roomService := room.NewService(
		roominmemory.NewRepo(randstr.New([]byte("ABCDEFGHJKLMNPQRSTUVWXYZ23456789")), logger),
		connRepo,
		publisher,
		sched,
		mirror,
		&room.Config{
			MembersLimit:     8,
			QueueLimit:       16,
			ChatHistoryLimit: 20,
			HostGracePeriod:  time.Minute,
			RoomCleanupDelay: time.Minute,
		},
		logger,
	)

	c := NewController(roomService, connRepo, publisher, verifier, wsconn.DefaultConfig(), logger)
	server := httptest.NewServer(c.GetMux())
	t.Cleanup(server.Close)

	return server
}

func dial(t *testing.T, server *httptest.Server, token string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/ws?token=" + token
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })

	return ws
}

func send(t *testing.T, ws *websocket.Conn, messageType string, payload any) {
	t.Helper()
	require.NoError(t, ws.WriteJSON(map[string]any{"type": messageType, "payload": payload}))
}

// readUntil skips messages of other types.
func readUntil(t *testing.T, ws *websocket.Conn, messageType string) json.RawMessage {
	t.Helper()

	ws.SetReadDeadline(time.Now().Add(3 * time.Second))
	defer ws.SetReadDeadline(time.Time{})

	for {
		var msg envelope
		require.NoError(t, ws.ReadJSON(&msg), "waiting for %s", messageType)
		if msg.Type == messageType {
			return msg.Payload
		}
	}
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(raw, &v))

	return v
}

func TestHealthz(t *testing.T) {
	server := newTestServer(t, identity.Anonymous{})

	resp, err := http.Get(server.URL + "/api/v1/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWSRejectsInvalidToken(t *testing.T) {
	server := newTestServer(t, identity.NewJWTVerifier("secret"))

	resp, err := http.Get(server.URL + "/api/v1/ws?token=garbage")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/ws"
	_, resp, err = websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestVerifiedUsernameIsAuthoritative(t *testing.T) {
	verifier := identity.NewJWTVerifier("secret")
	server := newTestServer(t, verifier)

	token, err := verifier.Issue("user-1", "alice", time.Minute)
	require.NoError(t, err)
	ws := dial(t, server, token)

	send(t, ws, "ROOM_CREATE", map[string]any{"username": "mallory"})
	created := decode[domain.RoomSnapshot](t, readUntil(t, ws, broadcast.TypeRoomCreated))
	require.Len(t, created.Members, 1)
	assert.Equal(t, "alice", created.Members[0].Username)
	assert.Equal(t, "user-1", created.Members[0].UserId)
}

func TestRoomSession(t *testing.T) {
	server := newTestServer(t, identity.Anonymous{})
	host := dial(t, server, "")
	guest := dial(t, server, "")

	send(t, host, "ROOM_CREATE", map[string]any{"username": "alice", "room_name": "friday"})
	created := decode[domain.RoomSnapshot](t, readUntil(t, host, broadcast.TypeRoomCreated))
	assert.Equal(t, "friday", created.Name)
	assert.Len(t, created.Id, 4)

	send(t, guest, "ROOM_JOIN", map[string]any{"room_id": created.Id, "username": "bob"})
	joined := decode[room.JoinResultPayload](t, readUntil(t, guest, broadcast.TypeRoomJoined))
	require.NotNil(t, joined.Room)
	assert.Len(t, joined.Room.Members, 2)

	update := decode[domain.RoomSnapshot](t, readUntil(t, host, broadcast.TypeRoomUpdate))
	assert.Len(t, update.Members, 2)
	assert.Greater(t, update.Version, created.Version)

	// clock sync echoes the send time
	send(t, host, "SYNC_CLOCK", map[string]any{"client_send_time": 1234})
	clock := decode[clocksync.Response](t, readUntil(t, host, broadcast.TypeSyncClockResponse))
	assert.Equal(t, int64(1234), clock.ClientSendTime)
	assert.LessOrEqual(t, clock.ServerReceiveTime, clock.ServerSendTime)

	// a guest cannot control playback; the attempt is dropped without a reply
	send(t, guest, "PLAYER_PLAY", map[string]any{"track_id": "t1"})
	send(t, guest, "CHAT_SEND", map[string]any{"text": ""})
	errPayload := decode[ErrorPayload](t, readUntil(t, guest, broadcast.TypeError))
	assert.Equal(t, "validation failed", errPayload.Message)
	require.Len(t, errPayload.Errors, 1)
	assert.Equal(t, "text", errPayload.Errors[0].Field)

	send(t, guest, "QUEUE_ADD", map[string]any{"track_id": "t1", "title": "One", "ref": map[string]any{"provider": "x"}})
	var playing domain.RoomSnapshot
	for playing.Playback.Status != domain.StatusPlaying {
		playing = decode[domain.RoomSnapshot](t, readUntil(t, host, broadcast.TypeRoomUpdate))
	}
	assert.Equal(t, "One", playing.Playback.Title)

	send(t, guest, "CHAT_SEND", map[string]any{"text": "hello"})
	msg := decode[domain.ChatMessage](t, readUntil(t, host, broadcast.TypeChatReceive))
	assert.Equal(t, "bob", msg.Username)
	assert.Equal(t, "hello", msg.Text)

	send(t, host, "NOT_A_TYPE", nil)
	errPayload = decode[ErrorPayload](t, readUntil(t, host, broadcast.TypeError))
	assert.Equal(t, "unknown message type", errPayload.Message)

	resp, err := http.Get(server.URL + "/api/v1/rooms/" + created.Id)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Data domain.RoomSnapshot `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, created.Id, body.Data.Id)

	// closing the guest is an implicit leave
	guest.Close()
	for len(update.Members) != 1 {
		update = decode[domain.RoomSnapshot](t, readUntil(t, host, broadcast.TypeRoomUpdate))
	}
	assert.Equal(t, created.HostId, update.HostId)
}

func TestGetUnknownRoom(t *testing.T) {
	server := newTestServer(t, identity.Anonymous{})

	resp, err := http.Get(server.URL + "/api/v1/rooms/NOPE")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestJoinUnknownRoomReportsError(t *testing.T) {
	server := newTestServer(t, identity.Anonymous{})
	ws := dial(t, server, "")

	send(t, ws, "ROOM_JOIN", map[string]any{"room_id": "ZZZZ", "username": "bob"})
	errPayload := decode[ErrorPayload](t, readUntil(t, ws, broadcast.TypeError))
	assert.Equal(t, room.ErrRoomNotFound.Error(), errPayload.Message)
}
