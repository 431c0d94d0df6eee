package syncclient

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
	"github.com/sharetube/tuneverse/pkg/clocksync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{}

// echoServer answers SYNC_CLOCK with a stale response first, then the real
// one, and greets every client with a ROOM_UPDATE.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		ws.WriteJSON(outgoing{Type: "ROOM_UPDATE", Payload: map[string]any{"id": "AF3D", "version": 3}})

		for {
			var msg message
			if err := ws.ReadJSON(&msg); err != nil {
				return
			}
			if msg.Type != TypeSyncClock {
				continue
			}

			var req clocksync.Request
			if err := json.Unmarshal(msg.Payload, &req); err != nil {
				return
			}
			now := time.Now()
			stale := clocksync.Respond(clocksync.Request{ClientSendTime: req.ClientSendTime - 1}, now, now)
			ws.WriteJSON(outgoing{Type: TypeSyncClockResponse, Payload: stale})
			ws.WriteJSON(outgoing{Type: TypeSyncClockResponse, Payload: clocksync.Respond(req, now, now)})
		}
	}))
}

func dial(t *testing.T, server *httptest.Server) *Client {
	t.Helper()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	c, err := Dial(context.Background(), url, nil, slog.Default())
	require.NoError(t, err)

	return c
}

func TestExchangeIgnoresStaleResponses(t *testing.T) {
	server := echoServer(t)
	defer server.Close()

	c := dial(t, server)
	defer c.Close()

	updates := make(chan json.RawMessage, 1)
	c.On("ROOM_UPDATE", func(payload json.RawMessage) { updates <- payload })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	select {
	case payload := <-updates:
		assert.JSONEq(t, `{"id":"AF3D","version":3}`, string(payload))
	case <-time.After(2 * time.Second):
		t.Fatal("no ROOM_UPDATE received")
	}

	sent := time.Now().UnixMilli()
	resp, err := c.Exchange(ctx, clocksync.Request{ClientSendTime: sent})
	require.NoError(t, err)
	assert.Equal(t, sent, resp.ClientSendTime)
	assert.NotZero(t, resp.ServerReceiveTime)
}

func TestSyncerOverWebsocket(t *testing.T) {
	server := echoServer(t)
	defer server.Close()

	c := dial(t, server)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go c.Run(ctx)

	cfg := clocksync.DefaultSyncerConfig()
	cfg.Spacing = time.Millisecond
	estimator := clocksync.NewEstimator()
	syncer := clocksync.NewSyncer(c, estimator, cfg, slog.Default())

	best, err := syncer.SyncOnce(ctx)
	require.NoError(t, err)
	assert.True(t, estimator.Synced())
	// same host, so the clocks agree up to rounding and latency
	assert.Less(t, best.Offset.Abs(), 100*time.Millisecond)
}

func TestExchangeAfterClose(t *testing.T) {
	server := echoServer(t)
	defer server.Close()

	c := dial(t, server)
	require.NoError(t, c.Close())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := c.Exchange(ctx, clocksync.Request{ClientSendTime: 1})
	assert.Error(t, err)
}
