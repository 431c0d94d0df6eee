package wsrouter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sharetube/tuneverse/pkg/wsconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoInput struct {
	Text string `json:"text"`
}

type recorder struct {
	mu     sync.Mutex
	calls  []string
	errs   []error
	signal chan struct{}
}

func (r *recorder) add(call string, err error) {
	r.mu.Lock()
	if call != "" {
		r.calls = append(r.calls, call)
	}
	if err != nil {
		r.errs = append(r.errs, err)
	}
	r.mu.Unlock()
	r.signal <- struct{}{}
}

func serve(t *testing.T, router *WSRouter) *websocket.Conn {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn := wsconn.New("c1", ws, wsconn.DefaultConfig())
		defer conn.Close()
		router.ServeConn(context.Background(), conn)
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client
}

func wait(t *testing.T, rec *recorder) {
	t.Helper()
	select {
	case <-rec.signal:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for handler")
	}
}

func TestServeConnRoutesTypedPayload(t *testing.T) {
	rec := &recorder{signal: make(chan struct{}, 8)}
	router := New()
	router.SetErrorHandler(func(_ context.Context, _ *wsconn.Conn, err error) { rec.add("", err) })
	router.Use(func(next HandlerFunc[any]) HandlerFunc[any] {
		return func(ctx context.Context, conn *wsconn.Conn, payload any) error {
			assert.Equal(t, "ECHO", GetMessageTypeFromCtx(ctx))
			assert.False(t, GetReceivedAtFromCtx(ctx).IsZero())
			return next(ctx, conn, payload)
		}
	})
	Handle(router, "ECHO", func(_ context.Context, conn *wsconn.Conn, input echoInput) error {
		assert.Equal(t, "c1", conn.Id())
		rec.add(input.Text, nil)
		return nil
	})

	client := serve(t, router)
	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(`{"type":"ECHO","payload":{"text":"hi"}}`)))
	wait(t, rec)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []string{"hi"}, rec.calls)
	assert.Empty(t, rec.errs)
}

func TestServeConnErrors(t *testing.T) {
	rec := &recorder{signal: make(chan struct{}, 8)}
	errRejected := errors.New("rejected")
	router := New()
	router.SetErrorHandler(func(_ context.Context, _ *wsconn.Conn, err error) { rec.add("", err) })
	router.SetValidator(func(payload any) error {
		if p, ok := payload.(echoInput); ok && p.Text == "" {
			return errRejected
		}
		return nil
	})
	Handle(router, "ECHO", func(context.Context, *wsconn.Conn, echoInput) error { return nil })

	client := serve(t, router)
	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(`{"type":"NOPE"}`)))
	wait(t, rec)
	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	wait(t, rec)
	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(`{"type":"ECHO","payload":{}}`)))
	wait(t, rec)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.errs, 3)
	assert.ErrorIs(t, rec.errs[0], ErrUnknownMessageType)
	assert.ErrorIs(t, rec.errs[1], ErrInvalidMessage)
	assert.ErrorIs(t, rec.errs[2], errRejected)
}
