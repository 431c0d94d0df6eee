package broadcast

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/sharetube/tuneverse/internal/repository/connection"
	"github.com/sharetube/tuneverse/internal/repository/connection/inmemory"
	"github.com/sharetube/tuneverse/pkg/wsconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	id     string
	buf    [][]byte
	limit  int
	closed bool
}

func (c *fakeConn) Id() string { return c.id }

func (c *fakeConn) Send(msg []byte) error {
	if len(c.buf) >= c.limit {
		return wsconn.ErrBufferFull
	}
	c.buf = append(c.buf, msg)
	return nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func TestPublishReportsPerConnection(t *testing.T) {
	connRepo := inmemory.NewRepo(slog.Default())
	fast := &fakeConn{id: "fast", limit: 10}
	slow := &fakeConn{id: "slow", limit: 0}
	require.NoError(t, connRepo.Add(fast, connection.Session{}))
	require.NoError(t, connRepo.Add(slow, connection.Session{}))

	p := NewPublisher(connRepo, slog.Default())
	report := p.Publish(context.Background(), []string{"fast", "slow", "gone"}, &Output{
		Type:    "ROOM_UPDATE",
		Payload: map[string]any{"id": "AF3D"},
	})

	require.Len(t, report.Deliveries, 3)
	assert.NoError(t, report.Deliveries[0].Err)
	assert.ErrorIs(t, report.Deliveries[1].Err, wsconn.ErrBufferFull)
	assert.ErrorIs(t, report.Deliveries[2].Err, ErrConnNotFound)
	assert.Equal(t, 1, report.Delivered())
	assert.Len(t, report.Failed(), 2)

	assert.True(t, slow.closed, "slow connection must be closed")
	assert.False(t, fast.closed)

	require.Len(t, fast.buf, 1)
	var out map[string]any
	require.NoError(t, json.Unmarshal(fast.buf[0], &out))
	assert.Equal(t, "ROOM_UPDATE", out["type"])
}

func TestSend(t *testing.T) {
	connRepo := inmemory.NewRepo(slog.Default())
	c := &fakeConn{id: "c", limit: 1}
	require.NoError(t, connRepo.Add(c, connection.Session{}))
	p := NewPublisher(connRepo, slog.Default())

	assert.NoError(t, p.Send(context.Background(), "c", &Output{Type: "ERROR", Payload: "x"}))
	assert.ErrorIs(t, p.Send(context.Background(), "missing", &Output{Type: "ERROR"}), ErrConnNotFound)
}
