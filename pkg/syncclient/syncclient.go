// Package syncclient is a websocket client for the room event protocol. It
// implements clocksync.Transport.
package syncclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sharetube/tuneverse/pkg/clocksync"
)

const (
	TypeSyncClock         = "SYNC_CLOCK"
	TypeSyncClockResponse = "SYNC_CLOCK_RESPONSE"

	writeWait = 10 * time.Second
)

var ErrClosed = errors.New("client closed")

type message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outgoing struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type HandlerFunc func(payload json.RawMessage)

type waiter struct {
	clientSendTime int64
	ch             chan clocksync.Response
}

type Client struct {
	ws     *websocket.Conn
	logger *slog.Logger

	writeMu    sync.Mutex
	exchangeMu sync.Mutex

	mu       sync.Mutex
	waiter   *waiter
	handlers map[string]HandlerFunc

	done      chan struct{}
	closeOnce sync.Once
}

func Dial(ctx context.Context, url string, header http.Header, logger *slog.Logger) (*Client, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}

	return New(ws, logger), nil
}

func New(ws *websocket.Conn, logger *slog.Logger) *Client {
	return &Client{
		ws:       ws,
		logger:   logger,
		handlers: make(map[string]HandlerFunc),
		done:     make(chan struct{}),
	}
}

// On registers fn for server messages of messageType. It must be called
// before Run.
func (c *Client) On(messageType string, fn HandlerFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.handlers[messageType] = fn
}

func (c *Client) Send(ctx context.Context, messageType string, payload any) error {
	data, err := json.Marshal(outgoing{Type: messageType, Payload: payload})
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", messageType, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.ws.SetWriteDeadline(deadline)

	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Exchange sends one SYNC_CLOCK request and waits for the response echoing
// its send time. Exchanges are serialized; responses to earlier requests
// are dropped.
func (c *Client) Exchange(ctx context.Context, req clocksync.Request) (clocksync.Response, error) {
	c.exchangeMu.Lock()
	defer c.exchangeMu.Unlock()

	w := &waiter{clientSendTime: req.ClientSendTime, ch: make(chan clocksync.Response, 1)}
	c.mu.Lock()
	c.waiter = w
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.waiter = nil
		c.mu.Unlock()
	}()

	if err := c.Send(ctx, TypeSyncClock, req); err != nil {
		return clocksync.Response{}, err
	}

	select {
	case resp := <-w.ch:
		return resp, nil
	case <-c.done:
		return clocksync.Response{}, ErrClosed
	case <-ctx.Done():
		return clocksync.Response{}, ctx.Err()
	}
}

// Run reads and dispatches server messages until the connection fails or
// ctx is done.
func (c *Client) Run(ctx context.Context) error {
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-c.done:
		}
	}()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.Close()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("invalid server message", "error", err)
			continue
		}

		if msg.Type == TypeSyncClockResponse {
			c.resolve(msg.Payload)
			continue
		}

		c.mu.Lock()
		handler, ok := c.handlers[msg.Type]
		c.mu.Unlock()
		if ok {
			handler(msg.Payload)
		}
	}
}

func (c *Client) resolve(payload json.RawMessage) {
	var resp clocksync.Response
	if err := json.Unmarshal(payload, &resp); err != nil {
		c.logger.Warn("invalid clock response", "error", err)
		return
	}

	c.mu.Lock()
	w := c.waiter
	c.mu.Unlock()

	if w == nil || w.clientSendTime != resp.ClientSendTime {
		c.logger.Debug("stale clock response", "client_send_time", resp.ClientSendTime)
		return
	}

	select {
	case w.ch <- resp:
	default:
	}
}

func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait),
		)
		c.writeMu.Unlock()
		err = c.ws.Close()
	})

	return err
}

func (c *Client) Done() <-chan struct{} {
	return c.done
}
