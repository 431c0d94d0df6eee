// Package wsconn wraps a gorilla websocket connection with a bounded outbound
// buffer drained by a single writer goroutine.
package wsconn

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var (
	ErrBufferFull = errors.New("send buffer full")
	ErrClosed     = errors.New("connection closed")
)

type Config struct {
	BufferSize     int
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	MaxMessageSize int64
}

func DefaultConfig() Config {
	return Config{
		BufferSize:     64,
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     54 * time.Second,
		MaxMessageSize: 64 * 1024,
	}
}

type Conn struct {
	id        string
	ws        *websocket.Conn
	cfg       Config
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// New starts the write pump of ws. The caller owns the read side and must
// call Close when it stops reading.
func New(id string, ws *websocket.Conn, cfg Config) *Conn {
	if cfg.BufferSize < 1 {
		cfg.BufferSize = 1
	}

	c := &Conn{
		id:   id,
		ws:   ws,
		cfg:  cfg,
		send: make(chan []byte, cfg.BufferSize),
		done: make(chan struct{}),
	}

	ws.SetReadLimit(cfg.MaxMessageSize)
	ws.SetReadDeadline(time.Now().Add(cfg.PongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(cfg.PongWait))
	})

	go c.writePump()

	return c
}

func (c *Conn) Id() string {
	return c.id
}

// Send enqueues msg without blocking.
func (c *Conn) Send(msg []byte) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	select {
	case c.send <- msg:
		return nil
	default:
		return ErrBufferFull
	}
}

// ReadMessage blocks until the next data frame. Any frame extends the read
// deadline.
func (c *Conn) ReadMessage() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))

	return data, nil
}

func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})

	return nil
}

func (c *Conn) Done() <-chan struct{} {
	return c.done
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.Close()
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			c.flush()
			c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.cfg.WriteWait),
			)
			return
		}
	}
}

// flush writes what is already buffered so a final error or ROOM_LEFT
// reaches the peer before the close frame.
func (c *Conn) flush() {
	for {
		select {
		case msg := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		default:
			return
		}
	}
}
