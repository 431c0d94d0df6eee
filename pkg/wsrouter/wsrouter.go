package wsrouter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sharetube/tuneverse/pkg/wsconn"
)

var (
	ErrUnknownMessageType = errors.New("unknown message type")
	ErrInvalidMessage     = errors.New("invalid message")
)

type message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type HandlerFunc[T any] func(ctx context.Context, conn *wsconn.Conn, payload T) error

type Middleware func(next HandlerFunc[any]) HandlerFunc[any]

type ErrorHandler func(ctx context.Context, conn *wsconn.Conn, err error)

// ValidateFunc checks a decoded payload before it reaches the handler.
type ValidateFunc func(payload any) error

type route func(ctx context.Context, conn *wsconn.Conn, raw json.RawMessage) error

type WSRouter struct {
	routes       map[string]route
	middlewares  []Middleware
	errorHandler ErrorHandler
	validate     ValidateFunc
	now          func() time.Time
}

func New() *WSRouter {
	return &WSRouter{
		routes:       make(map[string]route),
		errorHandler: func(context.Context, *wsconn.Conn, error) {},
		now:          time.Now,
	}
}

func (r *WSRouter) Use(middlewares ...Middleware) {
	r.middlewares = append(r.middlewares, middlewares...)
}

func (r *WSRouter) SetErrorHandler(h ErrorHandler) {
	r.errorHandler = h
}

func (r *WSRouter) SetValidator(v ValidateFunc) {
	r.validate = v
}

// Handle registers handler for messageType. The payload is decoded into T
// and validated before the middleware chain runs.
func Handle[T any](r *WSRouter, messageType string, handler HandlerFunc[T]) {
	r.routes[messageType] = func(ctx context.Context, conn *wsconn.Conn, raw json.RawMessage) error {
		var payload T
		if len(raw) > 0 && string(raw) != "null" {
			if err := json.Unmarshal(raw, &payload); err != nil {
				return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
			}
		}

		if r.validate != nil {
			if err := r.validate(payload); err != nil {
				return err
			}
		}

		next := HandlerFunc[any](func(ctx context.Context, conn *wsconn.Conn, p any) error {
			return handler(ctx, conn, p.(T))
		})
		for i := len(r.middlewares) - 1; i >= 0; i-- {
			next = r.middlewares[i](next)
		}

		return next(ctx, conn, payload)
	}
}

// ServeConn reads and dispatches messages sequentially until the connection
// fails. Handler errors go to the error handler and do not end the loop.
func (r *WSRouter) ServeConn(ctx context.Context, conn *wsconn.Conn) error {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		receivedAt := r.now()

		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			r.errorHandler(ctx, conn, fmt.Errorf("%w: %w", ErrInvalidMessage, err))
			continue
		}

		msgCtx := context.WithValue(ctx, messageTypeKey, msg.Type)
		msgCtx = context.WithValue(msgCtx, receivedAtKey, receivedAt)

		handler, exists := r.routes[msg.Type]
		if !exists {
			r.errorHandler(msgCtx, conn, fmt.Errorf("%w: %q", ErrUnknownMessageType, msg.Type))
			continue
		}

		if err := handler(msgCtx, conn, msg.Payload); err != nil {
			r.errorHandler(msgCtx, conn, err)
		}
	}
}
