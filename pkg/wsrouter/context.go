package wsrouter

import (
	"context"
	"time"
)

type ctxKey string

const (
	messageTypeKey ctxKey = "message_type"
	receivedAtKey  ctxKey = "received_at"
)

func GetMessageTypeFromCtx(ctx context.Context) string {
	messageType, ok := ctx.Value(messageTypeKey).(string)
	if !ok {
		return ""
	}

	return messageType
}

// GetReceivedAtFromCtx returns the moment the frame was read off the
// connection, before decoding and routing.
func GetReceivedAtFromCtx(ctx context.Context) time.Time {
	receivedAt, ok := ctx.Value(receivedAtKey).(time.Time)
	if !ok {
		return time.Time{}
	}

	return receivedAt
}
