package controller

import (
	"context"
	"errors"

	"github.com/sharetube/tuneverse/internal/broadcast"
	"github.com/sharetube/tuneverse/internal/service/room"
	"github.com/sharetube/tuneverse/pkg/validator"
	"github.com/sharetube/tuneverse/pkg/wsconn"
	"github.com/sharetube/tuneverse/pkg/wsrouter"
)

const internalErrorMessage = "internal error"

// clientErrors are reported to the client with their own message.
var clientErrors = []error{
	room.ErrRoomNotFound,
	room.ErrMemberNotFound,
	room.ErrPendingNotFound,
	room.ErrItemNotFound,
	room.ErrNotInRoom,
	room.ErrNotConnected,
	room.ErrNothingToPlay,
	room.ErrUsernameRequired,
	room.ErrMembersLimitReached,
	room.ErrQueueLimitReached,
	wsrouter.ErrUnknownMessageType,
	wsrouter.ErrInvalidMessage,
}

type validationError struct {
	fields []validator.ValidationError
}

func (e *validationError) Error() string {
	return "validation failed"
}

type ErrorPayload struct {
	Message string                      `json:"message"`
	Errors  []validator.ValidationError `json:"errors,omitempty"`
}

func (c controller) validatePayload(payload any) error {
	if fields, ok := c.validate.Validate(payload); !ok {
		return &validationError{fields: fields}
	}

	return nil
}

func (c controller) handleWSError(ctx context.Context, conn *wsconn.Conn, err error) {
	if errors.Is(err, room.ErrPermissionDenied) {
		c.logger.InfoContext(ctx, "unauthorized action dropped", "error", err)
		return
	}

	payload := ErrorPayload{Message: internalErrorMessage}

	var verr *validationError
	if errors.As(err, &verr) {
		payload.Message = verr.Error()
		payload.Errors = verr.fields
	} else if known := clientError(err); known != nil {
		payload.Message = known.Error()
	}

	if payload.Message == internalErrorMessage {
		c.logger.ErrorContext(ctx, "failed to handle message", "error", err)
	} else {
		c.logger.InfoContext(ctx, "message rejected", "error", err)
	}

	if err := c.publisher.Send(ctx, conn.Id(), &broadcast.Output{
		Type:    broadcast.TypeError,
		Payload: payload,
	}); err != nil {
		c.logger.DebugContext(ctx, "failed to send error", "error", err)
	}
}

func clientError(err error) error {
	for _, known := range clientErrors {
		if errors.Is(err, known) {
			return known
		}
	}

	return nil
}
