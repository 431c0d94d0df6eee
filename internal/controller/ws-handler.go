package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sharetube/tuneverse/internal/broadcast"
	"github.com/sharetube/tuneverse/internal/service/room"
	"github.com/sharetube/tuneverse/pkg/clocksync"
	"github.com/sharetube/tuneverse/pkg/wsconn"
	"github.com/sharetube/tuneverse/pkg/wsrouter"
)

type EmptyInput struct{}

func (c controller) handleAlive(_ context.Context, _ *wsconn.Conn, _ EmptyInput) error {
	return nil
}

func (c controller) handleSyncClock(ctx context.Context, conn *wsconn.Conn, input clocksync.Request) error {
	receivedAt := wsrouter.GetReceivedAtFromCtx(ctx)
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}

	return c.publisher.Send(ctx, conn.Id(), &broadcast.Output{
		Type:    broadcast.TypeSyncClockResponse,
		Payload: clocksync.Respond(input, receivedAt, time.Now()),
	})
}

type CreateRoomInput struct {
	Username        string  `json:"username" validate:"omitempty,max=32"`
	Color           string  `json:"color" validate:"omitempty,max=16"`
	AvatarUrl       *string `json:"avatar_url" validate:"omitempty,url"`
	RoomName        string  `json:"room_name" validate:"omitempty,max=64"`
	Persistent      bool    `json:"persistent"`
	RequireApproval bool    `json:"require_approval"`
}

func (c controller) handleCreateRoom(ctx context.Context, conn *wsconn.Conn, input CreateRoomInput) error {
	if _, err := c.roomService.CreateRoom(ctx, &room.CreateRoomParams{
		ConnId:          conn.Id(),
		Username:        input.Username,
		Color:           input.Color,
		AvatarUrl:       input.AvatarUrl,
		RoomName:        input.RoomName,
		Persistent:      input.Persistent,
		RequireApproval: input.RequireApproval,
	}); err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}

	return nil
}

type JoinRoomInput struct {
	RoomId    string  `json:"room_id" validate:"required,min=4,max=16,alphanum,uppercase"`
	Username  string  `json:"username" validate:"omitempty,max=32"`
	Color     string  `json:"color" validate:"omitempty,max=16"`
	AvatarUrl *string `json:"avatar_url" validate:"omitempty,url"`
}

func (c controller) handleJoinRoom(ctx context.Context, conn *wsconn.Conn, input JoinRoomInput) error {
	if _, err := c.roomService.JoinRoom(ctx, &room.JoinRoomParams{
		ConnId:    conn.Id(),
		RoomId:    input.RoomId,
		Username:  input.Username,
		Color:     input.Color,
		AvatarUrl: input.AvatarUrl,
	}); err != nil {
		return fmt.Errorf("failed to join room: %w", err)
	}

	return nil
}

func (c controller) handleLeaveRoom(ctx context.Context, conn *wsconn.Conn, _ EmptyInput) error {
	if _, err := c.roomService.LeaveRoom(ctx, &room.LeaveRoomParams{ConnId: conn.Id()}); err != nil {
		return fmt.Errorf("failed to leave room: %w", err)
	}

	return nil
}

type JoinDecisionInput struct {
	RequesterId string `json:"requester_id" validate:"required"`
	Approved    bool   `json:"approved"`
}

func (c controller) handleJoinDecision(ctx context.Context, conn *wsconn.Conn, input JoinDecisionInput) error {
	if _, err := c.roomService.DecideJoin(ctx, &room.DecideJoinParams{
		SenderId:    conn.Id(),
		RequesterId: input.RequesterId,
		Approved:    input.Approved,
	}); err != nil {
		return fmt.Errorf("failed to decide join: %w", err)
	}

	return nil
}

type PlayInput struct {
	TrackId  string   `json:"track_id" validate:"omitempty,max=256"`
	Position *float64 `json:"position" validate:"omitempty,gte=0"`
}

func (c controller) handlePlay(ctx context.Context, conn *wsconn.Conn, input PlayInput) error {
	if _, err := c.roomService.Play(ctx, &room.PlayParams{
		SenderId: conn.Id(),
		TrackId:  input.TrackId,
		Position: input.Position,
	}); err != nil {
		return fmt.Errorf("failed to play: %w", err)
	}

	return nil
}

type PauseInput struct {
	Position *float64 `json:"position" validate:"omitempty,gte=0"`
}

func (c controller) handlePause(ctx context.Context, conn *wsconn.Conn, input PauseInput) error {
	if _, err := c.roomService.Pause(ctx, &room.PauseParams{
		SenderId: conn.Id(),
		Position: input.Position,
	}); err != nil {
		return fmt.Errorf("failed to pause: %w", err)
	}

	return nil
}

type SeekInput struct {
	Position *float64 `json:"position" validate:"required,gte=0"`
}

func (c controller) handleSeek(ctx context.Context, conn *wsconn.Conn, input SeekInput) error {
	if _, err := c.roomService.Seek(ctx, &room.SeekParams{
		SenderId: conn.Id(),
		Position: *input.Position,
	}); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}

	return nil
}

func (c controller) handleSkip(ctx context.Context, conn *wsconn.Conn, _ EmptyInput) error {
	if _, err := c.roomService.Skip(ctx, &room.SkipParams{SenderId: conn.Id()}); err != nil {
		return fmt.Errorf("failed to skip: %w", err)
	}

	return nil
}

func (c controller) handlePrevious(ctx context.Context, conn *wsconn.Conn, _ EmptyInput) error {
	if _, err := c.roomService.Previous(ctx, &room.PreviousParams{SenderId: conn.Id()}); err != nil {
		return fmt.Errorf("failed to restart track: %w", err)
	}

	return nil
}

type EndedInput struct {
	TrackId string `json:"track_id" validate:"omitempty,max=256"`
}

func (c controller) handleEnded(ctx context.Context, conn *wsconn.Conn, input EndedInput) error {
	if _, err := c.roomService.EndTrack(ctx, &room.EndTrackParams{
		SenderId: conn.Id(),
		TrackId:  input.TrackId,
	}); err != nil {
		return fmt.Errorf("failed to end track: %w", err)
	}

	return nil
}

type QueueAddInput struct {
	TrackId   string          `json:"track_id" validate:"required,max=256"`
	Title     string          `json:"title" validate:"max=256"`
	Thumbnail string          `json:"thumbnail" validate:"omitempty,url"`
	Source    string          `json:"source" validate:"max=32"`
	Ref       json.RawMessage `json:"ref"`
}

func (c controller) handleQueueAdd(ctx context.Context, conn *wsconn.Conn, input QueueAddInput) error {
	if _, err := c.roomService.AddToQueue(ctx, &room.AddToQueueParams{
		SenderId: conn.Id(),
		Track: room.TrackRef{
			TrackId:   input.TrackId,
			Title:     input.Title,
			Thumbnail: input.Thumbnail,
			Source:    input.Source,
			Ref:       input.Ref,
		},
	}); err != nil {
		return fmt.Errorf("failed to add to queue: %w", err)
	}

	return nil
}

type QueueUpvoteInput struct {
	ItemId string `json:"item_id" validate:"required"`
}

func (c controller) handleQueueUpvote(ctx context.Context, conn *wsconn.Conn, input QueueUpvoteInput) error {
	if _, err := c.roomService.Upvote(ctx, &room.UpvoteParams{
		SenderId: conn.Id(),
		ItemId:   input.ItemId,
	}); err != nil {
		return fmt.Errorf("failed to upvote: %w", err)
	}

	return nil
}

type QueueRemoveInput struct {
	ItemId string `json:"item_id" validate:"required"`
}

func (c controller) handleQueueRemove(ctx context.Context, conn *wsconn.Conn, input QueueRemoveInput) error {
	if _, err := c.roomService.RemoveFromQueue(ctx, &room.RemoveFromQueueParams{
		SenderId: conn.Id(),
		ItemId:   input.ItemId,
	}); err != nil {
		return fmt.Errorf("failed to remove from queue: %w", err)
	}

	return nil
}

type ChatSendInput struct {
	Text string `json:"text" validate:"required,min=1,max=500"`
}

func (c controller) handleChatSend(ctx context.Context, conn *wsconn.Conn, input ChatSendInput) error {
	if _, err := c.roomService.SendChat(ctx, &room.SendChatParams{
		SenderId: conn.Id(),
		Text:     input.Text,
	}); err != nil {
		return fmt.Errorf("failed to send chat message: %w", err)
	}

	return nil
}

type EmojiReactionInput struct {
	Emoji string `json:"emoji" validate:"required,max=16"`
}

func (c controller) handleEmojiReaction(ctx context.Context, conn *wsconn.Conn, input EmojiReactionInput) error {
	if err := c.roomService.SendReaction(ctx, &room.SendReactionParams{
		SenderId: conn.Id(),
		Emoji:    input.Emoji,
	}); err != nil {
		return fmt.Errorf("failed to send reaction: %w", err)
	}

	return nil
}
