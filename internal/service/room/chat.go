package room

import (
	"context"

	"github.com/google/uuid"
	"github.com/sharetube/tuneverse/internal/broadcast"
	"github.com/sharetube/tuneverse/internal/domain"
)

type SendChatParams struct {
	SenderId string
	Text     string
}

func (s service) SendChat(ctx context.Context, params *SendChatParams) (domain.ChatMessage, error) {
	roomId, err := s.getRoomId(params.SenderId)
	if err != nil {
		return domain.ChatMessage{}, err
	}

	var msg domain.ChatMessage
	updated, err := s.roomRepo.Update(ctx, roomId, func(r *domain.Room) error {
		sender, ok := r.GetMember(params.SenderId)
		if !ok {
			return ErrMemberNotFound
		}

		msg = domain.ChatMessage{
			Id:        uuid.NewString(),
			MemberId:  sender.Id,
			Username:  sender.Username,
			AvatarUrl: sender.AvatarUrl,
			Text:      params.Text,
			Timestamp: s.now().UnixMilli(),
		}
		r.AppendMessage(msg, s.cfg.ChatHistoryLimit)

		return nil
	})
	if err != nil {
		return domain.ChatMessage{}, err
	}

	s.publisher.Publish(ctx, updated.MemberIds(), &broadcast.Output{
		Type:    broadcast.TypeChatReceive,
		Payload: msg,
	})

	return msg, nil
}

type SendReactionParams struct {
	SenderId string
	Emoji    string
}

// SendReaction relays an emoji to the room. Reactions are not stored.
func (s service) SendReaction(ctx context.Context, params *SendReactionParams) error {
	roomId, err := s.getRoomId(params.SenderId)
	if err != nil {
		return err
	}

	r, err := s.roomRepo.Get(ctx, roomId)
	if err != nil {
		return err
	}

	sender, ok := r.GetMember(params.SenderId)
	if !ok {
		return ErrMemberNotFound
	}

	s.publisher.Publish(ctx, r.MemberIds(), &broadcast.Output{
		Type: broadcast.TypeEmojiReaction,
		Payload: ReactionPayload{
			MemberId: sender.Id,
			Username: sender.Username,
			Emoji:    params.Emoji,
		},
	})

	return nil
}
