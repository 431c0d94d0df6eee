package room

import (
	"context"

	"github.com/sharetube/tuneverse/internal/broadcast"
	"github.com/sharetube/tuneverse/internal/domain"
)

type envelope struct {
	connIds []string
	out     *broadcast.Output
}

// outbox collects the messages a mutation produces. It is flushed only
// after the mutation committed, outside the room lock.
type outbox struct {
	envelopes []envelope
}

func (o *outbox) send(out *broadcast.Output, connIds ...string) {
	if len(connIds) == 0 {
		return
	}
	o.envelopes = append(o.envelopes, envelope{connIds: connIds, out: out})
}

func (o *outbox) reset() {
	o.envelopes = o.envelopes[:0]
}

func (s service) flush(ctx context.Context, o *outbox) {
	for _, e := range o.envelopes {
		s.publisher.Publish(ctx, e.connIds, e.out)
	}
	o.reset()
}

func roomUpdate(r *domain.Room) *broadcast.Output {
	return &broadcast.Output{
		Type:    broadcast.TypeRoomUpdate,
		Payload: r.Snapshot(),
	}
}

type JoinRequestPayload struct {
	RoomId      string `json:"room_id"`
	RequesterId string `json:"requester_id"`
	Username    string `json:"username"`
	CreatedAt   int64  `json:"created_at"`
}

func joinRequestReceived(req domain.PendingJoinRequest) *broadcast.Output {
	return &broadcast.Output{
		Type: broadcast.TypeJoinRequestReceived,
		Payload: JoinRequestPayload{
			RoomId:      req.RoomId,
			RequesterId: req.RequesterId,
			Username:    req.RequestedUsername,
			CreatedAt:   req.CreatedAt.UnixMilli(),
		},
	}
}

type JoinResultPayload struct {
	RoomId string               `json:"room_id"`
	Room   *domain.RoomSnapshot `json:"room,omitempty"`
}

func joinResult(messageType, roomId string, r *domain.Room) *broadcast.Output {
	payload := JoinResultPayload{RoomId: roomId}
	if r != nil {
		snapshot := r.Snapshot()
		payload.Room = &snapshot
	}

	return &broadcast.Output{Type: messageType, Payload: payload}
}

type ReactionPayload struct {
	MemberId string `json:"member_id"`
	Username string `json:"username"`
	Emoji    string `json:"emoji"`
}
