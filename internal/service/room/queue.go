package room

import (
	"context"
	"encoding/json"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/sharetube/tuneverse/internal/domain"
)

// TrackRef is a playable track as resolved by an external provider. Ref is
// passed through untouched.
type TrackRef struct {
	TrackId   string
	Title     string
	Thumbnail string
	Source    string
	Ref       json.RawMessage
}

type AddToQueueParams struct {
	SenderId string
	Track    TrackRef
}

type AddToQueueResponse struct {
	Item     domain.QueueItem
	Promoted bool
	Room     domain.RoomSnapshot
}

func (s service) AddToQueue(ctx context.Context, params *AddToQueueParams) (AddToQueueResponse, error) {
	item := domain.QueueItem{
		Id:              uuid.NewString(),
		TrackId:         params.Track.TrackId,
		Title:           params.Track.Title,
		Thumbnail:       params.Track.Thumbnail,
		Source:          params.Track.Source,
		Ref:             params.Track.Ref,
		AddedByMemberId: params.SenderId,
	}

	var promoted bool
	resp, err := s.mutatePlayback(ctx, params.SenderId, "queue_add", false, func(r *domain.Room, now time.Time) error {
		promoted = r.AddToQueue(item, now)
		if !promoted && len(r.Queue) > s.cfg.QueueLimit {
			return ErrQueueLimitReached
		}
		return nil
	})
	if err != nil {
		return AddToQueueResponse{}, err
	}

	return AddToQueueResponse{
		Item:     item,
		Promoted: promoted,
		Room:     resp.Room,
	}, nil
}

type UpvoteParams struct {
	SenderId string
	ItemId   string
}

type UpvoteResponse struct {
	Room    domain.RoomSnapshot
	Changed bool
}

// Upvote is idempotent per voter and item.
func (s service) Upvote(ctx context.Context, params *UpvoteParams) (UpvoteResponse, error) {
	resp, err := s.mutatePlayback(ctx, params.SenderId, "queue_upvote", false, func(r *domain.Room, _ time.Time) error {
		changed, err := r.Upvote(params.ItemId, params.SenderId)
		if err != nil {
			return err
		}
		if !changed {
			return errNoChange
		}
		return nil
	})
	if err != nil {
		return UpvoteResponse{}, err
	}

	return UpvoteResponse{Room: resp.Room, Changed: resp.Changed}, nil
}

type RemoveFromQueueParams struct {
	SenderId string
	ItemId   string
}

// RemoveFromQueue is allowed for the host and for the member who queued the
// item.
func (s service) RemoveFromQueue(ctx context.Context, params *RemoveFromQueueParams) (PlayerResponse, error) {
	return s.mutatePlayback(ctx, params.SenderId, "queue_remove", false, func(r *domain.Room, _ time.Time) error {
		i := slices.IndexFunc(r.Queue, func(q domain.QueueItem) bool { return q.Id == params.ItemId })
		if i < 0 {
			return ErrItemNotFound
		}
		if !r.IsHost(params.SenderId) && r.Queue[i].AddedByMemberId != params.SenderId {
			return ErrPermissionDenied
		}

		_, err := r.RemoveFromQueue(params.ItemId)
		return err
	})
}
