package room

import (
	"context"
	"errors"
	"time"

	"github.com/sharetube/tuneverse/internal/domain"
)

type PlayerResponse struct {
	Room    domain.RoomSnapshot
	Changed bool
}

// mutatePlayback applies fn to the sender's room and publishes the new
// snapshot. Host-only actions from other members are rejected with
// ErrPermissionDenied and logged.
func (s service) mutatePlayback(ctx context.Context, senderId, action string, hostOnly bool, fn func(r *domain.Room, now time.Time) error) (PlayerResponse, error) {
	roomId, err := s.getRoomId(senderId)
	if err != nil {
		return PlayerResponse{}, err
	}

	now := s.now()
	updated, err := s.roomRepo.Update(ctx, roomId, func(r *domain.Room) error {
		if hostOnly {
			if err := s.checkIfHost(r, senderId); err != nil {
				return err
			}
		} else if err := s.checkIfMember(r, senderId); err != nil {
			return err
		}

		return fn(r, now)
	})
	switch {
	case errors.Is(err, ErrPermissionDenied):
		s.logger.InfoContext(ctx, "playback action denied", "action", action, "room_id", roomId, "sender_id", senderId)
		return PlayerResponse{}, err
	case errors.Is(err, errNoChange):
		current, err := s.roomRepo.Get(ctx, roomId)
		if err != nil {
			return PlayerResponse{}, err
		}
		return PlayerResponse{Room: current.Snapshot()}, nil
	case err != nil:
		return PlayerResponse{}, err
	}

	s.logger.DebugContext(ctx, "playback updated", "action", action, "room_id", roomId, "status", updated.Playback.Status)
	s.publisher.Publish(ctx, updated.MemberIds(), roomUpdate(updated))

	return PlayerResponse{Room: updated.Snapshot(), Changed: true}, nil
}

type PlayParams struct {
	SenderId string
	TrackId  string
	Position *float64
}

func (s service) Play(ctx context.Context, params *PlayParams) (PlayerResponse, error) {
	return s.mutatePlayback(ctx, params.SenderId, "play", true, func(r *domain.Room, now time.Time) error {
		return r.Play(params.TrackId, params.Position, now)
	})
}

type PauseParams struct {
	SenderId string
	Position *float64
}

func (s service) Pause(ctx context.Context, params *PauseParams) (PlayerResponse, error) {
	return s.mutatePlayback(ctx, params.SenderId, "pause", true, func(r *domain.Room, now time.Time) error {
		return r.Pause(params.Position, now)
	})
}

type SeekParams struct {
	SenderId string
	Position float64
}

func (s service) Seek(ctx context.Context, params *SeekParams) (PlayerResponse, error) {
	return s.mutatePlayback(ctx, params.SenderId, "seek", true, func(r *domain.Room, now time.Time) error {
		return r.Seek(params.Position, now)
	})
}

type SkipParams struct {
	SenderId string
}

func (s service) Skip(ctx context.Context, params *SkipParams) (PlayerResponse, error) {
	return s.mutatePlayback(ctx, params.SenderId, "skip", true, func(r *domain.Room, now time.Time) error {
		r.Skip(now)
		return nil
	})
}

type PreviousParams struct {
	SenderId string
}

func (s service) Previous(ctx context.Context, params *PreviousParams) (PlayerResponse, error) {
	return s.mutatePlayback(ctx, params.SenderId, "previous", true, func(r *domain.Room, now time.Time) error {
		return r.Previous(now)
	})
}

type EndTrackParams struct {
	SenderId string
	TrackId  string
}

// EndTrack accepts the report from any member. Reports naming a track that
// is no longer current are ignored, so concurrent reports advance once.
func (s service) EndTrack(ctx context.Context, params *EndTrackParams) (PlayerResponse, error) {
	return s.mutatePlayback(ctx, params.SenderId, "ended", false, func(r *domain.Room, now time.Time) error {
		if !r.Ended(params.TrackId, now) {
			return errNoChange
		}
		return nil
	})
}
