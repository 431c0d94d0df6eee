package room

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sharetube/tuneverse/internal/broadcast"
	"github.com/sharetube/tuneverse/internal/domain"
	"github.com/sharetube/tuneverse/internal/scheduler"
	"github.com/sharetube/tuneverse/pkg/ctxlogger"
)

func (s service) scheduleHostGrace(roomId string) {
	s.scheduler.Schedule(scheduler.HostGraceKey(roomId), s.cfg.HostGracePeriod, func(token uint64) {
		s.onHostGraceExpired(roomId, token)
	})
}

func (s service) scheduleCleanup(roomId string) {
	s.scheduler.Schedule(scheduler.RoomCleanupKey(roomId), s.cfg.RoomCleanupDelay, func(token uint64) {
		s.onRoomCleanup(roomId, token)
	})
}

func (s service) onHostGraceExpired(roomId string, token uint64) {
	ctx := ctxlogger.AppendCtx(context.Background(), slog.String("room_id", roomId))
	key := scheduler.HostGraceKey(roomId)

	var (
		ob        outbox
		previous  string
		forwarded int
	)
	updated, err := s.roomRepo.Update(ctx, roomId, func(r *domain.Room) error {
		if !s.scheduler.Release(key, token) || r.Ghost == nil {
			return errStaleTimer
		}
		previous = r.Ghost.Username
		forwarded = s.reassignHost(r, &ob)

		return nil
	})
	if err != nil {
		if errors.Is(err, ErrRoomNotFound) {
			s.scheduler.Release(key, token)
		}
		s.logger.DebugContext(ctx, "host grace timer ignored", "error", err)
		return
	}

	s.logger.InfoContext(ctx, "host reassigned after grace period",
		"previous_host", previous,
		"host_id", updated.HostId,
		"forwarded_requests", forwarded,
	)
	ob.send(roomUpdate(updated), updated.MemberIds()...)
	s.flush(ctx, &ob)
	s.mirror(updated)
}

func (s service) onRoomCleanup(roomId string, token uint64) {
	ctx := ctxlogger.AppendCtx(context.Background(), slog.String("room_id", roomId))
	key := scheduler.RoomCleanupKey(roomId)

	removed, deleted, err := s.roomRepo.DeleteIf(ctx, roomId, func(r *domain.Room) bool {
		return s.scheduler.Release(key, token) && r.IsEmpty() && !r.Persistent
	})
	if err != nil {
		if errors.Is(err, ErrRoomNotFound) {
			s.scheduler.Release(key, token)
		}
		s.logger.DebugContext(ctx, "cleanup timer ignored", "error", err)
		return
	}
	if !deleted {
		return
	}

	s.scheduler.Cancel(scheduler.HostGraceKey(roomId))
	s.directory.Remove(roomId)

	var ob outbox
	for _, req := range removed.Pending {
		s.clearSession(req.RequesterId, roomId)
		ob.send(joinResult(broadcast.TypeJoinRejected, roomId, nil), req.RequesterId)
	}
	s.flush(ctx, &ob)

	s.logger.InfoContext(ctx, "room deleted", "rejected_requests", len(removed.Pending))
}
