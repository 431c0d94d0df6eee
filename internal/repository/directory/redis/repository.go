package redis

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sharetube/tuneverse/internal/directory"
)

const roomsKey = "directory:rooms"

type repo struct {
	rc             *redis.Client
	expireDuration time.Duration
	logger         *slog.Logger
}

// NewRepo stores listings that expire after expireDuration without an
// upsert, so rooms of a crashed instance fall out of the listing.
func NewRepo(rc *redis.Client, expireDuration time.Duration, logger *slog.Logger) *repo {
	return &repo{
		rc:             rc,
		expireDuration: expireDuration,
		logger:         logger,
	}
}

type listingRecord struct {
	Name             string `redis:"name"`
	HostUsername     string `redis:"host_username"`
	ParticipantCount int    `redis:"participant_count"`
	Persistent       bool   `redis:"persistent"`
	UpdatedAt        int64  `redis:"updated_at"`
	Version          int    `redis:"version"`
}

func (r repo) getRoomKey(roomId string) string {
	return "directory:room:" + roomId
}

func (r repo) getParticipantsKey(roomId string) string {
	return "directory:room:" + roomId + ":participants"
}

// Upsert writes listing unless the stored one has a newer version. The
// version is read under WATCH so a concurrent writer aborts the transaction.
func (r repo) Upsert(ctx context.Context, listing directory.Listing) error {
	r.logger.DebugContext(ctx, "called", "room_id", listing.Id)

	roomKey := r.getRoomKey(listing.Id)
	err := r.rc.Watch(ctx, func(tx *redis.Tx) error {
		stored, err := tx.HGet(ctx, roomKey, "version").Int()
		if err != nil && err != redis.Nil {
			return err
		}
		if err == nil && stored > listing.Version {
			r.logger.DebugContext(ctx, "skipped stale listing", "room_id", listing.Id, "version", listing.Version, "stored", stored)
			return nil
		}

		pipe := tx.TxPipeline()
		if err := r.hSetStruct(ctx, pipe, roomKey, listingRecord{
			Name:             listing.Name,
			HostUsername:     listing.HostUsername,
			ParticipantCount: listing.ParticipantCount,
			Persistent:       listing.Persistent,
			UpdatedAt:        listing.UpdatedAt.UnixMilli(),
			Version:          listing.Version,
		}); err != nil {
			return err
		}
		pipe.Expire(ctx, roomKey, r.expireDuration)

		participantsKey := r.getParticipantsKey(listing.Id)
		pipe.Del(ctx, participantsKey)
		if len(listing.Participants) > 0 {
			values := make([]any, 0, len(listing.Participants))
			for _, p := range listing.Participants {
				values = append(values, p)
			}
			pipe.RPush(ctx, participantsKey, values...)
			pipe.Expire(ctx, participantsKey, r.expireDuration)
		}

		pipe.ZAdd(ctx, roomsKey, redis.Z{
			Score:  float64(listing.UpdatedAt.UnixMilli()),
			Member: listing.Id,
		})

		return r.executePipe(ctx, pipe)
	}, roomKey)
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

func (r repo) Remove(ctx context.Context, roomId string) error {
	r.logger.DebugContext(ctx, "called", "room_id", roomId)
	pipe := r.rc.TxPipeline()

	pipe.Del(ctx, r.getRoomKey(roomId), r.getParticipantsKey(roomId))
	pipe.ZRem(ctx, roomsKey, roomId)

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

// List returns listings most recently updated first. Index entries whose
// hash expired are pruned.
func (r repo) List(ctx context.Context) ([]directory.Listing, error) {
	roomIds, err := r.rc.ZRevRange(ctx, roomsKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	pipe := r.rc.Pipeline()
	roomCmds := make([]*redis.MapStringStringCmd, 0, len(roomIds))
	participantsCmds := make([]*redis.StringSliceCmd, 0, len(roomIds))
	for _, roomId := range roomIds {
		roomCmds = append(roomCmds, pipe.HGetAll(ctx, r.getRoomKey(roomId)))
		participantsCmds = append(participantsCmds, pipe.LRange(ctx, r.getParticipantsKey(roomId), 0, -1))
	}
	if len(roomIds) > 0 {
		if err := r.executePipe(ctx, pipe); err != nil {
			return nil, err
		}
	}

	listings := make([]directory.Listing, 0, len(roomIds))
	var stale []any
	for i, roomId := range roomIds {
		if len(roomCmds[i].Val()) == 0 {
			stale = append(stale, roomId)
			continue
		}

		var rec listingRecord
		if err := roomCmds[i].Scan(&rec); err != nil {
			return nil, err
		}

		listings = append(listings, directory.Listing{
			Id:               roomId,
			Name:             rec.Name,
			HostUsername:     rec.HostUsername,
			ParticipantCount: rec.ParticipantCount,
			Participants:     participantsCmds[i].Val(),
			Persistent:       rec.Persistent,
			UpdatedAt:        time.UnixMilli(rec.UpdatedAt),
			Version:          rec.Version,
		})
	}

	if len(stale) > 0 {
		if err := r.rc.ZRem(ctx, roomsKey, stale...).Err(); err != nil {
			r.logger.WarnContext(ctx, "failed to prune directory index", "error", err)
		}
	}

	return listings, nil
}
