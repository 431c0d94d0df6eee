package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sharetube/tuneverse/internal/directory"
)

// DB is implemented by *pgxpool.Pool.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS rooms (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		host_username TEXT NOT NULL DEFAULT '',
		persistent BOOLEAN NOT NULL DEFAULT FALSE,
		participant_count INTEGER NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`ALTER TABLE rooms ADD COLUMN IF NOT EXISTS version INTEGER NOT NULL DEFAULT 0`,
	`CREATE TABLE IF NOT EXISTS room_participants (
		room_id TEXT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		username TEXT NOT NULL,
		PRIMARY KEY (room_id, position)
	)`,
}

type repo struct {
	db     DB
	logger *slog.Logger
}

func NewRepo(db DB, logger *slog.Logger) *repo {
	return &repo{
		db:     db,
		logger: logger,
	}
}

func (r repo) Migrate(ctx context.Context) error {
	for _, m := range migrations {
		if _, err := r.db.Exec(ctx, m); err != nil {
			return fmt.Errorf("failed to migrate: %w", err)
		}
	}

	return nil
}

func (r repo) Upsert(ctx context.Context, listing directory.Listing) error {
	r.logger.DebugContext(ctx, "called", "room_id", listing.Id)
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin: %w", err)
	}

	applied, err := r.upsert(ctx, tx, listing)
	if err != nil {
		tx.Rollback(ctx)
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}
	if !applied {
		r.logger.DebugContext(ctx, "skipped stale listing", "room_id", listing.Id, "version", listing.Version)
		return tx.Rollback(ctx)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	return nil
}

// upsert reports false when a newer version is already stored.
func (r repo) upsert(ctx context.Context, tx pgx.Tx, listing directory.Listing) (bool, error) {
	tag, err := tx.Exec(ctx,
		`INSERT INTO rooms (id, name, host_username, persistent, participant_count, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			host_username = EXCLUDED.host_username,
			persistent = EXCLUDED.persistent,
			participant_count = EXCLUDED.participant_count,
			updated_at = EXCLUDED.updated_at,
			version = EXCLUDED.version
		WHERE rooms.version <= EXCLUDED.version`,
		listing.Id, listing.Name, listing.HostUsername, listing.Persistent, listing.ParticipantCount, listing.UpdatedAt, listing.Version,
	)
	if err != nil {
		return false, fmt.Errorf("failed to upsert room: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if _, err := tx.Exec(ctx, `DELETE FROM room_participants WHERE room_id = $1`, listing.Id); err != nil {
		return false, fmt.Errorf("failed to clear participants: %w", err)
	}

	for i, username := range listing.Participants {
		if _, err := tx.Exec(ctx,
			`INSERT INTO room_participants (room_id, position, username) VALUES ($1, $2, $3)`,
			listing.Id, i, username,
		); err != nil {
			return false, fmt.Errorf("failed to insert participant: %w", err)
		}
	}

	return true, nil
}

func (r repo) Remove(ctx context.Context, roomId string) error {
	r.logger.DebugContext(ctx, "called", "room_id", roomId)
	if _, err := r.db.Exec(ctx, `DELETE FROM rooms WHERE id = $1`, roomId); err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}

	return nil
}

func (r repo) List(ctx context.Context) ([]directory.Listing, error) {
	rows, err := r.db.Query(ctx,
		`SELECT r.id, r.name, r.host_username, r.persistent, r.participant_count, r.updated_at, r.version,
			COALESCE(ARRAY_AGG(p.username ORDER BY p.position) FILTER (WHERE p.username IS NOT NULL), '{}')
		FROM rooms r
		LEFT JOIN room_participants p ON p.room_id = r.id
		GROUP BY r.id
		ORDER BY r.updated_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	defer rows.Close()

	listings := []directory.Listing{}
	for rows.Next() {
		var (
			l         directory.Listing
			updatedAt time.Time
		)
		if err := rows.Scan(&l.Id, &l.Name, &l.HostUsername, &l.Persistent, &l.ParticipantCount, &updatedAt, &l.Version, &l.Participants); err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		l.UpdatedAt = updatedAt
		listings = append(listings, l)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return listings, nil
}
