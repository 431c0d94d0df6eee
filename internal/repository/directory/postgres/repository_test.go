package postgres

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/sharetube/tuneverse/internal/directory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockRepo(t *testing.T) (*repo, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	return NewRepo(mock, slog.Default()), mock
}

func TestMigrate(t *testing.T) {
	repo, mock := setupMockRepo(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS rooms").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectExec("ALTER TABLE rooms ADD COLUMN IF NOT EXISTS version").
		WillReturnResult(pgxmock.NewResult("ALTER TABLE", 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS room_participants").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, repo.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert(t *testing.T) {
	repo, mock := setupMockRepo(t)
	now := time.UnixMilli(1_700_000_000_000)
	listing := directory.Listing{
		Id:               "AF3D",
		Name:             "friday",
		HostUsername:     "alice",
		ParticipantCount: 2,
		Participants:     []string{"alice", "bob"},
		UpdatedAt:        now,
		Version:          3,
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO rooms").
		WithArgs("AF3D", "friday", "alice", false, 2, now, 3).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("DELETE FROM room_participants").
		WithArgs("AF3D").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec("INSERT INTO room_participants").
		WithArgs("AF3D", 0, "alice").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO room_participants").
		WithArgs("AF3D", 1, "bob").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Upsert(context.Background(), listing))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertRollsBack(t *testing.T) {
	repo, mock := setupMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO rooms").
		WithArgs("AF3D", "", "", false, 0, pgxmock.AnyArg(), 0).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := repo.Upsert(context.Background(), directory.Listing{Id: "AF3D", UpdatedAt: time.Now()})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertSkipsOlderVersion(t *testing.T) {
	repo, mock := setupMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO rooms").
		WithArgs("AF3D", "", "", false, 0, pgxmock.AnyArg(), 2).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectRollback()

	require.NoError(t, repo.Upsert(context.Background(), directory.Listing{Id: "AF3D", UpdatedAt: time.Now(), Version: 2}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRemove(t *testing.T) {
	repo, mock := setupMockRepo(t)

	mock.ExpectExec("DELETE FROM rooms").
		WithArgs("AF3D").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, repo.Remove(context.Background(), "AF3D"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestList(t *testing.T) {
	repo, mock := setupMockRepo(t)
	now := time.UnixMilli(1_700_000_000_000)

	mock.ExpectQuery("SELECT r.id, r.name").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "host_username", "persistent", "participant_count", "updated_at", "version", "participants"}).
			AddRow("AF3D", "friday", "alice", true, 2, now, 7, []string{"alice", "bob"}).
			AddRow("QWER", "", "", false, 0, now.Add(-time.Hour), 1, []string{}))

	listings, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, listings, 2)

	assert.Equal(t, "AF3D", listings[0].Id)
	assert.True(t, listings[0].Persistent)
	assert.Equal(t, []string{"alice", "bob"}, listings[0].Participants)
	assert.Equal(t, now, listings[0].UpdatedAt)
	assert.Equal(t, 7, listings[0].Version)
	assert.Empty(t, listings[1].Participants)
	assert.NoError(t, mock.ExpectationsWereMet())
}
