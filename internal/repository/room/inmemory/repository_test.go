package inmemory

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/sharetube/tuneverse/internal/domain"
	"github.com/sharetube/tuneverse/internal/repository/room"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seqGenerator struct {
	ids []string
	i   int
}

func (g *seqGenerator) GenerateRandomString(length int) string {
	id := g.ids[g.i%len(g.ids)]
	g.i++
	if len(id) < length {
		id += "X"
	}
	return id
}

func build(host string) func(id string) *domain.Room {
	return func(id string) *domain.Room {
		return domain.NewRoom(id, domain.Member{Id: host, Username: host}, domain.RoomOptions{}, time.Now())
	}
}

func TestCreateRetriesOnCollision(t *testing.T) {
	ctx := context.Background()
	repo := NewRepo(&seqGenerator{ids: []string{"AF3D", "AF3D", "QWER"}}, slog.Default())

	first, err := repo.Create(ctx, build("h1"))
	require.NoError(t, err)
	assert.Equal(t, "AF3D", first.Id)

	second, err := repo.Create(ctx, build("h2"))
	require.NoError(t, err)
	assert.Equal(t, "QWER", second.Id)
}

func TestCreateGrowsIdAfterManyCollisions(t *testing.T) {
	ctx := context.Background()
	repo := NewRepo(&seqGenerator{ids: []string{"AAAA"}}, slog.Default())

	_, err := repo.Create(ctx, build("h1"))
	require.NoError(t, err)
	second, err := repo.Create(ctx, build("h2"))
	require.NoError(t, err)
	assert.Equal(t, "AAAAX", second.Id)
}

func TestGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	repo := NewRepo(&seqGenerator{ids: []string{"AF3D"}}, slog.Default())
	created, err := repo.Create(ctx, build("h"))
	require.NoError(t, err)

	created.AddMember(domain.Member{Id: "intruder"})

	got, err := repo.Get(ctx, "AF3D")
	require.NoError(t, err)
	assert.Equal(t, []string{"h"}, got.MemberIds())

	_, err = repo.Get(ctx, "NONE")
	assert.ErrorIs(t, err, room.ErrRoomNotFound)
}

func TestUpdateFailsClosed(t *testing.T) {
	ctx := context.Background()
	repo := NewRepo(&seqGenerator{ids: []string{"AF3D"}}, slog.Default())
	_, err := repo.Create(ctx, build("h"))
	require.NoError(t, err)

	errRejected := errors.New("rejected")
	_, err = repo.Update(ctx, "AF3D", func(r *domain.Room) error {
		r.AddMember(domain.Member{Id: "m"})
		return errRejected
	})
	assert.ErrorIs(t, err, errRejected)

	got, err := repo.Get(ctx, "AF3D")
	require.NoError(t, err)
	assert.Equal(t, []string{"h"}, got.MemberIds(), "rejected mutation must not be applied")
	assert.Equal(t, 0, got.Version)

	updated, err := repo.Update(ctx, "AF3D", func(r *domain.Room) error {
		r.AddMember(domain.Member{Id: "m"})
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, updated.Version)
	assert.Equal(t, []string{"h", "m"}, updated.MemberIds())

	_, err = repo.Update(ctx, "NONE", func(*domain.Room) error { return nil })
	assert.ErrorIs(t, err, room.ErrRoomNotFound)
}

func TestUpdateIsAtomicPerRoom(t *testing.T) {
	ctx := context.Background()
	repo := NewRepo(&seqGenerator{ids: []string{"AF3D"}}, slog.Default())
	_, err := repo.Create(ctx, build("h"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			repo.Update(ctx, "AF3D", func(r *domain.Room) error {
				r.AddMember(domain.Member{Id: string(rune('a' + i%26)) + string(rune('a' + i/26))})
				return nil
			})
		}()
	}
	wg.Wait()

	got, err := repo.Get(ctx, "AF3D")
	require.NoError(t, err)
	assert.Len(t, got.Members, 51)
	assert.Equal(t, 50, got.Version)
}

func TestDeleteIf(t *testing.T) {
	ctx := context.Background()
	repo := NewRepo(&seqGenerator{ids: []string{"AF3D"}}, slog.Default())
	_, err := repo.Create(ctx, build("h"))
	require.NoError(t, err)

	_, deleted, err := repo.DeleteIf(ctx, "AF3D", func(r *domain.Room) bool { return r.IsEmpty() })
	require.NoError(t, err)
	assert.False(t, deleted)

	removed, deleted, err := repo.DeleteIf(ctx, "AF3D", func(*domain.Room) bool { return true })
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Equal(t, "AF3D", removed.Id)

	_, err = repo.Get(ctx, "AF3D")
	assert.ErrorIs(t, err, room.ErrRoomNotFound)
	_, _, err = repo.DeleteIf(ctx, "AF3D", func(*domain.Room) bool { return true })
	assert.ErrorIs(t, err, room.ErrRoomNotFound)

	rooms, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, rooms)
}
