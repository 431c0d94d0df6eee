package inmemory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sharetube/tuneverse/internal/domain"
	"github.com/sharetube/tuneverse/internal/repository/room"
	"golang.org/x/exp/maps"
)

const (
	roomIdLength = 4
	// after this many collisions in a row the code grows by one character
	maxAttemptsPerLength = 16
)

type iGenerator interface {
	GenerateRandomString(length int) string
}

type entry struct {
	mu      sync.Mutex
	room    *domain.Room
	deleted bool
}

// repo holds every live room. Each room has its own lock; r.mu guards only
// the index and is never held while waiting on a room lock.
type repo struct {
	mu        sync.RWMutex
	rooms     map[string]*entry
	generator iGenerator
	logger    *slog.Logger
}

func NewRepo(generator iGenerator, logger *slog.Logger) *repo {
	return &repo{
		rooms:     make(map[string]*entry),
		generator: generator,
		logger:    logger,
	}
}

// Create stores the room built for a fresh unused id. It always succeeds.
func (r *repo) Create(ctx context.Context, build func(id string) *domain.Room) (*domain.Room, error) {
	funcName := "room.inmemory.Create"
	r.mu.Lock()
	defer r.mu.Unlock()

	length := roomIdLength
	attempts := 0
	id := r.generator.GenerateRandomString(length)
	for r.rooms[id] != nil {
		r.logger.DebugContext(ctx, funcName, "collision", id)
		attempts++
		if attempts >= maxAttemptsPerLength {
			attempts = 0
			length++
		}
		id = r.generator.GenerateRandomString(length)
	}

	created := build(id)
	created.Id = id
	r.rooms[id] = &entry{room: created}

	r.logger.DebugContext(ctx, funcName, "room_id", id)
	return created.Clone(), nil
}

func (r *repo) lookup(id string) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.rooms[id]
	return e, ok
}

func (r *repo) Get(ctx context.Context, id string) (*domain.Room, error) {
	e, ok := r.lookup(id)
	if !ok {
		return nil, room.ErrRoomNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.deleted {
		return nil, room.ErrRoomNotFound
	}

	return e.room.Clone(), nil
}

// Update runs fn on a copy of the room under the room lock. The copy
// replaces the stored room, with Version incremented, only when fn returns
// nil.
func (r *repo) Update(ctx context.Context, id string, fn func(*domain.Room) error) (*domain.Room, error) {
	e, ok := r.lookup(id)
	if !ok {
		return nil, room.ErrRoomNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.deleted {
		return nil, room.ErrRoomNotFound
	}

	work := e.room.Clone()
	if err := fn(work); err != nil {
		return nil, err
	}
	work.Version++
	e.room = work

	return work.Clone(), nil
}

// DeleteIf removes the room when cond holds under the room lock and returns
// the removed room.
func (r *repo) DeleteIf(ctx context.Context, id string, cond func(*domain.Room) bool) (*domain.Room, bool, error) {
	funcName := "room.inmemory.DeleteIf"
	e, ok := r.lookup(id)
	if !ok {
		return nil, false, room.ErrRoomNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.deleted {
		return nil, false, room.ErrRoomNotFound
	}
	if !cond(e.room) {
		return nil, false, nil
	}
	e.deleted = true

	r.mu.Lock()
	delete(r.rooms, id)
	r.mu.Unlock()

	r.logger.DebugContext(ctx, funcName, "room_id", id)
	return e.room.Clone(), true, nil
}

func (r *repo) List(ctx context.Context) ([]*domain.Room, error) {
	r.mu.RLock()
	entries := maps.Values(r.rooms)
	r.mu.RUnlock()

	rooms := make([]*domain.Room, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if !e.deleted {
			rooms = append(rooms, e.room.Clone())
		}
		e.mu.Unlock()
	}

	return rooms, nil
}
