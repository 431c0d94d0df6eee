// Package directory keeps a discovery listing of rooms in an external
// store. The listing trails the registry and is never read back into it.
package directory

import (
	"context"
	"log/slog"
	"time"
)

type Listing struct {
	Id               string    `json:"id"`
	Name             string    `json:"name"`
	HostUsername     string    `json:"host_username"`
	ParticipantCount int       `json:"participant_count"`
	Participants     []string  `json:"participants"`
	Persistent       bool      `json:"persistent"`
	UpdatedAt        time.Time `json:"updated_at"`
	// Version is the room version the listing was taken at. Stores keep
	// the newest and ignore older upserts.
	Version int `json:"version"`
}

type Store interface {
	Upsert(ctx context.Context, listing Listing) error
	Remove(ctx context.Context, roomId string) error
	List(ctx context.Context) ([]Listing, error)
}

// Source returns the listings of every live room.
type Source func(ctx context.Context) ([]Listing, error)

type opKind int

const (
	opUpsert opKind = iota
	opRemove
)

type op struct {
	kind    opKind
	roomId  string
	listing Listing
}

// Mirror queues listing changes and applies them from Run. Enqueueing never
// blocks; when the queue is full the change is dropped and logged.
type Mirror struct {
	store   Store
	ops     chan op
	timeout time.Duration
	logger  *slog.Logger

	source         Source
	resyncInterval time.Duration
}

func NewMirror(store Store, buffer int, logger *slog.Logger) *Mirror {
	return &Mirror{
		store:   store,
		ops:     make(chan op, buffer),
		timeout: 5 * time.Second,
		logger:  logger,
	}
}

// SetResync makes Run rewrite the store from source at start and then every
// interval. Listings of rooms source no longer has are removed.
func (m *Mirror) SetResync(interval time.Duration, source Source) {
	m.resyncInterval = interval
	m.source = source
}

func (m *Mirror) Upsert(listing Listing) {
	m.enqueue(op{kind: opUpsert, roomId: listing.Id, listing: listing})
}

func (m *Mirror) Remove(roomId string) {
	m.enqueue(op{kind: opRemove, roomId: roomId})
}

func (m *Mirror) List(ctx context.Context) ([]Listing, error) {
	return m.store.List(ctx)
}

func (m *Mirror) enqueue(o op) {
	select {
	case m.ops <- o:
	default:
		m.logger.Warn("directory queue full, dropping change", "room_id", o.roomId)
	}
}

// Run applies queued changes until ctx is done.
func (m *Mirror) Run(ctx context.Context) {
	var tick <-chan time.Time
	if m.source != nil && m.resyncInterval > 0 {
		ticker := time.NewTicker(m.resyncInterval)
		defer ticker.Stop()
		tick = ticker.C
		m.resync(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case o := <-m.ops:
			m.apply(ctx, o)
		case <-tick:
			m.resync(ctx)
		}
	}
}

func (m *Mirror) resync(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	// stored first: a room created after this read is not in it and so
	// cannot be removed below
	stored, err := m.store.List(ctx)
	if err != nil {
		m.logger.WarnContext(ctx, "failed to read directory for resync", "error", err)
		return
	}
	live, err := m.source(ctx)
	if err != nil {
		m.logger.WarnContext(ctx, "failed to list rooms for resync", "error", err)
		return
	}

	liveById := make(map[string]Listing, len(live))
	for _, l := range live {
		liveById[l.Id] = l
	}

	var removed int
	for _, l := range stored {
		current, ok := liveById[l.Id]
		// a newer stored version belongs to an earlier room with the same id
		if !ok || l.Version > current.Version {
			if err := m.store.Remove(ctx, l.Id); err != nil {
				m.logger.WarnContext(ctx, "failed to remove stale listing", "room_id", l.Id, "error", err)
				continue
			}
			removed++
		}
	}
	for _, l := range live {
		if err := m.store.Upsert(ctx, l); err != nil {
			m.logger.WarnContext(ctx, "failed to mirror room", "room_id", l.Id, "error", err)
		}
	}

	m.logger.DebugContext(ctx, "directory resynced", "rooms", len(live), "removed", removed)
}

func (m *Mirror) apply(ctx context.Context, o op) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	var err error
	switch o.kind {
	case opUpsert:
		err = m.store.Upsert(ctx, o.listing)
	case opRemove:
		err = m.store.Remove(ctx, o.roomId)
	}
	if err != nil {
		m.logger.WarnContext(ctx, "failed to mirror room", "room_id", o.roomId, "error", err)
	}
}

// Noop is used when discovery is disabled.
type Noop struct{}

func (Noop) Upsert(context.Context, Listing) error { return nil }

func (Noop) Remove(context.Context, string) error { return nil }

func (Noop) List(context.Context) ([]Listing, error) { return []Listing{}, nil }
