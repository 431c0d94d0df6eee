// Package scheduler runs deferred room transitions. There is at most one
// outstanding timer per (room, kind); scheduling again replaces it.
package scheduler

import (
	"log/slog"
	"sync"
	"time"
)

type Kind string

const (
	KindHostGrace   Kind = "host_grace"
	KindRoomCleanup Kind = "room_cleanup"
)

type Key struct {
	RoomId string
	Kind   Kind
}

func HostGraceKey(roomId string) Key {
	return Key{RoomId: roomId, Kind: KindHostGrace}
}

func RoomCleanupKey(roomId string) Key {
	return Key{RoomId: roomId, Kind: KindRoomCleanup}
}

type entry struct {
	token uint64
	timer *time.Timer
}

type Scheduler struct {
	mu        sync.Mutex
	timers    map[Key]entry
	nextToken uint64
	logger    *slog.Logger
}

func New(logger *slog.Logger) *Scheduler {
	return &Scheduler{
		timers: make(map[Key]entry),
		logger: logger,
	}
}

// Schedule runs fn after d, cancelling the previous timer of key. fn
// receives the token of its schedule; it must call Release with it before
// acting, because a stopped timer may already be firing.
func (s *Scheduler) Schedule(key Key, d time.Duration, fn func(token uint64)) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.timers[key]; ok {
		prev.timer.Stop()
	}

	s.nextToken++
	token := s.nextToken
	s.timers[key] = entry{
		token: token,
		timer: time.AfterFunc(d, func() { fn(token) }),
	}
	s.logger.Debug("timer scheduled", "room_id", key.RoomId, "kind", key.Kind, "after", d.String())

	return token
}

// Cancel stops the timer of key and reports whether one was outstanding.
func (s *Scheduler) Cancel(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.timers[key]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(s.timers, key)
	s.logger.Debug("timer cancelled", "room_id", key.RoomId, "kind", key.Kind)

	return true
}

// Release marks the timer of key as fired. It returns false when token no
// longer identifies the outstanding timer, meaning the firing is stale.
func (s *Scheduler) Release(key Key, token uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.timers[key]
	if !ok || e.token != token {
		return false
	}
	delete(s.timers, key)

	return true
}

func (s *Scheduler) Pending(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.timers[key]
	return ok
}

// Stop cancels every outstanding timer.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, e := range s.timers {
		e.timer.Stop()
		delete(s.timers, key)
	}
}
