package domain

import (
	"slices"
	"time"
)

type RoomOptions struct {
	Name            string
	Persistent      bool
	RequireApproval bool
}

// HostGhost remembers a host whose connection dropped while the grace
// timer runs. HostId keeps pointing at the old connection meanwhile.
type HostGhost struct {
	MemberId string
	UserId   string
	Username string
	Verified bool
	Since    time.Time
}

// Matches reports whether m is the host coming back. A verified ghost is
// matched by UserId only; the username fallback is for anonymous hosts.
func (g *HostGhost) Matches(m Member) bool {
	if g == nil {
		return false
	}
	if g.Verified {
		return m.Verified && g.UserId != "" && g.UserId == m.UserId
	}

	return !m.Verified && g.Username == m.Username
}

type Room struct {
	Id              string
	Name            string
	HostId          string
	Persistent      bool
	RequireApproval bool
	Members         []Member
	Allowed         map[string]struct{}
	Pending         []PendingJoinRequest
	Playback        PlaybackState
	Queue           []QueueItem
	Messages        []ChatMessage
	Ghost           *HostGhost
	CreatedAt       time.Time
	Version         int

	queueSeq uint64
}

func NewRoom(id string, host Member, opts RoomOptions, now time.Time) *Room {
	r := &Room{
		Id:              id,
		Name:            opts.Name,
		HostId:          host.Id,
		Persistent:      opts.Persistent,
		RequireApproval: opts.RequireApproval,
		Members:         []Member{host},
		Playback: PlaybackState{
			Status:      StatusIdle,
			LastUpdated: now.UnixMilli(),
		},
		Queue:     []QueueItem{},
		Messages:  []ChatMessage{},
		CreatedAt: now,
	}
	r.Allow(host)

	return r
}

func (r *Room) IsEmpty() bool {
	return len(r.Members) == 0
}

// HostDisconnected reports whether the host is ghosted.
func (r *Room) HostDisconnected() bool {
	return r.Ghost != nil
}

// Clone returns a deep copy, so a mutation on it never shows through r.
func (r *Room) Clone() *Room {
	c := *r
	c.Members = slices.Clone(r.Members)
	c.Pending = slices.Clone(r.Pending)
	c.Messages = slices.Clone(r.Messages)
	c.Allowed = make(map[string]struct{}, len(r.Allowed))
	for k := range r.Allowed {
		c.Allowed[k] = struct{}{}
	}
	c.Queue = make([]QueueItem, len(r.Queue))
	for i, item := range r.Queue {
		item.VoterIds = slices.Clone(item.VoterIds)
		item.Ref = slices.Clone(item.Ref)
		c.Queue[i] = item
	}
	if r.Playback.CurrentTrackId != nil {
		trackId := *r.Playback.CurrentTrackId
		c.Playback.CurrentTrackId = &trackId
	}
	if r.Ghost != nil {
		ghost := *r.Ghost
		c.Ghost = &ghost
	}

	return &c
}

// RoomSnapshot is the client visible state of a room. Allow-list and
// pending requests stay server side.
type RoomSnapshot struct {
	Id               string        `json:"id"`
	Name             string        `json:"name"`
	HostId           string        `json:"host_id"`
	HostDisconnected bool          `json:"host_disconnected"`
	Persistent       bool          `json:"persistent"`
	RequireApproval  bool          `json:"require_approval"`
	Members          []Member      `json:"members"`
	Playback         PlaybackState `json:"playback"`
	Queue            []QueueItem   `json:"queue"`
	Messages         []ChatMessage `json:"messages"`
	CreatedAt        int64         `json:"created_at"`
	Version          int           `json:"version"`
}

func (r *Room) Snapshot() RoomSnapshot {
	c := r.Clone()

	return RoomSnapshot{
		Id:               c.Id,
		Name:             c.Name,
		HostId:           c.HostId,
		HostDisconnected: c.HostDisconnected(),
		Persistent:       c.Persistent,
		RequireApproval:  c.RequireApproval,
		Members:          c.Members,
		Playback:         c.Playback,
		Queue:            c.Queue,
		Messages:         c.Messages,
		CreatedAt:        c.CreatedAt.UnixMilli(),
		Version:          c.Version,
	}
}
