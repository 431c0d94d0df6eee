package domain

import (
	"cmp"
	"encoding/json"
	"errors"
	"slices"
	"time"
)

var ErrItemNotFound = errors.New("queue item not found")

type QueueItem struct {
	Id              string          `json:"id"`
	TrackId         string          `json:"track_id"`
	Title           string          `json:"title"`
	Thumbnail       string          `json:"thumbnail"`
	Source          string          `json:"source"`
	Ref             json.RawMessage `json:"ref,omitempty"`
	AddedByMemberId string          `json:"added_by_member_id"`
	VoteCount       int             `json:"vote_count"`
	VoterIds        []string        `json:"voter_ids"`
	AddedAt         int64           `json:"added_at"`
	// Seq is the insertion order used to break vote ties.
	Seq uint64 `json:"-"`
}

func (q QueueItem) NowPlaying() NowPlaying {
	return NowPlaying{
		TrackId:   q.TrackId,
		Source:    q.Source,
		Title:     q.Title,
		Thumbnail: q.Thumbnail,
	}
}

func (q QueueItem) HasVoted(voterId string) bool {
	return slices.Contains(q.VoterIds, voterId)
}

// AddToQueue resets the item's votes and either promotes it straight into
// playback, when nothing is loaded and playback is IDLE, or appends it.
// It reports whether the item was promoted.
func (r *Room) AddToQueue(item QueueItem, now time.Time) bool {
	item.VoteCount = 0
	item.VoterIds = []string{}
	item.AddedAt = now.UnixMilli()

	if r.Playback.Status == StatusIdle && !r.Playback.HasTrack() {
		np := item.NowPlaying()
		r.Playback.Apply(PlaybackPatch{
			Status:   status(StatusPlaying),
			Position: position(0),
			Track:    &np,
		}, now)
		return true
	}

	r.queueSeq++
	item.Seq = r.queueSeq
	r.Queue = append(r.Queue, item)
	r.sortQueue()

	return false
}

// Upvote records one vote of voterId on itemId. A repeated vote is a no-op
// and returns false.
func (r *Room) Upvote(itemId, voterId string) (bool, error) {
	i := slices.IndexFunc(r.Queue, func(q QueueItem) bool { return q.Id == itemId })
	if i < 0 {
		return false, ErrItemNotFound
	}
	if r.Queue[i].HasVoted(voterId) {
		return false, nil
	}

	r.Queue[i].VoteCount++
	r.Queue[i].VoterIds = append(r.Queue[i].VoterIds, voterId)
	r.sortQueue()

	return true, nil
}

// RemoveFromQueue drops itemId. The remaining items keep their order.
func (r *Room) RemoveFromQueue(itemId string) (QueueItem, error) {
	i := slices.IndexFunc(r.Queue, func(q QueueItem) bool { return q.Id == itemId })
	if i < 0 {
		return QueueItem{}, ErrItemNotFound
	}
	item := r.Queue[i]
	r.Queue = slices.Delete(r.Queue, i, i+1)

	return item, nil
}

func (r *Room) sortQueue() {
	slices.SortStableFunc(r.Queue, func(a, b QueueItem) int {
		if a.VoteCount != b.VoteCount {
			return cmp.Compare(b.VoteCount, a.VoteCount)
		}
		return cmp.Compare(a.Seq, b.Seq)
	})
}

func (r *Room) popQueue() (QueueItem, bool) {
	if len(r.Queue) == 0 {
		return QueueItem{}, false
	}
	item := r.Queue[0]
	r.Queue = slices.Delete(r.Queue, 0, 1)

	return item, true
}

func (r *Room) takeQueuedTrack(trackId string) (QueueItem, bool) {
	i := slices.IndexFunc(r.Queue, func(q QueueItem) bool { return q.TrackId == trackId })
	if i < 0 {
		return QueueItem{}, false
	}
	item := r.Queue[i]
	r.Queue = slices.Delete(r.Queue, i, i+1)

	return item, true
}
