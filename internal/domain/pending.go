package domain

import "time"

type PendingJoinRequest struct {
	RequesterId       string
	UserId            string
	RequestedUsername string
	Color             string
	AvatarUrl         *string
	RoomId            string
	CreatedAt         time.Time
	Verified          bool
}

func (p PendingJoinRequest) Member(now time.Time) Member {
	return Member{
		Id:        p.RequesterId,
		UserId:    p.UserId,
		Username:  p.RequestedUsername,
		Color:     p.Color,
		AvatarUrl: p.AvatarUrl,
		JoinedAt:  now.UnixMilli(),
		Verified:  p.Verified,
	}
}

func (r *Room) PendingIndex(requesterId string) int {
	for i := range r.Pending {
		if r.Pending[i].RequesterId == requesterId {
			return i
		}
	}

	return -1
}

// AddPending enqueues req unless the requester already waits.
func (r *Room) AddPending(req PendingJoinRequest) bool {
	if r.PendingIndex(req.RequesterId) >= 0 {
		return false
	}
	r.Pending = append(r.Pending, req)

	return true
}

// TakePending removes and returns exactly one request.
func (r *Room) TakePending(requesterId string) (PendingJoinRequest, bool) {
	i := r.PendingIndex(requesterId)
	if i < 0 {
		return PendingJoinRequest{}, false
	}
	req := r.Pending[i]
	r.Pending = append(r.Pending[:i], r.Pending[i+1:]...)

	return req, true
}
