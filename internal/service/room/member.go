package room

import (
	"context"
	"errors"

	"github.com/sharetube/tuneverse/internal/broadcast"
	"github.com/sharetube/tuneverse/internal/domain"
	"github.com/sharetube/tuneverse/internal/repository/connection"
	"github.com/sharetube/tuneverse/internal/scheduler"
)

type JoinStatus string

const (
	JoinStatusJoined  JoinStatus = "joined"
	JoinStatusPending JoinStatus = "pending"
)

type JoinRoomParams struct {
	ConnId    string
	RoomId    string
	Username  string
	Color     string
	AvatarUrl *string
}

type JoinRoomResponse struct {
	Status       JoinStatus
	Room         *domain.RoomSnapshot
	HostReturned bool
}

func (s service) JoinRoom(ctx context.Context, params *JoinRoomParams) (JoinRoomResponse, error) {
	session, err := s.getSession(params.ConnId)
	if err != nil {
		return JoinRoomResponse{}, err
	}

	username, err := s.resolveUsername(session, params.Username)
	if err != nil {
		return JoinRoomResponse{}, err
	}

	if session.RoomId != params.RoomId {
		s.leaveCurrent(ctx, session, params.RoomId)
	}

	now := s.now()
	member := domain.Member{
		Id:        params.ConnId,
		UserId:    session.UserId,
		Username:  username,
		Color:     params.Color,
		AvatarUrl: params.AvatarUrl,
		JoinedAt:  now.UnixMilli(),
		Verified:  session.Verified,
	}

	var (
		ob           outbox
		status       JoinStatus
		hostReturned bool
	)
	updated, err := s.roomRepo.Update(ctx, params.RoomId, func(r *domain.Room) error {
		if r.HasMember(member.Id) {
			return errNoChange
		}

		hostReturned = r.Ghost.Matches(member)
		if !hostReturned && !r.IsEmpty() && r.RequireApproval && !r.IsAllowed(member) {
			status = JoinStatusPending
			req := domain.PendingJoinRequest{
				RequesterId:       member.Id,
				UserId:            member.UserId,
				RequestedUsername: member.Username,
				Color:             member.Color,
				AvatarUrl:         member.AvatarUrl,
				RoomId:            r.Id,
				CreatedAt:         now,
				Verified:          member.Verified,
			}
			if !r.AddPending(req) {
				return ErrAlreadyPending
			}
			if host, ok := r.Host(); ok {
				ob.send(joinRequestReceived(req), host.Id)
			}
			return nil
		}

		if len(r.Members) >= s.cfg.MembersLimit {
			return ErrMembersLimitReached
		}

		status = JoinStatusJoined
		r.TakePending(member.Id)
		r.AddMember(member)
		s.scheduler.Cancel(scheduler.RoomCleanupKey(r.Id))
		s.systemMessage(r, member.Username+" joined")

		switch {
		case hostReturned:
			s.scheduler.Cancel(scheduler.HostGraceKey(r.Id))
			r.HostId = member.Id
			r.Ghost = nil
			s.forwardPending(r, &ob)
		case r.Ghost == nil && !r.HasMember(r.HostId):
			r.HostId = member.Id
			s.systemMessage(r, member.Username+" is now the host")
			s.forwardPending(r, &ob)
		}

		return nil
	})

	switch {
	case errors.Is(err, errNoChange):
		current, err := s.roomRepo.Get(ctx, params.RoomId)
		if err != nil {
			return JoinRoomResponse{}, err
		}
		s.publisher.Send(ctx, params.ConnId, joinResult(broadcast.TypeRoomJoined, current.Id, current))
		snapshot := current.Snapshot()
		return JoinRoomResponse{Status: JoinStatusJoined, Room: &snapshot}, nil
	case errors.Is(err, ErrAlreadyPending):
		s.publisher.Send(ctx, params.ConnId, joinResult(broadcast.TypeJoinPending, params.RoomId, nil))
		return JoinRoomResponse{Status: JoinStatusPending}, nil
	case err != nil:
		s.logger.InfoContext(ctx, "failed to join room", "room_id", params.RoomId, "error", err)
		return JoinRoomResponse{}, err
	}

	if status == JoinStatusPending {
		s.connRepo.UpdateSession(params.ConnId, func(session *connection.Session) {
			session.PendingRoomId = updated.Id
			session.Username = username
		})
		s.logger.InfoContext(ctx, "join request pending", "room_id", updated.Id, "requester_id", member.Id)
		ob.send(joinResult(broadcast.TypeJoinPending, updated.Id, nil), member.Id)
		s.flush(ctx, &ob)
		return JoinRoomResponse{Status: JoinStatusPending}, nil
	}

	s.connRepo.UpdateSession(params.ConnId, func(session *connection.Session) {
		session.RoomId = updated.Id
		session.PendingRoomId = ""
		session.Username = username
	})

	if hostReturned {
		s.logger.InfoContext(ctx, "host returned", "room_id", updated.Id, "host_id", updated.HostId)
	}
	s.logger.InfoContext(ctx, "member joined", "room_id", updated.Id, "member_id", member.Id)

	ob.send(joinResult(broadcast.TypeRoomJoined, updated.Id, updated), member.Id)
	ob.send(roomUpdate(updated), updated.MemberIds()...)
	s.flush(ctx, &ob)
	s.mirror(updated)

	snapshot := updated.Snapshot()
	return JoinRoomResponse{
		Status:       JoinStatusJoined,
		Room:         &snapshot,
		HostReturned: hostReturned,
	}, nil
}

type LeaveRoomParams struct {
	ConnId string
}

type LeaveRoomResponse struct {
	RoomId string
}

func (s service) LeaveRoom(ctx context.Context, params *LeaveRoomParams) (LeaveRoomResponse, error) {
	session, err := s.getSession(params.ConnId)
	if err != nil {
		return LeaveRoomResponse{}, err
	}

	roomId := session.RoomId
	if roomId == "" {
		roomId = session.PendingRoomId
	}
	if roomId == "" {
		return LeaveRoomResponse{}, ErrNotInRoom
	}

	s.leaveCurrent(ctx, session, "")
	s.publisher.Send(ctx, params.ConnId, &broadcast.Output{
		Type:    broadcast.TypeRoomLeft,
		Payload: JoinResultPayload{RoomId: roomId},
	})

	return LeaveRoomResponse{RoomId: roomId}, nil
}

type DisconnectMemberParams struct {
	ConnId string
}

// DisconnectMember is the implicit leave of a dropped connection. A pending
// join request of the connection is dropped without notice.
func (s service) DisconnectMember(ctx context.Context, params *DisconnectMemberParams) error {
	session, err := s.getSession(params.ConnId)
	if err != nil {
		return err
	}

	if session.RoomId != "" {
		if err := s.leave(ctx, params.ConnId, session.RoomId, false); err != nil {
			s.logger.DebugContext(ctx, "implicit leave failed", "room_id", session.RoomId, "error", err)
		}
		s.clearSession(params.ConnId, session.RoomId)
	}

	if session.PendingRoomId != "" {
		if err := s.dropPending(ctx, params.ConnId, session.PendingRoomId); err != nil {
			s.logger.DebugContext(ctx, "failed to drop join request", "room_id", session.PendingRoomId, "error", err)
		}
		s.clearSession(params.ConnId, session.PendingRoomId)
	}

	return nil
}

type DecideJoinParams struct {
	SenderId    string
	RequesterId string
	Approved    bool
}

type DecideJoinResponse struct {
	RoomId   string
	Approved bool
}

func (s service) DecideJoin(ctx context.Context, params *DecideJoinParams) (DecideJoinResponse, error) {
	roomId, err := s.getRoomId(params.SenderId)
	if err != nil {
		return DecideJoinResponse{}, err
	}

	now := s.now()
	var (
		ob  outbox
		req domain.PendingJoinRequest
	)
	updated, err := s.roomRepo.Update(ctx, roomId, func(r *domain.Room) error {
		if err := s.checkIfHost(r, params.SenderId); err != nil {
			return err
		}

		var ok bool
		req, ok = r.TakePending(params.RequesterId)
		if !ok {
			return ErrPendingNotFound
		}

		if !params.Approved {
			return nil
		}

		if len(r.Members) >= s.cfg.MembersLimit {
			return ErrMembersLimitReached
		}

		approved := req.Member(now)
		r.AddMember(approved)
		r.Allow(approved)
		s.systemMessage(r, req.RequestedUsername+" joined")

		return nil
	})
	if errors.Is(err, ErrPermissionDenied) {
		s.logger.InfoContext(ctx, "join decision denied", "room_id", roomId, "sender_id", params.SenderId)
		return DecideJoinResponse{}, err
	}
	if err != nil {
		return DecideJoinResponse{}, err
	}

	if !params.Approved {
		s.clearSession(req.RequesterId, roomId)
		ob.send(joinResult(broadcast.TypeJoinRejected, roomId, nil), req.RequesterId)
		s.flush(ctx, &ob)
		s.logger.InfoContext(ctx, "join request rejected", "room_id", roomId, "requester_id", req.RequesterId)
		return DecideJoinResponse{RoomId: roomId, Approved: false}, nil
	}

	s.connRepo.UpdateSession(req.RequesterId, func(session *connection.Session) {
		session.RoomId = roomId
		session.PendingRoomId = ""
		session.Username = req.RequestedUsername
	})

	ob.send(joinResult(broadcast.TypeJoinApproved, roomId, updated), req.RequesterId)
	ob.send(roomUpdate(updated), updated.MemberIds()...)
	s.flush(ctx, &ob)
	s.mirror(updated)
	s.logger.InfoContext(ctx, "join request approved", "room_id", roomId, "requester_id", req.RequesterId)

	return DecideJoinResponse{RoomId: roomId, Approved: true}, nil
}

// leaveCurrent explicitly leaves the session's room and drops its pending
// request, except a pending request for keepPending.
func (s service) leaveCurrent(ctx context.Context, session connection.Session, keepPending string) {
	if session.RoomId != "" {
		if err := s.leave(ctx, session.ConnId, session.RoomId, true); err != nil {
			s.logger.DebugContext(ctx, "leave failed", "room_id", session.RoomId, "error", err)
		}
		s.clearSession(session.ConnId, session.RoomId)
	}

	if session.PendingRoomId != "" && session.PendingRoomId != keepPending {
		if err := s.dropPending(ctx, session.ConnId, session.PendingRoomId); err != nil {
			s.logger.DebugContext(ctx, "failed to drop join request", "room_id", session.PendingRoomId, "error", err)
		}
		s.clearSession(session.ConnId, session.PendingRoomId)
	}
}

func (s service) leave(ctx context.Context, memberId, roomId string, explicit bool) error {
	var ob outbox
	updated, err := s.roomRepo.Update(ctx, roomId, func(r *domain.Room) error {
		return s.removeMember(r, memberId, explicit, &ob)
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "member left", "room_id", roomId, "member_id", memberId, "explicit", explicit)
	ob.send(roomUpdate(updated), updated.MemberIds()...)
	s.flush(ctx, &ob)
	s.mirror(updated)

	return nil
}

// dropPending withdraws the connection's join request. When the request was
// approved in the meantime the connection is already a member and leaves
// implicitly instead.
func (s service) dropPending(ctx context.Context, connId, roomId string) error {
	var (
		ob      outbox
		removed bool
	)
	updated, err := s.roomRepo.Update(ctx, roomId, func(r *domain.Room) error {
		if r.HasMember(connId) {
			removed = true
			return s.removeMember(r, connId, false, &ob)
		}

		if _, ok := r.TakePending(connId); !ok {
			return ErrPendingNotFound
		}

		return nil
	})
	if err != nil {
		return err
	}

	if removed {
		ob.send(roomUpdate(updated), updated.MemberIds()...)
		s.flush(ctx, &ob)
		s.mirror(updated)
	}

	return nil
}

func (s service) removeMember(r *domain.Room, memberId string, explicit bool, ob *outbox) error {
	m, ok := r.RemoveMember(memberId)
	if !ok {
		return ErrMemberNotFound
	}
	s.systemMessage(r, m.Username+" left")

	if r.IsHost(m.Id) {
		if explicit {
			s.reassignHost(r, ob)
		} else {
			r.Ghost = &domain.HostGhost{
				MemberId: m.Id,
				UserId:   m.UserId,
				Username: m.Username,
				Verified: m.Verified,
				Since:    s.now(),
			}
			s.scheduleHostGrace(r.Id)
		}
	}

	if r.IsEmpty() && !r.Persistent {
		s.scheduleCleanup(r.Id)
	}

	return nil
}

// reassignHost hands authority to the longest-present member, or leaves the
// room without host when it is empty. It returns the number of join
// requests forwarded to the new host.
func (s service) reassignHost(r *domain.Room, ob *outbox) int {
	s.scheduler.Cancel(scheduler.HostGraceKey(r.Id))
	r.Ghost = nil

	next, ok := r.Successor()
	if !ok {
		r.HostId = ""
		return 0
	}

	r.HostId = next.Id
	s.systemMessage(r, next.Username+" is now the host")

	return s.forwardPending(r, ob)
}

func (s service) forwardPending(r *domain.Room, ob *outbox) int {
	for _, req := range r.Pending {
		ob.send(joinRequestReceived(req), r.HostId)
	}

	return len(r.Pending)
}
