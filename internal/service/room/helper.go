package room

import (
	"github.com/google/uuid"
	"github.com/sharetube/tuneverse/internal/directory"
	"github.com/sharetube/tuneverse/internal/domain"
	"github.com/sharetube/tuneverse/internal/repository/connection"
)

func (s service) getSession(connId string) (connection.Session, error) {
	session, err := s.connRepo.GetSession(connId)
	if err != nil {
		return connection.Session{}, ErrNotConnected
	}

	return session, nil
}

func (s service) getRoomId(connId string) (string, error) {
	session, err := s.getSession(connId)
	if err != nil {
		return "", err
	}

	if session.RoomId == "" {
		return "", ErrNotInRoom
	}

	return session.RoomId, nil
}

func (s service) resolveUsername(session connection.Session, requested string) (string, error) {
	if session.Verified {
		return session.Username, nil
	}

	if requested == "" {
		return "", ErrUsernameRequired
	}

	return requested, nil
}

func (s service) checkIfMember(r *domain.Room, memberId string) error {
	if !r.HasMember(memberId) {
		return ErrMemberNotFound
	}

	return nil
}

func (s service) checkIfHost(r *domain.Room, memberId string) error {
	if err := s.checkIfMember(r, memberId); err != nil {
		return err
	}

	if !r.IsHost(memberId) {
		return ErrPermissionDenied
	}

	return nil
}

func (s service) systemMessage(r *domain.Room, text string) {
	r.AppendMessage(domain.ChatMessage{
		Id:        uuid.NewString(),
		Text:      text,
		Timestamp: s.now().UnixMilli(),
		IsSystem:  true,
	}, s.cfg.ChatHistoryLimit)
}

func (s service) listing(r *domain.Room) directory.Listing {
	participants := make([]string, 0, len(r.Members))
	for _, m := range r.Members {
		participants = append(participants, m.Username)
	}

	var hostUsername string
	if host, ok := r.Host(); ok {
		hostUsername = host.Username
	} else if r.Ghost != nil {
		hostUsername = r.Ghost.Username
	}

	return directory.Listing{
		Id:               r.Id,
		Name:             r.Name,
		HostUsername:     hostUsername,
		ParticipantCount: len(participants),
		Participants:     participants,
		Persistent:       r.Persistent,
		UpdatedAt:        s.now(),
		Version:          r.Version,
	}
}

func (s service) mirror(r *domain.Room) {
	s.directory.Upsert(s.listing(r))
}

func (s service) clearSession(connId, roomId string) {
	s.connRepo.UpdateSession(connId, func(session *connection.Session) {
		if session.RoomId == roomId {
			session.RoomId = ""
		}
		if session.PendingRoomId == roomId {
			session.PendingRoomId = ""
		}
	})
}
