package room

import (
	"context"
	"fmt"

	"github.com/sharetube/tuneverse/internal/broadcast"
	"github.com/sharetube/tuneverse/internal/directory"
	"github.com/sharetube/tuneverse/internal/domain"
	"github.com/sharetube/tuneverse/internal/repository/connection"
)

type CreateRoomParams struct {
	ConnId          string
	Username        string
	Color           string
	AvatarUrl       *string
	RoomName        string
	Persistent      bool
	RequireApproval bool
}

type CreateRoomResponse struct {
	Room     domain.RoomSnapshot
	MemberId string
}

func (s service) CreateRoom(ctx context.Context, params *CreateRoomParams) (CreateRoomResponse, error) {
	session, err := s.getSession(params.ConnId)
	if err != nil {
		return CreateRoomResponse{}, err
	}

	username, err := s.resolveUsername(session, params.Username)
	if err != nil {
		return CreateRoomResponse{}, err
	}

	s.leaveCurrent(ctx, session, "")

	now := s.now()
	host := domain.Member{
		Id:        params.ConnId,
		UserId:    session.UserId,
		Username:  username,
		Color:     params.Color,
		AvatarUrl: params.AvatarUrl,
		JoinedAt:  now.UnixMilli(),
		Verified:  session.Verified,
	}

	name := params.RoomName
	if name == "" {
		name = fmt.Sprintf("%s's room", username)
	}

	created, err := s.roomRepo.Create(ctx, func(id string) *domain.Room {
		r := domain.NewRoom(id, host, domain.RoomOptions{
			Name:            name,
			Persistent:      params.Persistent,
			RequireApproval: params.RequireApproval,
		}, now)
		s.systemMessage(r, username+" created the room")
		return r
	})
	if err != nil {
		s.logger.InfoContext(ctx, "failed to create room", "error", err)
		return CreateRoomResponse{}, fmt.Errorf("failed to create room: %w", err)
	}

	s.connRepo.UpdateSession(params.ConnId, func(session *connection.Session) {
		session.RoomId = created.Id
		session.PendingRoomId = ""
		session.Username = username
	})
	s.mirror(created)

	s.logger.InfoContext(ctx, "room created", "room_id", created.Id, "host_id", host.Id, "persistent", created.Persistent)
	s.publisher.Send(ctx, params.ConnId, &broadcast.Output{
		Type:    broadcast.TypeRoomCreated,
		Payload: created.Snapshot(),
	})

	return CreateRoomResponse{
		Room:     created.Snapshot(),
		MemberId: host.Id,
	}, nil
}

func (s service) GetRoom(ctx context.Context, roomId string) (domain.RoomSnapshot, error) {
	r, err := s.roomRepo.Get(ctx, roomId)
	if err != nil {
		return domain.RoomSnapshot{}, err
	}

	return r.Snapshot(), nil
}

func (s service) ListRooms(ctx context.Context) ([]directory.Listing, error) {
	listings, err := s.directory.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}

	return listings, nil
}

// LiveListings lists every room in the registry. The directory mirror uses
// it to resync the discovery store.
func (s service) LiveListings(ctx context.Context) ([]directory.Listing, error) {
	rooms, err := s.roomRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list live rooms: %w", err)
	}

	listings := make([]directory.Listing, 0, len(rooms))
	for _, r := range rooms {
		listings = append(listings, s.listing(r))
	}

	return listings, nil
}
