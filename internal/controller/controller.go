package controller

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/sharetube/tuneverse/internal/broadcast"
	"github.com/sharetube/tuneverse/internal/directory"
	"github.com/sharetube/tuneverse/internal/domain"
	"github.com/sharetube/tuneverse/internal/identity"
	"github.com/sharetube/tuneverse/internal/repository/connection"
	"github.com/sharetube/tuneverse/internal/service/room"
	"github.com/sharetube/tuneverse/pkg/validator"
	"github.com/sharetube/tuneverse/pkg/wsconn"
	"github.com/sharetube/tuneverse/pkg/wsrouter"
)

type iRoomService interface {
	CreateRoom(context.Context, *room.CreateRoomParams) (room.CreateRoomResponse, error)
	JoinRoom(context.Context, *room.JoinRoomParams) (room.JoinRoomResponse, error)
	LeaveRoom(context.Context, *room.LeaveRoomParams) (room.LeaveRoomResponse, error)
	DisconnectMember(context.Context, *room.DisconnectMemberParams) error
	DecideJoin(context.Context, *room.DecideJoinParams) (room.DecideJoinResponse, error)
	GetRoom(context.Context, string) (domain.RoomSnapshot, error)
	ListRooms(context.Context) ([]directory.Listing, error)
	Play(context.Context, *room.PlayParams) (room.PlayerResponse, error)
	Pause(context.Context, *room.PauseParams) (room.PlayerResponse, error)
	Seek(context.Context, *room.SeekParams) (room.PlayerResponse, error)
	Skip(context.Context, *room.SkipParams) (room.PlayerResponse, error)
	Previous(context.Context, *room.PreviousParams) (room.PlayerResponse, error)
	EndTrack(context.Context, *room.EndTrackParams) (room.PlayerResponse, error)
	AddToQueue(context.Context, *room.AddToQueueParams) (room.AddToQueueResponse, error)
	Upvote(context.Context, *room.UpvoteParams) (room.UpvoteResponse, error)
	RemoveFromQueue(context.Context, *room.RemoveFromQueueParams) (room.PlayerResponse, error)
	SendChat(context.Context, *room.SendChatParams) (domain.ChatMessage, error)
	SendReaction(context.Context, *room.SendReactionParams) error
}

type iConnRepo interface {
	Add(conn connection.Conn, session connection.Session) error
	Remove(connId string) (connection.Session, error)
}

type iPublisher interface {
	Send(ctx context.Context, connId string, out *broadcast.Output) error
}

type iVerifier interface {
	Verify(ctx context.Context, token string) (identity.Identity, error)
}

type controller struct {
	roomService iRoomService
	connRepo    iConnRepo
	publisher   iPublisher
	verifier    iVerifier
	upgrader    websocket.Upgrader
	wsmux       *wsrouter.WSRouter
	validate    *validator.Validator
	connCfg     wsconn.Config
	logger      *slog.Logger
}

func NewController(
	roomService iRoomService,
	connRepo iConnRepo,
	publisher iPublisher,
	verifier iVerifier,
	connCfg wsconn.Config,
	logger *slog.Logger,
) *controller {
	c := &controller{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		roomService: roomService,
		connRepo:    connRepo,
		publisher:   publisher,
		verifier:    verifier,
		validate:    validator.NewValidator(),
		connCfg:     connCfg,
		logger:      logger,
	}
	c.wsmux = c.getWSRouter()

	return c
}
