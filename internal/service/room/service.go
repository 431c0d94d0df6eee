package room

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sharetube/tuneverse/internal/broadcast"
	"github.com/sharetube/tuneverse/internal/directory"
	"github.com/sharetube/tuneverse/internal/domain"
	"github.com/sharetube/tuneverse/internal/repository/connection"
	roomrepo "github.com/sharetube/tuneverse/internal/repository/room"
	"github.com/sharetube/tuneverse/internal/scheduler"
)

var (
	ErrRoomNotFound        = roomrepo.ErrRoomNotFound
	ErrItemNotFound        = domain.ErrItemNotFound
	ErrNothingToPlay       = domain.ErrNothingToPlay
	ErrMemberNotFound      = errors.New("member not found")
	ErrPendingNotFound     = errors.New("join request not found")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrNotInRoom           = errors.New("not in a room")
	ErrNotConnected        = errors.New("connection not registered")
	ErrUsernameRequired    = errors.New("username is required")
	ErrMembersLimitReached = errors.New("members limit reached")
	ErrQueueLimitReached   = errors.New("queue limit reached")
	ErrAlreadyPending      = errors.New("join request already pending")

	// errNoChange aborts a mutation that would not change anything, so
	// nothing is committed or published.
	errNoChange   = errors.New("no change")
	errStaleTimer = errors.New("stale timer")
)

type iRoomRepo interface {
	Create(ctx context.Context, build func(id string) *domain.Room) (*domain.Room, error)
	Get(ctx context.Context, id string) (*domain.Room, error)
	Update(ctx context.Context, id string, fn func(*domain.Room) error) (*domain.Room, error)
	DeleteIf(ctx context.Context, id string, cond func(*domain.Room) bool) (*domain.Room, bool, error)
	List(ctx context.Context) ([]*domain.Room, error)
}

type iConnRepo interface {
	GetSession(connId string) (connection.Session, error)
	UpdateSession(connId string, fn func(*connection.Session)) error
}

type iPublisher interface {
	Publish(ctx context.Context, connIds []string, out *broadcast.Output) broadcast.Report
	Send(ctx context.Context, connId string, out *broadcast.Output) error
}

type iScheduler interface {
	Schedule(key scheduler.Key, after time.Duration, fn func(token uint64)) uint64
	Cancel(key scheduler.Key) bool
	Release(key scheduler.Key, token uint64) bool
}

type iDirectory interface {
	Upsert(listing directory.Listing)
	Remove(roomId string)
	List(ctx context.Context) ([]directory.Listing, error)
}

type Config struct {
	MembersLimit     int
	QueueLimit       int
	ChatHistoryLimit int
	HostGracePeriod  time.Duration
	RoomCleanupDelay time.Duration
}

type service struct {
	roomRepo  iRoomRepo
	connRepo  iConnRepo
	publisher iPublisher
	scheduler iScheduler
	directory iDirectory
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(
	roomRepo iRoomRepo,
	connRepo iConnRepo,
	publisher iPublisher,
	scheduler iScheduler,
	directory iDirectory,
	cfg *Config,
	logger *slog.Logger,
) *service {
	return &service{
		roomRepo:  roomRepo,
		connRepo:  connRepo,
		publisher: publisher,
		scheduler: scheduler,
		directory: directory,
		cfg:       *cfg,
		logger:    logger,
		now:       time.Now,
	}
}
