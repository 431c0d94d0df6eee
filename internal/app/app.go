package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sharetube/tuneverse/internal/broadcast"
	"github.com/sharetube/tuneverse/internal/controller"
	"github.com/sharetube/tuneverse/internal/directory"
	"github.com/sharetube/tuneverse/internal/identity"
	conninmemory "github.com/sharetube/tuneverse/internal/repository/connection/inmemory"
	dirpostgres "github.com/sharetube/tuneverse/internal/repository/directory/postgres"
	dirredis "github.com/sharetube/tuneverse/internal/repository/directory/redis"
	roominmemory "github.com/sharetube/tuneverse/internal/repository/room/inmemory"
	"github.com/sharetube/tuneverse/internal/scheduler"
	"github.com/sharetube/tuneverse/internal/service/room"
	"github.com/sharetube/tuneverse/pkg/ctxlogger"
	"github.com/sharetube/tuneverse/pkg/randstr"
	"github.com/sharetube/tuneverse/pkg/redisclient"
	"github.com/sharetube/tuneverse/pkg/wsconn"
)

const (
	DirectoryNone     = "none"
	DirectoryRedis    = "redis"
	DirectoryPostgres = "postgres"

	roomIdLetters = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	// listings not refreshed within the TTL expire; the resync runs well
	// inside it so idle rooms stay listed
	directoryListingTTL     = 24 * time.Hour
	directoryResyncInterval = time.Hour
	directoryBuffer         = 1024
)

type identityVerifier interface {
	Verify(ctx context.Context, token string) (identity.Identity, error)
}

type AppConfig struct {
	Secret           string        `json:"-"`
	Host             string        `json:"host"`
	Port             int           `json:"port"`
	LogLevel         string        `json:"log_level"`
	MembersLimit     int           `json:"members_limit"`
	QueueLimit       int           `json:"queue_limit"`
	ChatHistoryLimit int           `json:"chat_history_limit"`
	HostGracePeriod  time.Duration `json:"host_grace_period"`
	RoomCleanupDelay time.Duration `json:"room_cleanup_delay"`
	SendBuffer       int           `json:"send_buffer"`
	DirectoryDriver  string        `json:"directory_driver"`
	RedisPort        int           `json:"redis_port"`
	RedisHost        string        `json:"redis_host"`
	RedisPassword    string        `json:"-"`
	PostgresDSN      string        `json:"-"`
}

func (cfg *AppConfig) Validate() error {
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		return fmt.Errorf("invalid log level %q", cfg.LogLevel)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if cfg.MembersLimit < 1 {
		return fmt.Errorf("members limit must be greater than 0")
	}
	if cfg.QueueLimit < 1 {
		return fmt.Errorf("queue limit must be greater than 0")
	}
	if cfg.ChatHistoryLimit < 1 {
		return fmt.Errorf("chat history limit must be greater than 0")
	}
	if cfg.HostGracePeriod <= 0 {
		return fmt.Errorf("host grace period must be positive")
	}
	if cfg.RoomCleanupDelay <= 0 {
		return fmt.Errorf("room cleanup delay must be positive")
	}
	if cfg.SendBuffer < 1 {
		return fmt.Errorf("send buffer must be greater than 0")
	}

	switch cfg.DirectoryDriver {
	case DirectoryNone, DirectoryRedis:
	case DirectoryPostgres:
		if cfg.PostgresDSN == "" {
			return fmt.Errorf("postgres dsn is required for the postgres directory driver")
		}
	default:
		return fmt.Errorf("unknown directory driver %q", cfg.DirectoryDriver)
	}

	return nil
}

func newLogger(level string) *slog.Logger {
	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		log.Fatal(err)
	}

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}),
	}

	return slog.New(&h)
}

// newDirectoryStore opens the configured discovery store. The returned func
// releases it.
func newDirectoryStore(ctx context.Context, cfg *AppConfig, logger *slog.Logger) (directory.Store, func(), error) {
	switch cfg.DirectoryDriver {
	case DirectoryRedis:
		rc, err := redisclient.NewRedisClient(ctx, &redisclient.Config{
			Port:     cfg.RedisPort,
			Host:     cfg.RedisHost,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create redis client: %w", err)
		}
		return dirredis.NewRepo(rc, directoryListingTTL, logger), func() { rc.Close() }, nil
	case DirectoryPostgres:
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create postgres pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to ping postgres: %w", err)
		}
		store := dirpostgres.NewRepo(pool, logger)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, pool.Close, nil
	default:
		return directory.Noop{}, func() {}, nil
	}
}

func Run(ctx context.Context, cfg *AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := newLogger(cfg.LogLevel)

	store, closeStore, err := newDirectoryStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	var verifier identityVerifier = identity.Anonymous{}
	if cfg.Secret != "" {
		verifier = identity.NewJWTVerifier(cfg.Secret)
	} else {
		logger.Warn("no secret configured, accepting anonymous connections")
	}

	connRepo := conninmemory.NewRepo(logger)
	roomRepo := roominmemory.NewRepo(randstr.New([]byte(roomIdLetters)), logger)
	publisher := broadcast.NewPublisher(connRepo, logger)
	sched := scheduler.New(logger)
	defer sched.Stop()
	mirror := directory.NewMirror(store, directoryBuffer, logger)

	roomService := room.NewService(roomRepo, connRepo, publisher, sched, mirror, &room.Config{
		MembersLimit:     cfg.MembersLimit,
		QueueLimit:       cfg.QueueLimit,
		ChatHistoryLimit: cfg.ChatHistoryLimit,
		HostGracePeriod:  cfg.HostGracePeriod,
		RoomCleanupDelay: cfg.RoomCleanupDelay,
	}, logger)
	mirror.SetResync(directoryResyncInterval, roomService.LiveListings)

	connCfg := wsconn.DefaultConfig()
	connCfg.BufferSize = cfg.SendBuffer

	controller := controller.NewController(roomService, connRepo, publisher, verifier, connCfg, logger)
	server := &http.Server{Addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), Handler: controller.GetMux()}

	// graceful shutdown
	serverCtx, serverStopCtx := context.WithCancel(ctx)
	defer serverStopCtx()

	go mirror.Run(serverCtx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		select {
		case <-sig:
		case <-serverCtx.Done():
			return
		}

		shutdownCtx, c := context.WithTimeout(serverCtx, 30*time.Second)
		defer c()

		go func() {
			<-shutdownCtx.Done()
			if shutdownCtx.Err() == context.DeadlineExceeded {
				log.Fatal("graceful shutdown timed out.. forcing exit.")
			}
		}()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Fatal(err)
		}
		serverStopCtx()
	}()

	logger.InfoContext(serverCtx, "starting server", "address", server.Addr, "directory", cfg.DirectoryDriver)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	<-serverCtx.Done()

	return nil
}
