// Command syncprobe joins a room, keeps its clock in sync with the server and
// follows the room's playback with a simulated player, printing the drift
// corrections it applies.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/sharetube/tuneverse/pkg/clocksync"
	"github.com/sharetube/tuneverse/pkg/syncclient"
)

type roomUpdate struct {
	Id       string                 `json:"id"`
	Version  int                    `json:"version"`
	Playback clocksync.PlaybackView `json:"playback"`
}

type joinResult struct {
	RoomId string      `json:"room_id"`
	Room   *roomUpdate `json:"room"`
}

type probeConfig struct {
	server   string
	token    string
	roomId   string
	username string
	interval time.Duration
	tick     time.Duration
}

func (c probeConfig) validate() error {
	switch {
	case c.roomId == "":
		return errors.New("--room is required")
	case c.interval <= 0:
		return errors.New("--interval must be positive")
	case c.tick <= 0:
		return errors.New("--tick must be positive")
	}

	return nil
}

func main() {
	var cfg probeConfig
	pflag.StringVar(&cfg.server, "server", "ws://localhost:80/api/v1/ws", "Websocket endpoint")
	pflag.StringVar(&cfg.token, "token", "", "Identity token")
	pflag.StringVar(&cfg.roomId, "room", "", "Room to join")
	pflag.StringVar(&cfg.username, "username", "syncprobe", "Username when the server accepts anonymous connections")
	pflag.DurationVar(&cfg.interval, "interval", 30*time.Second, "Clock resync interval")
	pflag.DurationVar(&cfg.tick, "tick", 500*time.Millisecond, "Drift check interval")
	verbose := pflag.Bool("verbose", false, "Debug logging")
	pflag.Parse()

	if err := cfg.validate(); err != nil {
		log.Fatal(err)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && ctx.Err() == nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cfg probeConfig, logger *slog.Logger) error {
	endpoint, err := url.Parse(cfg.server)
	if err != nil {
		return fmt.Errorf("invalid server url: %w", err)
	}
	if cfg.token != "" {
		q := endpoint.Query()
		q.Set("token", cfg.token)
		endpoint.RawQuery = q.Encode()
	}

	client, err := syncclient.Dial(ctx, endpoint.String(), nil, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	estimator := clocksync.NewEstimator()
	player := newSimPlayer(time.Now)
	reconcilerCfg := clocksync.DefaultReconcilerConfig()
	reconcilerCfg.Tick = cfg.tick
	reconciler := clocksync.NewReconciler(estimator, clocksync.NewDriftController(), player, reconcilerCfg, logger)

	follow := func(r *roomUpdate) {
		if r == nil {
			return
		}
		player.SetPlaying(r.Playback.Status == clocksync.StatusPlaying)
		c := reconciler.SetView(r.Playback)

		var lastSync string
		if estimator.Synced() {
			lastSync = time.Since(estimator.LastSync()).Round(time.Second).String() + " ago"
		} else {
			lastSync = "never"
		}
		fmt.Printf("room=%s version=%d status=%s expected=%.2fs local=%.2fs\n",
			r.Id, r.Version, r.Playback.Status,
			clocksync.ExpectedPosition(r.Playback, estimator.ServerNow()), player.Position())
		fmt.Printf("  offset=%s latency=%s last_sync=%s drift=%.2fs correction=%s rate=%.2f\n",
			estimator.Offset(), estimator.Latency(), lastSync, c.Drift, c.Action, player.Rate())
	}

	client.On("ROOM_JOINED", func(payload json.RawMessage) {
		var res joinResult
		if err := json.Unmarshal(payload, &res); err == nil {
			follow(res.Room)
		}
	})
	client.On("ROOM_UPDATE", func(payload json.RawMessage) {
		var r roomUpdate
		if err := json.Unmarshal(payload, &r); err == nil {
			follow(&r)
		}
	})
	client.On("JOIN_PENDING", func(json.RawMessage) {
		fmt.Println("waiting for host approval")
	})
	client.On("JOIN_REJECTED", func(json.RawMessage) {
		fmt.Println("join rejected")
		client.Close()
	})
	client.On("ERROR", func(payload json.RawMessage) {
		fmt.Printf("error: %s\n", payload)
	})

	errCh := make(chan error, 1)
	go func() { errCh <- client.Run(ctx) }()

	if err := client.Send(ctx, "ROOM_JOIN", map[string]any{"room_id": cfg.roomId, "username": cfg.username}); err != nil {
		return fmt.Errorf("failed to join: %w", err)
	}

	syncerCfg := clocksync.DefaultSyncerConfig()
	syncerCfg.Interval = cfg.interval
	syncer := clocksync.NewSyncer(client, estimator, syncerCfg, logger)
	go func() {
		if err := syncer.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("clock sync stopped", "error", err)
		}
	}()
	go reconciler.Run(ctx)

	select {
	case err := <-errCh:
		return err
	case <-client.Done():
		return nil
	}
}
