package clocksync

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Player is the local presentation surface being kept in sync.
type Player interface {
	Position() float64
	SetRate(rate float64)
	SeekTo(position float64)
}

type ReconcilerConfig struct {
	Tick time.Duration
	// Settle is how long checks pause after a hard seek.
	Settle time.Duration
}

func DefaultReconcilerConfig() ReconcilerConfig {
	return ReconcilerConfig{
		Tick:   500 * time.Millisecond,
		Settle: time.Second,
	}
}

// Reconciler repeatedly compares the player against the projected room
// position and applies the drift controller's correction.
type Reconciler struct {
	mu          sync.Mutex
	view        PlaybackView
	hasView     bool
	rate        float64
	settleUntil time.Time

	estimator  *Estimator
	controller DriftController
	player     Player
	cfg        ReconcilerConfig
	logger     *slog.Logger
	now        func() time.Time
}

func NewReconciler(estimator *Estimator, controller DriftController, player Player, cfg ReconcilerConfig, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		rate:       1,
		estimator:  estimator,
		controller: controller,
		player:     player,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// SetView replaces the reference playback state and checks immediately.
func (r *Reconciler) SetView(v PlaybackView) Correction {
	r.mu.Lock()
	r.view = v
	r.hasView = true
	r.mu.Unlock()

	return r.Check()
}

// Check evaluates the drift once and applies the correction.
func (r *Reconciler) Check() Correction {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.hasView || r.view.CurrentTrackId == nil || r.now().Before(r.settleUntil) {
		return Correction{Action: ActionNone, Rate: r.rate}
	}

	expected := ExpectedPosition(r.view, r.estimator.ServerNow())
	c := r.controller.Evaluate(expected, r.player.Position())

	if c.Action == ActionSeek {
		r.logger.Info("hard seek", "drift", c.Drift, "seek_to", c.SeekTo)
		r.player.SeekTo(c.SeekTo)
		r.settleUntil = r.now().Add(r.cfg.Settle)
	}
	if c.Rate != r.rate {
		r.logger.Debug("playback rate changed", "drift", c.Drift, "rate", c.Rate)
		r.player.SetRate(c.Rate)
		r.rate = c.Rate
	}

	return c
}

func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Check()
		}
	}
}
