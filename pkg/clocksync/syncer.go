package clocksync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var ErrNoSamples = errors.New("no clock samples collected")

// Transport performs one request/response exchange with the server.
type Transport interface {
	Exchange(ctx context.Context, req Request) (Response, error)
}

type SyncerConfig struct {
	Samples  int
	Spacing  time.Duration
	Interval time.Duration
	// Timeout bounds a single exchange.
	Timeout time.Duration
}

func DefaultSyncerConfig() SyncerConfig {
	return SyncerConfig{
		Samples:  5,
		Spacing:  100 * time.Millisecond,
		Interval: 30 * time.Second,
		Timeout:  2 * time.Second,
	}
}

func (c SyncerConfig) Validate() error {
	switch {
	case c.Samples <= 0:
		return errors.New("samples must be positive")
	case c.Spacing < 0:
		return errors.New("spacing must not be negative")
	case c.Interval <= 0:
		return errors.New("interval must be positive")
	case c.Timeout <= 0:
		return errors.New("timeout must be positive")
	}

	return nil
}

type Syncer struct {
	transport Transport
	estimator *Estimator
	cfg       SyncerConfig
	logger    *slog.Logger
	now       func() time.Time
}

func NewSyncer(transport Transport, estimator *Estimator, cfg SyncerConfig, logger *slog.Logger) *Syncer {
	return &Syncer{
		transport: transport,
		estimator: estimator,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// SyncOnce collects a round of samples and stores the lowest-latency one in
// the estimator. Failed exchanges are skipped.
func (s *Syncer) SyncOnce(ctx context.Context) (Sample, error) {
	samples := make([]Sample, 0, s.cfg.Samples)
	for i := 0; i < s.cfg.Samples; i++ {
		if i > 0 && s.cfg.Spacing > 0 {
			select {
			case <-ctx.Done():
				return Sample{}, ctx.Err()
			case <-time.After(s.cfg.Spacing):
			}
		}

		sample, err := s.sample(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return Sample{}, ctx.Err()
			}
			s.logger.DebugContext(ctx, "clock sample failed", "error", err)
			continue
		}
		samples = append(samples, sample)
	}

	best, ok := Best(samples)
	if !ok {
		return Sample{}, ErrNoSamples
	}
	s.estimator.Set(best)
	s.logger.InfoContext(ctx, "clock synced",
		"offset_ms", best.Offset.Milliseconds(),
		"latency_ms", best.Latency.Milliseconds(),
		"samples", len(samples),
	)

	return best, nil
}

func (s *Syncer) sample(ctx context.Context) (Sample, error) {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	resp, err := s.transport.Exchange(ctx, Request{ClientSendTime: s.now().UnixMilli()})
	if err != nil {
		return Sample{}, fmt.Errorf("failed to exchange: %w", err)
	}

	return Measure(resp, s.now()), nil
}

// Run syncs immediately and then every Interval until ctx is done.
func (s *Syncer) Run(ctx context.Context) error {
	if err := s.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid syncer config: %w", err)
	}

	if _, err := s.SyncOnce(ctx); err != nil && ctx.Err() == nil {
		s.logger.WarnContext(ctx, "clock sync failed", "error", err)
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.SyncOnce(ctx); err != nil && ctx.Err() == nil {
				s.logger.WarnContext(ctx, "clock sync failed", "error", err)
			}
		}
	}
}
