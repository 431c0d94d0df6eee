package clocksync

import (
	"sync"
	"time"
)

type Estimator struct {
	mu      sync.RWMutex
	sample  Sample
	synced  bool
	syncAt  time.Time
	localFn func() time.Time
}

func NewEstimator() *Estimator {
	return &Estimator{localFn: time.Now}
}

func (e *Estimator) Set(s Sample) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.sample = s
	e.synced = true
	e.syncAt = e.localFn()
}

func (e *Estimator) Offset() time.Duration {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.sample.Offset
}

func (e *Estimator) Latency() time.Duration {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.sample.Latency
}

// Synced reports whether at least one sync round completed.
func (e *Estimator) Synced() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.synced
}

// ServerNow is the local time corrected by the estimated offset.
func (e *Estimator) ServerNow() time.Time {
	return e.localFn().Add(e.Offset())
}

// LastSync is the local time of the latest stored sample.
func (e *Estimator) LastSync() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.syncAt
}
