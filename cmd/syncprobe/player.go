package main

import (
	"sync"
	"time"
)

// simPlayer stands in for a media element: its position advances with wall
// time at the current rate while playing.
type simPlayer struct {
	mu      sync.Mutex
	base    float64
	baseAt  time.Time
	rate    float64
	playing bool
	now     func() time.Time
}

func newSimPlayer(now func() time.Time) *simPlayer {
	return &simPlayer{
		baseAt: now(),
		rate:   1,
		now:    now,
	}
}

func (p *simPlayer) position() float64 {
	if !p.playing {
		return p.base
	}

	return p.base + p.now().Sub(p.baseAt).Seconds()*p.rate
}

func (p *simPlayer) rebase() {
	p.base = p.position()
	p.baseAt = p.now()
}

func (p *simPlayer) Position() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.position()
}

func (p *simPlayer) SetRate(rate float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.rebase()
	p.rate = rate
}

func (p *simPlayer) SeekTo(position float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.base = position
	p.baseAt = p.now()
}

func (p *simPlayer) SetPlaying(playing bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.rebase()
	p.playing = playing
}

func (p *simPlayer) Rate() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.rate
}
