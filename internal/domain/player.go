package domain

import (
	"errors"
	"time"
)

var ErrNothingToPlay = errors.New("nothing to play")

type PlaybackStatus string

const (
	StatusIdle    PlaybackStatus = "IDLE"
	StatusPlaying PlaybackStatus = "PLAYING"
	StatusPaused  PlaybackStatus = "PAUSED"
)

// PlaybackState is anchored at LastUpdated (epoch ms). While PLAYING the
// real position is PositionSeconds plus the time elapsed since then.
type PlaybackState struct {
	Status          PlaybackStatus `json:"status"`
	CurrentTrackId  *string        `json:"current_track_id"`
	PositionSeconds float64        `json:"position_seconds"`
	LastUpdated     int64          `json:"last_updated"`
	Source          string         `json:"source"`
	Title           string         `json:"title"`
	Thumbnail       string         `json:"thumbnail"`
}

// NowPlaying is the track and presentation metadata loaded into playback.
type NowPlaying struct {
	TrackId   string
	Source    string
	Title     string
	Thumbnail string
}

type PlaybackPatch struct {
	Status   *PlaybackStatus
	Position *float64
	Track    *NowPlaying
	// Clear unloads the current track and its presentation fields.
	Clear bool
}

func (p PlaybackState) HasTrack() bool {
	return p.CurrentTrackId != nil
}

func (p PlaybackState) IsTrack(trackId string) bool {
	return p.CurrentTrackId != nil && *p.CurrentTrackId == trackId
}

func (p PlaybackState) PositionAt(now time.Time) float64 {
	if p.Status != StatusPlaying {
		return p.PositionSeconds
	}
	elapsed := float64(now.UnixMilli()-p.LastUpdated) / 1000
	if elapsed < 0 {
		elapsed = 0
	}

	return p.PositionSeconds + elapsed
}

// Apply merges patch onto p and re-anchors it at now. Fields the patch
// leaves nil keep their value; a running position is first folded forward
// so it stays continuous across the new anchor.
func (p *PlaybackState) Apply(patch PlaybackPatch, now time.Time) {
	p.PositionSeconds = p.PositionAt(now)

	if patch.Clear {
		p.CurrentTrackId = nil
		p.Source, p.Title, p.Thumbnail = "", "", ""
		p.PositionSeconds = 0
	}
	if patch.Track != nil {
		trackId := patch.Track.TrackId
		p.CurrentTrackId = &trackId
		p.Source = patch.Track.Source
		p.Title = patch.Track.Title
		p.Thumbnail = patch.Track.Thumbnail
	}
	if patch.Position != nil {
		p.PositionSeconds = *patch.Position
	}
	if patch.Status != nil {
		p.Status = *patch.Status
	}
	p.LastUpdated = now.UnixMilli()
}

func status(s PlaybackStatus) *PlaybackStatus {
	return &s
}

func position(v float64) *float64 {
	return &v
}

// Play starts or resumes playback. A trackId different from the current one
// loads that track, taking its metadata from the queue when it is queued
// there.
func (r *Room) Play(trackId string, pos *float64, now time.Time) error {
	patch := PlaybackPatch{Status: status(StatusPlaying), Position: pos}

	if trackId != "" && !r.Playback.IsTrack(trackId) {
		np := NowPlaying{TrackId: trackId}
		if item, ok := r.takeQueuedTrack(trackId); ok {
			np = item.NowPlaying()
		}
		patch.Track = &np
		if pos == nil {
			patch.Position = position(0)
		}
	} else if !r.Playback.HasTrack() {
		return ErrNothingToPlay
	}

	r.Playback.Apply(patch, now)

	return nil
}

func (r *Room) Pause(pos *float64, now time.Time) error {
	if !r.Playback.HasTrack() {
		return ErrNothingToPlay
	}
	r.Playback.Apply(PlaybackPatch{Status: status(StatusPaused), Position: pos}, now)

	return nil
}

func (r *Room) Seek(pos float64, now time.Time) error {
	if !r.Playback.HasTrack() {
		return ErrNothingToPlay
	}
	r.Playback.Apply(PlaybackPatch{Position: &pos}, now)

	return nil
}

// Previous restarts the current track. There is no track history.
func (r *Room) Previous(now time.Time) error {
	if !r.Playback.HasTrack() {
		return ErrNothingToPlay
	}
	r.Playback.Apply(PlaybackPatch{Position: position(0)}, now)

	return nil
}

// Skip moves the queue head into playback at position 0, or goes IDLE when
// the queue is empty. It reports whether a new track was loaded.
func (r *Room) Skip(now time.Time) bool {
	item, ok := r.popQueue()
	if !ok {
		r.Playback.Apply(PlaybackPatch{Status: status(StatusIdle), Clear: true}, now)
		return false
	}

	np := item.NowPlaying()
	r.Playback.Apply(PlaybackPatch{
		Status:   status(StatusPlaying),
		Position: position(0),
		Track:    &np,
	}, now)

	return true
}

// Ended advances playback when trackId names the current track. An empty
// trackId means the current one. Reports for another track, or with nothing
// loaded, are ignored and return false.
func (r *Room) Ended(trackId string, now time.Time) bool {
	if !r.Playback.HasTrack() {
		return false
	}
	if trackId != "" && !r.Playback.IsTrack(trackId) {
		return false
	}
	r.Skip(now)

	return true
}
