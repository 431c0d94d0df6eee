package clocksync

import "time"

const StatusPlaying = "PLAYING"

// PlaybackView is the part of a room's playback state needed to project the
// position.
type PlaybackView struct {
	Status          string  `json:"status"`
	CurrentTrackId  *string `json:"current_track_id"`
	PositionSeconds float64 `json:"position_seconds"`
	LastUpdated     int64   `json:"last_updated"`
}

// ExpectedPosition projects v to serverNow. Only a playing state advances.
func ExpectedPosition(v PlaybackView, serverNow time.Time) float64 {
	if v.Status != StatusPlaying {
		return v.PositionSeconds
	}

	elapsed := float64(serverNow.UnixMilli()-v.LastUpdated) / 1000
	if elapsed < 0 {
		elapsed = 0
	}

	return v.PositionSeconds + elapsed
}
