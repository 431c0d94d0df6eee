package clocksync

import "math"

type Action int

const (
	ActionNone Action = iota
	ActionNudge
	ActionSeek
)

func (a Action) String() string {
	switch a {
	case ActionNudge:
		return "nudge"
	case ActionSeek:
		return "seek"
	default:
		return "none"
	}
}

type Correction struct {
	Action Action
	// Rate is the playback rate to apply; 1 is normal speed.
	Rate   float64
	SeekTo float64
	// Drift is expected minus actual position in seconds. Positive means
	// the local player is behind.
	Drift float64
}

type DriftController struct {
	SeekThreshold  float64
	NudgeThreshold float64
	NudgeRate      float64
}

func NewDriftController() DriftController {
	return DriftController{
		SeekThreshold:  3.0,
		NudgeThreshold: 0.3,
		NudgeRate:      0.05,
	}
}

func (c DriftController) Evaluate(expected, actual float64) Correction {
	drift := expected - actual
	abs := math.Abs(drift)

	switch {
	case abs > c.SeekThreshold:
		return Correction{Action: ActionSeek, Rate: 1, SeekTo: expected, Drift: drift}
	case abs > c.NudgeThreshold:
		rate := 1 + c.NudgeRate
		if drift < 0 {
			rate = 1 - c.NudgeRate
		}
		return Correction{Action: ActionNudge, Rate: rate, Drift: drift}
	default:
		return Correction{Action: ActionNone, Rate: 1, Drift: drift}
	}
}
