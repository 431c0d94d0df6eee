// Package clocksync estimates the offset between a client clock and the
// server clock and keeps local playback aligned with the room's playback
// state.
package clocksync

import (
	"time"
)

// Request is sent by the client. Times are epoch milliseconds.
type Request struct {
	ClientSendTime int64 `json:"client_send_time" validate:"required,gt=0"`
}

type Response struct {
	ClientSendTime    int64 `json:"client_send_time"`
	ServerReceiveTime int64 `json:"server_receive_time"`
	ServerSendTime    int64 `json:"server_send_time"`
}

// Respond echoes req with the server's receive and send times.
func Respond(req Request, receivedAt, sentAt time.Time) Response {
	return Response{
		ClientSendTime:    req.ClientSendTime,
		ServerReceiveTime: receivedAt.UnixMilli(),
		ServerSendTime:    sentAt.UnixMilli(),
	}
}

type Sample struct {
	// Offset is added to the local clock to get server time.
	Offset  time.Duration
	Latency time.Duration
}

// Measure computes a sample from resp received at clientReceive, using the
// midpoint estimator.
func Measure(resp Response, clientReceive time.Time) Sample {
	cr := clientReceive.UnixMilli()
	rtt := cr - resp.ClientSendTime
	offset := float64((resp.ServerReceiveTime-resp.ClientSendTime)+(resp.ServerSendTime-cr)) / 2
	latency := float64(rtt) / 2

	return Sample{
		Offset:  time.Duration(offset * float64(time.Millisecond)),
		Latency: time.Duration(latency * float64(time.Millisecond)),
	}
}

// Best returns the sample with the lowest latency.
func Best(samples []Sample) (Sample, bool) {
	if len(samples) == 0 {
		return Sample{}, false
	}

	best := samples[0]
	for _, s := range samples[1:] {
		if s.Latency < best.Latency {
			best = s
		}
	}

	return best, true
}
