package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sharetube/tuneverse/internal/repository/connection"
	"github.com/sharetube/tuneverse/pkg/wsconn"
)

var ErrConnNotFound = errors.New("connection not found")

type Output struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type Delivery struct {
	ConnId string
	// Err is nil when the message was enqueued.
	Err error
}

type Report struct {
	Type       string
	Deliveries []Delivery
}

func (r Report) Delivered() int {
	n := 0
	for _, d := range r.Deliveries {
		if d.Err == nil {
			n++
		}
	}

	return n
}

func (r Report) Failed() []Delivery {
	var failed []Delivery
	for _, d := range r.Deliveries {
		if d.Err != nil {
			failed = append(failed, d)
		}
	}

	return failed
}

type iConnRepo interface {
	GetConn(connId string) (connection.Conn, error)
}

// Publisher delivers at most once per connection and never blocks: a
// connection whose buffer is full is closed.
type Publisher struct {
	connRepo iConnRepo
	logger   *slog.Logger
}

func NewPublisher(connRepo iConnRepo, logger *slog.Logger) *Publisher {
	return &Publisher{
		connRepo: connRepo,
		logger:   logger,
	}
}

func (p *Publisher) Publish(ctx context.Context, connIds []string, out *Output) Report {
	report := Report{Type: out.Type, Deliveries: make([]Delivery, 0, len(connIds))}

	msg, err := json.Marshal(out)
	if err != nil {
		err = fmt.Errorf("failed to marshal %s: %w", out.Type, err)
		for _, connId := range connIds {
			report.Deliveries = append(report.Deliveries, Delivery{ConnId: connId, Err: err})
		}
		p.logger.ErrorContext(ctx, "failed to marshal output", "type", out.Type, "error", err)
		return report
	}

	for _, connId := range connIds {
		report.Deliveries = append(report.Deliveries, Delivery{ConnId: connId, Err: p.deliver(ctx, connId, msg)})
	}

	if failed := report.Failed(); len(failed) > 0 {
		p.logger.WarnContext(ctx, "broadcast partially failed",
			"type", out.Type,
			"delivered", report.Delivered(),
			"failed", len(failed),
		)
	}

	return report
}

func (p *Publisher) Send(ctx context.Context, connId string, out *Output) error {
	return p.Publish(ctx, []string{connId}, out).Deliveries[0].Err
}

func (p *Publisher) deliver(ctx context.Context, connId string, msg []byte) error {
	conn, err := p.connRepo.GetConn(connId)
	if err != nil {
		return ErrConnNotFound
	}

	err = conn.Send(msg)
	if errors.Is(err, wsconn.ErrBufferFull) {
		p.logger.WarnContext(ctx, "closing slow connection", "conn_id", connId)
		conn.Close()
	}

	return err
}
