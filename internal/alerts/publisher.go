package alerts

import (
	"encoding/json"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/technosupport/ts-signal/internal/broker"
)

// Publisher pushes motion events onto a NATS subject for external consumers
// (recorders, notification services). The broker calls it off its lock;
// failures are logged and never propagate back into connection handling.
type Publisher struct {
	conn       *nats.Conn
	subject    string
	maxRetries int
	dedup      *Dedup // nil disables dedup
}

func NewPublisher(conn *nats.Conn, subject string, maxRetries int, dedup *Dedup) *Publisher {
	return &Publisher{
		conn:       conn,
		subject:    subject,
		maxRetries: maxRetries,
		dedup:      dedup,
	}
}

// Publish implements broker.MotionPublisher.
func (p *Publisher) Publish(event broker.MotionEvent) {
	if p.dedup != nil && p.dedup.IsDuplicate(DedupKey(event.CameraID, event.OccurredAt)) {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("Alerts: marshal error: %v", err)
		return
	}

	for i := 0; i <= p.maxRetries; i++ {
		if err = p.conn.Publish(p.subject, data); err == nil {
			return
		}
		// Linear backoff between attempts.
		time.Sleep(time.Duration(i*100) * time.Millisecond)
	}
	log.Printf("Alerts: publish to %s failed after %d retries: %v", p.subject, p.maxRetries, err)
}
