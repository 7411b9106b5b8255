package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"ms-admission/internal/models"
)

type Producer struct {
	Writer *kafka.Writer
	Topic  string
}

func NewProducer(brokers []string, topic string) *Producer {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers: brokers,
		Topic:   topic,
	})
	return &Producer{Writer: writer, Topic: topic}
}

// ScanEvent is the wire envelope streamed for every decided scan. Downstream
// reporting sums these; the gate-local stats stay authoritative per session.
type ScanEvent struct {
	Seq        int64     `json:"seq,omitempty"`
	TicketID   string    `json:"ticket_id,omitempty"`
	EventID    string    `json:"event_id"`
	GateID     string    `json:"gate_id"`
	ScannedAt  time.Time `json:"scanned_at"`
	Outcome    string    `json:"outcome"`
	Admitted   bool      `json:"admitted"`
	HolderName string    `json:"holder_name,omitempty"`
}

// PublishScanOutcome streams one decided scan. Keyed by ticket ID so all
// scans of one ticket land in the same partition, in order.
func (p *Producer) PublishScanOutcome(rec models.ScanRecord, outcome models.Outcome) error {
	event := ScanEvent{
		Seq:        rec.Seq,
		TicketID:   rec.TicketID,
		EventID:    rec.EventID,
		GateID:     rec.GateID,
		ScannedAt:  rec.ScannedAt,
		Outcome:    rec.Outcome,
		Admitted:   outcome.Admitted,
		HolderName: outcome.HolderName,
	}
	msgBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}

	key := rec.TicketID
	if key == "" {
		key = rec.GateID
	}

	return p.Writer.WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(key),
			Value: msgBytes,
		},
	)
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
