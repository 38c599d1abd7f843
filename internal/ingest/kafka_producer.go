package ingest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/tripview/internal/models"
)

// Event is one reconciler lifecycle event published for downstream
// consumers (fleet view aggregation, analytics).
type Event struct {
	Type             string        `json:"type"` // snapshot_applied, stop_completed
	DriverID         string        `json:"driver_id"`
	StopID           string        `json:"stop_id,omitempty"`
	Signature        string        `json:"signature,omitempty"`
	StopCount        int           `json:"stop_count"`
	CurrentStopIndex int           `json:"current_stop_index"`
	Position         *models.Coord `json:"position,omitempty"`
	OccurredAt       time.Time     `json:"occurred_at"`
}

const (
	EventSnapshotApplied = "snapshot_applied"
	EventStopCompleted   = "stop_completed"
)

type KafkaProducer struct {
	writer *kafka.Writer
}

func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	w := kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: topic, Balancer: &kafka.LeastBytes{}})
	return &KafkaProducer{writer: w}
}

// Publish writes one event keyed by driver ID. Best-effort; callers log
// and continue on error.
func (k *KafkaProducer) Publish(ev Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(ev.DriverID), Value: b})
}

func (k *KafkaProducer) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}
