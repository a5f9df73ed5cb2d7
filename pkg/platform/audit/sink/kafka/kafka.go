// Package kafka forwards audit events to a Kafka topic so compliance and
// security pipelines can consume the workflow trail without touching the
// service database.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	audit "sevagate/pkg/platform/audit"
)

// Sink produces audit events to a single topic, keyed by document ID so all
// events for one document land in the same partition in order.
type Sink struct {
	client *kgo.Client
	topic  string
}

// New connects to the given brokers. Returns nil if no brokers are configured
// (kafka is optional in development).
func New(brokers []string, topic string) (*Sink, error) {
	if len(brokers) == 0 {
		return nil, nil
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	return &Sink{client: client, topic: topic}, nil
}

// Append produces the event as a JSON record. Delivery is fire-and-forget;
// the publisher logs failures and the workflow is never blocked on the broker.
func (s *Sink) Append(ctx context.Context, event audit.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.DocumentID.String()),
		Value: payload,
	}
	s.client.Produce(ctx, record, nil)
	return nil
}

// Close flushes pending records and releases the client.
func (s *Sink) Close() {
	if s == nil || s.client == nil {
		return
	}
	_ = s.client.Flush(context.Background())
	s.client.Close()
}
