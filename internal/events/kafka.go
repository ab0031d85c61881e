package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaSink ships outbox entries to the match topic.
type KafkaSink struct {
	client *kgo.Client
	topic  string
}

func NewKafkaSink(brokers []string, topic string) (*KafkaSink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &KafkaSink{client: client, topic: topic}, nil
}

// EnsureTopic creates the match topic if the broker does not have it yet.
func (s *KafkaSink) EnsureTopic(ctx context.Context) error {
	adm := kadm.NewClient(s.client)
	resp, err := adm.CreateTopics(ctx, 3, 1, nil, s.topic)
	if err != nil {
		return fmt.Errorf("create topic: %w", err)
	}
	for _, res := range resp {
		if res.Err != nil && !errors.Is(res.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", res.Topic, res.Err)
		}
	}
	return nil
}

// Ship produces one outbox entry, keyed by aggregate so per-match ordering
// holds.
func (s *KafkaSink) Ship(ctx context.Context, entry PendingEntry) error {
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(entry.Key.String()),
		Value: entry.Payload,
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce %s: %w", entry.EventType, err)
	}
	return nil
}

func (s *KafkaSink) Close() { s.client.Close() }
