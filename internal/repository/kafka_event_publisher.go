package repository

import (
	"context"

	"FinScan/internal/domain/models"
	domrepo "FinScan/internal/domain/repository"
)

// messagePublisher is satisfied by *pkg/kafka.Producer. The producer's
// lifetime belongs to the app closers.
type messagePublisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
}

// KafkaEventPublisher publishes run summaries keyed by source file name,
// so runs of the same file land on the same partition.
type KafkaEventPublisher struct {
	producer messagePublisher
	topic    string
}

func NewKafkaEventPublisher(producer messagePublisher, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer, topic: topic}
}

func (p *KafkaEventPublisher) PublishRun(ctx context.Context, ev models.RunEvent) error {
	return p.producer.Publish(ctx, p.topic, []byte(ev.Source), ev)
}

var _ domrepo.EventPublisher = (*KafkaEventPublisher)(nil)
