package settlement

import (
	"context"
	"fmt"
	"strconv"

	kafkawrapper "github.com/joripage/utxo-orderbook/pkg/kafka_wrapper"
)

// Sink receives settlement directives.
type Sink interface {
	Publish(ctx context.Context, ds []Directive) error
}

type producer interface {
	PublishJSON(ctx context.Context, topic string, key string, v any, headers map[string]string) error
}

// KafkaPublisher writes one message per directive, keyed by batch so a
// batch's directives land on one partition in order.
type KafkaPublisher struct {
	producer producer
	topic    string
}

var _ Sink = (*KafkaPublisher)(nil)

func NewKafkaPublisher(p *kafkawrapper.Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: p, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ds []Directive) error {
	for _, d := range ds {
		key := strconv.FormatUint(d.BatchIndex, 10)
		headers := map[string]string{
			"batch": key,
			"seq":   strconv.Itoa(d.Seq),
		}
		if err := p.producer.PublishJSON(ctx, p.topic, key, d, headers); err != nil {
			return fmt.Errorf("publish directive %d/%d: %w", d.BatchIndex, d.Seq, err)
		}
	}
	return nil
}
