package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/twmb/franz-go/pkg/kgo"

	"regform/pkg/platform/circuit"
	"regform/pkg/platform/sentinel"
)

// trialEvery is how often an open breaker lets one event try Kafka again.
const trialEvery = 10

// Producer is the slice of *kgo.Client the Kafka store needs.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// KafkaStore publishes events as JSON records keyed by form ID. Failed
// events go to the fallback store; once the breaker opens, most events skip
// Kafka until a trial succeeds again.
type KafkaStore struct {
	producer Producer
	topic    string
	breaker  *circuit.Breaker
	fallback Store
	logger   *slog.Logger
	skipped  atomic.Uint64
}

type KafkaOption func(*KafkaStore)

func WithFallback(store Store) KafkaOption {
	return func(k *KafkaStore) {
		k.fallback = store
	}
}

func WithBreaker(b *circuit.Breaker) KafkaOption {
	return func(k *KafkaStore) {
		k.breaker = b
	}
}

func WithKafkaLogger(logger *slog.Logger) KafkaOption {
	return func(k *KafkaStore) {
		k.logger = logger
	}
}

func NewKafkaStore(producer Producer, topic string, opts ...KafkaOption) *KafkaStore {
	k := &KafkaStore{
		producer: producer,
		topic:    topic,
		breaker:  circuit.New("audit-kafka"),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

func (k *KafkaStore) Append(ctx context.Context, event Event) error {
	if k.breaker.IsOpen() && k.skipped.Add(1)%trialEvery != 0 {
		return k.toFallback(ctx, event, nil)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	err = k.producer.ProduceSync(ctx, &kgo.Record{
		Topic: k.topic,
		Key:   []byte(event.FormID),
		Value: payload,
	}).FirstErr()
	if err != nil {
		_, change := k.breaker.RecordFailure()
		if change.Opened {
			k.logger.ErrorContext(ctx, "audit kafka circuit opened", "topic", k.topic, "error", err)
		}
		return k.toFallback(ctx, event, err)
	}
	if _, change := k.breaker.RecordSuccess(); change.Closed {
		k.logger.InfoContext(ctx, "audit kafka circuit closed", "topic", k.topic)
	}
	return nil
}

func (k *KafkaStore) toFallback(ctx context.Context, event Event, cause error) error {
	if k.fallback != nil {
		return k.fallback.Append(ctx, event)
	}
	if cause == nil {
		return fmt.Errorf("audit kafka circuit open: %w", sentinel.ErrUnavailable)
	}
	return fmt.Errorf("produce audit event: %w: %w", sentinel.ErrUnavailable, cause)
}

// Healthy reports whether the breaker is closed.
func (k *KafkaStore) Healthy() bool {
	return !k.breaker.IsOpen()
}
