package main

import (
	"context"
	"errors"
	"log/slog"

	"regform/internal/audit"
	"regform/internal/platform/config"
	"regform/internal/platform/kafka"
	"regform/internal/registration/handler"
)

const auditQueueSize = 256

type auditBackend struct {
	publisher *audit.Publisher
	worker    *audit.Worker
	check     handler.HealthCheck
	closer    func()
}

// closeInbox stops the worker once queued events are flushed. Events emitted
// afterwards by handlers still running past the shutdown grace go straight to
// the sink.
func (a *auditBackend) closeInbox() {
	a.publisher.Close()
}

func (a *auditBackend) close() {
	if a.closer != nil {
		a.closer()
	}
}

// openAudit keeps audit events in memory, or ships them to Kafka with the
// memory store as fallback when brokers are configured.
func openAudit(ctx context.Context, cfg config.Kafka, log *slog.Logger) (*auditBackend, error) {
	memory := audit.NewMemoryStore()
	inbox := make(chan audit.Event, auditQueueSize)
	a := &auditBackend{}

	var sink audit.Store = memory
	if len(cfg.Brokers) > 0 {
		kcfg := kafka.Config{Brokers: cfg.Brokers, Topic: cfg.Topic}
		client, err := kafka.NewClient(ctx, kcfg)
		if err != nil {
			return nil, err
		}
		if err := kafka.EnsureTopic(ctx, client, kcfg); err != nil {
			client.Close()
			return nil, err
		}
		ks := audit.NewKafkaStore(client, cfg.Topic,
			audit.WithFallback(memory),
			audit.WithKafkaLogger(log),
		)
		sink = ks
		a.check = func(context.Context) error {
			if !ks.Healthy() {
				return errors.New("kafka audit sink degraded")
			}
			return nil
		}
		a.closer = client.Close
		log.Info("audit events go to kafka", "topic", cfg.Topic, "brokers", cfg.Brokers)
	}

	a.publisher = audit.NewPublisher(sink, audit.WithLogger(log), audit.WithQueue(inbox))
	a.worker = audit.NewWorker(sink, inbox, log)
	return a, nil
}
