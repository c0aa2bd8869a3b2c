package idempotency

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ismaiel54/ems-order-client/internal/msg"
	"github.com/ismaiel54/ems-order-client/internal/observability"
	"go.uber.org/zap"
)

// EventProducer is the part of msg.Producer the publisher needs
type EventProducer interface {
	ProduceJSON(ctx context.Context, topic string, key string, v any) error
}

// Publisher publishes outbox events to Kafka
type Publisher struct {
	store     *Store
	producer  EventProducer
	logger    *zap.Logger
	interval  time.Duration
	batchSize int
}

// NewPublisher creates a new outbox publisher
func NewPublisher(store *Store, producer EventProducer, logger *zap.Logger) *Publisher {
	return &Publisher{
		store:     store,
		producer:  producer,
		logger:    logger,
		interval:  25 * time.Millisecond,
		batchSize: 100,
	}
}

// Run starts the publisher loop
func (p *Publisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := p.PublishDue(ctx); err != nil {
				p.logger.Error("failed to publish batch", zap.Error(err))
				// Continue - will retry on next tick
			}
		}
	}
}

// PublishDue publishes every due event in insertion order and returns how
// many went out. It stops at the first produce failure so a later event for
// the same order never overtakes an earlier one.
func (p *Publisher) PublishDue(ctx context.Context) (int, error) {
	now := time.Now().UnixMilli()
	events, err := p.store.ListUnpublished(ctx, p.batchSize, now)
	if err != nil {
		return 0, fmt.Errorf("failed to list unpublished events: %w", err)
	}

	published := 0
	for _, event := range events {
		var orderEvent msg.OrderEventMsg
		if err := json.Unmarshal([]byte(event.PayloadJSON), &orderEvent); err != nil {
			// Poison row; mark it so it does not block the queue
			p.logger.Error("failed to unmarshal event payload",
				zap.String("event_id", event.EventID),
				zap.Error(err),
			)
			_ = p.store.MarkPublished(ctx, event.EventID, now)
			continue
		}
		orderEvent.TsUnixMillis = now

		if err := p.producer.ProduceJSON(ctx, event.Topic, event.Key, orderEvent); err != nil {
			return published, fmt.Errorf("failed to produce event %s for %s: %w", event.EventID, event.OrderTag, err)
		}

		if err := p.store.MarkPublished(ctx, event.EventID, now); err != nil {
			// Worst case we republish; consumers see the same event_id
			return published, err
		}

		published++
		observability.VenueEventsPublished.Inc()
		p.logger.Debug("published outbox event",
			zap.String("event_id", event.EventID),
			zap.String("order_tag", event.OrderTag),
			zap.Int("batch", event.Batch),
		)
	}

	if published > 0 {
		p.logger.Info("published outbox batch",
			zap.Int("published", published),
			zap.Int("total", len(events)),
		)
	}

	return published, nil
}
