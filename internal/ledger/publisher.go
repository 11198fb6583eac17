package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ismaiel54/futures-fix-trader/internal/msg"
)

// Publisher relays outbox events to Kafka
type Publisher struct {
	store     *Store
	producer  msg.JSONProducer
	logger    *zap.Logger
	interval  time.Duration
	batchSize int
}

// NewPublisher creates a new outbox publisher
func NewPublisher(store *Store, producer msg.JSONProducer, logger *zap.Logger) *Publisher {
	return &Publisher{
		store:     store,
		producer:  producer,
		logger:    logger,
		interval:  250 * time.Millisecond,
		batchSize: 100,
	}
}

// Run publishes pending outbox events on every tick until ctx is done
func (p *Publisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := p.PublishBatch(ctx); err != nil {
				p.logger.Error("failed to publish batch", zap.Error(err))
			}
		}
	}
}

// PublishBatch publishes up to one batch and returns how many were published.
// Events that fail are left for the next batch.
func (p *Publisher) PublishBatch(ctx context.Context) (int, error) {
	pending, err := p.store.ListUnpublished(ctx, p.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list unpublished events: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	now := time.Now().UnixMilli()
	published := 0

	for _, event := range pending {
		payload := json.RawMessage(event.PayloadJSON)
		if !json.Valid(payload) {
			p.logger.Error("skipping invalid outbox payload", zap.String("event_id", event.EventID))
			continue
		}

		if err := p.producer.ProduceJSON(ctx, event.Topic, event.Key, payload); err != nil {
			p.logger.Error("failed to produce event",
				zap.String("event_id", event.EventID),
				zap.String("new_order_id", event.OrderID),
				zap.Error(err),
			)
			continue
		}

		if err := p.store.MarkPublished(ctx, event.EventID, now); err != nil {
			p.logger.Error("failed to mark event as published",
				zap.String("event_id", event.EventID),
				zap.Error(err),
			)
			continue
		}

		published++
		p.logger.Debug("published outbox event",
			zap.String("event_id", event.EventID),
			zap.String("new_order_id", event.OrderID),
		)
	}

	if published > 0 {
		p.logger.Info("published outbox batch",
			zap.Int("published", published),
			zap.Int("total", len(pending)),
		)
	}

	return published, nil
}
