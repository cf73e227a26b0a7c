// SPDX-License-Identifier: MIT
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/segmentio/kafka-go"
	"golang.org/x/time/rate"

	"github.com/careshift/careshift/internal/clinical"
	"github.com/careshift/careshift/internal/log"
	"github.com/careshift/careshift/internal/metrics"
	"github.com/careshift/careshift/internal/store"
)

// Order event types carried on the simulated EHR topic.
const (
	EventOrderCreated = "order.created"
	EventOrderDeleted = "order.deleted"
)

// OrderEvent is a single order mutation from the event stream.
type OrderEvent struct {
	Type    string          `json:"type"`
	Order   *clinical.Order `json:"order,omitempty"`
	OrderID string          `json:"order_id,omitempty"`
}

// ConsumerConfig configures the Kafka order-event consumer.
type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string

	// MaxEventsPerSecond bounds how fast events are applied to the store,
	// so a replayed topic cannot starve API traffic. Zero disables the
	// limit.
	MaxEventsPerSecond float64
}

// Consumer applies order events from a Kafka topic to the store.
type Consumer struct {
	reader  *kafka.Reader
	store   store.Store
	limiter *rate.Limiter
}

// NewConsumer builds a consumer with its own group reader.
func NewConsumer(cfg ConsumerConfig, s store.Store) *Consumer {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.MaxEventsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.MaxEventsPerSecond), 1)
	}
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			Topic:    cfg.Topic,
			GroupID:  cfg.GroupID,
			MinBytes: 1,
			MaxBytes: 10e6,
		}),
		store:   s,
		limiter: limiter,
	}
}

// Run consumes events until ctx is canceled. Malformed or rejected events
// are logged and skipped; the consumer never stops on bad data.
func (c *Consumer) Run(ctx context.Context) error {
	logger := log.WithComponent("ingest-kafka")
	logger.Info().
		Str("event", "ingest.kafka_started").
		Str("topic", c.reader.Config().Topic).
		Msg("consuming order events")

	defer func() {
		_ = c.reader.Close()
	}()

	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return ctx.Err()
			}
			metrics.IncIngestOrder("error")
			logger.Error().Err(err).Str("event", "ingest.kafka_read_error").Msg("failed to read message")
			continue
		}

		if err := c.applyMessage(ctx, msg.Value); err != nil {
			metrics.IncIngestOrder("rejected")
			logger.Warn().
				Err(err).
				Str("event", "ingest.kafka_event_rejected").
				Str("key", string(msg.Key)).
				Msg("order event rejected")
			continue
		}
		metrics.IncIngestOrder("applied")
	}
}

func (c *Consumer) applyMessage(ctx context.Context, payload []byte) error {
	var event OrderEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("ingest: decode order event: %w", err)
	}
	return c.Apply(ctx, event)
}

// Apply routes a single order event to the store.
func (c *Consumer) Apply(ctx context.Context, event OrderEvent) error {
	switch event.Type {
	case EventOrderCreated:
		if event.Order == nil {
			return fmt.Errorf("ingest: %s event without order", EventOrderCreated)
		}
		order := *event.Order
		order.Description = CleanText(order.Description)
		if err := order.Validate(); err != nil {
			return err
		}
		return c.store.AddOrder(ctx, order)

	case EventOrderDeleted:
		if event.OrderID == "" {
			return fmt.Errorf("ingest: %s event without order_id", EventOrderDeleted)
		}
		return c.store.DeleteOrder(ctx, event.OrderID)

	default:
		return fmt.Errorf("ingest: unknown event type %q", event.Type)
	}
}
