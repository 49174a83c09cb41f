// Package consumer clears carts when a checkout completes. The checkout
// service is an external collaborator; its completion events arrive on
// Kafka.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"
)

// DefaultTopic is the checkout completion topic consumed by default.
const DefaultTopic = "checkout-completed"

// CartClearer empties the cart for a session. Satisfied by
// session.Registry.
type CartClearer interface {
	Clear(ctx context.Context, sessionID string) error
}

// CheckoutCompletedEvent is the payload published by the checkout service.
type CheckoutCompletedEvent struct {
	CheckoutID string `json:"checkout_id"`
	SessionID  string `json:"session_id"`
}

type Consumer struct {
	clearer CartClearer
	reader  *kafka.Reader
	logger  *slog.Logger
}

func New(clearer CartClearer, topic string, logger *slog.Logger, brokers ...string) *Consumer {
	if topic == "" {
		topic = DefaultTopic
	}
	if logger == nil {
		logger = slog.Default()
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  "cart-sync-service",
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{clearer: clearer, reader: reader, logger: logger}
}

// Run consumes events until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.readMessage(ctx)
	}
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.logger.Warn("error closing kafka reader", "error", err)
	}
}

func (c *Consumer) readMessage(ctx context.Context) {
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		c.logger.Warn("error reading checkout event", "error", err)
		return
	}
	if err := c.processEvent(ctx, m.Value); err != nil {
		c.logger.Warn("checkout event skipped", "error", err)
	}
}

// processEvent decodes one event and clears the referenced cart. Split from
// the Kafka read path so event handling is testable without a broker.
func (c *Consumer) processEvent(ctx context.Context, value []byte) error {
	var event CheckoutCompletedEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return fmt.Errorf("parse checkout event: %w", err)
	}
	if event.SessionID == "" {
		return errors.New("checkout event missing session_id")
	}

	if err := c.clearer.Clear(ctx, event.SessionID); err != nil {
		return fmt.Errorf("clear cart for session %s: %w", event.SessionID, err)
	}
	c.logger.Info("cart cleared after checkout",
		"session_id", event.SessionID, "checkout_id", event.CheckoutID)
	return nil
}
