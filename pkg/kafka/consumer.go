// Package kafka wraps segmentio/kafka-go for the analytics event stream:
// a batching JSON producer and a group consumer that hands each message to a
// callback.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/resilience"
)

// MessageHandler processes one message. Returning an error retries it a few
// times; after that the message is skipped and committed.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

type Consumer struct {
	reader    *kafka.Reader
	handler   MessageHandler
	retry     resilience.RetryConfig
	logger    *slog.Logger
	closeOnce sync.Once
	closeErr  error

	processed atomic.Int64
	skipped   atomic.Int64
	lastSeen  atomic.Int64
}

func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        cfg.Brokers,
			Topic:          topic,
			GroupID:        cfg.ConsumerGroup,
			MinBytes:       1,
			MaxBytes:       10e6,
			MaxWait:        time.Second,
			StartOffset:    kafka.LastOffset,
			CommitInterval: time.Second,
		}),
		handler: handler,
		retry: resilience.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 50 * time.Millisecond,
			MaxDelay:     time.Second,
		},
		logger: slog.Default().With("component", "kafka-consumer", "topic", topic),
	}
}

// Start consumes until ctx is cancelled, then closes the reader. Cancellation
// is not an error.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	defer c.Close()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping")
				return nil
			}
			c.logger.Error("fetch failed", "error", err)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		c.lastSeen.Store(time.Now().UnixMilli())

		err = resilience.Retry(ctx, "kafka.handle", c.retry, func() error {
			return c.handler(ctx, msg.Key, msg.Value)
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.skipped.Add(1)
			c.logger.Error("skipping message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"type", headerValue(msg, TypeHeader),
				"error", err,
			)
		} else {
			c.processed.Add(1)
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("commit failed", "partition", msg.Partition, "offset", msg.Offset, "error", err)
		}
	}
}

// ConsumerStats reports progress since the consumer was created.
type ConsumerStats struct {
	Processed int64     `json:"processed"`
	Skipped   int64     `json:"skipped"`
	Lag       int64     `json:"lag"`
	LastSeen  time.Time `json:"last_seen,omitzero"`
}

func (c *Consumer) Stats() ConsumerStats {
	s := ConsumerStats{
		Processed: c.processed.Load(),
		Skipped:   c.skipped.Load(),
		Lag:       c.reader.Stats().Lag,
	}
	if ms := c.lastSeen.Load(); ms > 0 {
		s.LastSeen = time.UnixMilli(ms)
	}
	return s
}

// Close closes the reader. It is safe to call more than once.
func (c *Consumer) Close() error {
	c.closeOnce.Do(func() { c.closeErr = c.reader.Close() })
	return c.closeErr
}

// DecodeJSON unmarshals a message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var out T
	if err := json.Unmarshal(value, &out); err != nil {
		return out, fmt.Errorf("decoding kafka message: %w", err)
	}
	return out, nil
}

func headerValue(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
