package kafka

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// AuditEvent is the envelope of every ticket event on the audit topic.
// Details decodes as map[string]interface{} on the consuming side.
type AuditEvent struct {
	Timestamp     time.Time   `json:"timestamp"`
	UserID        string      `json:"user_id"`
	SessionID     string      `json:"session_id,omitempty"`
	SourceService string      `json:"source_service"`
	Action        string      `json:"action"`
	Details       interface{} `json:"details"`
	Result        string      `json:"result"`
	TraceID       string      `json:"trace_id,omitempty"`
}

// Handler processes one decoded event
type Handler func(ctx context.Context, event AuditEvent) error

// Reader is the subset of *kafka.Reader the consumer needs
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads the audit topic and dispatches events by action
type Consumer struct {
	reader Reader
	logger zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.RWMutex
	handlers map[string][]Handler
}

// ConsumerConfig holds Kafka consumer configuration
type ConsumerConfig struct {
	Brokers       []string
	Topic         string
	ConsumerGroup string
	Logger        zerolog.Logger
	// Reader overrides the broker reader, used in tests
	Reader Reader
}

// NewConsumer creates a consumer. It returns nil when no brokers are
// configured and no reader is given.
func NewConsumer(config ConsumerConfig) *Consumer {
	reader := config.Reader
	if reader == nil {
		if len(config.Brokers) == 0 {
			return nil
		}
		reader = kafka.NewReader(kafka.ReaderConfig{
			Brokers:        config.Brokers,
			Topic:          config.Topic,
			GroupID:        config.ConsumerGroup,
			MinBytes:       1,
			MaxBytes:       10e6, // 10MB
			MaxWait:        500 * time.Millisecond,
			CommitInterval: time.Second,
			StartOffset:    kafka.LastOffset,
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		reader:   reader,
		logger:   config.Logger.With().Str("component", "kafka-consumer").Logger(),
		ctx:      ctx,
		cancel:   cancel,
		handlers: make(map[string][]Handler),
	}
}

// Handle registers fn for events with the given action
func (c *Consumer) Handle(action string, fn Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[action] = append(c.handlers[action], fn)
}

// Start begins consuming messages
func (c *Consumer) Start() {
	c.wg.Add(1)
	go c.consume()
	c.logger.Info().Msg("Kafka consumer started")
}

// Stop gracefully stops the consumer
func (c *Consumer) Stop() error {
	c.logger.Info().Msg("Stopping Kafka consumer...")
	c.cancel()
	c.wg.Wait()

	if err := c.reader.Close(); err != nil {
		c.logger.Error().Err(err).Msg("Error closing Kafka reader")
		return err
	}

	c.logger.Info().Msg("Kafka consumer stopped")
	return nil
}

func (c *Consumer) consume() {
	defer c.wg.Done()

	for {
		msg, err := c.reader.FetchMessage(c.ctx)
		if err != nil {
			if c.ctx.Err() != nil || stderrors.Is(err, context.Canceled) {
				return
			}
			c.logger.Error().Err(err).Msg("Error fetching message from Kafka")
			select {
			case <-c.ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		if err := c.dispatch(c.ctx, msg); err != nil {
			c.logger.Error().
				Err(err).
				Str("topic", msg.Topic).
				Int("partition", msg.Partition).
				Int64("offset", msg.Offset).
				Msg("Error handling message")
		}

		if err := c.reader.CommitMessages(c.ctx, msg); err != nil && c.ctx.Err() == nil {
			c.logger.Error().Err(err).Msg("Error committing message")
		}
	}
}

func (c *Consumer) dispatch(ctx context.Context, msg kafka.Message) error {
	var event AuditEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to decode event: %w", err)
	}

	c.mu.RLock()
	handlers := c.handlers[event.Action]
	c.mu.RUnlock()

	var errs []error
	for _, h := range handlers {
		if err := h(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}
