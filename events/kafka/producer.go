package kafka

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

const (
	defaultWorkerNum = 4
	defaultQueueSize = 256
)

// ErrQueueFull is returned by Publish when the worker queue is saturated
var ErrQueueFull = stderrors.New("kafka: publish queue full")

// ErrClosed is returned by Publish after Close
var ErrClosed = stderrors.New("kafka: producer closed")

// Writer is the subset of *kafka.Writer the producer needs
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes ticket events through a small worker pool so request
// handlers never wait on the broker.
type Producer struct {
	writer    Writer
	logger    zerolog.Logger
	jobs      chan kafka.Message
	workerNum int
	wg        sync.WaitGroup

	mu     sync.RWMutex
	closed bool
	// OnResult, when set, is called once per delivered or failed message.
	OnResult func(topic string, err error)
}

// ProducerConfig holds configuration for Kafka producer
type ProducerConfig struct {
	Brokers   []string
	Logger    zerolog.Logger
	WorkerNum int
	QueueSize int
	// Writer overrides the broker writer, used in tests
	Writer Writer
}

// NewProducer creates a producer. It returns nil when no brokers are
// configured and no writer is given; callers treat a nil producer as disabled.
func NewProducer(config ProducerConfig) *Producer {
	writer := config.Writer
	if writer == nil {
		if len(config.Brokers) == 0 {
			return nil
		}
		writer = &kafka.Writer{
			Addr:         kafka.TCP(config.Brokers...),
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			MaxAttempts:  3,
			WriteTimeout: 10 * time.Second,
			ReadTimeout:  10 * time.Second,
		}
	}

	workerNum := config.WorkerNum
	if workerNum <= 0 {
		workerNum = defaultWorkerNum
	}
	queueSize := config.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	p := &Producer{
		writer:    writer,
		logger:    config.Logger.With().Str("component", "kafka-producer").Logger(),
		jobs:      make(chan kafka.Message, queueSize),
		workerNum: workerNum,
	}

	for i := 0; i < workerNum; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	return p
}

func (p *Producer) worker() {
	defer p.wg.Done()
	for msg := range p.jobs {
		p.write(msg)
	}
}

func (p *Producer) write(msg kafka.Message) {
	defer p.recover()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := p.writer.WriteMessages(ctx, msg)
	if err != nil {
		p.logger.Error().
			Err(err).
			Str("topic", msg.Topic).
			Str("key", string(msg.Key)).
			Msg("Failed to send message to Kafka")
	} else {
		p.logger.Debug().
			Str("topic", msg.Topic).
			Str("key", string(msg.Key)).
			Msg("Message sent to Kafka")
	}
	if p.OnResult != nil {
		p.OnResult(msg.Topic, err)
	}
}

// Publish queues an event for asynchronous delivery. Keys keep every event of
// one ticket on the same partition. It never blocks: a full queue returns
// ErrQueueFull.
func (p *Producer) Publish(topic, key string, value interface{}) error {
	msg, err := encode(topic, key, value)
	if err != nil {
		return err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	select {
	case p.jobs <- msg:
		return nil
	default:
		p.logger.Warn().Str("topic", topic).Str("key", key).Msg("Kafka queue full, dropping event")
		return ErrQueueFull
	}
}

// PublishSync delivers an event before returning
func (p *Producer) PublishSync(ctx context.Context, topic, key string, value interface{}) error {
	msg, err := encode(topic, key, value)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error().Err(err).Str("topic", topic).Str("key", key).Msg("Failed to send message to Kafka")
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

// Close drains queued events and closes the writer
func (p *Producer) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
	if err := p.writer.Close(); err != nil {
		p.logger.Error().Err(err).Msg("Error closing Kafka producer")
		return err
	}
	return nil
}

func encode(topic, key string, value interface{}) (kafka.Message, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal event: %w", err)
	}
	return kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: payload,
		Time:  time.Now(),
	}, nil
}

func (p *Producer) recover() {
	if r := recover(); r != nil {
		p.logger.Error().
			Str("operation", "send_message_kafka").
			Str("panic", fmt.Sprintf("%v", r)).
			Str("stack_trace", string(debug.Stack())).
			Msg("Panic recovered")
	}
}
