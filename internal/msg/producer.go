package msg

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

// Producer wraps a Kafka producer
type Producer struct {
	client       *kgo.Client
	logger       *zap.Logger
	produceCount int64
	errorCount   int64
	done         chan struct{}
	closeOnce    sync.Once
}

// NewProducer creates a new Kafka producer
func NewProducer(brokers []string, clientID string, logger *zap.Logger) (*Producer, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.ClientID(clientID),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	p := &Producer{
		client: client,
		logger: logger,
		done:   make(chan struct{}),
	}

	logger.Info("producer initialized",
		zap.Strings("brokers", brokers),
	)

	// Start periodic logging
	go p.logStats()

	return p, nil
}

// Ping checks that at least one broker answers
func (p *Producer) Ping(ctx context.Context) error {
	if err := p.client.Ping(ctx); err != nil {
		return fmt.Errorf("kafka ping failed: %w", err)
	}
	return nil
}

// ProduceJSON produces a JSON message to the specified topic and waits for
// the broker acknowledgement
func (p *Producer) ProduceJSON(ctx context.Context, topic string, key string, v any) error {
	record, err := p.record(topic, key, v)
	if err != nil {
		return err
	}

	// Synchronous produce with timeout
	produceCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result := p.client.ProduceSync(produceCtx, record)
	if result.FirstErr() != nil {
		atomic.AddInt64(&p.errorCount, 1)
		return fmt.Errorf("failed to produce message: %w", result.FirstErr())
	}

	atomic.AddInt64(&p.produceCount, 1)
	return nil
}

// ProduceJSONAsync queues a JSON message and returns immediately. onDone, if
// set, runs on the client's callback goroutine with the produce result.
func (p *Producer) ProduceJSONAsync(ctx context.Context, topic string, key string, v any, onDone func(error)) {
	record, err := p.record(topic, key, v)
	if err != nil {
		if onDone != nil {
			onDone(err)
		}
		return
	}

	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			atomic.AddInt64(&p.errorCount, 1)
			err = fmt.Errorf("failed to produce message: %w", err)
		} else {
			atomic.AddInt64(&p.produceCount, 1)
		}
		if onDone != nil {
			onDone(err)
		}
	})
}

func (p *Producer) record(topic, key string, v any) (*kgo.Record, error) {
	data, err := json.Marshal(v)
	if err != nil {
		atomic.AddInt64(&p.errorCount, 1)
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	return &kgo.Record{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
	}, nil
}

// Flush waits for queued async records
func (p *Producer) Flush(ctx context.Context) error {
	return p.client.Flush(ctx)
}

// Close closes the producer
func (p *Producer) Close() {
	p.closeOnce.Do(func() {
		close(p.done)
		if p.client != nil {
			p.client.Close()
		}
	})
}

// logStats logs producer statistics periodically
func (p *Producer) logStats() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			produced := atomic.LoadInt64(&p.produceCount)
			errors := atomic.LoadInt64(&p.errorCount)
			p.logger.Info("producer stats",
				zap.Int64("produced", produced),
				zap.Int64("errors", errors),
			)
		}
	}
}
