package msg

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

// Consumer wraps a Kafka consumer
type Consumer struct {
	client     *kgo.Client
	logger     *zap.Logger
	topics     []string
	group      string
	running    int32
	pollCount  int64
	errorCount int64
	done       chan struct{}
	closeOnce  sync.Once
}

// NewConsumer creates a new Kafka consumer. With an empty group the consumer
// reads partitions directly and never commits; extra options (for example a
// start offset) are appended as given.
func NewConsumer(brokers []string, group string, topics []string, logger *zap.Logger, extra ...kgo.Opt) (*Consumer, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.ConsumeTopics(topics...),
	}
	if group != "" {
		opts = append(opts,
			kgo.ConsumerGroup(group),
			kgo.DisableAutoCommit(), // Manual commit after handler success
		)
	}
	opts = append(opts, extra...)

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	c := &Consumer{
		client: client,
		logger: logger,
		topics: topics,
		group:  group,
		done:   make(chan struct{}),
	}

	// Log consumer initialization
	logger.Info("consumer initialized",
		zap.Strings("brokers", brokers),
		zap.String("group", group),
		zap.Strings("topics", topics),
	)

	// Start periodic logging
	go c.logStats()

	return c, nil
}

// ErrClientClosed is returned by Run and RunBatches once Close was called
var ErrClientClosed = errors.New("kafka client closed")

// Ping checks that at least one broker answers
func (c *Consumer) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx); err != nil {
		return fmt.Errorf("kafka ping failed: %w", err)
	}
	return nil
}

// Run starts consuming messages and calls handler for each record
func (c *Consumer) Run(ctx context.Context, handler func(context.Context, Record) error) error {
	return c.RunBatches(ctx, func(ctx context.Context, recs []Record) error {
		for _, rec := range recs {
			// Call handler with retry logic
			if err := c.handleWithRetry(ctx, rec, handler); err != nil {
				c.logger.Error("handler failed after retries",
					zap.String("topic", rec.Topic),
					zap.String("key", rec.Key),
					zap.Error(err),
				)
				atomic.AddInt64(&c.errorCount, 1)
				// Continue processing other records
				continue
			}

			// Commit offset after successful handling
			c.commit(ctx, rec)
		}
		return nil
	})
}

// RunBatches calls handler once per poll with every record of that fetch, in
// partition order. A handler error stops the loop.
func (c *Consumer) RunBatches(ctx context.Context, handler func(context.Context, []Record) error) error {
	c.logger.Info("starting consumer",
		zap.String("group", c.group),
		zap.Strings("topics", c.topics),
	)

	atomic.StoreInt32(&c.running, 1)
	defer atomic.StoreInt32(&c.running, 0)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer stopping", zap.String("group", c.group))
			return ctx.Err()
		default:
		}

		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return ErrClientClosed
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			atomic.AddInt64(&c.errorCount, 1)
			c.logger.Warn("fetch error",
				zap.String("topic", topic),
				zap.Int32("partition", partition),
				zap.Error(err),
			)
		})

		var recs []Record
		iter := fetches.RecordIter()
		for !iter.Done() {
			record := iter.Next()
			recs = append(recs, Record{
				Topic:     record.Topic,
				Key:       string(record.Key),
				Value:     record.Value,
				Partition: record.Partition,
				Offset:    record.Offset,
				Timestamp: record.Timestamp.UnixMilli(),
				raw:       record,
			})
		}
		if len(recs) == 0 {
			continue
		}

		if err := handler(ctx, recs); err != nil {
			return err
		}
		atomic.AddInt64(&c.pollCount, int64(len(recs)))
	}
}

func (c *Consumer) commit(ctx context.Context, rec Record) {
	if c.group == "" || rec.raw == nil {
		return
	}
	if err := c.client.CommitRecords(ctx, rec.raw); err != nil {
		c.logger.Warn("commit failed",
			zap.String("topic", rec.Topic),
			zap.Int64("offset", rec.Offset),
			zap.Error(err),
		)
	}
}

// handleWithRetry calls handler with bounded retries
func (c *Consumer) handleWithRetry(ctx context.Context, rec Record, handler func(context.Context, Record) error) error {
	maxRetries := 3
	backoff := 100 * time.Millisecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		err := handler(ctx, rec)
		if err == nil {
			return nil
		}

		if attempt < maxRetries-1 {
			c.logger.Warn("handler failed, retrying",
				zap.String("topic", rec.Topic),
				zap.String("key", rec.Key),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			time.Sleep(backoff)
			backoff *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("handler failed after %d attempts", maxRetries)
}

// Close closes the consumer
func (c *Consumer) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.client != nil {
			c.client.Close()
		}
	})
}

// IsRunning returns whether the consumer is running
func (c *Consumer) IsRunning() bool {
	return atomic.LoadInt32(&c.running) == 1
}

// logStats logs consumer statistics periodically
func (c *Consumer) logStats() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			polls := atomic.LoadInt64(&c.pollCount)
			errors := atomic.LoadInt64(&c.errorCount)
			c.logger.Info("consumer stats",
				zap.String("group", c.group),
				zap.Int64("processed", polls),
				zap.Int64("errors", errors),
			)
		}
	}
}
