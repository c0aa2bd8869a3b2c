//go:build integration
// +build integration

package idempotency

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ismaiel54/ems-order-client/internal/msg"
	"github.com/ismaiel54/ems-order-client/internal/order"
	"github.com/ismaiel54/ems-order-client/internal/venue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

func TestIntegration_OutboxToKafka(t *testing.T) {
	if os.Getenv("INTEGRATION") != "1" {
		t.Skip("Skipping integration test. Set INTEGRATION=1 to run.")
	}
	brokers := msg.ParseBrokers(os.Getenv("KAFKA_BROKERS"))
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}

	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer store.Close()

	logger := zap.NewNop()
	producer, err := msg.NewProducer(brokers, "idempotency-it", logger)
	require.NoError(t, err)
	defer producer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	start := time.Now().UnixMilli()
	req, err := order.DefaultTicket().Request()
	require.NoError(t, err)
	cmd := msg.NewOrderCmd(req)

	// Same command twice, one set of events
	_, err = store.ProcessOrderCommand(ctx, cmd, venue.Plan(req, venue.DefaultConfig()), 0)
	require.NoError(t, err)
	dup, err := store.ProcessOrderCommand(ctx, cmd, venue.Plan(req, venue.DefaultConfig()), 0)
	require.NoError(t, err)
	require.True(t, dup.Duplicate)

	n, err := NewPublisher(store, producer, logger).PublishDue(ctx)
	require.NoError(t, err)
	require.Equal(t, 4, n)

	consumer, err := msg.NewConsumer(brokers, "", []string{msg.TopicOrdersEvents}, logger,
		kgo.ConsumeResetOffset(kgo.NewOffset().AfterMilli(start)),
	)
	require.NoError(t, err)
	defer consumer.Close()

	var got []order.Event
	_ = consumer.RunBatches(ctx, func(_ context.Context, recs []msg.Record) error {
		for _, rec := range recs {
			if rec.Key != req.OrderTag {
				continue
			}
			var m msg.OrderEventMsg
			require.NoError(t, json.Unmarshal(rec.Value, &m))
			got = append(got, m.Event())
		}
		if len(got) >= 4 {
			return context.Canceled
		}
		return nil
	})

	require.Len(t, got, 4)
	assert.Equal(t, order.StatusPending, got[0].CurrentStatus)
	assert.True(t, got[3].Closes())
}
