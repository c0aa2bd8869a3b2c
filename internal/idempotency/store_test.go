package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ismaiel54/ems-order-client/internal/msg"
	"github.com/ismaiel54/ems-order-client/internal/order"
	"github.com/ismaiel54/ems-order-client/internal/venue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testCommand(t *testing.T) msg.OrderCmdMsg {
	t.Helper()
	req, err := order.DefaultTicket().Request()
	require.NoError(t, err)
	return msg.NewOrderCmd(req)
}

func TestProcessOrderCommand_Idempotency(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	cmd := testCommand(t)
	plan := venue.Plan(cmd.Order, venue.DefaultConfig())

	result1, err := store.ProcessOrderCommand(ctx, cmd, plan, 0)
	require.NoError(t, err)
	assert.False(t, result1.Duplicate, "first call should not be duplicate")
	assert.Equal(t, StatusAccepted, result1.Status)
	// PENDING, one clip, last clip plus COMPLETED
	assert.Len(t, result1.OutboxEvents, 4)

	// Redelivery with a fresh command event id but the same order tag
	again := cmd
	again.EventID = "redelivered"
	result2, err := store.ProcessOrderCommand(ctx, again, venue.Plan(cmd.Order, venue.DefaultConfig()), 0)
	require.NoError(t, err)
	assert.True(t, result2.Duplicate, "same order tag should be duplicate")
	assert.Equal(t, StatusAccepted, result2.Status)
	assert.Empty(t, result2.OutboxEvents)

	unpublished, err := store.ListUnpublished(ctx, 100, time.Now().UnixMilli())
	require.NoError(t, err)
	require.Len(t, unpublished, 4, "outbox rows are written once per order tag")
	for i, e := range unpublished {
		assert.Equal(t, cmd.Order.OrderTag, e.OrderTag)
		assert.Equal(t, cmd.Order.OrderTag, e.Key)
		assert.Equal(t, msg.TopicOrdersEvents, e.Topic)
		if i > 0 {
			assert.Greater(t, e.ID, unpublished[i-1].ID)
		}
	}

	var last msg.OrderEventMsg
	require.NoError(t, json.Unmarshal([]byte(unpublished[3].PayloadJSON), &last))
	assert.True(t, last.Event().Closes())
}

func TestProcessOrderCommand_Reject(t *testing.T) {
	store := openStore(t)
	cmd := testCommand(t)
	cfg := venue.DefaultConfig()
	cfg.Scenario = venue.ScenarioReject

	result, err := store.ProcessOrderCommand(context.Background(), cmd, venue.Plan(cmd.Order, cfg), 0)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, result.Status)
	assert.Equal(t, "rejected by venue", result.Reason)
	assert.Len(t, result.OutboxEvents, 1)
}

func TestProcessOrderCommand_MissingTag(t *testing.T) {
	store := openStore(t)
	_, err := store.ProcessOrderCommand(context.Background(), msg.OrderCmdMsg{EventID: "x"}, nil, 0)
	assert.Error(t, err)
}

func TestListUnpublished_HonoursDueTime(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	cmd := testCommand(t)

	result, err := store.ProcessOrderCommand(ctx, cmd, venue.Plan(cmd.Order, venue.DefaultConfig()), time.Hour)
	require.NoError(t, err)
	created := result.OutboxEvents[0].CreatedUnixMillis

	due, err := store.ListUnpublished(ctx, 100, created)
	require.NoError(t, err)
	require.Len(t, due, 1, "only the first batch is due immediately")
	assert.Equal(t, 0, due[0].Batch)

	due, err = store.ListUnpublished(ctx, 100, created+time.Hour.Milliseconds())
	require.NoError(t, err)
	assert.Len(t, due, 2)
}

type fakeProducer struct {
	failOn  int
	calls   int
	records []msg.OrderEventMsg
}

func (f *fakeProducer) ProduceJSON(_ context.Context, topic, key string, v any) error {
	f.calls++
	if f.calls == f.failOn {
		return errors.New("broker unavailable")
	}
	m := v.(msg.OrderEventMsg)
	if topic != msg.TopicOrdersEvents || key != m.OrderTag {
		return errors.New("misrouted event")
	}
	f.records = append(f.records, m)
	return nil
}

func TestOutboxPublisher(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	cmd := testCommand(t)

	result, err := store.ProcessOrderCommand(ctx, cmd, venue.Plan(cmd.Order, venue.DefaultConfig()), 0)
	require.NoError(t, err)

	prod := &fakeProducer{failOn: 2}
	pub := NewPublisher(store, prod, zap.NewNop())

	n, err := pub.PublishDue(ctx)
	require.Error(t, err)
	assert.Equal(t, 1, n, "publishing stops at the first failure")

	n, err = pub.PublishDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.Len(t, prod.records, 4)
	for i, rec := range prod.records {
		assert.Equal(t, result.OutboxEvents[i].EventID, rec.EventID, "events go out in insertion order")
	}

	unpublished, err := store.ListUnpublished(ctx, 100, time.Now().UnixMilli())
	require.NoError(t, err)
	assert.Empty(t, unpublished, "should have no unpublished events after publishing")
}
