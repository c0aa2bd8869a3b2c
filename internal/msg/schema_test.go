package msg

import (
	"encoding/json"
	"testing"

	"github.com/ismaiel54/ems-order-client/internal/order"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderEventMsg_WireFormat(t *testing.T) {
	ev := order.Event{
		EventID:       "evt-1",
		OrderTag:      "tag-1",
		Type:          order.ExchangeTradeOrder,
		CurrentStatus: order.StatusLive,
		BuyOrSell:     order.Buy,
		Volume:        25,
		Price:         decimal.RequireFromString("187.25"),
	}

	data, err := json.Marshal(FromEvent(ev, 1000))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"event_id":"evt-1","order_tag":"tag-1","type":"ExchangeTradeOrder",
		"current_status":"LIVE","buy_or_sell":"Buy","volume":25,
		"price":"187.25","ts_unix_millis":1000
	}`, string(data))

	var back OrderEventMsg
	require.NoError(t, json.Unmarshal(data, &back))
	got := back.Event()
	assert.Equal(t, ev.Type, got.Type)
	assert.True(t, ev.Price.Equal(got.Price))
	assert.Equal(t, ev.OrderTag, got.OrderTag)
}

func TestOrderEventMsg_UnknownTypePassesThrough(t *testing.T) {
	var m OrderEventMsg
	require.NoError(t, json.Unmarshal([]byte(`{"type":"ExchangeAmendOrder","current_status":"X"}`), &m))
	assert.Equal(t, order.EventType("ExchangeAmendOrder"), m.Event().Type)
}

func TestNewOrderCmd(t *testing.T) {
	req, err := order.DefaultTicket().Request()
	require.NoError(t, err)

	cmd := NewOrderCmd(req)
	assert.NotEmpty(t, cmd.EventID)
	assert.Positive(t, cmd.TsUnixMillis)
	assert.Equal(t, req.OrderTag, cmd.Order.OrderTag)
}

func TestParseBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, ParseBrokers(" a:9092, ,b:9092 "))
	assert.Empty(t, ParseBrokers(""))
}
