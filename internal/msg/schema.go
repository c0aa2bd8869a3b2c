package msg

import (
	"time"

	"github.com/google/uuid"
	"github.com/ismaiel54/ems-order-client/internal/order"
	"github.com/shopspring/decimal"
)

// OrderCmdMsg represents an order submission on the commands topic
type OrderCmdMsg struct {
	EventID      string        `json:"event_id"`
	Order        order.Request `json:"order"`
	TsUnixMillis int64         `json:"ts_unix_millis"`
}

// NewOrderCmd wraps a built request for the wire
func NewOrderCmd(req order.Request) OrderCmdMsg {
	return OrderCmdMsg{
		EventID:      uuid.New().String(),
		Order:        req,
		TsUnixMillis: time.Now().UnixMilli(),
	}
}

// OrderEventMsg represents an order lifecycle notification on the events topic
type OrderEventMsg struct {
	EventID       string          `json:"event_id"`
	OrderTag      string          `json:"order_tag"`
	Type          string          `json:"type"`
	CurrentStatus string          `json:"current_status"`
	BuyOrSell     string          `json:"buy_or_sell"`
	Volume        int64           `json:"volume"`
	Price         decimal.Decimal `json:"price"`
	Reason        string          `json:"reason,omitempty"`
	TsUnixMillis  int64           `json:"ts_unix_millis"`
}

// FromEvent stamps an order event for publishing
func FromEvent(ev order.Event, tsUnixMillis int64) OrderEventMsg {
	return OrderEventMsg{
		EventID:       ev.EventID,
		OrderTag:      ev.OrderTag,
		Type:          string(ev.Type),
		CurrentStatus: ev.CurrentStatus,
		BuyOrSell:     string(ev.BuyOrSell),
		Volume:        ev.Volume,
		Price:         ev.Price,
		Reason:        ev.Reason,
		TsUnixMillis:  tsUnixMillis,
	}
}

// Event converts the wire form back into an order event
func (m OrderEventMsg) Event() order.Event {
	return order.Event{
		EventID:       m.EventID,
		OrderTag:      m.OrderTag,
		Type:          order.EventType(m.Type),
		CurrentStatus: m.CurrentStatus,
		BuyOrSell:     order.Side(m.BuyOrSell),
		Volume:        m.Volume,
		Price:         m.Price,
		Reason:        m.Reason,
	}
}
