package order

import "github.com/shopspring/decimal"

// EventType names a venue notification. Unknown values are passed through.
type EventType string

const (
	UserSubmitOrder    EventType = "UserSubmitOrder"
	ExchangeTradeOrder EventType = "ExchangeTradeOrder"
	ExchangeKillOrder  EventType = "ExchangeKillOrder"
)

// Venue status strings. Only COMPLETED and DELETED close an order.
const (
	StatusPending   = "PENDING"
	StatusLive      = "LIVE"
	StatusCompleted = "COMPLETED"
	StatusDeleted   = "DELETED"
)

// Event is one order lifecycle notification from the venue
type Event struct {
	EventID       string          `json:"event_id"`
	OrderTag      string          `json:"order_tag"`
	Type          EventType       `json:"type"`
	CurrentStatus string          `json:"current_status"`
	BuyOrSell     Side            `json:"buy_or_sell"`
	Volume        int64           `json:"volume"`
	Price         decimal.Decimal `json:"price"`
	Reason        string          `json:"reason,omitempty"`
}

// Closes reports whether the event ends the order's life at the venue
func (e Event) Closes() bool {
	return e.Type == UserSubmitOrder &&
		(e.CurrentStatus == StatusCompleted || e.CurrentStatus == StatusDeleted)
}
