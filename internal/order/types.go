package order

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Side is the direction of an order
type Side string

const (
	Buy  Side = "Buy"
	Sell Side = "Sell"
)

// ParseSide accepts "Buy"/"Sell" in any case
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy":
		return Buy, nil
	case "sell":
		return Sell, nil
	}
	return "", fmt.Errorf("invalid side %q", s)
}

// Expiration is the time in force of an order
type Expiration string

const (
	Day Expiration = "DAY"
	GTC Expiration = "GTC"
	IOC Expiration = "IOC"
)

func (e Expiration) valid() bool {
	switch e {
	case Day, GTC, IOC:
		return true
	}
	return false
}

// SecurityType classifies the instrument
type SecurityType string

const (
	Stock  SecurityType = "STOCK"
	Option SecurityType = "OPTION"
	Future SecurityType = "FUTURE"
)

func (s SecurityType) valid() bool {
	switch s {
	case Stock, Option, Future:
		return true
	}
	return false
}

// PriceType selects market or limit pricing
type PriceType string

const (
	Market PriceType = "MARKET"
	Limit  PriceType = "LIMIT"
)

// Account identifies where the order is booked
type Account struct {
	Broker string `json:"broker" yaml:"broker"`
	Group  string `json:"group" yaml:"group"`
	Branch string `json:"branch" yaml:"branch"`
	ID     string `json:"id" yaml:"id"`
}

func (a Account) String() string {
	return strings.Join([]string{a.Broker, a.Group, a.Branch, a.ID}, "/")
}

// Request is a finalized order submission. Build it with a Builder; once
// built it is passed by value and never modified.
type Request struct {
	OrderTag     string          `json:"order_tag"`
	Account      Account         `json:"account"`
	Side         Side            `json:"side"`
	Expiration   Expiration      `json:"expiration"`
	Route        string          `json:"route"`
	Symbol       string          `json:"symbol"`
	Exchange     string          `json:"exchange"`
	SecurityType SecurityType    `json:"security_type"`
	PriceType    PriceType       `json:"price_type"`
	LimitPrice   decimal.Decimal `json:"limit_price"`
	Volume       int64           `json:"volume"`
}
