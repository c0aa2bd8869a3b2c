package order

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Ticket holds the declarative parameters of the single order a run places
type Ticket struct {
	Account      Account      `yaml:"account"`
	Side         Side         `yaml:"side"`
	Expiration   Expiration   `yaml:"expiration"`
	Route        string       `yaml:"route"`
	Symbol       string       `yaml:"symbol"`
	Exchange     string       `yaml:"exchange"`
	SecurityType SecurityType `yaml:"security_type"`
	PriceType    PriceType    `yaml:"price_type"`
	LimitPrice   string       `yaml:"limit_price"`
	Volume       int64        `yaml:"volume"`
}

// DefaultTicket is the demo order: buy 25 AAPL at market on the DEMO route.
// Production uses route NSDQ.
func DefaultTicket() Ticket {
	return Ticket{
		Account:      Account{Broker: "LATEST", Group: "TEST", Branch: "01", ID: "CATALYST"},
		Side:         Buy,
		Expiration:   Day,
		Route:        "DEMO",
		Symbol:       "AAPL",
		Exchange:     "NAS",
		SecurityType: Stock,
		PriceType:    Market,
		Volume:       25,
	}
}

// Request runs the ticket through a Builder
func (t Ticket) Request() (Request, error) {
	side, err := ParseSide(string(t.Side))
	if err != nil {
		return Request{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	b := NewBuilder().
		SetAccount(t.Account.Broker, t.Account.Group, t.Account.Branch, t.Account.ID).
		SetBuySell(side).
		SetExpiration(Expiration(strings.ToUpper(string(t.Expiration)))).
		SetRoute(t.Route).
		SetSymbol(t.Symbol, t.Exchange, SecurityType(strings.ToUpper(string(t.SecurityType)))).
		SetVolume(t.Volume)

	switch PriceType(strings.ToUpper(string(t.PriceType))) {
	case Market, "":
		b.SetPriceMarket()
	case Limit:
		price, err := decimal.NewFromString(t.LimitPrice)
		if err != nil {
			return Request{}, fmt.Errorf("%w: limit price %q: %v", ErrInvalid, t.LimitPrice, err)
		}
		b.SetPriceLimit(price)
	default:
		return Request{}, fmt.Errorf("%w: price type %q", ErrInvalid, t.PriceType)
	}

	return b.Build()
}
