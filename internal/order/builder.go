package order

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrIncomplete is returned by Build when a required field was never set
	ErrIncomplete = errors.New("order request incomplete")
	// ErrInvalid is returned by Build when a field holds an unusable value
	ErrInvalid = errors.New("order request invalid")
)

type field uint8

const (
	fieldAccount field = 1 << iota
	fieldSide
	fieldExpiration
	fieldRoute
	fieldSymbol
	fieldPrice
	fieldVolume

	fieldAll = fieldAccount | fieldSide | fieldExpiration | fieldRoute | fieldSymbol | fieldPrice | fieldVolume
)

var fieldNames = []struct {
	f    field
	name string
}{
	{fieldAccount, "account"},
	{fieldSide, "side"},
	{fieldExpiration, "expiration"},
	{fieldRoute, "route"},
	{fieldSymbol, "symbol"},
	{fieldPrice, "price"},
	{fieldVolume, "volume"},
}

// Builder assembles a Request step by step. Setters may be called in any
// order; nothing is validated until Build.
type Builder struct {
	req Request
	set field
}

// NewBuilder returns an empty builder
func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) SetAccount(broker, group, branch, id string) *Builder {
	b.req.Account = Account{Broker: broker, Group: group, Branch: branch, ID: id}
	b.set |= fieldAccount
	return b
}

func (b *Builder) SetBuySell(side Side) *Builder {
	b.req.Side = side
	b.set |= fieldSide
	return b
}

func (b *Builder) SetExpiration(exp Expiration) *Builder {
	b.req.Expiration = exp
	b.set |= fieldExpiration
	return b
}

func (b *Builder) SetRoute(route string) *Builder {
	b.req.Route = route
	b.set |= fieldRoute
	return b
}

func (b *Builder) SetSymbol(symbol, exchange string, secType SecurityType) *Builder {
	b.req.Symbol = symbol
	b.req.Exchange = exchange
	b.req.SecurityType = secType
	b.set |= fieldSymbol
	return b
}

// SetPriceMarket requests execution at the best available price
func (b *Builder) SetPriceMarket() *Builder {
	b.req.PriceType = Market
	b.req.LimitPrice = decimal.Zero
	b.set |= fieldPrice
	return b
}

// SetPriceLimit caps the execution price
func (b *Builder) SetPriceLimit(price decimal.Decimal) *Builder {
	b.req.PriceType = Limit
	b.req.LimitPrice = price
	b.set |= fieldPrice
	return b
}

func (b *Builder) SetVolume(volume int64) *Builder {
	b.req.Volume = volume
	b.set |= fieldVolume
	return b
}

// Build validates the collected fields and returns a tagged Request
func (b *Builder) Build() (Request, error) {
	if b.set != fieldAll {
		var missing []string
		for _, fn := range fieldNames {
			if b.set&fn.f == 0 {
				missing = append(missing, fn.name)
			}
		}
		return Request{}, fmt.Errorf("%w: missing %s", ErrIncomplete, strings.Join(missing, ", "))
	}

	r := b.req
	a := r.Account
	if a.Broker == "" && a.Group == "" && a.Branch == "" && a.ID == "" {
		return Request{}, fmt.Errorf("%w: account is empty", ErrInvalid)
	}
	if r.Side != Buy && r.Side != Sell {
		return Request{}, fmt.Errorf("%w: side %q", ErrInvalid, r.Side)
	}
	if !r.Expiration.valid() {
		return Request{}, fmt.Errorf("%w: expiration %q", ErrInvalid, r.Expiration)
	}
	if r.Route == "" {
		return Request{}, fmt.Errorf("%w: route cannot be empty", ErrInvalid)
	}
	if r.Symbol == "" {
		return Request{}, fmt.Errorf("%w: symbol cannot be empty", ErrInvalid)
	}
	if r.Exchange == "" {
		return Request{}, fmt.Errorf("%w: exchange cannot be empty", ErrInvalid)
	}
	if !r.SecurityType.valid() {
		return Request{}, fmt.Errorf("%w: security type %q", ErrInvalid, r.SecurityType)
	}
	if r.PriceType == Limit && !r.LimitPrice.IsPositive() {
		return Request{}, fmt.Errorf("%w: limit price must be greater than 0", ErrInvalid)
	}
	if r.Volume <= 0 {
		return Request{}, fmt.Errorf("%w: volume must be greater than 0", ErrInvalid)
	}

	r.OrderTag = uuid.New().String()
	return r, nil
}
