package order

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fullBuilder() *Builder {
	return NewBuilder().
		SetAccount("LATEST", "TEST", "01", "CATALYST").
		SetBuySell(Buy).
		SetExpiration(Day).
		SetRoute("DEMO").
		SetSymbol("AAPL", "NAS", Stock).
		SetPriceMarket().
		SetVolume(25)
}

func TestBuild_MarketOrder(t *testing.T) {
	req, err := fullBuilder().Build()
	require.NoError(t, err)

	assert.Equal(t, Buy, req.Side)
	assert.Equal(t, Day, req.Expiration)
	assert.Equal(t, "DEMO", req.Route)
	assert.Equal(t, "AAPL", req.Symbol)
	assert.Equal(t, "NAS", req.Exchange)
	assert.Equal(t, Stock, req.SecurityType)
	assert.Equal(t, Market, req.PriceType)
	assert.True(t, req.LimitPrice.IsZero())
	assert.Equal(t, int64(25), req.Volume)
	assert.Equal(t, "LATEST/TEST/01/CATALYST", req.Account.String())
	assert.NotEmpty(t, req.OrderTag)
}

func TestBuild_CallOrderDoesNotMatter(t *testing.T) {
	req, err := NewBuilder().
		SetVolume(10).
		SetPriceLimit(decimal.RequireFromString("101.25")).
		SetSymbol("MSFT", "NAS", Stock).
		SetRoute("NSDQ").
		SetExpiration(GTC).
		SetBuySell(Sell).
		SetAccount("LSPS", "80", "LSPS", "1LD41223").
		Build()
	require.NoError(t, err)

	assert.Equal(t, Limit, req.PriceType)
	assert.Equal(t, "101.25", req.LimitPrice.String())
	assert.Equal(t, Sell, req.Side)
}

func TestBuild_TagsAreUnique(t *testing.T) {
	b := fullBuilder()
	r1, err := b.Build()
	require.NoError(t, err)
	r2, err := b.Build()
	require.NoError(t, err)
	assert.NotEqual(t, r1.OrderTag, r2.OrderTag)
}

func TestBuild_Missing(t *testing.T) {
	_, err := NewBuilder().SetBuySell(Buy).SetVolume(1).Build()
	require.ErrorIs(t, err, ErrIncomplete)
	assert.Contains(t, err.Error(), "account")
	assert.Contains(t, err.Error(), "route")
	assert.NotContains(t, err.Error(), "volume")
}

func TestBuild_Invalid(t *testing.T) {
	cases := map[string]*Builder{
		"zero volume":   fullBuilder().SetVolume(0),
		"bad side":      fullBuilder().SetBuySell("Short"),
		"bad exp":       fullBuilder().SetExpiration("WEEK"),
		"empty route":   fullBuilder().SetRoute(""),
		"empty symbol":  fullBuilder().SetSymbol("", "NAS", Stock),
		"bad sec type":  fullBuilder().SetSymbol("AAPL", "NAS", "BOND"),
		"zero limit":    fullBuilder().SetPriceLimit(decimal.Zero),
		"empty account": fullBuilder().SetAccount("", "", "", ""),
	}
	for name, b := range cases {
		_, err := b.Build()
		assert.ErrorIs(t, err, ErrInvalid, name)
	}
}

func TestTicket_Default(t *testing.T) {
	req, err := DefaultTicket().Request()
	require.NoError(t, err)

	assert.Equal(t, Buy, req.Side)
	assert.Equal(t, int64(25), req.Volume)
	assert.Equal(t, "AAPL", req.Symbol)
	assert.Equal(t, "DEMO", req.Route)
	assert.Equal(t, Market, req.PriceType)
}

func TestTicket_LimitAndCase(t *testing.T) {
	tk := DefaultTicket()
	tk.Side = "sell"
	tk.PriceType = "limit"
	tk.LimitPrice = "187.5"
	tk.Expiration = "ioc"

	req, err := tk.Request()
	require.NoError(t, err)
	assert.Equal(t, Sell, req.Side)
	assert.Equal(t, Limit, req.PriceType)
	assert.Equal(t, IOC, req.Expiration)
	assert.True(t, req.LimitPrice.Equal(decimal.RequireFromString("187.5")))

	tk.LimitPrice = "abc"
	_, err = tk.Request()
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestEvent_Closes(t *testing.T) {
	assert.True(t, Event{Type: UserSubmitOrder, CurrentStatus: StatusCompleted}.Closes())
	assert.True(t, Event{Type: UserSubmitOrder, CurrentStatus: StatusDeleted}.Closes())
	assert.False(t, Event{Type: UserSubmitOrder, CurrentStatus: StatusPending}.Closes())
	assert.False(t, Event{Type: ExchangeTradeOrder, CurrentStatus: StatusCompleted}.Closes())
}
