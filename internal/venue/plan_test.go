package venue

import (
	"testing"

	"github.com/ismaiel54/ems-order-client/internal/order"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRequest(t *testing.T) order.Request {
	t.Helper()
	req, err := order.DefaultTicket().Request()
	require.NoError(t, err)
	return req
}

func closing(batches [][]order.Event) int {
	n := 0
	for _, b := range batches {
		for _, ev := range b {
			if ev.Closes() {
				n++
			}
		}
	}
	return n
}

func TestPlan_FillSplitsVolume(t *testing.T) {
	req := testRequest(t)
	cfg := DefaultConfig()
	cfg.Clips = 3

	batches := Plan(req, cfg)
	require.Len(t, batches, 4)
	assert.Equal(t, order.StatusPending, batches[0][0].CurrentStatus)

	var filled int64
	for _, b := range batches[1:] {
		assert.Equal(t, order.ExchangeTradeOrder, b[0].Type)
		assert.Equal(t, req.OrderTag, b[0].OrderTag)
		filled += b[0].Volume
	}
	assert.Equal(t, req.Volume, filled)

	last := batches[len(batches)-1]
	require.Len(t, last, 2)
	assert.True(t, last[1].Closes())
	assert.Equal(t, order.StatusCompleted, last[1].CurrentStatus)
	assert.Equal(t, 1, closing(batches))
}

func TestPlan_FillPricesRespectLimit(t *testing.T) {
	req := testRequest(t)
	req.PriceType = order.Limit
	req.LimitPrice = decimal.RequireFromString("187.26")

	cfg := DefaultConfig()
	cfg.Clips = 5
	for _, b := range Plan(req, cfg)[1:] {
		assert.True(t, b[0].Price.LessThanOrEqual(req.LimitPrice), b[0].Price.String())
	}
}

func TestPlan_ClipsCappedByVolume(t *testing.T) {
	req := testRequest(t)
	req.Volume = 2
	cfg := DefaultConfig()
	cfg.Clips = 10

	batches := Plan(req, cfg)
	assert.Len(t, batches, 3)
}

func TestPlan_KillAndReject(t *testing.T) {
	req := testRequest(t)

	kill := Plan(req, Config{Scenario: ScenarioKill})
	require.Len(t, kill, 3)
	assert.Equal(t, order.ExchangeKillOrder, kill[1][0].Type)
	assert.Equal(t, order.StatusDeleted, kill[2][0].CurrentStatus)
	assert.Equal(t, 1, closing(kill))

	rej := Plan(req, Config{Scenario: ScenarioReject})
	require.Len(t, rej, 1)
	assert.True(t, rej[0][0].Closes())
	assert.NotEmpty(t, rej[0][0].Reason)
}

func TestPlan_SilentNeverCloses(t *testing.T) {
	req := testRequest(t)
	assert.Equal(t, 0, closing(Plan(req, Config{Scenario: ScenarioSilent})))
	assert.Equal(t, 0, closing(Plan(req, Config{Scenario: ScenarioDisconnect})))
}

func TestParseScenario(t *testing.T) {
	sc, err := ParseScenario("")
	require.NoError(t, err)
	assert.Equal(t, ScenarioFill, sc)

	sc, err = ParseScenario(" KILL ")
	require.NoError(t, err)
	assert.Equal(t, ScenarioKill, sc)

	_, err = ParseScenario("explode")
	assert.Error(t, err)
}
