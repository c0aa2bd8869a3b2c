package venue

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/ismaiel54/ems-order-client/internal/order"
	"github.com/shopspring/decimal"
)

// Scenario selects how the venue treats an order
type Scenario string

const (
	ScenarioFill       Scenario = "fill"
	ScenarioKill       Scenario = "kill"
	ScenarioReject     Scenario = "reject"
	ScenarioSilent     Scenario = "silent"
	ScenarioDisconnect Scenario = "disconnect"
)

// ParseScenario maps SIM_SCENARIO values; empty means fill
func ParseScenario(s string) (Scenario, error) {
	switch sc := Scenario(strings.ToLower(strings.TrimSpace(s))); sc {
	case "":
		return ScenarioFill, nil
	case ScenarioFill, ScenarioKill, ScenarioReject, ScenarioSilent, ScenarioDisconnect:
		return sc, nil
	}
	return "", fmt.Errorf("unknown scenario %q", s)
}

// Terminal reports whether the scenario ends with a closing event
func (s Scenario) Terminal() bool {
	return s == ScenarioFill || s == ScenarioKill || s == ScenarioReject
}

// Config tunes execution
type Config struct {
	Scenario Scenario
	// RefPrice is the touch price market orders execute against
	RefPrice decimal.Decimal
	// Clips is the number of partial fills a fill is split into
	Clips int
	// Tick is the price step between consecutive clips
	Tick decimal.Decimal
}

// DefaultConfig fills in two clips against a 187.25 reference
func DefaultConfig() Config {
	return Config{
		Scenario: ScenarioFill,
		RefPrice: decimal.RequireFromString("187.25"),
		Clips:    2,
		Tick:     decimal.RequireFromString("0.01"),
	}
}

// Plan returns the event batches the venue emits for req, in order. Each
// inner slice is delivered as one notification batch.
func Plan(req order.Request, cfg Config) [][]order.Event {
	ev := func(t order.EventType, status string) order.Event {
		return order.Event{
			EventID:       uuid.New().String(),
			OrderTag:      req.OrderTag,
			Type:          t,
			CurrentStatus: status,
			BuyOrSell:     req.Side,
		}
	}

	switch cfg.Scenario {
	case ScenarioReject:
		rej := ev(order.UserSubmitOrder, order.StatusDeleted)
		rej.Reason = "rejected by venue"
		return [][]order.Event{{rej}}

	case ScenarioKill:
		kill := ev(order.ExchangeKillOrder, "KILLED")
		kill.Reason = "cancelled by exchange"
		deleted := ev(order.UserSubmitOrder, order.StatusDeleted)
		deleted.Reason = kill.Reason
		return [][]order.Event{
			{ev(order.UserSubmitOrder, order.StatusPending)},
			{kill},
			{deleted},
		}

	case ScenarioSilent, ScenarioDisconnect:
		return [][]order.Event{{ev(order.UserSubmitOrder, order.StatusPending)}}
	}

	batches := [][]order.Event{{ev(order.UserSubmitOrder, order.StatusPending)}}

	clips := cfg.Clips
	if clips < 1 {
		clips = 1
	}
	if int64(clips) > req.Volume {
		clips = int(req.Volume)
	}
	base := req.Volume / int64(clips)
	rem := req.Volume % int64(clips)

	for i := 0; i < clips; i++ {
		qty := base
		if int64(i) < rem {
			qty++
		}
		fill := ev(order.ExchangeTradeOrder, order.StatusLive)
		fill.Volume = qty
		fill.Price = fillPrice(req, cfg, i)

		if i == clips-1 {
			batches = append(batches, []order.Event{fill, ev(order.UserSubmitOrder, order.StatusCompleted)})
		} else {
			batches = append(batches, []order.Event{fill})
		}
	}
	return batches
}

// fillPrice walks the book away from the reference one tick per clip and
// never trades through a limit
func fillPrice(req order.Request, cfg Config, clip int) decimal.Decimal {
	step := cfg.Tick.Mul(decimal.NewFromInt(int64(clip)))
	px := cfg.RefPrice.Add(step)
	if req.Side == order.Sell {
		px = cfg.RefPrice.Sub(step)
	}

	if req.PriceType == order.Limit {
		if req.Side == order.Buy && px.GreaterThan(req.LimitPrice) {
			px = req.LimitPrice
		}
		if req.Side == order.Sell && px.LessThan(req.LimitPrice) {
			px = req.LimitPrice
		}
	}
	return px
}
