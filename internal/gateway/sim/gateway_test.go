package sim

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/ismaiel54/ems-order-client/internal/chaos"
	"github.com/ismaiel54/ems-order-client/internal/order"
	"github.com/ismaiel54/ems-order-client/internal/session"
	"github.com/ismaiel54/ems-order-client/internal/venue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func fastConfig(sc venue.Scenario) Config {
	cfg := DefaultConfig()
	cfg.ConnectDelay = 5 * time.Millisecond
	cfg.BatchGap = time.Millisecond
	cfg.Venue.Scenario = sc
	return cfg
}

func run(t *testing.T, gw session.Gateway, timeout time.Duration) (session.Result, string, error) {
	t.Helper()
	var buf bytes.Buffer
	d := session.NewDriver(gw, order.DefaultTicket(), session.NewConsoleReporter(&buf), zap.NewNop(), timeout)
	res, err := d.Run(context.Background())
	return res, buf.String(), err
}

func TestSim_FillScenario(t *testing.T) {
	res, out, err := run(t, New(fastConfig(venue.ScenarioFill), nil, zap.NewNop()), time.Second)
	require.NoError(t, err)

	assert.Equal(t, session.OutcomeOrderDone, res.Outcome)
	assert.Contains(t, out, "SUBMITTING ORDER")
	assert.Contains(t, out, "GOT FILL FOR Buy 13 AT 187.25")
	assert.Contains(t, out, "GOT FILL FOR Buy 12 AT 187.26")
	assert.Contains(t, out, "Type: UserSubmitOrder Status: COMPLETED")
}

func TestSim_KillScenario(t *testing.T) {
	res, out, err := run(t, New(fastConfig(venue.ScenarioKill), nil, zap.NewNop()), time.Second)
	require.NoError(t, err)

	assert.Equal(t, session.OrderDone, res.State)
	assert.Contains(t, out, "GOT KILL")
	assert.Contains(t, out, "Status: DELETED")
}

func TestSim_RejectScenario(t *testing.T) {
	res, _, err := run(t, New(fastConfig(venue.ScenarioReject), nil, zap.NewNop()), time.Second)
	require.NoError(t, err)
	assert.Equal(t, session.OrderDone, res.State)
}

func TestSim_SilentScenarioTimesOut(t *testing.T) {
	res, out, err := run(t, New(fastConfig(venue.ScenarioSilent), nil, zap.NewNop()), 150*time.Millisecond)
	require.ErrorIs(t, err, session.ErrWaitTimeout)

	assert.Equal(t, session.OrderInPlay, res.State)
	assert.Contains(t, out, "TIMED OUT WAITING FOR RESPONSE")
}

func TestSim_DisconnectScenario(t *testing.T) {
	res, out, err := run(t, New(fastConfig(venue.ScenarioDisconnect), nil, zap.NewNop()), time.Second)
	require.ErrorIs(t, err, session.ErrConnectionFailed)

	assert.Equal(t, session.ConnectionFailed, res.State)
	assert.Contains(t, out, "CONNECTION FAILED")
}

func TestSim_ChaosLoginFailure(t *testing.T) {
	ch := chaos.New(&chaos.Config{
		Enabled: true,
		Faults:  map[string]chaos.Fault{chaos.OpConnect: {DropPct: 100}},
	}, zap.NewNop())
	res, _, err := run(t, New(fastConfig(venue.ScenarioFill), ch, zap.NewNop()), time.Second)

	require.ErrorIs(t, err, session.ErrConnectionFailed)
	assert.Equal(t, session.ConnectionFailed, res.State)
	assert.Empty(t, res.OrderTag, "nothing submitted")
}

func TestSim_CloseWithoutStart(t *testing.T) {
	g := New(DefaultConfig(), nil, zap.NewNop())
	assert.NoError(t, g.Close())
}
