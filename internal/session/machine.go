package session

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/ismaiel54/ems-order-client/internal/observability"
	"github.com/ismaiel54/ems-order-client/internal/order"
	"go.uber.org/zap"
)

// Signaler wakes whoever waits on the run
type Signaler interface {
	Signal()
}

// Machine owns the run state and reacts to gateway messages. Handlers run on
// the consumer goroutine; the driver only reads State.
type Machine struct {
	state    StateCell
	gw       Gateway
	ticket   order.Ticket
	wake     Signaler
	reporter Reporter
	logger   *zap.Logger

	mu       sync.Mutex
	orderTag string
	lastErr  error
}

// NewMachine creates a machine in WaitingForConnect
func NewMachine(gw Gateway, ticket order.Ticket, wake Signaler, reporter Reporter, logger *zap.Logger) *Machine {
	return &Machine{
		gw:       gw,
		ticket:   ticket,
		wake:     wake,
		reporter: reporter,
		logger:   logger,
	}
}

// State returns the current state
func (m *Machine) State() State {
	return m.state.Load()
}

// OrderTag returns the tag of the submitted order, empty before submission
func (m *Machine) OrderTag() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orderTag
}

// Err returns the disconnect cause, if any
func (m *Machine) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Consume dispatches messages until in is closed or ctx is done
func (m *Machine) Consume(ctx context.Context, in <-chan Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-in:
			if !ok {
				return
			}
			m.dispatch(ctx, msg)
		}
	}
}

func (m *Machine) dispatch(ctx context.Context, msg Message) {
	switch v := msg.(type) {
	case Connected:
		m.OnConnected(ctx)
	case Disconnected:
		m.OnDisconnected(v.Err)
	case OrderEvents:
		m.OnOrderEvents(v.Batch)
	default:
		m.logger.Warn("ignoring unknown gateway message")
	}
}

// OnConnected builds and submits the run's single order
func (m *Machine) OnConnected(ctx context.Context) {
	if !m.transition(OrderInPlay) {
		// Redelivered connect or a connect after failure: never submit twice
		m.logger.Debug("connect ignored", zap.Stringer("state", m.State()))
		m.wake.Signal()
		return
	}

	m.reporter.Line("SUBMITTING ORDER")

	req, err := m.ticket.Request()
	if err != nil {
		m.logger.Error("order ticket rejected", zap.Error(err))
		m.OnOrderEvents([]order.Event{{
			EventID:       uuid.New().String(),
			Type:          order.UserSubmitOrder,
			CurrentStatus: order.StatusDeleted,
			BuyOrSell:     m.ticket.Side,
			Reason:        err.Error(),
		}})
		return
	}

	m.mu.Lock()
	m.orderTag = req.OrderTag
	m.mu.Unlock()

	m.logger.Info("submitting order",
		zap.String("order_tag", req.OrderTag),
		zap.String("account", req.Account.String()),
		zap.String("symbol", req.Symbol),
		zap.String("exchange", req.Exchange),
		zap.String("route", req.Route),
		zap.String("side", string(req.Side)),
		zap.String("price_type", string(req.PriceType)),
		zap.Int64("volume", req.Volume),
	)
	m.gw.SubmitOrder(ctx, req)
	observability.OrdersSubmitted.WithLabelValues(string(req.Side)).Inc()

	m.wake.Signal()
}

// OnDisconnected fails the run from any non-terminal state
func (m *Machine) OnDisconnected(err error) {
	from := m.State()
	if !from.Terminal() {
		m.mu.Lock()
		m.lastErr = err
		m.mu.Unlock()
	}
	if m.transition(ConnectionFailed) {
		m.reporter.Line("CONNECTION FAILED")
		if from == OrderInPlay {
			// No reconciliation: the order may still be working or filled
			m.logger.Warn("connection lost with order in play, venue status unknown",
				zap.String("order_tag", m.OrderTag()),
				zap.Error(err),
			)
		}
	}
	m.wake.Signal()
}

// OnOrderEvents interprets a batch in delivery order and wakes the driver once
func (m *Machine) OnOrderEvents(batch []order.Event) {
	for _, ev := range batch {
		observability.OrderEvents.WithLabelValues(string(ev.Type)).Inc()
		m.reporter.Status(ev)

		if ev.Closes() {
			m.transition(OrderDone)
		}

		switch ev.Type {
		case order.ExchangeTradeOrder:
			m.logger.Info("fill received",
				zap.String("order_tag", ev.OrderTag),
				zap.String("side", string(ev.BuyOrSell)),
				zap.Int64("volume", ev.Volume),
				zap.String("price", ev.Price.String()),
			)
			m.reporter.Fill(ev)
		case order.ExchangeKillOrder:
			m.logger.Info("kill received", zap.String("order_tag", ev.OrderTag))
			m.reporter.Kill(ev)
		}
	}
	m.wake.Signal()
}

func (m *Machine) transition(to State) bool {
	from, ok := m.state.Advance(to)
	if !ok {
		return false
	}
	observability.StateTransitions.WithLabelValues(to.String()).Inc()
	m.logger.Info("state transition",
		zap.Stringer("from", from),
		zap.Stringer("to", to),
	)
	return true
}
