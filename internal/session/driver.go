package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ismaiel54/ems-order-client/internal/observability"
	"github.com/ismaiel54/ems-order-client/internal/order"
	"github.com/ismaiel54/ems-order-client/internal/wake"
	"go.uber.org/zap"
)

// DefaultWaitTimeout is the longest silent period a run tolerates
const DefaultWaitTimeout = 10 * time.Second

var (
	// ErrWaitTimeout is returned when no wake arrived within the wait timeout.
	// The order may still be pending at the venue.
	ErrWaitTimeout = errors.New("timed out waiting for response")
	// ErrConnectionFailed is returned when the session could not be kept up
	ErrConnectionFailed = errors.New("connection failed")
)

// Outcome summarizes how a run ended
type Outcome string

const (
	OutcomeOrderDone        Outcome = "order_done"
	OutcomeConnectionFailed Outcome = "connection_failed"
	OutcomeTimedOut         Outcome = "timed_out"
)

// Result describes a finished run
type Result struct {
	Outcome  Outcome
	State    State
	OrderTag string
}

// Driver runs one session until the order is done, the connection fails, or
// the venue goes silent for a full wait window.
type Driver struct {
	gw       Gateway
	machine  *Machine
	wake     *wake.Event
	timeout  time.Duration
	reporter Reporter
	logger   *zap.Logger
}

// NewDriver wires a machine for ticket to gw. A non-positive waitTimeout
// selects DefaultWaitTimeout.
func NewDriver(gw Gateway, ticket order.Ticket, reporter Reporter, logger *zap.Logger, waitTimeout time.Duration) *Driver {
	if waitTimeout <= 0 {
		waitTimeout = DefaultWaitTimeout
	}
	ev := wake.New()
	return &Driver{
		gw:       gw,
		machine:  NewMachine(gw, ticket, ev, reporter, logger),
		wake:     ev,
		timeout:  waitTimeout,
		reporter: reporter,
		logger:   logger,
	}
}

// Machine exposes the state machine, mainly for inspection
func (d *Driver) Machine() *Machine {
	return d.machine
}

// Run connects, waits for a terminal state and always releases the gateway
// before returning.
func (d *Driver) Run(ctx context.Context) (Result, error) {
	runCtx, cancel := context.WithCancel(ctx)
	msgs := make(chan Message, 64)

	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		d.machine.Consume(runCtx, msgs)
	}()

	// Join the consumer before Close: a handler still running must not
	// reach a released gateway
	defer func() {
		cancel()
		<-consumerDone
		if err := d.gw.Close(); err != nil {
			d.logger.Error("error closing gateway", zap.Error(err))
		}
		d.logger.Info("session released", zap.Stringer("state", d.machine.State()))
	}()

	d.logger.Info("starting session", zap.Duration("wait_timeout", d.timeout))
	d.gw.Start(runCtx, msgs)

	for !d.machine.State().Terminal() {
		if !d.wake.WaitOne(d.timeout) {
			// TODO: a silent window with the order in play is a candidate for a status re-query instead of an abort
			d.reporter.Line("TIMED OUT WAITING FOR RESPONSE")
			d.logger.Warn("no gateway activity within wait timeout",
				zap.Duration("wait_timeout", d.timeout),
				zap.Stringer("state", d.machine.State()),
				zap.String("order_tag", d.machine.OrderTag()),
			)
			return d.finish(OutcomeTimedOut), ErrWaitTimeout
		}
	}

	if d.machine.State() == ConnectionFailed {
		res := d.finish(OutcomeConnectionFailed)
		if cause := d.machine.Err(); cause != nil {
			return res, fmt.Errorf("%w: %v", ErrConnectionFailed, cause)
		}
		return res, ErrConnectionFailed
	}
	return d.finish(OutcomeOrderDone), nil
}

func (d *Driver) finish(outcome Outcome) Result {
	observability.RunOutcomes.WithLabelValues(string(outcome)).Inc()
	res := Result{
		Outcome:  outcome,
		State:    d.machine.State(),
		OrderTag: d.machine.OrderTag(),
	}
	d.logger.Info("run finished",
		zap.String("outcome", string(outcome)),
		zap.Stringer("state", res.State),
		zap.String("order_tag", res.OrderTag),
	)
	return res
}
