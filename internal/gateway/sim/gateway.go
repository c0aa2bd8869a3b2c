// Package sim is an in-process venue that needs no network. It connects
// after a short delay and executes orders according to a venue.Plan.
package sim

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ismaiel54/ems-order-client/internal/chaos"
	"github.com/ismaiel54/ems-order-client/internal/order"
	"github.com/ismaiel54/ems-order-client/internal/session"
	"github.com/ismaiel54/ems-order-client/internal/venue"
	"go.uber.org/zap"
)

var (
	errLoginFailed = errors.New("simulated venue refused the session")
	errSessionLost = errors.New("simulated venue dropped the session")
)

// Config tunes the simulated venue
type Config struct {
	ConnectDelay time.Duration
	// BatchGap spaces consecutive notification batches
	BatchGap time.Duration
	Venue    venue.Config
}

// DefaultConfig connects after 100ms and fills in two clips
func DefaultConfig() Config {
	return Config{
		ConnectDelay: 100 * time.Millisecond,
		BatchGap:     50 * time.Millisecond,
		Venue:        venue.DefaultConfig(),
	}
}

// Gateway implements session.Gateway against the simulated venue
type Gateway struct {
	cfg    Config
	chaos  *chaos.Chaos
	logger *zap.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	out    chan<- session.Message
	wg     sync.WaitGroup
}

// New creates a simulated gateway
func New(cfg Config, ch *chaos.Chaos, logger *zap.Logger) *Gateway {
	if ch == nil {
		ch = chaos.Disabled()
	}
	return &Gateway{
		cfg:    cfg,
		chaos:  ch,
		logger: logger,
	}
}

// Start connects after ConnectDelay
func (g *Gateway) Start(ctx context.Context, out chan<- session.Message) {
	g.mu.Lock()
	g.ctx, g.cancel = context.WithCancel(ctx)
	g.out = out
	runCtx := g.ctx
	g.mu.Unlock()

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()

		select {
		case <-runCtx.Done():
			return
		case <-time.After(g.cfg.ConnectDelay):
		}

		if g.chaos.MaybeDrop(chaos.OpConnect) {
			session.Send(runCtx, out, session.Disconnected{Err: errLoginFailed})
			return
		}
		g.logger.Info("simulated venue session live", zap.String("scenario", string(g.cfg.Venue.Scenario)))
		session.Send(runCtx, out, session.Connected{})
	}()
}

// SubmitOrder plays the venue plan for req asynchronously
func (g *Gateway) SubmitOrder(_ context.Context, req order.Request) {
	g.mu.Lock()
	runCtx, out := g.ctx, g.out
	g.mu.Unlock()
	if out == nil {
		g.logger.Error("order submitted before session start", zap.String("order_tag", req.OrderTag))
		return
	}

	batches := venue.Plan(req, g.cfg.Venue)
	disconnect := g.cfg.Venue.Scenario == venue.ScenarioDisconnect || g.chaos.ShouldDisconnectAfterSubmit()

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()

		for i, batch := range batches {
			if err := g.chaos.MaybeDelay(runCtx, chaos.OpEvents); err != nil {
				return
			}
			select {
			case <-runCtx.Done():
				return
			case <-time.After(g.cfg.BatchGap):
			}

			if g.chaos.MaybeDrop(chaos.OpEvents) {
				continue
			}
			if !session.Send(runCtx, out, session.OrderEvents{Batch: batch}) {
				return
			}

			if i == 0 && disconnect {
				session.Send(runCtx, out, session.Disconnected{Err: errSessionLost})
				return
			}
		}
	}()
}

// Close stops all venue activity and waits for it to finish
func (g *Gateway) Close() error {
	g.mu.Lock()
	cancel := g.cancel
	g.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	g.wg.Wait()
	return nil
}
