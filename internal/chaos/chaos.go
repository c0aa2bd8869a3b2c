package chaos

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Gateway operations chaos can target
const (
	OpConnect = "connect"
	OpEvents  = "events"
)

// Chaos injects seeded, per-operation faults into the simulated venue
type Chaos struct {
	cfg    *Config
	logger *zap.Logger
	rng    *rand.Rand
	mu     sync.Mutex
	start  time.Time
}

// New creates a new Chaos instance
func New(cfg *Config, logger *zap.Logger) *Chaos {
	return &Chaos{
		cfg:    cfg,
		logger: logger,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		start:  time.Now(),
	}
}

// Disabled returns a Chaos that never injects anything
func Disabled() *Chaos {
	return New(&Config{}, zap.NewNop())
}

// FaultFor returns the fault in force for op right now
func (c *Chaos) FaultFor(op string) (Fault, bool) {
	if !c.cfg.Enabled {
		return Fault{}, false
	}
	if c.cfg.Window > 0 && time.Since(c.start) > c.cfg.Window {
		return Fault{}, false
	}

	if f, ok := c.cfg.Faults[op]; ok {
		return f, true
	}
	f, ok := c.cfg.Faults[AnyOp]
	return f, ok
}

// MaybeDelay pauses op for its configured delay, or until ctx is done
func (c *Chaos) MaybeDelay(ctx context.Context, op string) error {
	f, ok := c.FaultFor(op)
	if !ok || f.DelayMax <= 0 {
		return nil
	}

	delay := f.DelayMin
	if span := f.DelayMax - f.DelayMin; span > 0 {
		c.mu.Lock()
		delay += time.Duration(c.rng.Int63n(int64(span) + 1))
		c.mu.Unlock()
	}

	c.logger.Info("chaos delay injected",
		zap.String("op", op),
		zap.Duration("delay", delay),
	)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

// MaybeDrop returns true if op should be lost
func (c *Chaos) MaybeDrop(op string) bool {
	f, ok := c.FaultFor(op)
	if !ok || f.DropPct == 0 {
		return false
	}

	c.mu.Lock()
	drop := c.rng.Intn(100) < f.DropPct
	c.mu.Unlock()

	if drop {
		c.logger.Info("chaos drop injected", zap.String("op", op))
	}
	return drop
}

// ShouldDisconnectAfterSubmit returns true if the session should be dropped
// once an order is acknowledged
func (c *Chaos) ShouldDisconnectAfterSubmit() bool {
	return c.cfg.Enabled && c.cfg.DisconnectAfterSubmit
}
