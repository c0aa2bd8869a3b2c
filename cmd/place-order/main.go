package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ismaiel54/ems-order-client/internal/chaos"
	"github.com/ismaiel54/ems-order-client/internal/config"
	"github.com/ismaiel54/ems-order-client/internal/gateway/remote"
	"github.com/ismaiel54/ems-order-client/internal/gateway/sim"
	"github.com/ismaiel54/ems-order-client/internal/logging"
	"github.com/ismaiel54/ems-order-client/internal/msg"
	"github.com/ismaiel54/ems-order-client/internal/observability"
	"github.com/ismaiel54/ems-order-client/internal/session"
	"github.com/ismaiel54/ems-order-client/internal/venue"
	"go.uber.org/zap"
)

// Exit codes
const (
	exitOrderDone        = 0
	exitConnectionFailed = 1
	exitTimedOut         = 2
	exitStartup          = 3
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.LoadConfig("place-order")

	logger, err := logging.NewLogger(cfg.ServiceName, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		return exitStartup
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", zap.Error(err))
		return exitStartup
	}

	ticket, err := config.LoadTicket(cfg.OrderTicket)
	if err != nil {
		logger.Error("failed to load order ticket", zap.Error(err))
		return exitStartup
	}

	logger.Info("starting place-order",
		zap.String("gateway", cfg.Gateway),
		zap.Duration("wait_timeout", cfg.WaitTimeout),
		zap.String("symbol", ticket.Symbol),
		zap.String("side", string(ticket.Side)),
		zap.Int64("volume", ticket.Volume),
	)

	gw, err := newGateway(cfg, logger)
	if err != nil {
		logger.Error("failed to create gateway", zap.Error(err))
		return exitStartup
	}

	var healthChecker *observability.HealthChecker
	if addr := cfg.HTTPAddr(); addr != "" {
		healthChecker = observability.NewHealthChecker(logger)
		go func() {
			if err := healthChecker.StartHTTPServer(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server error", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := healthChecker.Shutdown(shutdownCtx); err != nil {
				logger.Error("error shutting down health checker", zap.Error(err))
			}
		}()
	}

	// SIGINT/SIGTERM tears the gateway down; the run then ends on its own
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reporter := session.NewConsoleReporter(os.Stdout)
	driver := session.NewDriver(gw, ticket, reporter, logger, cfg.WaitTimeout)

	res, err := driver.Run(ctx)
	reporter.Line("DONE")

	switch {
	case err == nil:
		return exitOrderDone
	case errors.Is(err, session.ErrWaitTimeout):
		logger.Warn("run timed out", zap.String("order_tag", res.OrderTag))
		return exitTimedOut
	default:
		logger.Error("run failed", zap.String("order_tag", res.OrderTag), zap.Error(err))
		return exitConnectionFailed
	}
}

func newGateway(cfg *config.Config, logger *zap.Logger) (session.Gateway, error) {
	switch cfg.Gateway {
	case config.GatewayRemote:
		return remote.New(remote.Config{
			GRPCAddr:      cfg.EMSGRPCAddr,
			HealthService: cfg.EMSHealthService,
			Brokers:       msg.ParseBrokers(cfg.KafkaBrokers),
			ClientID:      cfg.ServiceName,
		}, logger), nil
	default:
		scenario, err := venue.ParseScenario(cfg.SimScenario)
		if err != nil {
			return nil, err
		}
		simCfg := sim.DefaultConfig()
		simCfg.ConnectDelay = cfg.SimConnectDelay
		simCfg.BatchGap = cfg.SimBatchGap
		simCfg.Venue.Scenario = scenario
		chaosCfg, err := chaos.LoadConfig()
		if err != nil {
			return nil, err
		}
		return sim.New(simCfg, chaos.New(chaosCfg, logger), logger), nil
	}
}
