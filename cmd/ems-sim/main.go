package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ismaiel54/ems-order-client/internal/config"
	"github.com/ismaiel54/ems-order-client/internal/idempotency"
	"github.com/ismaiel54/ems-order-client/internal/logging"
	"github.com/ismaiel54/ems-order-client/internal/msg"
	"github.com/ismaiel54/ems-order-client/internal/observability"
	"github.com/ismaiel54/ems-order-client/internal/venue"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

func main() {
	// Load configuration
	cfg := config.LoadConfig("ems-sim")

	// Initialize logger
	logger, err := logging.NewLogger(cfg.ServiceName, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	scenario, err := venue.ParseScenario(cfg.SimScenario)
	if err != nil {
		logger.Fatal("invalid SIM_SCENARIO", zap.Error(err))
	}
	venueCfg := venue.DefaultConfig()
	venueCfg.Scenario = scenario

	logger.Info("starting ems-sim service",
		zap.Int("grpc_port", cfg.GRPCPort),
		zap.Int("http_port", cfg.HTTPPort),
		zap.String("kafka_brokers", cfg.KafkaBrokers),
		zap.String("data_dir", cfg.DataDir),
		zap.String("scenario", string(scenario)),
		zap.String("health_service", cfg.EMSHealthService),
	)

	// Open idempotency store
	dbPath := filepath.Join(cfg.DataDir, "ems-sim.db")
	store, err := idempotency.Open(dbPath)
	if err != nil {
		logger.Fatal("failed to open idempotency store", zap.Error(err))
	}
	defer store.Close()

	logger.Info("idempotency store opened", zap.String("path", dbPath))

	// The named service stays NOT_SERVING until Kafka is reachable
	healthChecker := observability.NewHealthChecker(logger, cfg.EMSHealthService)
	healthChecker.SetKafkaReady(false)

	brokers := msg.ParseBrokers(cfg.KafkaBrokers)
	producer, err := msg.NewProducer(brokers, cfg.ServiceName, logger)
	if err != nil {
		logger.Fatal("failed to create kafka producer", zap.Error(err))
	}
	defer producer.Close()

	publisher := idempotency.NewPublisher(store, producer, logger)

	consumer, err := msg.NewConsumer(brokers, "ems-sim-v1", []string{msg.TopicOrdersCommands}, logger)
	if err != nil {
		logger.Fatal("failed to create kafka consumer", zap.Error(err))
	}
	defer consumer.Close()

	// Create gRPC server
	grpcServer := grpc.NewServer()
	healthChecker.RegisterGRPC(grpcServer)

	grpcListener, err := net.Listen("tcp", cfg.GRPCAddr())
	if err != nil {
		logger.Fatal("failed to listen on gRPC port", zap.Error(err))
	}

	grpcErrCh := make(chan error, 1)
	go func() {
		logger.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr()))
		if err := grpcServer.Serve(grpcListener); err != nil {
			grpcErrCh <- err
		}
	}()

	httpErrCh := make(chan error, 1)
	if addr := cfg.HTTPAddr(); addr != "" {
		go func() {
			if err := healthChecker.StartHTTPServer(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				httpErrCh <- err
			}
		}()
	}

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumerErrCh := make(chan error, 1)
	go func() {
		err := consumer.Run(runCtx, func(ctx context.Context, rec msg.Record) error {
			var cmd msg.OrderCmdMsg
			if err := json.Unmarshal(rec.Value, &cmd); err != nil {
				// Retrying will not fix a malformed payload
				logger.Warn("dropping malformed order command",
					zap.Int64("kafka_offset", rec.Offset),
					zap.Error(err),
				)
				return nil
			}

			result, err := store.ProcessOrderCommand(ctx, cmd, venue.Plan(cmd.Order, venueCfg), cfg.SimBatchGap)
			if err != nil {
				return err
			}

			if result.Duplicate {
				observability.VenueOrdersExecuted.WithLabelValues("duplicate").Inc()
				logger.Info("duplicate order command, skipping",
					zap.String("order_tag", cmd.Order.OrderTag),
					zap.String("command_event_id", cmd.EventID),
					zap.String("status", result.Status),
				)
				return nil
			}

			observability.VenueOrdersExecuted.WithLabelValues("new").Inc()
			logger.Info("order command processed",
				zap.String("order_tag", cmd.Order.OrderTag),
				zap.String("command_event_id", cmd.EventID),
				zap.String("account", cmd.Order.Account.String()),
				zap.String("symbol", cmd.Order.Symbol),
				zap.String("side", string(cmd.Order.Side)),
				zap.Int64("volume", cmd.Order.Volume),
				zap.String("status", result.Status),
				zap.Int("outbox_events", len(result.OutboxEvents)),
				zap.String("kafka_topic", rec.Topic),
				zap.Int32("kafka_partition", rec.Partition),
				zap.Int64("kafka_offset", rec.Offset),
			)
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			consumerErrCh <- err
		}
	}()

	publisherErrCh := make(chan error, 1)
	go func() {
		if err := publisher.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			publisherErrCh <- err
		}
	}()

	// Report SERVING once the brokers answer
	go func() {
		for {
			pingCtx, cancelPing := context.WithTimeout(runCtx, 2*time.Second)
			err := producer.Ping(pingCtx)
			cancelPing()
			if err == nil {
				healthChecker.SetKafkaReady(true)
				logger.Info("kafka reachable, venue serving")
				return
			}
			logger.Warn("kafka not reachable yet", zap.Error(err))
			select {
			case <-runCtx.Done():
				return
			case <-time.After(time.Second):
			}
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-grpcErrCh:
		logger.Error("gRPC server error", zap.Error(err))
	case err := <-httpErrCh:
		logger.Error("HTTP server error", zap.Error(err))
	case err := <-consumerErrCh:
		logger.Error("consumer error", zap.Error(err))
	case err := <-publisherErrCh:
		logger.Error("publisher error", zap.Error(err))
	}

	logger.Info("shutting down gracefully...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	// Health goes NOT_SERVING first so connected clients see the session drop
	if err := healthChecker.Shutdown(shutdownCtx); err != nil {
		logger.Error("error shutting down health checker", zap.Error(err))
	}

	cancel()
	consumer.Close()
	producer.Close()

	// Open health watches keep GracefulStop waiting; cut them after a grace period
	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		grpcServer.Stop()
	}

	logger.Info("ems-sim service stopped")
}
