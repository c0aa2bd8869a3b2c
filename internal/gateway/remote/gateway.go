// Package remote connects to a networked venue: session liveness comes from
// the venue's gRPC health service, orders and their events travel over Kafka.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/ismaiel54/ems-order-client/internal/msg"
	"github.com/ismaiel54/ems-order-client/internal/order"
	"github.com/ismaiel54/ems-order-client/internal/session"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// DefaultHealthService is the gRPC health entry the venue reports on
const DefaultHealthService = "ems.v1.OrderGateway"

var errConnectTimeout = errors.New("venue did not report SERVING in time")

// Config holds the venue endpoints
type Config struct {
	GRPCAddr       string
	HealthService  string
	Brokers        []string
	ClientID       string
	ConnectTimeout time.Duration
}

// Gateway implements session.Gateway against a networked venue
type Gateway struct {
	cfg    Config
	logger *zap.Logger

	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	out      chan<- session.Message
	conn     *grpc.ClientConn
	producer *msg.Producer
	consumer *msg.Consumer
	orderTag string

	live atomic.Bool
	dead atomic.Bool
	wg   sync.WaitGroup
}

// New creates a remote gateway; nothing is dialed until Start
func New(cfg Config, logger *zap.Logger) *Gateway {
	if cfg.HealthService == "" {
		cfg.HealthService = DefaultHealthService
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	return &Gateway{cfg: cfg, logger: logger}
}

// Start dials Kafka and the venue, then reports Connected on the first
// SERVING health status
func (g *Gateway) Start(ctx context.Context, out chan<- session.Message) {
	g.mu.Lock()
	g.ctx, g.cancel = context.WithCancel(ctx)
	g.out = out
	runCtx := g.ctx
	g.mu.Unlock()

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		if err := g.connect(runCtx); err != nil {
			g.fail(err)
		}
	}()
}

func (g *Gateway) connect(ctx context.Context) error {
	startMillis := time.Now().UnixMilli()

	producer, err := msg.NewProducer(g.cfg.Brokers, g.cfg.ClientID, g.logger)
	if err != nil {
		return err
	}
	g.mu.Lock()
	g.producer = producer
	g.mu.Unlock()

	pingCtx, cancel := context.WithTimeout(ctx, g.cfg.ConnectTimeout)
	err = producer.Ping(pingCtx)
	cancel()
	if err != nil {
		return err
	}

	// Read events from run start; no group, so nothing is committed
	consumer, err := msg.NewConsumer(g.cfg.Brokers, "", []string{msg.TopicOrdersEvents}, g.logger,
		kgo.ConsumeResetOffset(kgo.NewOffset().AfterMilli(startMillis)),
	)
	if err != nil {
		return err
	}

	conn, err := grpc.NewClient(g.cfg.GRPCAddr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStreamInterceptor(g.streamInterceptor),
	)
	if err != nil {
		consumer.Close()
		return fmt.Errorf("failed to dial venue: %w", err)
	}

	g.mu.Lock()
	g.consumer = consumer
	g.conn = conn
	g.mu.Unlock()

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		g.consumeEvents(ctx, consumer)
	}()

	return g.watchHealth(ctx, grpc_health_v1.NewHealthClient(conn))
}

// watchHealth turns the venue's health stream into Connected/Disconnected
func (g *Gateway) watchHealth(ctx context.Context, client grpc_health_v1.HealthClient) error {
	timer := time.AfterFunc(g.cfg.ConnectTimeout, func() {
		if !g.live.Load() {
			g.fail(errConnectTimeout)
		}
	})
	defer timer.Stop()

	stream, err := client.Watch(ctx, &grpc_health_v1.HealthCheckRequest{Service: g.cfg.HealthService})
	if err != nil {
		return fmt.Errorf("failed to watch venue health: %w", err)
	}

	for {
		resp, err := stream.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("venue health stream: %w", err)
		}

		st := resp.GetStatus()
		g.logger.Debug("venue health", zap.String("status", st.String()))

		if st == grpc_health_v1.HealthCheckResponse_SERVING {
			if g.live.CompareAndSwap(false, true) {
				g.logger.Info("venue session live",
					zap.String("addr", g.cfg.GRPCAddr),
					zap.String("service", g.cfg.HealthService),
				)
				g.send(session.Connected{})
			}
			continue
		}
		if g.live.Load() {
			return fmt.Errorf("venue reported %s", st)
		}
	}
}

func (g *Gateway) consumeEvents(ctx context.Context, consumer *msg.Consumer) {
	err := consumer.RunBatches(ctx, func(ctx context.Context, recs []msg.Record) error {
		if batch := g.decodeBatch(recs); len(batch) > 0 {
			g.send(session.OrderEvents{Batch: batch})
		}
		return nil
	})
	if err != nil && ctx.Err() == nil {
		g.fail(fmt.Errorf("order event feed: %w", err))
	}
}

// decodeBatch keeps the records addressed to our order, in fetch order
func (g *Gateway) decodeBatch(recs []msg.Record) []order.Event {
	tag := g.currentTag()
	if tag == "" {
		return nil
	}

	var batch []order.Event
	for _, rec := range recs {
		if rec.Key != tag {
			continue
		}
		var m msg.OrderEventMsg
		if err := json.Unmarshal(rec.Value, &m); err != nil {
			g.logger.Warn("dropping undecodable order event",
				zap.Int64("offset", rec.Offset),
				zap.Error(err),
			)
			continue
		}
		batch = append(batch, m.Event())
	}
	return batch
}

// SubmitOrder produces the order command without waiting for the broker
func (g *Gateway) SubmitOrder(_ context.Context, req order.Request) {
	g.mu.Lock()
	g.orderTag = req.OrderTag
	producer, runCtx := g.producer, g.ctx
	g.mu.Unlock()

	if producer == nil {
		// Called from the session's consumer; never send on its own input
		go g.reject(req, errors.New("no venue session"))
		return
	}

	producer.ProduceJSONAsync(runCtx, msg.TopicOrdersCommands, req.OrderTag, msg.NewOrderCmd(req), func(err error) {
		if err != nil {
			g.logger.Error("order command not delivered",
				zap.String("order_tag", req.OrderTag),
				zap.Error(err),
			)
			// Off the client's callback goroutine
			go g.reject(req, err)
			return
		}
		g.logger.Debug("order command delivered", zap.String("order_tag", req.OrderTag))
	})
}

// reject reports a local submission failure the way the venue would
func (g *Gateway) reject(req order.Request, cause error) {
	g.send(session.OrderEvents{Batch: []order.Event{{
		EventID:       uuid.New().String(),
		OrderTag:      req.OrderTag,
		Type:          order.UserSubmitOrder,
		CurrentStatus: order.StatusDeleted,
		BuyOrSell:     req.Side,
		Reason:        cause.Error(),
	}}})
}

// Close tears the session down and waits for background work
func (g *Gateway) Close() error {
	g.mu.Lock()
	cancel := g.cancel
	g.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	g.wg.Wait()

	g.mu.Lock()
	defer g.mu.Unlock()

	var errs []error
	if g.producer != nil {
		flushCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := g.producer.Flush(flushCtx); err != nil {
			errs = append(errs, fmt.Errorf("flush order commands: %w", err))
		}
		cancel()
		g.producer.Close()
	}
	if g.consumer != nil {
		g.consumer.Close()
	}
	if g.conn != nil {
		if err := g.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close venue connection: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (g *Gateway) currentTag() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.orderTag
}

func (g *Gateway) send(m session.Message) {
	g.mu.Lock()
	ctx, out := g.ctx, g.out
	g.mu.Unlock()
	if out == nil {
		return
	}
	session.Send(ctx, out, m)
}

// fail reports the session lost, once
func (g *Gateway) fail(err error) {
	if !g.dead.CompareAndSwap(false, true) {
		return
	}
	g.logger.Warn("venue session down", zap.Error(err))
	g.send(session.Disconnected{Err: err})
}

func (g *Gateway) streamInterceptor(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, opts ...grpc.CallOption) (grpc.ClientStream, error) {
	start := time.Now()
	cs, err := streamer(ctx, desc, cc, method, opts...)
	g.logger.Info("gRPC stream opened",
		zap.String("method", method),
		zap.Duration("duration", time.Since(start)),
		zap.String("status_code", status.Code(err).String()),
	)
	return cs, err
}
