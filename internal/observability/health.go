package observability

import (
	"context"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// HealthChecker manages health checks for both gRPC and HTTP
type HealthChecker struct {
	grpcHealth *health.Server
	httpServer *http.Server
	logger     *zap.Logger
	mu         sync.RWMutex
	services   []string
	ready      bool
	kafkaReady bool
	usesKafka  bool
}

// NewHealthChecker creates a new health checker. Each named service gets its
// own gRPC serving status next to the overall "" entry.
func NewHealthChecker(logger *zap.Logger, services ...string) *HealthChecker {
	return &HealthChecker{
		grpcHealth: health.NewServer(),
		logger:     logger,
		services:   services,
		ready:      true,
	}
}

// RegisterGRPC registers the health service with the gRPC server
func (h *HealthChecker) RegisterGRPC(s *grpc.Server) {
	grpc_health_v1.RegisterHealthServer(s, h.grpcHealth)
	h.grpcHealth.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	h.publish()
}

// Handler returns the HTTP mux serving /healthz and /metrics
func (h *HealthChecker) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealthz)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// StartHTTPServer starts the HTTP health check server
func (h *HealthChecker) StartHTTPServer(addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: h.Handler(),
	}
	h.mu.Lock()
	h.httpServer = srv
	h.mu.Unlock()

	h.logger.Info("starting HTTP health server", zap.String("addr", addr))
	return srv.ListenAndServe()
}

// Shutdown gracefully shuts down the health checker
func (h *HealthChecker) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.ready = false
	srv := h.httpServer
	h.mu.Unlock()
	h.grpcHealth.Shutdown()

	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}

// SetKafkaReady sets the Kafka client readiness status. Named services report
// NOT_SERVING until Kafka is ready.
func (h *HealthChecker) SetKafkaReady(ready bool) {
	h.mu.Lock()
	h.kafkaReady = ready
	h.usesKafka = true
	h.mu.Unlock()
	h.publish()
}

func (h *HealthChecker) healthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	// Health check passes if ready is true and (not using Kafka or Kafka is ready)
	return h.ready && (!h.usesKafka || h.kafkaReady)
}

func (h *HealthChecker) publish() {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if h.healthy() {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	for _, svc := range h.services {
		h.grpcHealth.SetServingStatus(svc, status)
	}
}

func (h *HealthChecker) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if h.healthy() {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("NOT_READY"))
	}
}
