package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Gateway kinds
const (
	GatewaySim    = "sim"
	GatewayRemote = "remote"
)

// Config holds configuration for all programs
type Config struct {
	// Service name
	ServiceName string

	// gRPC server port (venue simulator)
	GRPCPort int

	// HTTP health/metrics port, 0 disables the server
	HTTPPort int

	// Log level: debug, info, warn, error
	LogLevel string

	// Gateway selects the venue: sim or remote
	Gateway string

	// Venue gRPC address and the health service name it reports on
	EMSGRPCAddr      string
	EMSHealthService string

	// Kafka brokers (comma-separated)
	KafkaBrokers string

	// WaitTimeout bounds each wait for a venue notification
	WaitTimeout time.Duration

	// Simulated venue behaviour
	SimScenario     string
	SimConnectDelay time.Duration
	SimBatchGap     time.Duration

	// Data directory for the venue simulator's store
	DataDir string

	// Optional YAML file overlaying the default order ticket
	OrderTicket string
}

// LoadConfig loads configuration from environment variables with defaults
func LoadConfig(serviceName string) *Config {
	defaultHTTPPort := 0
	if serviceName == "ems-sim" {
		defaultHTTPPort = 8080
	}

	cfg := &Config{
		ServiceName:      serviceName,
		GRPCPort:         getEnvAsInt("PORT_GRPC", 50051),
		HTTPPort:         getEnvAsInt("PORT_HTTP", defaultHTTPPort),
		LogLevel:         getEnvAsString("LOG_LEVEL", "info"),
		Gateway:          getEnvAsString("GATEWAY", GatewaySim),
		EMSGRPCAddr:      getEnvAsString("EMS_GRPC_ADDR", "127.0.0.1:50051"),
		EMSHealthService: getEnvAsString("EMS_HEALTH_SERVICE", "ems.v1.OrderGateway"),
		KafkaBrokers:     getEnvAsString("KAFKA_BROKERS", "127.0.0.1:9092"),
		WaitTimeout:      getEnvAsDuration("WAIT_TIMEOUT", 10*time.Second),
		SimScenario:      getEnvAsString("SIM_SCENARIO", "fill"),
		SimConnectDelay:  getEnvAsDuration("SIM_CONNECT_DELAY", 100*time.Millisecond),
		SimBatchGap:      getEnvAsDuration("SIM_BATCH_GAP", 50*time.Millisecond),
		DataDir:          getEnvAsString("DATA_DIR", "./data"),
		OrderTicket:      os.Getenv("ORDER_TICKET"),
	}

	return cfg
}

// Validate rejects settings no program can run with
func (c *Config) Validate() error {
	switch c.Gateway {
	case GatewaySim, GatewayRemote:
	default:
		return fmt.Errorf("GATEWAY must be %q or %q, got %q", GatewaySim, GatewayRemote, c.Gateway)
	}
	if c.WaitTimeout <= 0 {
		return fmt.Errorf("WAIT_TIMEOUT must be positive, got %s", c.WaitTimeout)
	}
	if c.HTTPPort < 0 || c.GRPCPort < 0 {
		return fmt.Errorf("ports must not be negative")
	}
	return nil
}

// GRPCAddr returns the gRPC server address
func (c *Config) GRPCAddr() string {
	return fmt.Sprintf(":%d", c.GRPCPort)
}

// HTTPAddr returns the HTTP server address, empty when disabled
func (c *Config) HTTPAddr() string {
	if c.HTTPPort == 0 {
		return ""
	}
	return fmt.Sprintf(":%d", c.HTTPPort)
}

func getEnvAsString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
