package chaos

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// AnyOp keys the fault applied to operations without an entry of their own
const AnyOp = "*"

// Fault is what chaos does to one gateway operation
type Fault struct {
	// DropPct is the chance, 0-100, that the operation is lost
	DropPct int
	// DelayMin..DelayMax bounds the pause injected before the operation
	DelayMin time.Duration
	DelayMax time.Duration
}

// Config holds chaos configuration
type Config struct {
	Enabled bool
	// Faults maps an operation (OpConnect, OpEvents or AnyOp) to its fault
	Faults map[string]Fault
	Seed   int64
	// Window limits injection to the first Window of the run; 0 means always
	Window                time.Duration
	DisconnectAfterSubmit bool
}

// LoadConfig loads chaos configuration from environment variables.
// CHAOS_FAULTS uses the ParseFaults format.
func LoadConfig() (*Config, error) {
	faults, err := ParseFaults(getEnvAsString("CHAOS_FAULTS", ""))
	if err != nil {
		return nil, fmt.Errorf("CHAOS_FAULTS: %w", err)
	}

	return &Config{
		Enabled:               getEnvAsBool("CHAOS_ENABLED", false),
		Faults:                faults,
		Seed:                  getEnvAsInt64("CHAOS_SEED", 1),
		Window:                getEnvAsDuration("CHAOS_WINDOW", 0),
		DisconnectAfterSubmit: getEnvAsBool("CHAOS_DISCONNECT_AFTER_SUBMIT", false),
	}, nil
}

// ParseFaults parses a fault table like
// "connect:drop=100; events:drop=20,delay=50ms-250ms". Entries are separated
// by ';', settings by ','. A single delay value means a fixed pause.
func ParseFaults(s string) (map[string]Fault, error) {
	faults := make(map[string]Fault)
	for _, entry := range strings.Split(s, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		op, settings, ok := strings.Cut(entry, ":")
		op = strings.TrimSpace(op)
		if !ok || op == "" {
			return nil, fmt.Errorf("entry %q: want op:settings", entry)
		}
		if _, dup := faults[op]; dup {
			return nil, fmt.Errorf("op %q listed twice", op)
		}

		var f Fault
		for _, kv := range strings.Split(settings, ",") {
			key, val, _ := strings.Cut(strings.TrimSpace(kv), "=")
			switch key {
			case "drop":
				pct, err := strconv.Atoi(val)
				if err != nil || pct < 0 || pct > 100 {
					return nil, fmt.Errorf("op %q: drop %q is not a percentage", op, val)
				}
				f.DropPct = pct
			case "delay":
				lo, hi, err := parseDelay(val)
				if err != nil {
					return nil, fmt.Errorf("op %q: %w", op, err)
				}
				f.DelayMin, f.DelayMax = lo, hi
			default:
				return nil, fmt.Errorf("op %q: unknown setting %q", op, key)
			}
		}
		faults[op] = f
	}
	return faults, nil
}

func parseDelay(val string) (time.Duration, time.Duration, error) {
	loStr, hiStr, ranged := strings.Cut(val, "-")
	lo, err := time.ParseDuration(loStr)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid delay %q: %w", val, err)
	}
	if !ranged {
		return lo, lo, nil
	}
	hi, err := time.ParseDuration(hiStr)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid delay %q: %w", val, err)
	}
	if hi < lo {
		return 0, 0, fmt.Errorf("invalid delay %q: max below min", val)
	}
	return lo, hi, nil
}

func getEnvAsString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
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
