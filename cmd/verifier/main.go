package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/ismaiel54/ems-order-client/internal/logging"
	"github.com/ismaiel54/ems-order-client/internal/msg"
	"github.com/ismaiel54/ems-order-client/internal/order"
	"go.uber.org/zap"
)

// orderTally is what the verifier saw for one order tag
type orderTally struct {
	events        int
	closing       int
	firstEventID  string
	seenEventIDs  map[string]int
	closingStatus []string
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <duration_seconds> [brokers]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Example: %s 30 127.0.0.1:9092\n", os.Args[0])
		os.Exit(1)
	}

	var durationSeconds int
	if _, err := fmt.Sscanf(os.Args[1], "%d", &durationSeconds); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid duration: %v\n", err)
		os.Exit(1)
	}

	brokers := "127.0.0.1:9092"
	if len(os.Args) >= 3 {
		brokers = os.Args[2]
	}

	logger, err := logging.NewLogger("verifier", "info")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	brokerList := msg.ParseBrokers(brokers)

	logger.Info("starting verifier",
		zap.Int("duration_seconds", durationSeconds),
		zap.Strings("brokers", brokerList),
	)

	consumer, err := msg.NewConsumer(brokerList, "verifier-v1", []string{msg.TopicOrdersEvents}, logger)
	if err != nil {
		logger.Fatal("failed to create consumer", zap.Error(err))
	}
	defer consumer.Close()

	tallies := make(map[string]*orderTally)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(durationSeconds)*time.Second)
	defer cancel()

	err = consumer.Run(ctx, func(ctx context.Context, rec msg.Record) error {
		var m msg.OrderEventMsg
		if err := json.Unmarshal(rec.Value, &m); err != nil {
			logger.Warn("failed to unmarshal event", zap.Error(err))
			return nil // Continue processing
		}
		record(tallies, m.Event())

		logger.Debug("consumed event",
			zap.String("order_tag", m.OrderTag),
			zap.String("event_id", m.EventID),
			zap.String("type", string(m.Type)),
			zap.String("status", m.CurrentStatus),
			zap.Int32("partition", rec.Partition),
			zap.Int64("offset", rec.Offset),
		)
		return nil
	})

	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		logger.Error("consumer error", zap.Error(err))
	}

	problems := check(tallies)

	totalEvents := 0
	for _, t := range tallies {
		totalEvents += t.events
	}

	fmt.Println("\n=== Verification Results ===")
	fmt.Printf("Total events consumed: %d\n", totalEvents)
	fmt.Printf("Order tags: %d\n", len(tallies))
	fmt.Printf("Orders failing checks: %d\n", len(problems))

	if len(problems) > 0 {
		fmt.Println("\nProblems found:")
		for _, p := range problems {
			fmt.Printf("  %s\n", p)
		}
		fmt.Println("\n❌ VERIFICATION FAILED")
		os.Exit(1)
	}

	fmt.Println("\n✅ VERIFICATION PASSED: every order closed exactly once, no duplicate events")
	os.Exit(0)
}

func record(tallies map[string]*orderTally, ev order.Event) {
	t, ok := tallies[ev.OrderTag]
	if !ok {
		t = &orderTally{firstEventID: ev.EventID, seenEventIDs: make(map[string]int)}
		tallies[ev.OrderTag] = t
	}
	t.events++
	t.seenEventIDs[ev.EventID]++
	if ev.Closes() {
		t.closing++
		t.closingStatus = append(t.closingStatus, ev.CurrentStatus)
	}
}

// check returns one line per order tag that did not close exactly once or
// carried a redelivered event id
func check(tallies map[string]*orderTally) []string {
	tags := make([]string, 0, len(tallies))
	for tag := range tallies {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	var problems []string
	for _, tag := range tags {
		t := tallies[tag]
		if t.closing != 1 {
			problems = append(problems, fmt.Sprintf("order %s: %d closing events %v (first event %s)",
				tag, t.closing, t.closingStatus, t.firstEventID))
		}
		for id, n := range t.seenEventIDs {
			if n > 1 {
				problems = append(problems, fmt.Sprintf("order %s: event %s seen %d times", tag, id, n))
			}
		}
	}
	return problems
}
