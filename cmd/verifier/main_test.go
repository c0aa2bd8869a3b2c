package main

import (
	"testing"

	"github.com/ismaiel54/ems-order-client/internal/order"
	"github.com/stretchr/testify/assert"
)

func TestCheck(t *testing.T) {
	tallies := make(map[string]*orderTally)

	record(tallies, order.Event{EventID: "a1", OrderTag: "a", Type: order.UserSubmitOrder, CurrentStatus: order.StatusPending})
	record(tallies, order.Event{EventID: "a2", OrderTag: "a", Type: order.UserSubmitOrder, CurrentStatus: order.StatusCompleted})

	// Never closed
	record(tallies, order.Event{EventID: "b1", OrderTag: "b", Type: order.UserSubmitOrder, CurrentStatus: order.StatusPending})

	// Closing event redelivered
	record(tallies, order.Event{EventID: "c1", OrderTag: "c", Type: order.UserSubmitOrder, CurrentStatus: order.StatusDeleted})
	record(tallies, order.Event{EventID: "c1", OrderTag: "c", Type: order.UserSubmitOrder, CurrentStatus: order.StatusDeleted})

	problems := check(tallies)
	assert.Len(t, problems, 3)
	assert.Contains(t, problems[0], "order b: 0 closing events")
	assert.Contains(t, problems[1], "order c: 2 closing events")
	assert.Contains(t, problems[2], "event c1 seen 2 times")
}

func TestCheck_AllGood(t *testing.T) {
	tallies := make(map[string]*orderTally)
	record(tallies, order.Event{EventID: "k1", OrderTag: "k", Type: order.ExchangeKillOrder, CurrentStatus: "KILLED"})
	record(tallies, order.Event{EventID: "k2", OrderTag: "k", Type: order.UserSubmitOrder, CurrentStatus: order.StatusDeleted})
	assert.Empty(t, check(tallies))
}
