package session

import (
	"context"

	"github.com/ismaiel54/ems-order-client/internal/order"
)

// Message is what a Gateway pushes to the state machine
type Message interface {
	isMessage()
}

// Connected reports an established session with account data loaded
type Connected struct{}

// Disconnected reports a failed connect or a lost session
type Disconnected struct {
	Err error
}

// OrderEvents carries one or more order notifications in delivery order
type OrderEvents struct {
	Batch []order.Event
}

func (Connected) isMessage()    {}
func (Disconnected) isMessage() {}
func (OrderEvents) isMessage()  {}

// Gateway is the venue session consumed by the state machine.
//
// Implementations deliver messages in order on out and must stop sending
// once ctx is done.
type Gateway interface {
	// Start begins connecting. The outcome arrives as Connected or Disconnected.
	Start(ctx context.Context, out chan<- Message)
	// SubmitOrder hands the order to the venue. Results arrive as OrderEvents;
	// a local failure is reported as a UserSubmitOrder/DELETED event.
	SubmitOrder(ctx context.Context, req order.Request)
	// Close releases the session
	Close() error
}

// Send delivers msg unless ctx is done first. Gateways use it so a stopped
// machine never blocks a producer.
func Send(ctx context.Context, out chan<- Message, msg Message) bool {
	select {
	case out <- msg:
		return true
	case <-ctx.Done():
		return false
	}
}
