package session

import (
	"fmt"
	"io"
	"sync"

	"github.com/ismaiel54/ems-order-client/internal/order"
)

// Reporter receives the operator-visible side effects of a run
type Reporter interface {
	// Status is called for every order event before it is interpreted
	Status(ev order.Event)
	Fill(ev order.Event)
	Kill(ev order.Event)
	// Line prints a free-form operator line
	Line(format string, args ...any)
}

// ConsoleReporter writes operator lines to w
type ConsoleReporter struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsoleReporter(w io.Writer) *ConsoleReporter {
	return &ConsoleReporter{w: w}
}

func (c *ConsoleReporter) Status(ev order.Event) {
	c.Line("Type: %s Status: %s", ev.Type, ev.CurrentStatus)
}

func (c *ConsoleReporter) Fill(ev order.Event) {
	c.Line("GOT FILL FOR %s %d AT %s", ev.BuyOrSell, ev.Volume, ev.Price.StringFixed(2))
}

func (c *ConsoleReporter) Kill(order.Event) {
	c.Line("GOT KILL")
}

func (c *ConsoleReporter) Line(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, format+"\n", args...)
}
