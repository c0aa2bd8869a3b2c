package config

import (
	"fmt"
	"os"

	"github.com/ismaiel54/ems-order-client/internal/order"
	"gopkg.in/yaml.v3"
)

// LoadTicket returns the default order ticket, overlaid with the YAML file at
// path when one is given. Fields absent from the file keep their defaults.
func LoadTicket(path string) (order.Ticket, error) {
	ticket := order.DefaultTicket()
	if path == "" {
		return ticket, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return order.Ticket{}, fmt.Errorf("failed to read order ticket: %w", err)
	}
	if err := yaml.Unmarshal(data, &ticket); err != nil {
		return order.Ticket{}, fmt.Errorf("failed to parse order ticket %s: %w", path, err)
	}
	return ticket, nil
}
