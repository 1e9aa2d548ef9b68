package detection

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// BusNotifier publishes alerts as JSON on domain.TopicAlertCreated.
type BusNotifier struct {
	bus domain.EventBus
}

// NewBusNotifier creates a notifier backed by an event bus.
func NewBusNotifier(bus domain.EventBus) *BusNotifier {
	return &BusNotifier{bus: bus}
}

// Notify publishes alert.
func (n *BusNotifier) Notify(ctx context.Context, alert *domain.FraudAlert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}
	return n.bus.Publish(ctx, domain.TopicAlertCreated, payload)
}
