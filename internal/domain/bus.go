package domain

import (
	"context"
)

// EventBus defines the interface for event-driven communication.
// Supports Go channels or NATS.
type EventBus interface {
	// Publish sends a message to a topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe registers a handler for a topic.
	// Returns a subscription that can be used to unsubscribe.
	Subscribe(ctx context.Context, topic string, handler MessageHandler) (Subscription, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// MessageHandler processes incoming messages.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message represents an event message.
type Message struct {
	ID        string            `json:"id"`
	Topic     string            `json:"topic"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	Timestamp int64             `json:"timestamp"`
}

// Subscription represents an active subscription.
type Subscription interface {
	// Unsubscribe stops receiving messages.
	Unsubscribe() error

	// Topic returns the subscribed topic.
	Topic() string
}

// EventBusConfig holds configuration for event bus initialization.
type EventBusConfig struct {
	// Type is the bus type: "none", "channel" or "nats"
	Type string `mapstructure:"type" json:"type"`

	// Channel settings
	ChannelBufferSize int `mapstructure:"channelBufferSize" json:"channelBufferSize"`

	// NATS settings
	NATSUrl           string `mapstructure:"natsUrl" json:"natsUrl"`
	NATSToken         string `mapstructure:"natsToken" json:"-"`
	NATSMaxReconnects int    `mapstructure:"natsMaxReconnects" json:"natsMaxReconnects"`
	NATSReconnectWait int    `mapstructure:"natsReconnectWait" json:"natsReconnectWait"` // seconds
}

// TopicAlertCreated carries every persisted FraudAlert as JSON.
const TopicAlertCreated = "kestrel.alert.created"
