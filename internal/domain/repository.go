// Package domain defines the core types and collaborator interfaces for Kestrel.
package domain

import (
	"context"
	"time"
)

// TransactionStore persists transactions and answers history lookups.
type TransactionStore interface {
	// SaveTransaction persists tx once per ID. A second save of the same ID
	// returns an error wrapping ErrDuplicateTransaction and nothing else.
	SaveTransaction(ctx context.Context, tx *Transaction) error

	// RecentTransactions returns every transaction for the account whose event
	// time is at or after since, in no particular order.
	RecentTransactions(ctx context.Context, accountID string, since time.Time) ([]*Transaction, error)
}

// AlertStore persists fraud alerts.
type AlertStore interface {
	// SaveAlert persists the alert and assigns alert.ID.
	SaveAlert(ctx context.Context, alert *FraudAlert) error

	// AlertsByAccount returns the newest alerts first. A limit <= 0 means DefaultAlertLimit.
	AlertsByAccount(ctx context.Context, accountID string, limit int) ([]*FraudAlert, error)
}

// DefaultAlertLimit is used when a caller asks for alerts without a positive limit.
const DefaultAlertLimit = 50

// Repository is the full storage surface used by the CLI and API.
type Repository interface {
	TransactionStore
	AlertStore

	GetTransaction(ctx context.Context, txID string) (*Transaction, error)
	CountTransactions(ctx context.Context, accountID string, since time.Time) (int64, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string `mapstructure:"driver" json:"driver"`

	// SQLite specific
	SQLitePath string `mapstructure:"sqlitePath" json:"sqlitePath"`

	// PostgreSQL specific
	PostgresHost     string `mapstructure:"postgresHost" json:"postgresHost"`
	PostgresPort     int    `mapstructure:"postgresPort" json:"postgresPort"`
	PostgresUser     string `mapstructure:"postgresUser" json:"postgresUser"`
	PostgresPassword string `mapstructure:"postgresPassword" json:"-"`
	PostgresDB       string `mapstructure:"postgresDB" json:"postgresDB"`
	PostgresSSLMode  string `mapstructure:"postgresSSLMode" json:"postgresSSLMode"`

	// Connection pool settings
	MaxOpenConns    int           `mapstructure:"maxOpenConns" json:"maxOpenConns"`
	MaxIdleConns    int           `mapstructure:"maxIdleConns" json:"maxIdleConns"`
	ConnMaxLifetime time.Duration `mapstructure:"connMaxLifetime" json:"connMaxLifetime"`
}

// StorageConfig is the call policy applied to every storage operation.
type StorageConfig struct {
	// TimeoutMs bounds each storage call. 0 disables the per-call deadline.
	TimeoutMs int `mapstructure:"timeoutMs" json:"timeoutMs"`

	BreakerEnabled bool `mapstructure:"breakerEnabled" json:"breakerEnabled"`

	// BreakerMaxFailures consecutive failures open the breaker.
	BreakerMaxFailures int `mapstructure:"breakerMaxFailures" json:"breakerMaxFailures"`

	// BreakerOpenSeconds is how long the breaker stays open before probing.
	BreakerOpenSeconds int `mapstructure:"breakerOpenSeconds" json:"breakerOpenSeconds"`
}
