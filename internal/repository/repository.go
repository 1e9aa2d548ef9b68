// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/kestrel/internal/domain"
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (*SQLRepository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveTransaction stores a transaction. A second save of the same ID affects
// no rows and is reported as domain.ErrDuplicateTransaction.
func (r *SQLRepository) SaveTransaction(ctx context.Context, tx *domain.Transaction) error {
	if tx == nil || tx.ID == "" {
		return fmt.Errorf("%w: transaction ID is required", domain.ErrInvalidInput)
	}

	query := `
		INSERT INTO transactions (
			id, account_id, amount, currency, timestamp,
			merchant, location, channel, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query),
		tx.ID, tx.AccountID,
		tx.Amount.String(), tx.Currency,
		nullTime(tx.Timestamp),
		tx.Merchant, tx.Location, tx.Channel,
		time.Now().UTC(),
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateTransaction, tx.ID)
	}
	return nil
}

const selectTransaction = `
	SELECT id, account_id, amount, currency, timestamp, merchant, location, channel
	FROM transactions
`

// GetTransaction retrieves a transaction by ID.
func (r *SQLRepository) GetTransaction(ctx context.Context, txID string) (*domain.Transaction, error) {
	row := r.db.QueryRowContext(ctx, r.rebind(selectTransaction+` WHERE id = ?`), txID)

	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// RecentTransactions retrieves an account's transactions with event time at or after since.
func (r *SQLRepository) RecentTransactions(ctx context.Context, accountID string, since time.Time) ([]*domain.Transaction, error) {
	query := selectTransaction + `
		WHERE account_id = ?
		  AND timestamp >= ?
		ORDER BY timestamp DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), accountID, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []*domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}

	return transactions, rows.Err()
}

// CountTransactions counts an account's transactions with event time at or after since.
func (r *SQLRepository) CountTransactions(ctx context.Context, accountID string, since time.Time) (int64, error) {
	query := `
		SELECT COUNT(*) FROM transactions
		WHERE account_id = ?
		  AND timestamp >= ?
	`

	var count int64
	err := r.db.QueryRowContext(ctx, r.rebind(query), accountID, since.UTC()).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// SaveAlert stores an alert and assigns its ID.
func (r *SQLRepository) SaveAlert(ctx context.Context, alert *domain.FraudAlert) error {
	if alert == nil || alert.TransactionID == "" {
		return fmt.Errorf("%w: alert transaction ID is required", domain.ErrInvalidInput)
	}

	id := uuid.New().String()

	query := `
		INSERT INTO alerts (
			id, transaction_id, account_id, score, risk_level, reason, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		id, alert.TransactionID, alert.AccountID,
		alert.Score, string(alert.RiskLevel), alert.Reason,
		alert.CreatedAt.UTC(),
	)
	if err != nil {
		return err
	}

	alert.ID = id
	return nil
}

// AlertsByAccount retrieves an account's alerts, newest first.
func (r *SQLRepository) AlertsByAccount(ctx context.Context, accountID string, limit int) ([]*domain.FraudAlert, error) {
	if limit <= 0 {
		limit = domain.DefaultAlertLimit
	}

	query := `
		SELECT id, transaction_id, account_id, score, risk_level, reason, created_at
		FROM alerts
		WHERE account_id = ?
		ORDER BY created_at DESC
		LIMIT ` + strconv.Itoa(limit)

	rows, err := r.db.QueryContext(ctx, r.rebind(query), accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []*domain.FraudAlert
	for rows.Next() {
		var a domain.FraudAlert
		var level string

		if err := rows.Scan(
			&a.ID, &a.TransactionID, &a.AccountID,
			&a.Score, &level, &a.Reason, &a.CreatedAt,
		); err != nil {
			return nil, err
		}

		a.RiskLevel = domain.RiskLevel(level)
		a.CreatedAt = a.CreatedAt.UTC()
		alerts = append(alerts, &a)
	}

	return alerts, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var tx domain.Transaction
	var ts sql.NullTime

	if err := row.Scan(
		&tx.ID, &tx.AccountID,
		&tx.Amount, &tx.Currency,
		&ts,
		&tx.Merchant, &tx.Location, &tx.Channel,
	); err != nil {
		return nil, err
	}

	if ts.Valid {
		tx.Timestamp = ts.Time.UTC()
	}
	return &tx, nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, strconv.Itoa(n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
