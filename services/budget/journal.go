package budget

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	_ "github.com/lib/pq"
)

// Journal records committed spend for accounting. The ledger treats it
// as best-effort: reservation correctness never depends on it.
type Journal interface {
	RecordSpend(ctx context.Context, tenant string, cost float64, at time.Time) error
	PeriodSpend(ctx context.Context, tenant string, since time.Time) (float64, error)
}

// PostgresJournal persists spend records to PostgreSQL.
type PostgresJournal struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresJournal creates a journal backed by an existing DB handle.
func NewPostgresJournal(db *sql.DB, logger *zap.Logger) *PostgresJournal {
	return &PostgresJournal{db: db, logger: logger}
}

// OpenPostgresJournal opens a connection from a DSN and verifies it.
func OpenPostgresJournal(ctx context.Context, dsn string, logger *zap.Logger) (*PostgresJournal, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("journal database ping failed: %w", err)
	}
	return NewPostgresJournal(db, logger), nil
}

// RecordSpend inserts one committed spend row.
func (j *PostgresJournal) RecordSpend(ctx context.Context, tenant string, cost float64, at time.Time) error {
	query := `
		INSERT INTO spend_journal (tenant, cost, recorded_at)
		VALUES ($1, $2, $3)
	`

	if _, err := j.db.ExecContext(ctx, query, tenant, cost, at); err != nil {
		return fmt.Errorf("failed to insert spend record: %w", err)
	}
	return nil
}

// PeriodSpend returns the total committed spend for a tenant since the
// given time. Used by accounting dashboards, not by the routing path.
func (j *PostgresJournal) PeriodSpend(ctx context.Context, tenant string, since time.Time) (float64, error) {
	query := `
		SELECT COALESCE(SUM(cost), 0)
		FROM spend_journal
		WHERE tenant = $1 AND recorded_at >= $2
	`

	var total float64
	err := j.db.QueryRowContext(ctx, query, tenant, since).Scan(&total)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query period spend: %w", err)
	}
	return total, nil
}

// Close closes the underlying DB handle.
func (j *PostgresJournal) Close() error {
	return j.db.Close()
}
