package expense

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var _ DB = (*PostgresDB)(nil)

// PostgresDB implements the DB interface on a pgx connection pool.
type PostgresDB struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPostgresDB connects to databaseURL, checks the connection and runs migrations.
func NewPostgresDB(ctx context.Context, databaseURL string) (*PostgresDB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	db := &PostgresDB{pool: pool, now: time.Now}
	if err := db.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

func (p *PostgresDB) migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS expenses (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			price_cents BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_expenses_created_at ON expenses(created_at);
	`)
	return err
}

// InsertMany copies all rows in a single COPY statement
func (p *PostgresDB) InsertMany(ctx context.Context, items []LineItem) (int, error) {
	createdAt := p.now()
	rows := make([][]any, 0, len(items))
	for _, item := range items {
		cents, err := toCents(item.Price)
		if err != nil {
			return 0, err
		}
		rows = append(rows, []any{item.Name, cents, createdAt})
	}

	n, err := p.pool.CopyFrom(ctx,
		pgx.Identifier{"expenses"},
		[]string{"name", "price_cents", "created_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return 0, fmt.Errorf("copying expenses: %w", err)
	}
	return int(n), nil
}

// Recent returns the newest expenses
func (p *PostgresDB) Recent(ctx context.Context, limit int) ([]*Expense, error) {
	if limit <= 0 {
		return []*Expense{}, nil
	}
	return p.query(ctx,
		"SELECT id, name, price_cents, created_at FROM expenses ORDER BY created_at DESC, id DESC LIMIT $1",
		limit)
}

// Since returns expenses created at or after since
func (p *PostgresDB) Since(ctx context.Context, since time.Time) ([]*Expense, error) {
	return p.query(ctx,
		"SELECT id, name, price_cents, created_at FROM expenses WHERE created_at >= $1 ORDER BY created_at DESC, id DESC",
		since)
}

func (p *PostgresDB) query(ctx context.Context, query string, args ...any) ([]*Expense, error) {
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying expenses: %w", err)
	}
	defer rows.Close()

	expenses := make([]*Expense, 0)
	for rows.Next() {
		var (
			e     Expense
			id    int64
			cents int64
		)
		if err := rows.Scan(&id, &e.Name, &cents, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning expense: %w", err)
		}
		e.ID = uint64(id)
		e.Price = fromCents(cents)
		expenses = append(expenses, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating expenses: %w", err)
	}
	return expenses, nil
}

// Sum totals every stored price
func (p *PostgresDB) Sum(ctx context.Context) (decimal.Decimal, error) {
	var cents int64
	err := p.pool.QueryRow(ctx, "SELECT COALESCE(SUM(price_cents), 0)::BIGINT FROM expenses").Scan(&cents)
	if err != nil {
		return decimal.Zero, fmt.Errorf("summing expenses: %w", err)
	}
	return fromCents(cents), nil
}

// DeleteAll removes every row
func (p *PostgresDB) DeleteAll(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, "DELETE FROM expenses"); err != nil {
		return fmt.Errorf("deleting expenses: %w", err)
	}
	return nil
}

// Close releases the pool
func (p *PostgresDB) Close() error {
	p.pool.Close()
	return nil
}
