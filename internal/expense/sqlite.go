package expense

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

var _ DB = (*SQLiteDB)(nil)

// SQLiteDB implements the DB interface using SQLite. Prices are stored as
// integer cents and timestamps as unix milliseconds.
type SQLiteDB struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteDB opens the database at path, creating parent directories and the schema.
func NewSQLiteDB(path string) (*SQLiteDB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	// Serialize writers; SQLite allows one at a time anyway.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS expenses (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			price_cents INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_expenses_created_at ON expenses(created_at);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLiteDB{db: db, now: time.Now}, nil
}

// InsertMany inserts all items inside one transaction
func (s *SQLiteDB) InsertMany(ctx context.Context, items []LineItem) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO expenses (name, price_cents, created_at) VALUES (?, ?, ?)")
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	createdAt := s.now().UnixMilli()
	for _, item := range items {
		cents, err := toCents(item.Price)
		if err != nil {
			return 0, err
		}
		if _, err := stmt.ExecContext(ctx, item.Name, cents, createdAt); err != nil {
			return 0, fmt.Errorf("inserting expense: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}
	return len(items), nil
}

// Recent returns the newest expenses
func (s *SQLiteDB) Recent(ctx context.Context, limit int) ([]*Expense, error) {
	if limit <= 0 {
		return []*Expense{}, nil
	}
	return s.query(ctx,
		"SELECT id, name, price_cents, created_at FROM expenses ORDER BY created_at DESC, id DESC LIMIT ?",
		limit)
}

// Since returns expenses created at or after since
func (s *SQLiteDB) Since(ctx context.Context, since time.Time) ([]*Expense, error) {
	return s.query(ctx,
		"SELECT id, name, price_cents, created_at FROM expenses WHERE created_at >= ? ORDER BY created_at DESC, id DESC",
		since.UnixMilli())
}

func (s *SQLiteDB) query(ctx context.Context, query string, args ...any) ([]*Expense, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying expenses: %w", err)
	}
	defer rows.Close()

	expenses := make([]*Expense, 0)
	for rows.Next() {
		var (
			e         Expense
			cents     int64
			createdAt int64
		)
		if err := rows.Scan(&e.ID, &e.Name, &cents, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning expense: %w", err)
		}
		e.Price = fromCents(cents)
		e.CreatedAt = time.UnixMilli(createdAt)
		expenses = append(expenses, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating expenses: %w", err)
	}
	return expenses, nil
}

// Sum totals every stored price
func (s *SQLiteDB) Sum(ctx context.Context) (decimal.Decimal, error) {
	var cents int64
	err := s.db.QueryRowContext(ctx, "SELECT COALESCE(SUM(price_cents), 0) FROM expenses").Scan(&cents)
	if err != nil {
		return decimal.Zero, fmt.Errorf("summing expenses: %w", err)
	}
	return fromCents(cents), nil
}

// DeleteAll removes every row
func (s *SQLiteDB) DeleteAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM expenses"); err != nil {
		return fmt.Errorf("deleting expenses: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}
