package expense

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.etcd.io/bbolt"
)

const bucketName = "expenses"

// DB defines the interface for durable expense storage
type DB interface {
	// InsertMany stores all items as one batch and returns how many were written
	InsertMany(ctx context.Context, items []LineItem) (int, error)

	// Recent returns up to limit expenses, newest first
	Recent(ctx context.Context, limit int) ([]*Expense, error)

	// Since returns expenses created at or after since, newest first
	Since(ctx context.Context, since time.Time) ([]*Expense, error)

	// Sum returns the total of all stored prices
	Sum(ctx context.Context) (decimal.Decimal, error)

	// DeleteAll removes every stored expense
	DeleteAll(ctx context.Context) error

	// Close closes the database connection
	Close() error
}

var _ DB = (*BoltDB)(nil)

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db  *bbolt.DB
	now func() time.Time
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db, now: time.Now}, nil
}

// itob encodes a sequence number so keys sort in insertion order
func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// InsertMany writes all items in a single transaction
func (b *BoltDB) InsertMany(ctx context.Context, items []LineItem) (int, error) {
	now := b.now()
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		for _, item := range items {
			id, err := bucket.NextSequence()
			if err != nil {
				return fmt.Errorf("allocating id: %w", err)
			}
			data, err := json.Marshal(&Expense{
				ID:        id,
				Name:      item.Name,
				Price:     item.Price,
				CreatedAt: now,
			})
			if err != nil {
				return fmt.Errorf("marshaling expense: %w", err)
			}
			if err := bucket.Put(itob(id), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// Recent walks the bucket backwards from the newest key
func (b *BoltDB) Recent(ctx context.Context, limit int) ([]*Expense, error) {
	if limit <= 0 {
		return []*Expense{}, nil
	}
	expenses := make([]*Expense, 0, limit)
	err := b.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(bucketName)).Cursor()
		for k, v := c.Last(); k != nil && len(expenses) < limit; k, v = c.Prev() {
			var e Expense
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("unmarshaling expense: %w", err)
			}
			expenses = append(expenses, &e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return expenses, nil
}

// Since returns expenses created at or after since
func (b *BoltDB) Since(ctx context.Context, since time.Time) ([]*Expense, error) {
	expenses := make([]*Expense, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(bucketName)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var e Expense
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("unmarshaling expense: %w", err)
			}
			if !e.CreatedAt.Before(since) {
				expenses = append(expenses, &e)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return expenses, nil
}

// Sum totals every stored price
func (b *BoltDB) Sum(ctx context.Context) (decimal.Decimal, error) {
	total := decimal.Zero
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).ForEach(func(k, v []byte) error {
			var e Expense
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("unmarshaling expense: %w", err)
			}
			total = total.Add(e.Price)
			return nil
		})
	})
	if err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

// DeleteAll drops and recreates the expenses bucket
func (b *BoltDB) DeleteAll(ctx context.Context) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket([]byte(bucketName)); err != nil {
			return fmt.Errorf("deleting bucket: %w", err)
		}
		_, err := tx.CreateBucket([]byte(bucketName))
		return err
	})
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
