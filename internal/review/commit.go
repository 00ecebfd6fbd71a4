package review

import (
	"context"
	"errors"
	"fmt"

	"github.com/zombor/expense-tracker/internal/expense"
	"github.com/zombor/expense-tracker/internal/metrics"
)

var (
	// ErrNothingToSave means a commit found no staged items
	ErrNothingToSave = errors.New("nothing to save")
	// ErrPersistence wraps a durable store failure during commit
	ErrPersistence = errors.New("persisting staged list")
)

// Coordinator moves a staged list into durable storage or drops it. Both
// paths leave no staged list and no session behind for the user.
type Coordinator struct {
	db       expense.DB
	staging  *Staging
	sessions *Sessions
	metrics  *metrics.Metrics
}

func NewCoordinator(db expense.DB, staging *Staging, sessions *Sessions, m *metrics.Metrics) *Coordinator {
	return &Coordinator{
		db:       db,
		staging:  staging,
		sessions: sessions,
		metrics:  m,
	}
}

// Commit writes the user's staged list as a single batch and returns the
// number of items saved. Staged state is cleared whether or not the write
// succeeds; failed writes are not retried.
func (c *Coordinator) Commit(ctx context.Context, user UserID) (int, error) {
	defer c.clear(user)

	items, ok := c.staging.Get(user)
	if !ok || len(items) == 0 {
		return 0, ErrNothingToSave
	}

	n, err := c.db.InsertMany(ctx, items)
	if err != nil {
		c.metrics.CommitFailed()
		return 0, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	c.metrics.ItemsCommitted(n)
	return n, nil
}

// Discard drops the user's staged list and session without saving. It is a
// no-op when nothing is staged.
func (c *Coordinator) Discard(user UserID, reason string) {
	_, staged := c.staging.Get(user)
	c.clear(user)
	if staged {
		c.metrics.SessionDiscarded(reason)
	}
}

func (c *Coordinator) clear(user UserID) {
	c.staging.Remove(user)
	c.sessions.Remove(user)
}
