package review

import (
	"errors"
	"slices"
	"sync"

	"github.com/zombor/expense-tracker/internal/expense"
)

var (
	// ErrStale means an event referred to a staged list that no longer exists
	ErrStale = errors.New("staged list is stale")
	// ErrRange means a line number outside the staged list
	ErrRange = errors.New("line number out of range")
)

// Staging holds each user's parsed but unsaved receipt lines. Lists are
// copied in and out so callers never share a backing array with the store.
type Staging struct {
	mu    sync.RWMutex
	lists map[UserID][]expense.LineItem
}

func NewStaging() *Staging {
	return &Staging{
		lists: make(map[UserID][]expense.LineItem),
	}
}

// Set replaces any list staged for user
func (s *Staging) Set(user UserID, items []expense.LineItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists[user] = slices.Clone(items)
}

// Get returns a copy of the staged list and whether one exists
func (s *Staging) Get(user UserID) ([]expense.LineItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items, ok := s.lists[user]
	if !ok {
		return nil, false
	}
	return slices.Clone(items), true
}

func (s *Staging) Remove(user UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lists, user)
}

// UpdateAt replaces the item at a 0-based index
func (s *Staging) UpdateAt(user UserID, index int, item expense.LineItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, ok := s.lists[user]
	if !ok {
		return ErrStale
	}
	if index < 0 || index >= len(items) {
		return ErrRange
	}
	updated := slices.Clone(items)
	updated[index] = item
	s.lists[user] = updated
	return nil
}

// DeleteAt removes the item at a 0-based index; later items shift down by one
func (s *Staging) DeleteAt(user UserID, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, ok := s.lists[user]
	if !ok {
		return ErrStale
	}
	if index < 0 || index >= len(items) {
		return ErrRange
	}
	s.lists[user] = slices.Delete(slices.Clone(items), index, index+1)
	return nil
}

// Len returns the number of users with a staged list
func (s *Staging) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.lists)
}
