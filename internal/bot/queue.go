package bot

import (
	"sync"

	"github.com/zombor/expense-tracker/internal/review"
)

// userQueues runs jobs for one user strictly in submission order. Each
// user with pending work gets its own goroutine, so users do not wait on
// each other.
type userQueues struct {
	mu      sync.Mutex
	pending map[review.UserID][]func()
	wg      sync.WaitGroup
}

func newUserQueues() *userQueues {
	return &userQueues{pending: make(map[review.UserID][]func())}
}

func (q *userQueues) submit(user review.UserID, job func()) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.wg.Add(1)
	jobs, running := q.pending[user]
	q.pending[user] = append(jobs, job)
	if !running {
		go q.drain(user)
	}
}

func (q *userQueues) drain(user review.UserID) {
	for {
		q.mu.Lock()
		jobs := q.pending[user]
		if len(jobs) == 0 {
			delete(q.pending, user)
			q.mu.Unlock()
			return
		}
		job := jobs[0]
		q.pending[user] = jobs[1:]
		q.mu.Unlock()

		job()
		q.wg.Done()
	}
}

// wait blocks until every submitted job has finished
func (q *userQueues) wait() {
	q.wg.Wait()
}
