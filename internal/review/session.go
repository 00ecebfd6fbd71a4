package review

import (
	"sync"
)

// State is where a user is in the conversation
type State int

const (
	Idle State = iota
	ViewingList
	AwaitingLineNumber
	AwaitingReplacement
	AwaitingManualEntry
	ConfirmingClear
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case ViewingList:
		return "viewing_list"
	case AwaitingLineNumber:
		return "awaiting_line_number"
	case AwaitingReplacement:
		return "awaiting_replacement"
	case AwaitingManualEntry:
		return "awaiting_manual_entry"
	case ConfirmingClear:
		return "confirming_clear"
	default:
		return "unknown"
	}
}

// Mode is the pending line operation while awaiting a line number
type Mode int

const (
	ModeNone Mode = iota
	ModeEdit
	ModeDelete
)

// Session is one user's conversational state. Review sessions (ViewingList
// through AwaitingReplacement) live exactly as long as the user's staged list.
type Session struct {
	ID    string
	State State
	Mode  Mode
	// Target is the 0-based index awaiting replacement
	Target int
	// ListHandle and PromptHandle are the messages currently shown for the session
	ListHandle   Handle
	PromptHandle Handle
}

func (s Session) reviewing() bool {
	return s.State >= ViewingList && s.State <= AwaitingReplacement
}

// Sessions maps users to their current session
type Sessions struct {
	mu       sync.RWMutex
	sessions map[UserID]Session
}

func NewSessions() *Sessions {
	return &Sessions{
		sessions: make(map[UserID]Session),
	}
}

func (s *Sessions) Get(user UserID) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[user]
	return sess, ok
}

func (s *Sessions) Put(user UserID, sess Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[user] = sess
}

func (s *Sessions) Remove(user UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, user)
}

// userLocks serializes event handling per user. Entries are dropped once no
// goroutine holds or waits on them.
type userLocks struct {
	mu    sync.Mutex
	locks map[UserID]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[UserID]*userLock)}
}

// lock blocks until user's lock is held and returns the matching unlock
func (l *userLocks) lock(user UserID) func() {
	l.mu.Lock()
	ul, ok := l.locks[user]
	if !ok {
		ul = &userLock{}
		l.locks[user] = ul
	}
	ul.refs++
	l.mu.Unlock()

	ul.mu.Lock()
	return func() {
		ul.mu.Unlock()
		l.mu.Lock()
		ul.refs--
		if ul.refs == 0 {
			delete(l.locks, user)
		}
		l.mu.Unlock()
	}
}
