package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/zombor/expense-tracker/internal/expense"
	"github.com/zombor/expense-tracker/internal/metrics"
	"github.com/zombor/expense-tracker/internal/scanning"
)

var (
	// ErrEmptyRecognition means the scanner produced no usable line items
	ErrEmptyRecognition = errors.New("no line items recognized")
	// ErrLineFormat means a line number reply was not a positive integer
	ErrLineFormat = errors.New("line number must be a positive integer")
)

const listTitle = "Receipt items:"

// User-facing messages
const (
	msgReading           = "Reading the receipt..."
	msgUnreadable        = "Couldn't read any items from this receipt. Try a clearer photo."
	msgEditPrompt        = "Which line do you want to edit? Send its number."
	msgDeletePrompt      = "Which line do you want to delete? Send its number."
	msgLineFormat        = "Send the line number as a whole number, e.g. 1."
	msgRange             = "There is no such line. Send a number from 1 to %d."
	msgReplacementPrompt = "Editing line %d: was %s — %s\nSend the new value as \"name amount\", e.g. Bread 50."
	msgEntryFormat       = "Couldn't read that. Send \"name amount\", e.g. Coffee 3,50."
	msgSaved             = "Saved %d items."
	msgNothingToSave     = "Nothing to save."
	msgSaveFailed        = "Couldn't save the expenses. Please try again later."
	msgCancelled         = "Cancelled."
	msgStale             = "This list is no longer active. Send a new receipt photo."
	msgUseButtons        = "Use the buttons under the list, or send a new photo."
)

// IDGenerator generates unique session ids
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Options tunes presentation and instrumentation
type Options struct {
	// Currency is appended to displayed amounts; empty shows bare numbers
	Currency string
	// RecentLimit caps the /list command
	RecentLimit int
	Metrics     *metrics.Metrics
}

// Service runs the conversation for every user. Events for one user are
// handled one at a time in arrival order; different users proceed in parallel.
type Service struct {
	db          expense.DB
	scanner     scanning.Scanner
	presenter   Presenter
	staging     *Staging
	sessions    *Sessions
	coordinator *Coordinator
	locks       *userLocks
	opts        Options
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with uuid session ids and the wall clock
func NewService(db expense.DB, scanner scanning.Scanner, presenter Presenter, opts Options) *Service {
	return NewServiceWithDeps(db, scanner, presenter, opts, &uuidGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db expense.DB, scanner scanning.Scanner, presenter Presenter, opts Options, idGen IDGenerator, timeSrc TimeSource) *Service {
	if opts.RecentLimit <= 0 {
		opts.RecentLimit = 10
	}
	staging := NewStaging()
	sessions := NewSessions()
	return &Service{
		db:          db,
		scanner:     scanner,
		presenter:   presenter,
		staging:     staging,
		sessions:    sessions,
		coordinator: NewCoordinator(db, staging, sessions, opts.Metrics),
		locks:       newUserLocks(),
		opts:        opts,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// Staged returns a copy of the user's staged list
func (s *Service) Staged(user UserID) ([]expense.LineItem, bool) {
	return s.staging.Get(user)
}

// Session returns the user's current session
func (s *Service) Session(user UserID) (Session, bool) {
	return s.sessions.Get(user)
}

// Dispatch handles one event for user. Parse, range and stale errors are
// reported to the user and not returned; the returned error is a transport failure.
func (s *Service) Dispatch(ctx context.Context, user UserID, ev Event) error {
	unlock := s.locks.lock(user)
	defer unlock()

	switch ev := ev.(type) {
	case PhotoSubmitted:
		return s.handlePhoto(ctx, user, ev)
	case EditRequested:
		return s.handleModeSelected(ctx, user, ModeEdit)
	case DeleteRequested:
		return s.handleModeSelected(ctx, user, ModeDelete)
	case LineNumberGiven:
		return s.handleLineNumber(ctx, user, ev.Text)
	case ReplacementGiven:
		return s.handleReplacement(ctx, user, ev.Text)
	case SaveRequested:
		return s.handleSave(ctx, user)
	case CancelRequested:
		return s.handleCancel(ctx, user)
	case MenuInterrupt:
		return s.handleMenu(ctx, user, ev.Command)
	case TextReceived:
		return s.handleText(ctx, user, ev.Text)
	case ClearConfirmed:
		return s.handleClearConfirmed(ctx, user)
	default:
		return fmt.Errorf("unknown event %T", ev)
	}
}

func (s *Service) handlePhoto(ctx context.Context, user UserID, ev PhotoSubmitted) error {
	if sess, ok := s.sessions.Get(user); ok {
		if _, staged := s.staging.Get(user); staged {
			slog.Warn("Discarding unsaved receipt list for a new photo", "user", user, "session", sess.ID)
		}
		s.tidy(ctx, user, sess.ListHandle, sess.PromptHandle)
		s.coordinator.Discard(user, metrics.ReasonSuperseded)
	}

	notice, err := s.presenter.Notify(ctx, user, msgReading)
	if err != nil {
		return err
	}
	items, err := s.recognize(ctx, ev)
	s.tidy(ctx, user, notice)
	if err != nil {
		slog.Info("No items recognized", "user", user, "error", err)
		_, err := s.presenter.Notify(ctx, user, msgUnreadable)
		return err
	}

	sess := Session{ID: s.idGenerator.Generate(), State: ViewingList}
	s.staging.Set(user, items)
	slog.Info("Staged receipt items", "user", user, "session", sess.ID, "items", len(items))
	return s.showList(ctx, user, sess)
}

// recognize scans a receipt. Scanner failures and unusable results both end
// in ErrEmptyRecognition.
func (s *Service) recognize(ctx context.Context, ev PhotoSubmitted) ([]expense.LineItem, error) {
	scanned, err := s.scanner.ScanReceipt(ctx, ev.Image, ev.ContentType)
	if err != nil {
		slog.Error("Failed to scan receipt",
			"content_type", ev.ContentType,
			"file_size", len(ev.Image),
			"error", err,
		)
		s.opts.Metrics.ReceiptScanned(metrics.OutcomeError)
		return nil, fmt.Errorf("%w: %w", ErrEmptyRecognition, err)
	}

	items := make([]expense.LineItem, 0, len(scanned))
	for _, sc := range scanned {
		item, err := expense.NewLineItem(sc.Name, sc.Price)
		if err != nil {
			slog.Debug("Skipping scanned item", "name", sc.Name, "error", err)
			continue
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		s.opts.Metrics.ReceiptScanned(metrics.OutcomeEmpty)
		return nil, ErrEmptyRecognition
	}
	s.opts.Metrics.ReceiptScanned(metrics.OutcomeItems)
	return items, nil
}

// showList renders the staged list in place of the previous one and returns
// the session to ViewingList. An empty list ends the session.
func (s *Service) showList(ctx context.Context, user UserID, sess Session) error {
	s.tidy(ctx, user, sess.ListHandle, sess.PromptHandle)
	sess.ListHandle, sess.PromptHandle = "", ""
	sess.State, sess.Mode, sess.Target = ViewingList, ModeNone, 0

	items, ok := s.staging.Get(user)
	if !ok || len(items) == 0 {
		s.coordinator.Discard(user, metrics.ReasonEmpty)
		_, err := s.presenter.Notify(ctx, user, expense.EmptyList)
		return err
	}

	h, err := s.presenter.ShowList(ctx, user, expense.Render(listTitle, items, s.opts.Currency))
	if err != nil {
		s.sessions.Put(user, sess)
		return fmt.Errorf("showing list: %w", err)
	}
	sess.ListHandle = h
	s.sessions.Put(user, sess)
	return nil
}

// reviewSession returns the user's review session with its staged list. If
// either is missing, leftovers are cleared and the user is told the list is stale.
func (s *Service) reviewSession(ctx context.Context, user UserID) (Session, []expense.LineItem, bool, error) {
	sess, ok := s.sessions.Get(user)
	items, staged := s.staging.Get(user)
	if ok && staged && sess.reviewing() {
		return sess, items, true, nil
	}
	return Session{}, nil, false, s.stale(ctx, user, sess)
}

func (s *Service) stale(ctx context.Context, user UserID, sess Session) error {
	slog.Debug("Stale review event", "user", user, "state", sess.State)
	s.tidy(ctx, user, sess.ListHandle, sess.PromptHandle)
	s.coordinator.Discard(user, metrics.ReasonStale)
	_, err := s.presenter.Notify(ctx, user, msgStale)
	return err
}

func (s *Service) handleModeSelected(ctx context.Context, user UserID, mode Mode) error {
	sess, _, ok, err := s.reviewSession(ctx, user)
	if !ok {
		return err
	}

	prompt := msgDeletePrompt
	if mode == ModeEdit {
		prompt = msgEditPrompt
	}
	s.tidy(ctx, user, sess.PromptHandle)
	h, err := s.presenter.Prompt(ctx, user, prompt)
	if err != nil {
		return err
	}
	sess.State, sess.Mode, sess.PromptHandle = AwaitingLineNumber, mode, h
	s.sessions.Put(user, sess)
	return nil
}

// lineIndex converts a 1-based line number reply into a 0-based index
func lineIndex(text string, length int) (int, error) {
	text = strings.TrimSpace(text)
	if text == "" || strings.ContainsFunc(text, func(r rune) bool { return !unicode.IsDigit(r) }) {
		return 0, ErrLineFormat
	}
	n, err := strconv.Atoi(text)
	if errors.Is(err, strconv.ErrRange) {
		return 0, ErrRange
	}
	if err != nil {
		return 0, ErrLineFormat
	}
	if n < 1 || n > length {
		return 0, ErrRange
	}
	return n - 1, nil
}

func (s *Service) handleLineNumber(ctx context.Context, user UserID, text string) error {
	sess, items, ok, err := s.reviewSession(ctx, user)
	if !ok {
		return err
	}
	if sess.State != AwaitingLineNumber {
		slog.Debug("Ignoring line number", "user", user, "state", sess.State)
		return nil
	}

	idx, err := lineIndex(text, len(items))
	switch {
	case errors.Is(err, ErrRange):
		_, err = s.presenter.Notify(ctx, user, fmt.Sprintf(msgRange, len(items)))
		return err
	case err != nil:
		_, err = s.presenter.Notify(ctx, user, msgLineFormat)
		return err
	}

	switch sess.Mode {
	case ModeDelete:
		if err := s.staging.DeleteAt(user, idx); err != nil {
			return s.stale(ctx, user, sess)
		}
		return s.showList(ctx, user, sess)
	case ModeEdit:
		s.tidy(ctx, user, sess.PromptHandle)
		old := items[idx]
		h, err := s.presenter.Prompt(ctx, user,
			fmt.Sprintf(msgReplacementPrompt, idx+1, old.Name, expense.FormatMoney(old.Price, s.opts.Currency)))
		if err != nil {
			return err
		}
		sess.State, sess.Target, sess.PromptHandle = AwaitingReplacement, idx, h
		s.sessions.Put(user, sess)
		return nil
	default:
		slog.Warn("Line number without a pending operation", "user", user, "session", sess.ID)
		return nil
	}
}

func (s *Service) handleReplacement(ctx context.Context, user UserID, text string) error {
	sess, _, ok, err := s.reviewSession(ctx, user)
	if !ok {
		return err
	}
	if sess.State != AwaitingReplacement {
		slog.Debug("Ignoring replacement", "user", user, "state", sess.State)
		return nil
	}

	item, err := expense.ParseLineItem(text)
	if err != nil {
		_, err := s.presenter.Notify(ctx, user, msgEntryFormat)
		return err
	}
	if err := s.staging.UpdateAt(user, sess.Target, item); err != nil {
		return s.stale(ctx, user, sess)
	}
	return s.showList(ctx, user, sess)
}

func (s *Service) handleSave(ctx context.Context, user UserID) error {
	sess, _, ok, err := s.reviewSession(ctx, user)
	if !ok {
		return err
	}

	n, err := s.coordinator.Commit(ctx, user)
	s.tidy(ctx, user, sess.ListHandle, sess.PromptHandle)
	switch {
	case errors.Is(err, ErrNothingToSave):
		_, err = s.presenter.Notify(ctx, user, msgNothingToSave)
	case err != nil:
		slog.Error("Failed to save receipt items", "user", user, "session", sess.ID, "error", err)
		_, err = s.presenter.Notify(ctx, user, msgSaveFailed)
	default:
		slog.Info("Saved receipt items", "user", user, "session", sess.ID, "items", n)
		_, err = s.presenter.Notify(ctx, user, fmt.Sprintf(msgSaved, n))
	}
	return err
}

func (s *Service) handleCancel(ctx context.Context, user UserID) error {
	if sess, ok := s.sessions.Get(user); ok {
		s.tidy(ctx, user, sess.ListHandle, sess.PromptHandle)
	}
	s.coordinator.Discard(user, metrics.ReasonCancel)
	_, err := s.presenter.Notify(ctx, user, msgCancelled)
	return err
}

func (s *Service) handleText(ctx context.Context, user UserID, text string) error {
	sess, ok := s.sessions.Get(user)
	if !ok {
		return s.quickAdd(ctx, user, text)
	}

	switch sess.State {
	case AwaitingLineNumber:
		return s.handleLineNumber(ctx, user, text)
	case AwaitingReplacement:
		return s.handleReplacement(ctx, user, text)
	case AwaitingManualEntry:
		return s.handleManualEntry(ctx, user, sess, text)
	case ViewingList:
		_, err := s.presenter.Notify(ctx, user, msgUseButtons)
		return err
	default:
		slog.Debug("Ignoring text", "user", user, "state", sess.State)
		return nil
	}
}

// tidy removes messages that no longer belong to a live session. Failures are
// only logged.
func (s *Service) tidy(ctx context.Context, user UserID, handles ...Handle) {
	for _, h := range handles {
		if h == "" {
			continue
		}
		if err := s.presenter.Remove(ctx, user, h); err != nil {
			slog.Debug("Failed to remove message", "user", user, "handle", h, "error", err)
		}
	}
}
