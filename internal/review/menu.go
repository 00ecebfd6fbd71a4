package review

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/zombor/expense-tracker/internal/expense"
	"github.com/zombor/expense-tracker/internal/metrics"
	"github.com/zombor/expense-tracker/internal/report"
)

const (
	msgWelcome      = "Hi! Send a receipt photo, or add an expense as \"name amount\", e.g. Coffee 3,50."
	msgSendReceipt  = "Send a photo or PDF of the receipt."
	msgAddPrompt    = "Send the expense as \"name amount\", e.g. Coffee 3,50."
	msgAdded        = "Added: %s — %s"
	msgRecentTitle  = "Last %d expenses:"
	msgStats        = "Total spent: %s"
	msgClearConfirm = "Delete all saved expenses? This cannot be undone."
	msgCleared      = "All expenses deleted."
	msgClearExpired = "This confirmation has expired. Use /clear again."
	msgReportPeriod = "The report period must be from 1 to %d days."
	msgReportFile   = "Report for %d days, total %s"
	msgStoreFailed  = "Something went wrong reading your expenses. Please try again later."
)

// handleMenu abandons any active session before running cmd
func (s *Service) handleMenu(ctx context.Context, user UserID, cmd Command) error {
	s.abandon(ctx, user)

	switch cmd := cmd.(type) {
	case StartCommand:
		return s.notify(ctx, user, msgWelcome)
	case ReceiptCommand:
		return s.notify(ctx, user, msgSendReceipt)
	case AddCommand:
		return s.startManualEntry(ctx, user, cmd.Entry)
	case ListCommand:
		return s.showRecent(ctx, user)
	case StatsCommand:
		return s.showStats(ctx, user)
	case ClearCommand:
		return s.confirmClear(ctx, user)
	case ReportCommand:
		return s.sendReport(ctx, user, cmd)
	default:
		return fmt.Errorf("unknown command %T", cmd)
	}
}

func (s *Service) abandon(ctx context.Context, user UserID) {
	sess, ok := s.sessions.Get(user)
	if !ok {
		return
	}
	slog.Debug("Abandoning session", "user", user, "session", sess.ID, "state", sess.State)
	s.tidy(ctx, user, sess.ListHandle, sess.PromptHandle)
	s.coordinator.Discard(user, metrics.ReasonMenu)
}

func (s *Service) notify(ctx context.Context, user UserID, text string) error {
	_, err := s.presenter.Notify(ctx, user, text)
	return err
}

func (s *Service) startManualEntry(ctx context.Context, user UserID, entry string) error {
	if entry != "" {
		_, err := s.insertEntry(ctx, user, entry)
		return err
	}

	h, err := s.presenter.Prompt(ctx, user, msgAddPrompt)
	if err != nil {
		return err
	}
	s.sessions.Put(user, Session{
		ID:           s.idGenerator.Generate(),
		State:        AwaitingManualEntry,
		PromptHandle: h,
	})
	return nil
}

func (s *Service) handleManualEntry(ctx context.Context, user UserID, sess Session, text string) error {
	done, err := s.insertEntry(ctx, user, text)
	if done {
		s.tidy(ctx, user, sess.PromptHandle)
		s.sessions.Remove(user)
	}
	return err
}

// quickAdd saves idle text that looks like "name amount". Anything else is ignored.
func (s *Service) quickAdd(ctx context.Context, user UserID, text string) error {
	if !expense.LooksLikeEntry(text) {
		slog.Debug("Ignoring idle text", "user", user)
		return nil
	}
	_, err := s.insertEntry(ctx, user, text)
	return err
}

// insertEntry parses and saves one expense. done is false only when the text
// could not be parsed, so the caller may keep waiting for a valid entry.
func (s *Service) insertEntry(ctx context.Context, user UserID, text string) (bool, error) {
	item, err := expense.ParseLineItem(text)
	if err != nil {
		return false, s.notify(ctx, user, msgEntryFormat)
	}

	if _, err := s.db.InsertMany(ctx, []expense.LineItem{item}); err != nil {
		slog.Error("Failed to add expense", "user", user, "error", err)
		s.opts.Metrics.CommitFailed()
		return true, s.notify(ctx, user, msgSaveFailed)
	}
	s.opts.Metrics.ItemsCommitted(1)
	slog.Info("Added expense", "user", user, "name", item.Name, "price", item.Price.StringFixed(2))
	return true, s.notify(ctx, user, fmt.Sprintf(msgAdded, item.Name, expense.FormatMoney(item.Price, s.opts.Currency)))
}

func (s *Service) showRecent(ctx context.Context, user UserID) error {
	expenses, err := s.db.Recent(ctx, s.opts.RecentLimit)
	if err != nil {
		slog.Error("Failed to list expenses", "user", user, "error", err)
		return s.notify(ctx, user, msgStoreFailed)
	}

	items := make([]expense.LineItem, 0, len(expenses))
	for _, e := range expenses {
		items = append(items, expense.LineItem{Name: e.Name, Price: e.Price})
	}
	return s.notify(ctx, user, expense.Render(fmt.Sprintf(msgRecentTitle, len(items)), items, s.opts.Currency))
}

func (s *Service) showStats(ctx context.Context, user UserID) error {
	total, err := s.db.Sum(ctx)
	if err != nil {
		slog.Error("Failed to sum expenses", "user", user, "error", err)
		return s.notify(ctx, user, msgStoreFailed)
	}
	return s.notify(ctx, user, fmt.Sprintf(msgStats, expense.FormatMoney(total, s.opts.Currency)))
}

func (s *Service) confirmClear(ctx context.Context, user UserID) error {
	h, err := s.presenter.Confirm(ctx, user, msgClearConfirm)
	if err != nil {
		return err
	}
	s.sessions.Put(user, Session{
		ID:           s.idGenerator.Generate(),
		State:        ConfirmingClear,
		PromptHandle: h,
	})
	return nil
}

func (s *Service) handleClearConfirmed(ctx context.Context, user UserID) error {
	sess, ok := s.sessions.Get(user)
	if !ok || sess.State != ConfirmingClear {
		return s.notify(ctx, user, msgClearExpired)
	}
	s.tidy(ctx, user, sess.PromptHandle)
	s.sessions.Remove(user)

	if err := s.db.DeleteAll(ctx); err != nil {
		slog.Error("Failed to delete expenses", "user", user, "error", err)
		return s.notify(ctx, user, msgStoreFailed)
	}
	slog.Info("Deleted all expenses", "user", user)
	return s.notify(ctx, user, msgCleared)
}

func (s *Service) sendReport(ctx context.Context, user UserID, cmd ReportCommand) error {
	if cmd.Days <= 0 || cmd.Days > report.MaxDays {
		return s.notify(ctx, user, fmt.Sprintf(msgReportPeriod, report.MaxDays))
	}

	rep, err := report.Build(ctx, s.db, cmd.Days, s.timeSource.Now())
	if err != nil {
		slog.Error("Failed to build report", "user", user, "days", cmd.Days, "error", err)
		return s.notify(ctx, user, msgStoreFailed)
	}

	if cmd.Format != ReportCSV || rep.Empty() {
		return s.notify(ctx, user, rep.Text(s.opts.Currency))
	}

	data, err := rep.CSV()
	if err != nil {
		slog.Error("Failed to export report", "user", user, "days", cmd.Days, "error", err)
		return s.notify(ctx, user, msgStoreFailed)
	}
	caption := fmt.Sprintf(msgReportFile, rep.Days, expense.FormatMoney(rep.Total, s.opts.Currency))
	return s.presenter.SendFile(ctx, user, rep.Filename(), data, caption)
}
