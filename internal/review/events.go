package review

// UserID identifies the person a conversation belongs to
type UserID string

// Event is one inbound conversational turn. The transport translates its own
// messages, buttons and commands into these before calling Dispatch.
type Event interface {
	event()
}

// PhotoSubmitted carries a receipt image to scan
type PhotoSubmitted struct {
	Image       []byte
	ContentType string
}

// EditRequested asks to replace a line of the staged list
type EditRequested struct{}

// DeleteRequested asks to remove a line of the staged list
type DeleteRequested struct{}

// LineNumberGiven is the 1-based line number typed by the user
type LineNumberGiven struct {
	Text string
}

// ReplacementGiven is the "name amount" text replacing the targeted line
type ReplacementGiven struct {
	Text string
}

// SaveRequested commits the staged list
type SaveRequested struct{}

// CancelRequested discards the staged list or any pending prompt
type CancelRequested struct{}

// MenuInterrupt abandons whatever the user was doing and runs Command
type MenuInterrupt struct {
	Command Command
}

// TextReceived is free text whose meaning depends on the session state
type TextReceived struct {
	Text string
}

// ClearConfirmed confirms deletion of the whole expense history
type ClearConfirmed struct{}

func (PhotoSubmitted) event()   {}
func (EditRequested) event()    {}
func (DeleteRequested) event()  {}
func (LineNumberGiven) event()  {}
func (ReplacementGiven) event() {}
func (SaveRequested) event()    {}
func (CancelRequested) event()  {}
func (MenuInterrupt) event()    {}
func (TextReceived) event()     {}
func (ClearConfirmed) event()   {}

// Command is a main-menu action
type Command interface {
	command()
}

// ReportFormat selects how a period report is delivered
type ReportFormat string

const (
	ReportText ReportFormat = "text"
	ReportCSV  ReportFormat = "csv"
)

type (
	// StartCommand greets the user
	StartCommand struct{}
	// AddCommand adds an expense; with an empty Entry the user is prompted for one
	AddCommand struct{ Entry string }
	// ReceiptCommand asks the user for a receipt photo
	ReceiptCommand struct{}
	// ListCommand shows the most recent expenses
	ListCommand struct{}
	// StatsCommand shows the total of all expenses
	StatsCommand struct{}
	// ClearCommand asks for confirmation before deleting the history
	ClearCommand struct{}
	// ReportCommand summarises the last Days days
	ReportCommand struct {
		Days   int
		Format ReportFormat
	}
)

func (StartCommand) command()   {}
func (AddCommand) command()     {}
func (ReceiptCommand) command() {}
func (ListCommand) command()    {}
func (StatsCommand) command()   {}
func (ClearCommand) command()   {}
func (ReportCommand) command()  {}
