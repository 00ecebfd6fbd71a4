package review

import "context"

// Handle is an opaque reference to a message shown by the transport
type Handle string

// Presenter is the conversation sink. Implementations own all chat specifics:
// keyboards, message ids, formatting.
type Presenter interface {
	// ShowList displays a staged list with edit, delete, save and cancel actions
	ShowList(ctx context.Context, user UserID, text string) (Handle, error)
	// Prompt asks the user to type a reply
	Prompt(ctx context.Context, user UserID, text string) (Handle, error)
	// Notify sends an informational message
	Notify(ctx context.Context, user UserID, text string) (Handle, error)
	// Confirm asks a yes/no question; yes arrives as ClearConfirmed, no as CancelRequested
	Confirm(ctx context.Context, user UserID, text string) (Handle, error)
	// SendFile delivers an attachment
	SendFile(ctx context.Context, user UserID, name string, data []byte, caption string) error
	// Remove deletes a message shown earlier
	Remove(ctx context.Context, user UserID, h Handle) error
}
