// Package bot connects the review workflow to Discord. It turns messages,
// slash commands and button presses into review events and implements the
// review.Presenter on top of channel messages.
package bot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/zombor/expense-tracker/internal/review"
)

const (
	maxAttachmentSize = 20 << 20
	handlerTimeout    = 3 * time.Minute
)

// Dispatcher receives review events
type Dispatcher interface {
	Dispatch(ctx context.Context, user review.UserID, ev review.Event) error
}

// Bot is a Discord gateway client
type Bot struct {
	session    *discordgo.Session
	messenger  messenger
	dispatcher Dispatcher
	client     *http.Client
	ctx        context.Context
	queue      *userQueues

	mu       sync.RWMutex
	channels map[review.UserID]string
}

// New creates a bot for token. SetDispatcher must be called before Run.
func New(token string) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}

	b := newBot(session)
	b.session = session

	session.AddHandler(b.onReady)
	session.AddHandler(b.onMessageCreate)
	session.AddHandler(b.onInteractionCreate)
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent
	// Handlers run in gateway order and hand slow work to per-user queues.
	session.SyncEvents = true

	return b, nil
}

func newBot(m messenger) *Bot {
	return &Bot{
		messenger: m,
		client:    &http.Client{Timeout: 30 * time.Second},
		ctx:       context.Background(),
		queue:     newUserQueues(),
		channels:  make(map[review.UserID]string),
	}
}

// SetDispatcher sets where inbound events go
func (b *Bot) SetDispatcher(d Dispatcher) {
	b.dispatcher = d
}

// Run connects to the gateway and blocks until ctx is cancelled
func (b *Bot) Run(ctx context.Context) error {
	b.ctx = ctx
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("opening discord session: %w", err)
	}
	slog.Info("Discord bot is running")

	<-ctx.Done()
	slog.Info("Closing discord session")
	err := b.session.Close()
	b.queue.wait()
	return err
}

func (b *Bot) onReady(s *discordgo.Session, event *discordgo.Ready) {
	slog.Info("Connected to discord", "user", event.User.Username)

	if _, err := s.ApplicationCommandBulkOverwrite(s.State.User.ID, "", definitions()); err != nil {
		slog.Error("Failed to register commands", "error", err)
		return
	}
	slog.Info("Registered application commands")
}

func (b *Bot) dispatch(user review.UserID, ev review.Event) {
	ctx, cancel := context.WithTimeout(b.ctx, handlerTimeout)
	defer cancel()

	if err := b.dispatcher.Dispatch(ctx, user, ev); err != nil {
		slog.Error("Failed to handle event", "user", user, "event", fmt.Sprintf("%T", ev), "error", err)
	}
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	// Ignore bot messages
	if m.Author == nil || m.Author.Bot {
		return
	}

	user := review.UserID(m.Author.ID)
	b.rememberChannel(user, m.ChannelID)

	if att := receiptAttachment(m.Attachments); att != nil {
		b.queue.submit(user, func() {
			data, err := b.download(att.URL)
			if err != nil {
				slog.Error("Failed to download attachment", "user", user, "filename", att.Filename, "error", err)
				return
			}
			b.dispatch(user, review.PhotoSubmitted{Image: data, ContentType: att.ContentType})
		})
		return
	}

	content := strings.TrimSpace(m.Content)
	if content == "" {
		return
	}
	b.queue.submit(user, func() {
		b.dispatch(user, review.TextReceived{Text: content})
	})
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	user := interactionUser(i.Interaction)
	if user == "" {
		return
	}
	b.rememberChannel(user, i.ChannelID)

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.handleApplicationCommand(s, i, user)
	case discordgo.InteractionMessageComponent:
		b.handleComponent(s, i, user)
	}
}

func (b *Bot) handleApplicationCommand(s *discordgo.Session, i *discordgo.InteractionCreate, user review.UserID) {
	cmd, err := commandFromData(i.ApplicationCommandData())
	if err != nil {
		slog.Warn("Ignoring command", "user", user, "error", err)
		return
	}

	// Replies go out as channel messages; the deferred response only acknowledges.
	err = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
	if err != nil {
		slog.Error("Failed to acknowledge command", "user", user, "error", err)
	}

	b.queue.submit(user, func() {
		b.dispatch(user, review.MenuInterrupt{Command: cmd})

		if err := s.InteractionResponseDelete(i.Interaction); err != nil {
			slog.Debug("Failed to delete command acknowledgement", "user", user, "error", err)
		}
	})
}

func (b *Bot) handleComponent(s *discordgo.Session, i *discordgo.InteractionCreate, user review.UserID) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	})
	if err != nil {
		slog.Error("Failed to acknowledge button", "user", user, "error", err)
	}

	ev, ok := eventFromCustomID(i.MessageComponentData().CustomID)
	if !ok {
		slog.Warn("Ignoring unknown button", "user", user, "custom_id", i.MessageComponentData().CustomID)
		return
	}
	b.queue.submit(user, func() {
		b.dispatch(user, ev)
	})
}

func interactionUser(i *discordgo.Interaction) review.UserID {
	switch {
	case i.Member != nil && i.Member.User != nil:
		return review.UserID(i.Member.User.ID)
	case i.User != nil:
		return review.UserID(i.User.ID)
	default:
		return ""
	}
}

// receiptAttachment returns the first image or PDF attachment
func receiptAttachment(attachments []*discordgo.MessageAttachment) *discordgo.MessageAttachment {
	for _, att := range attachments {
		ct := strings.ToLower(att.ContentType)
		if strings.HasPrefix(ct, "image/") || strings.HasPrefix(ct, "application/pdf") {
			return att
		}
	}
	return nil
}

func (b *Bot) download(url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(b.ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching attachment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching attachment: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAttachmentSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading attachment: %w", err)
	}
	if len(data) > maxAttachmentSize {
		return nil, fmt.Errorf("attachment larger than %d bytes", maxAttachmentSize)
	}
	return data, nil
}
