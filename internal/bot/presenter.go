package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"

	"github.com/zombor/expense-tracker/internal/review"
)

// Button custom ids
const (
	customEdit         = "review:edit"
	customDelete       = "review:delete"
	customSave         = "review:save"
	customCancel       = "review:cancel"
	customClearConfirm = "history:confirm"
)

// maxMessageLength is Discord's limit on message content
const maxMessageLength = 2000

var errNoChannel = errors.New("no known channel for user")

// messenger is the part of *discordgo.Session the presenter needs
type messenger interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
}

var _ review.Presenter = (*Bot)(nil)

func reviewButtons() []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{Label: "Edit", Style: discordgo.PrimaryButton, CustomID: customEdit},
				discordgo.Button{Label: "Delete", Style: discordgo.SecondaryButton, CustomID: customDelete},
				discordgo.Button{Label: "Save", Style: discordgo.SuccessButton, CustomID: customSave},
				discordgo.Button{Label: "Cancel", Style: discordgo.DangerButton, CustomID: customCancel},
			},
		},
	}
}

func cancelButton() []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{Label: "Cancel", Style: discordgo.SecondaryButton, CustomID: customCancel},
			},
		},
	}
}

func confirmButtons() []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{Label: "Yes, delete", Style: discordgo.DangerButton, CustomID: customClearConfirm},
				discordgo.Button{Label: "No", Style: discordgo.SecondaryButton, CustomID: customCancel},
			},
		},
	}
}

// eventFromCustomID maps a pressed button to a review event
func eventFromCustomID(id string) (review.Event, bool) {
	switch id {
	case customEdit:
		return review.EditRequested{}, true
	case customDelete:
		return review.DeleteRequested{}, true
	case customSave:
		return review.SaveRequested{}, true
	case customCancel:
		return review.CancelRequested{}, true
	case customClearConfirm:
		return review.ClearConfirmed{}, true
	default:
		return nil, false
	}
}

// encodeHandle packs every message of one logical post as "channel/id1,id2"
func encodeHandle(channelID string, messageIDs ...string) review.Handle {
	return review.Handle(channelID + "/" + strings.Join(messageIDs, ","))
}

func decodeHandle(h review.Handle) (channelID string, messageIDs []string, err error) {
	channelID, ids, ok := strings.Cut(string(h), "/")
	if !ok || channelID == "" || ids == "" {
		return "", nil, fmt.Errorf("malformed message handle %q", h)
	}
	messageIDs = strings.Split(ids, ",")
	if slices.Contains(messageIDs, "") {
		return "", nil, fmt.Errorf("malformed message handle %q", h)
	}
	return channelID, messageIDs, nil
}

// splitMessage breaks text into chunks that fit in one message, preferring line breaks
func splitMessage(text string, limit int) []string {
	var chunks []string
	for len(text) > limit {
		cut := strings.LastIndexByte(text[:limit], '\n')
		if cut <= 0 {
			cut = limit
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
		}
		chunks = append(chunks, text[:cut])
		text = strings.TrimPrefix(text[cut:], "\n")
	}
	return append(chunks, text)
}

func (b *Bot) channelFor(user review.UserID) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	channelID, ok := b.channels[user]
	if !ok {
		return "", fmt.Errorf("%w %s", errNoChannel, user)
	}
	return channelID, nil
}

func (b *Bot) rememberChannel(user review.UserID, channelID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.channels[user] = channelID
}

// send posts text, splitting long content. Components go on the last chunk.
// The returned handle covers every chunk.
func (b *Bot) send(user review.UserID, text string, components []discordgo.MessageComponent) (review.Handle, error) {
	channelID, err := b.channelFor(user)
	if err != nil {
		return "", err
	}

	chunks := splitMessage(text, maxMessageLength)
	ids := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		data := &discordgo.MessageSend{Content: chunk}
		if i == len(chunks)-1 {
			data.Components = components
		}
		msg, err := b.messenger.ChannelMessageSendComplex(channelID, data)
		if err != nil {
			b.deleteMessages(channelID, ids)
			return "", fmt.Errorf("sending message: %w", err)
		}
		ids = append(ids, msg.ID)
	}
	return encodeHandle(channelID, ids...), nil
}

// deleteMessages removes every message, returning the first failure
func (b *Bot) deleteMessages(channelID string, messageIDs []string) error {
	var first error
	for _, id := range messageIDs {
		if err := b.messenger.ChannelMessageDelete(channelID, id); err != nil && first == nil {
			first = fmt.Errorf("deleting message: %w", err)
		}
	}
	return first
}

func (b *Bot) ShowList(ctx context.Context, user review.UserID, text string) (review.Handle, error) {
	return b.send(user, text, reviewButtons())
}

func (b *Bot) Prompt(ctx context.Context, user review.UserID, text string) (review.Handle, error) {
	return b.send(user, text, cancelButton())
}

func (b *Bot) Notify(ctx context.Context, user review.UserID, text string) (review.Handle, error) {
	return b.send(user, text, nil)
}

func (b *Bot) Confirm(ctx context.Context, user review.UserID, text string) (review.Handle, error) {
	return b.send(user, text, confirmButtons())
}

func (b *Bot) SendFile(ctx context.Context, user review.UserID, name string, data []byte, caption string) error {
	channelID, err := b.channelFor(user)
	if err != nil {
		return err
	}
	_, err = b.messenger.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content: caption,
		Files: []*discordgo.File{
			{Name: name, ContentType: "text/csv", Reader: bytes.NewReader(data)},
		},
	})
	if err != nil {
		return fmt.Errorf("sending file: %w", err)
	}
	return nil
}

func (b *Bot) Remove(ctx context.Context, user review.UserID, h review.Handle) error {
	channelID, messageIDs, err := decodeHandle(h)
	if err != nil {
		return err
	}
	return b.deleteMessages(channelID, messageIDs)
}
