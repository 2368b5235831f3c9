package bot

import (
	"context"
	"fmt"
	"os"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"golang.org/x/time/rate"
)

// Sender is the outbound facade over the Bot API shared by the channel, the
// ticket engine, the escalation orchestrator, and the janitor. All sends go
// through one rate limiter so template bursts and group relays cannot trip
// the platform's flood control.
type Sender struct {
	bot     *telego.Bot
	limiter *rate.Limiter
}

func NewSender(bot *telego.Bot) *Sender {
	// ~25 msg/s global budget, short bursts allowed.
	return &Sender{bot: bot, limiter: rate.NewLimiter(rate.Limit(25), 5)}
}

func (s *Sender) wait(ctx context.Context) error {
	return s.limiter.Wait(ctx)
}

// SendText sends a plain text message.
func (s *Sender) SendText(ctx context.Context, chatID int64, text string) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	_, err := s.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), text))
	if err != nil {
		return fmt.Errorf("send text to %d: %w", chatID, err)
	}
	return nil
}

// SendMarkdown sends a Markdown-formatted message (dossier rendering).
func (s *Sender) SendMarkdown(ctx context.Context, chatID int64, text string) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	msg := tu.Message(tu.ID(chatID), text)
	msg.ParseMode = telego.ModeMarkdown
	_, err := s.bot.SendMessage(ctx, msg)
	if err != nil {
		return fmt.Errorf("send markdown to %d: %w", chatID, err)
	}
	return nil
}

// SendPhotoFile sends a local image file with an optional caption.
func (s *Sender) SendPhotoFile(ctx context.Context, chatID int64, path, caption string) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open photo %s: %w", path, err)
	}
	defer f.Close()
	params := tu.Photo(tu.ID(chatID), tu.File(f))
	params.Caption = caption
	if _, err := s.bot.SendPhoto(ctx, params); err != nil {
		return fmt.Errorf("send photo to %d: %w", chatID, err)
	}
	return nil
}

// ForwardMessage forwards a message keeping the "forwarded from" header.
func (s *Sender) ForwardMessage(ctx context.Context, toChatID, fromChatID int64, messageID int) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	_, err := s.bot.ForwardMessage(ctx, &telego.ForwardMessageParams{
		ChatID:     tu.ID(toChatID),
		FromChatID: tu.ID(fromChatID),
		MessageID:  messageID,
	})
	if err != nil {
		return fmt.Errorf("forward %d from %d to %d: %w", messageID, fromChatID, toChatID, err)
	}
	return nil
}

// CopyMessage copies a message without the forward header. The raw platform
// error is returned unwrapped: the deletion probe inspects its text.
func (s *Sender) CopyMessage(ctx context.Context, toChatID, fromChatID int64, messageID int) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	_, err := s.bot.CopyMessage(ctx, &telego.CopyMessageParams{
		ChatID:     tu.ID(toChatID),
		FromChatID: tu.ID(fromChatID),
		MessageID:  messageID,
	})
	return err
}

// SendTicketHeader posts the escalation header with the Close Ticket button.
func (s *Sender) SendTicketHeader(ctx context.Context, groupID, ticketID int64, topic string) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	msg := tu.Message(tu.ID(groupID), fmt.Sprintf("Ticket topic: '%s'", topic))
	msg.ReplyMarkup = tu.InlineKeyboard(tu.InlineKeyboardRow(
		tu.InlineKeyboardButton("Close Ticket").WithCallbackData(fmt.Sprintf("close_ticket:%d", ticketID)),
	))
	if _, err := s.bot.SendMessage(ctx, msg); err != nil {
		return fmt.Errorf("send ticket header to %d: %w", groupID, err)
	}
	return nil
}
