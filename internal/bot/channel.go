// Package bot is the ingress middleware over the user-facing Bot API
// identity: it routes inbound updates (private messages, edits, operator
// replies, callbacks) into repository writes and cross-forwards, and exposes
// the rate-limited Sender used by every outbound path.
package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mymmrac/telego"

	"github.com/nextlevelbuilder/triagebot/internal/store"
)

// Channel connects to the chat platform via the Bot API using long polling.
type Channel struct {
	bot    *telego.Bot
	sender *Sender
	repo   store.Repository

	pollCancel context.CancelFunc
	pollDone   chan struct{}
}

func NewChannel(bot *telego.Bot, sender *Sender, repo store.Repository) *Channel {
	return &Channel{bot: bot, sender: sender, repo: repo}
}

// Sender returns the shared outbound facade.
func (c *Channel) Sender() *Sender { return c.sender }

// Start begins long polling for updates.
func (c *Channel) Start(ctx context.Context) error {
	slog.Info("starting support bot (polling mode)")

	pollCtx, cancel := context.WithCancel(ctx)
	c.pollCancel = cancel
	c.pollDone = make(chan struct{})

	updates, err := c.bot.UpdatesViaLongPolling(pollCtx, &telego.GetUpdatesParams{
		Timeout: 30,
		AllowedUpdates: []string{
			"message",
			"edited_message",
			"callback_query",
		},
	})
	if err != nil {
		cancel()
		return fmt.Errorf("start long polling: %w", err)
	}

	slog.Info("support bot connected", "username", c.bot.Username())

	go func() {
		defer close(c.pollDone)
		for {
			select {
			case <-pollCtx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					slog.Info("updates channel closed")
					return
				}
				c.dispatch(pollCtx, update)
			}
		}
	}()

	return nil
}

// Stop cancels long polling and waits for the update goroutine to exit.
func (c *Channel) Stop(ctx context.Context) error {
	if c.pollCancel == nil {
		return nil
	}
	c.pollCancel()
	select {
	case <-c.pollDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Channel) dispatch(ctx context.Context, update telego.Update) {
	switch {
	case update.Message != nil:
		msg := update.Message
		if msg.From == nil || msg.From.IsBot {
			return
		}
		if msg.Chat.Type == telego.ChatTypePrivate {
			c.handleUserMessage(ctx, msg)
		} else {
			c.handleOperatorMessage(ctx, msg)
		}
	case update.EditedMessage != nil:
		msg := update.EditedMessage
		if msg.From == nil || msg.From.IsBot || msg.Chat.Type != telego.ChatTypePrivate {
			return
		}
		c.handleEditedMessage(ctx, msg)
	case update.CallbackQuery != nil:
		c.handleCallbackQuery(ctx, update.CallbackQuery)
	default:
		slog.Debug("update skipped", "update_id", update.UpdateID)
	}
}
