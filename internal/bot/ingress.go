package bot

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/mymmrac/telego"

	"github.com/nextlevelbuilder/triagebot/internal/store"
)

// startMatchRatio is the minimum similarity against "start" for a message to
// count as a mistyped /start ("strat", "statr", ...).
const startMatchRatio = 0.7

// handleUserMessage is the private-chat route: mute gate, welcome shortcut,
// then persistence with an optional cross-forward into the operator group.
func (c *Channel) handleUserMessage(ctx context.Context, msg *telego.Message) {
	userID := msg.From.ID

	muted, err := c.repo.IsMuted(ctx, userID)
	if err != nil {
		slog.Error("mute check failed", "user_id", userID, "error", err)
		return
	}
	if muted {
		slog.Debug("message from muted user dropped", "user_id", userID)
		return
	}

	if isCommandLike(msg.Text) {
		c.handleWelcome(ctx, msg)
		return
	}

	text := StoredText(msg)

	// A ticket already in an operator group streams straight through; the
	// engine must not pick these messages up again, hence replied=true.
	forwarded := c.forwardedOpenTicket(ctx, userID)
	if forwarded != nil {
		binding, err := c.repo.GetGroupBinding(ctx, userID)
		if err != nil {
			slog.Error("group binding lookup failed", "user_id", userID, "error", err)
		} else if err := c.sender.ForwardMessage(ctx, binding.GroupID, msg.Chat.ID, msg.MessageID); err != nil {
			slog.Error("forward to operator group failed",
				"user_id", userID, "group_id", binding.GroupID, "error", err)
		}
		if err := c.repo.AppendUserMessage(ctx, userID, msg.MessageID, text, true); err != nil {
			slog.Error("append forwarded message failed", "user_id", userID, "error", err)
		}
		return
	}

	if err := c.repo.AppendUserMessage(ctx, userID, msg.MessageID, text, false); err != nil {
		slog.Error("append message failed", "user_id", userID, "error", err)
	}
}

// handleEditedMessage propagates user edits: unreplied stored messages are
// overwritten in place; anything already in front of an operator gets an
// explicit edit notice in the group instead.
func (c *Channel) handleEditedMessage(ctx context.Context, msg *telego.Message) {
	userID := msg.From.ID
	newText := StoredText(msg)

	_, ticket, err := c.repo.GetMessage(ctx, userID, msg.MessageID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slog.Error("edited message lookup failed", "user_id", userID, "error", err)
		}
		return
	}

	if ticket.MessagesForwarded {
		binding, err := c.repo.GetGroupBinding(ctx, userID)
		if err != nil {
			slog.Error("group binding lookup failed", "user_id", userID, "error", err)
			return
		}
		if err := c.sender.SendText(ctx, binding.GroupID, "(EDITED MESSAGE)\n"+newText); err != nil {
			slog.Error("edit notice failed", "group_id", binding.GroupID, "error", err)
		}
		return
	}

	updated, err := c.repo.UpdateEditedMessage(ctx, userID, msg.MessageID, newText)
	if err != nil {
		slog.Error("edit update failed", "user_id", userID, "error", err)
		return
	}
	if !updated {
		// Already replied: the engine acted on the old text, leave it.
		slog.Debug("edit ignored, message already replied",
			"user_id", userID, "message_id", msg.MessageID)
	}
}

// forwardedOpenTicket returns the user's open ticket if it has already been
// escalated, nil otherwise.
func (c *Channel) forwardedOpenTicket(ctx context.Context, userID int64) *store.Ticket {
	tickets, err := c.repo.GetOpenTickets(ctx, userID)
	if err != nil {
		slog.Error("open ticket lookup failed", "user_id", userID, "error", err)
		return nil
	}
	for i := range tickets {
		if tickets[i].MessagesForwarded {
			return &tickets[i]
		}
	}
	return nil
}

// isCommandLike matches explicit commands and fuzzy "start" attempts.
func isCommandLike(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	if strings.HasPrefix(trimmed, "/") {
		return true
	}
	return startRatio(trimmed) >= startMatchRatio
}

// startRatio is the normalized Levenshtein similarity against "start":
// (len(a)+len(b)-distance) / (len(a)+len(b)), so a transposed "strat" still
// clears the 0.7 gate.
func startRatio(text string) float64 {
	const target = "start"
	candidate := strings.ToLower(strings.TrimSpace(text))
	total := len(candidate) + len(target)
	if candidate == "" {
		return 0
	}
	dist := levenshtein.ComputeDistance(candidate, target)
	return float64(total-dist) / float64(total)
}
