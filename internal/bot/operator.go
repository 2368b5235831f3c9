package bot

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

const noOpenTicketNotice = "⚠️ User has no open ticket — message NOT delivered. " +
	"They will see replies again once they write in and a new ticket is escalated."

// handleOperatorMessage relays a human reply from an operator group back to
// the end user. The group's description holds the user id, set at creation.
func (c *Channel) handleOperatorMessage(ctx context.Context, msg *telego.Message) {
	if !c.hasOperatorRole(ctx, msg.From.ID) {
		slog.Debug("group message from non-operator ignored",
			"chat_id", msg.Chat.ID, "user_id", msg.From.ID)
		return
	}

	chat, err := c.bot.GetChat(ctx, &telego.GetChatParams{ChatID: tu.ID(msg.Chat.ID)})
	if err != nil {
		slog.Error("get chat failed", "chat_id", msg.Chat.ID, "error", err)
		return
	}
	userID, err := strconv.ParseInt(strings.TrimSpace(chat.Description), 10, 64)
	if err != nil {
		slog.Debug("group without user id in description ignored", "chat_id", msg.Chat.ID)
		return
	}

	open, err := c.repo.GetOpenTickets(ctx, userID)
	if err != nil {
		slog.Error("open ticket lookup failed", "user_id", userID, "error", err)
		return
	}
	if len(open) == 0 {
		if err := c.sender.SendText(ctx, msg.Chat.ID, noOpenTicketNotice); err != nil {
			slog.Error("reject notice failed", "chat_id", msg.Chat.ID, "error", err)
		}
		return
	}

	if err := c.relay(ctx, userID, msg); err != nil {
		slog.Error("operator relay failed", "user_id", userID, "error", err)
	}
}

// relay re-sends the operator's content to the user by type, keeping
// captions. File ids are reusable across chats for the same bot.
func (c *Channel) relay(ctx context.Context, userID int64, msg *telego.Message) error {
	if err := c.sender.wait(ctx); err != nil {
		return err
	}
	to := tu.ID(userID)
	switch {
	case msg.Text != "":
		_, err := c.bot.SendMessage(ctx, tu.Message(to, msg.Text))
		return err
	case len(msg.Photo) > 0:
		p := tu.Photo(to, tu.FileFromID(msg.Photo[len(msg.Photo)-1].FileID))
		p.Caption = msg.Caption
		_, err := c.bot.SendPhoto(ctx, p)
		return err
	case msg.Video != nil:
		v := tu.Video(to, tu.FileFromID(msg.Video.FileID))
		v.Caption = msg.Caption
		_, err := c.bot.SendVideo(ctx, v)
		return err
	case msg.Voice != nil:
		_, err := c.bot.SendVoice(ctx, tu.Voice(to, tu.FileFromID(msg.Voice.FileID)))
		return err
	case msg.Audio != nil:
		a := tu.Audio(to, tu.FileFromID(msg.Audio.FileID))
		a.Caption = msg.Caption
		_, err := c.bot.SendAudio(ctx, a)
		return err
	case msg.Sticker != nil:
		_, err := c.bot.SendSticker(ctx, tu.Sticker(to, tu.FileFromID(msg.Sticker.FileID)))
		return err
	case msg.Animation != nil:
		an := tu.Animation(to, tu.FileFromID(msg.Animation.FileID))
		an.Caption = msg.Caption
		_, err := c.bot.SendAnimation(ctx, an)
		return err
	case msg.VideoNote != nil:
		_, err := c.bot.SendVideoNote(ctx, &telego.SendVideoNoteParams{
			ChatID: to, VideoNote: tu.FileFromID(msg.VideoNote.FileID),
		})
		return err
	case msg.Document != nil:
		d := tu.Document(to, tu.FileFromID(msg.Document.FileID))
		d.Caption = msg.Caption
		_, err := c.bot.SendDocument(ctx, d)
		return err
	default:
		slog.Debug("operator message with unsupported content skipped",
			"chat_id", msg.Chat.ID, "message_id", msg.MessageID)
		return nil
	}
}

// handleCallbackQuery handles the group-resident Close Ticket button.
func (c *Channel) handleCallbackQuery(ctx context.Context, query *telego.CallbackQuery) {
	idStr, ok := strings.CutPrefix(query.Data, "close_ticket:")
	if !ok {
		return
	}
	ticketID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		slog.Warn("malformed close callback", "data", query.Data)
		return
	}

	if err := c.repo.CloseTicket(ctx, ticketID); err != nil {
		slog.Error("close ticket failed", "ticket_id", ticketID, "error", err)
		return
	}

	if err := c.bot.AnswerCallbackQuery(ctx, &telego.AnswerCallbackQueryParams{
		CallbackQueryID: query.ID,
		Text:            "Ticket closed",
	}); err != nil {
		slog.Warn("answer callback failed", "error", err)
	}

	msg, ok := query.Message.(*telego.Message)
	if !ok {
		// Too old for Telegram to hand us the message; ticket is closed anyway.
		return
	}

	closed := tu.InlineKeyboard(tu.InlineKeyboardRow(
		tu.InlineKeyboardButton("✅ CLOSED ✅").WithCallbackData("noop"),
	))
	if _, err := c.bot.EditMessageReplyMarkup(ctx, &telego.EditMessageReplyMarkupParams{
		ChatID:      tu.ID(msg.Chat.ID),
		MessageID:   msg.MessageID,
		ReplyMarkup: closed,
	}); err != nil {
		slog.Warn("edit close button failed", "ticket_id", ticketID, "error", err)
	}
}

// hasOperatorRole gates the group relay on a stored role.
func (c *Channel) hasOperatorRole(ctx context.Context, userID int64) bool {
	roles, err := c.repo.GetUserRoles(ctx, userID)
	if err != nil {
		slog.Error("role lookup failed", "user_id", userID, "error", err)
		return false
	}
	for _, r := range roles {
		switch r {
		case "operator", "admin", "support":
			return true
		}
	}
	return false
}
