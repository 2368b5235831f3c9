package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mymmrac/telego"
)

// genericErrorText is the only user-visible failure message the bot emits.
const genericErrorText = "⚠️ Kaut kas nogāja greizi / Something went wrong / " +
	"Что-то пошло не так / Midagi läks valesti. /start"

// handleWelcome answers /start and fuzzy variants with the welcome screen.
// Command-like messages are never persisted as ticket events.
func (c *Channel) handleWelcome(ctx context.Context, msg *telego.Message) {
	settings, err := c.repo.GetBotSettings(ctx)
	if err != nil {
		slog.Error("bot settings load failed", "error", err)
		c.sendGenericError(ctx, msg.Chat.ID)
		return
	}

	text := fmt.Sprintf(
		"👋 Sveiki! / Hello! / Привет! / Tere!\n\n"+
			"🇱🇻 Raksti savu jautājumu šeit — atbildēsim, cik ātri vien varēsim.\n"+
			"🇬🇧 Write your question here and we will get back to you as soon as we can.\n"+
			"🇷🇺 Напишите свой вопрос здесь — мы ответим как можно быстрее.\n"+
			"🇪🇪 Kirjuta oma küsimus siia — vastame nii kiiresti kui võimalik.\n\n"+
			"👤 %s", settings.SupportUsername)

	if err := c.sender.SendText(ctx, msg.Chat.ID, text); err != nil {
		slog.Error("welcome send failed", "chat_id", msg.Chat.ID, "error", err)
		c.sendGenericError(ctx, msg.Chat.ID)
	}
}

func (c *Channel) sendGenericError(ctx context.Context, chatID int64) {
	if err := c.sender.SendText(ctx, chatID, genericErrorText); err != nil {
		slog.Error("generic error send failed", "chat_id", chatID, "error", err)
	}
}
