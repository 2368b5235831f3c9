package engine

import (
	"context"
	"log/slog"
	"strings"
)

// probeChatID is a stable chat id the bot is guaranteed not to be in. The
// platform has no "does message X still exist" call, so the engine attempts
// to copy the message there and reads the answer out of the error text: a
// message lookup failure means the user deleted it, a chat lookup failure
// means the message was found first and still exists.
const probeChatID int64 = 1234567890

var deletedSubstrings = []string{
	"message to copy not found",
	"message_id_invalid",
	"message identifier is not valid",
}

const chatNotFoundSubstring = "chat not found"

// probeDeleted reports whether the platform no longer holds the message.
// Unknown errors are treated as not-deleted and logged.
func probeDeleted(ctx context.Context, p Platform, userID int64, messageID int) bool {
	err := p.CopyMessage(ctx, probeChatID, userID, messageID)
	if err == nil {
		// Should not happen against an invalid chat id.
		slog.Warn("deletion probe copy unexpectedly succeeded",
			"user_id", userID, "message_id", messageID)
		return false
	}
	text := strings.ToLower(err.Error())
	for _, s := range deletedSubstrings {
		if strings.Contains(text, s) {
			return true
		}
	}
	if strings.Contains(text, chatNotFoundSubstring) {
		return false
	}
	slog.Warn("deletion probe inconclusive",
		"user_id", userID, "message_id", messageID, "error", err)
	return false
}
