package engine

import (
	"context"
	"log/slog"
	"strings"

	"github.com/nextlevelbuilder/triagebot/internal/classifier"
	"github.com/nextlevelbuilder/triagebot/internal/store"
)

// reengage handles new activity on an already categorized ticket. Only the
// lost-drop flow keeps listening after its template: the user was asked for
// proof, so a follow-up either carries it or tells us the issue went away.
func (e *Engine) reengage(ctx context.Context, t *store.TicketWithMessages) error {
	if t.SupportIssue != CategoryCantFind {
		return nil
	}

	batch, err := e.liveUnread(ctx, t)
	if err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}
	if len(batch) > spamThreshold {
		return e.muteSpammer(ctx, t, len(batch))
	}

	if any(batch, isVisualMedia) {
		return e.courierAndEscalate(ctx, t)
	}

	verdict := e.classify.Classify(ctx, classifier.ComplaintPrompt(texts(batch)))
	if strings.EqualFold(strings.TrimSpace(verdict), "Resolved") {
		if err := e.platform.SendText(ctx, t.UserID, "👍"); err != nil {
			slog.Error("thumbs-up send failed", "user_id", t.UserID, "error", err)
		}
		return e.repo.CloseTicket(ctx, t.ID)
	}
	// Complaint, garbage, or classifier failure all reach a human.
	return e.courierAndEscalate(ctx, t)
}

// courierAndEscalate tells the user their case is with the couriers, adds
// the very-late/very-early caveat when Helsinki wall clock says so, and
// hands the ticket over.
func (e *Engine) courierAndEscalate(ctx context.Context, t *store.TicketWithMessages) error {
	lang := t.Lang
	if !validLangs[lang] {
		lang = "eng"
	}
	msg := courierReply(lang)
	if e.lateNight() {
		msg += "\n\n" + lateNightCaveat(lang)
	}
	if err := e.platform.SendText(ctx, t.UserID, msg); err != nil {
		slog.Error("courier reply failed", "user_id", t.UserID, "error", err)
	}
	return e.escalate.Escalate(ctx, t)
}
