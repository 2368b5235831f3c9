package engine

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/forPelevin/gomoji"

	"github.com/nextlevelbuilder/triagebot/internal/classifier"
	"github.com/nextlevelbuilder/triagebot/internal/store"
)

var validLangs = map[string]bool{"lv": true, "eng": true, "ru": true, "ee": true}

// Placeholder sets driving the content-only shortcuts.
var (
	visualMedia = map[string]bool{"(photo)": true, "(video)": true, "(video_note)": true}
	voiceMedia  = map[string]bool{"(voice)": true, "(audio)": true}
	silentMedia = map[string]bool{"(sticker)": true, "(animation)": true, "(document)": true, "(other)": true}
)

// categorize is the first-contact subroutine: it labels an uncategorized
// ticket and either replies from a template or escalates.
func (e *Engine) categorize(ctx context.Context, t *store.TicketWithMessages) error {
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

	switch {
	case all(batch, isVisualMedia):
		// Photos without words: nothing to classify, a human has to look.
		if err := e.setCategory(ctx, t, CategoryOther, "other"); err != nil {
			return err
		}
		return e.escalate.Escalate(ctx, t)

	case all(batch, isVoiceMedia):
		if err := e.setCategory(ctx, t, CategoryVoice, "other"); err != nil {
			return err
		}
		prev, err := e.previousCategory(ctx, t.UserID)
		if err != nil {
			return err
		}
		if prev == CategoryVoice {
			// Already told them once; don't nag.
			return e.repo.CloseTicket(ctx, t.ID)
		}
		return handleVoiceMessage(ctx, e.env(t))

	case all(batch, isSilent):
		return e.repo.CloseTicket(ctx, t.ID)
	}

	prompt := classifier.LangCategoryPrompt(e.registry.Categories(), texts(batch))
	lang, category := e.parseLangCategory(e.classify.Classify(ctx, prompt))

	if e.registry.Suppressible(category) {
		prev, err := e.previousCategory(ctx, t.UserID)
		if err != nil {
			return err
		}
		if prev == category {
			slog.Info("repeat category suppressed",
				"ticket_id", t.ID, "user_id", t.UserID, "category", category)
			return e.repo.CloseTicket(ctx, t.ID)
		}
	}

	if err := e.setCategory(ctx, t, category, lang); err != nil {
		return err
	}

	entry, _ := e.registry.Lookup(category)
	if entry.Escalate || (entry.Proof && any(batch, isVisualMedia)) {
		return e.escalate.Escalate(ctx, t)
	}
	return entry.Handler(ctx, e.env(t))
}

// liveUnread probes each unread message for deletion, records deletions, and
// returns what is still worth reacting to.
func (e *Engine) liveUnread(ctx context.Context, t *store.TicketWithMessages) ([]store.Message, error) {
	var batch []store.Message
	for _, m := range unread(t) {
		if probeDeleted(ctx, e.platform, t.UserID, m.MessageID) {
			if err := e.repo.MarkMessageDeleted(ctx, m.ID); err != nil {
				return nil, err
			}
			continue
		}
		batch = append(batch, m)
	}
	return batch, nil
}

// muteSpammer shelves a flooding ticket: marked forwarded so the poller
// stops seeing it, and the user muted for a day. No human is pinged.
func (e *Engine) muteSpammer(ctx context.Context, t *store.TicketWithMessages, size int) error {
	if err := e.repo.SetMessagesForwarded(ctx, t.ID); err != nil {
		return err
	}
	if err := e.repo.UpsertMute(ctx, t.UserID, e.now().Add(muteDuration)); err != nil {
		return err
	}
	slog.Warn("spam shield triggered", "ticket_id", t.ID, "user_id", t.UserID, "messages", size)
	return nil
}

func (e *Engine) setCategory(ctx context.Context, t *store.TicketWithMessages, category, lang string) error {
	if err := e.repo.SetLangAndCategory(ctx, t.ID, category, lang); err != nil {
		return err
	}
	t.SupportIssue, t.Lang = category, lang
	return nil
}

func (e *Engine) previousCategory(ctx context.Context, userID int64) (string, error) {
	prev, err := e.repo.GetPreviousCategoryKey(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	return prev, err
}

func (e *Engine) env(t *store.TicketWithMessages) *Env {
	lang := t.Lang
	if !validLangs[lang] {
		lang = "eng"
	}
	return &Env{Repo: e.repo, Platform: e.platform, Ticket: t, Lang: lang}
}

// parseLangCategory validates the raw "lang:category" completion, falling
// back to other/other on anything unexpected.
func (e *Engine) parseLangCategory(raw string) (lang, category string) {
	lang, category = "other", CategoryOther
	l, c, ok := strings.Cut(strings.TrimSpace(raw), ":")
	if !ok {
		return
	}
	l = strings.ToLower(strings.TrimSpace(l))
	c = strings.TrimSpace(c)
	if validLangs[l] {
		lang = l
	}
	if _, known := e.registry.Lookup(c); known {
		category = c
	}
	return
}

func texts(batch []store.Message) []string {
	out := make([]string, len(batch))
	for i, m := range batch {
		out[i] = m.UserText
	}
	return out
}

func all(batch []store.Message, pred func(store.Message) bool) bool {
	for _, m := range batch {
		if !pred(m) {
			return false
		}
	}
	return len(batch) > 0
}

func any(batch []store.Message, pred func(store.Message) bool) bool {
	for _, m := range batch {
		if pred(m) {
			return true
		}
	}
	return false
}

func isVisualMedia(m store.Message) bool { return visualMedia[m.UserText] }
func isVoiceMedia(m store.Message) bool  { return voiceMedia[m.UserText] }

func isSilent(m store.Message) bool {
	if silentMedia[m.UserText] {
		return true
	}
	return emojiOnly(m.UserText)
}

// emojiOnly reports whether the text is nothing but emoji and spaces.
func emojiOnly(text string) bool {
	trimmed := strings.ReplaceAll(strings.TrimSpace(text), " ", "")
	if trimmed == "" {
		return false
	}
	return gomoji.RemoveEmojis(trimmed) == ""
}
