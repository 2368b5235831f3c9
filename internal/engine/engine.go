// Package engine runs the ticket lifecycle: a 10-second poller that
// debounces user activity, classifies tickets, dispatches templated replies,
// escalates to human operators, and closes idle tickets.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/triagebot/internal/classifier"
	"github.com/nextlevelbuilder/triagebot/internal/store"
)

const (
	tickInterval = 10 * time.Second

	// debounceWindow lets a user finish a typing burst before the engine
	// reacts to the ticket.
	debounceWindow = 20 * time.Second

	// idleClose reaps tickets whose last message was answered long ago.
	idleClose = 48 * time.Hour

	// spamThreshold is the unread-batch size above which the user is muted
	// instead of answered.
	spamThreshold = 50

	muteDuration = 24 * time.Hour
)

// Platform is the narrow outbound surface the engine needs from the bot.
type Platform interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendPhotoFile(ctx context.Context, chatID int64, path, caption string) error
	// CopyMessage must return the raw platform error: the deletion probe
	// inspects its text.
	CopyMessage(ctx context.Context, toChatID, fromChatID int64, messageID int) error
}

// Escalator hands a ticket over to human operators.
type Escalator interface {
	Escalate(ctx context.Context, ticket *store.TicketWithMessages) error
}

// Engine is the lifecycle poller. The clock is injectable for boundary
// tests; production uses time.Now.
type Engine struct {
	repo     store.Repository
	platform Platform
	classify classifier.Classifier
	escalate Escalator
	registry *Registry
	now      func() time.Time
	helsinki *time.Location
}

func New(repo store.Repository, platform Platform, cls classifier.Classifier, esc Escalator) (*Engine, error) {
	registry := NewRegistry()
	if err := registry.Validate(); err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation("Europe/Helsinki")
	if err != nil {
		return nil, err
	}
	return &Engine{
		repo:     repo,
		platform: platform,
		classify: cls,
		escalate: esc,
		registry: registry,
		now:      time.Now,
		helsinki: loc,
	}, nil
}

// Registry exposes the dispatch table (the classifier prompt is built from
// its category list).
func (e *Engine) Registry() *Registry { return e.registry }

// Run polls until ctx is cancelled. A failed iteration never stops the loop.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("ticket engine started", "tick", tickInterval, "debounce", debounceWindow)
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("ticket engine stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := e.tick(ctx); err != nil {
				slog.Error("engine tick failed", "error", err)
			}
		}
	}
}

// tick scans every open, unforwarded ticket once. Tickets whose latest
// message has settled past the debounce window are atomically marked replied
// and handed to a detached per-ticket task; that mark is what guarantees
// at most one handler in flight per ticket.
func (e *Engine) tick(ctx context.Context) error {
	unforwarded := false
	tickets, err := e.repo.GetActiveTickets(ctx, store.TicketFilter{Forwarded: &unforwarded})
	if err != nil {
		return err
	}

	now := e.now()
	for i := range tickets {
		t := tickets[i]
		if len(t.Messages) == 0 {
			continue
		}
		last := t.Messages[len(t.Messages)-1]
		age := now.Sub(last.CreatedAt)

		switch {
		case last.Replied && age > idleClose:
			if err := e.repo.CloseTicket(ctx, t.ID); err != nil {
				slog.Error("idle close failed", "ticket_id", t.ID, "error", err)
				continue
			}
			slog.Info("ticket closed idle", "ticket_id", t.ID, "user_id", t.UserID)

		case !last.Replied && age >= debounceWindow:
			if err := e.repo.MarkMessagesReplied(ctx, t.ID); err != nil {
				slog.Error("mark replied failed", "ticket_id", t.ID, "error", err)
				continue
			}
			snapshot := t
			go e.handleTicket(ctx, &snapshot)
		}
	}
	return nil
}

// handleTicket runs one per-ticket task. The snapshot still carries the
// pre-mark replied flags, so the unread set is exactly what this task owns.
func (e *Engine) handleTicket(ctx context.Context, t *store.TicketWithMessages) {
	log := slog.With("run", uuid.NewString(),
		"ticket_id", t.ID, "user_id", t.UserID, "category", t.SupportIssue)
	log.Debug("ticket task started", "messages", len(t.Messages))

	var err error
	if t.SupportIssue == "" {
		err = e.categorize(ctx, t)
	} else {
		err = e.reengage(ctx, t)
	}
	if err != nil {
		log.Error("ticket task failed", "error", err)
	}
}

// unread returns the messages this task owns (replied=false in the snapshot).
func unread(t *store.TicketWithMessages) []store.Message {
	var out []store.Message
	for _, m := range t.Messages {
		if !m.Replied {
			out = append(out, m)
		}
	}
	return out
}

// lateNight reports whether Helsinki wall-clock time is in the
// very-late/very-early window [22:00,24:00) ∪ [00:00,07:00).
func (e *Engine) lateNight() bool {
	h := e.now().In(e.helsinki).Hour()
	return h >= 22 || h < 7
}
