// Package escalate hands tickets over to human operators: it creates (or
// reuses) the per-user operator group through a worker identity, posts the
// user dossier, and copies the pending messages in.
package escalate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nextlevelbuilder/triagebot/internal/store"
	"github.com/nextlevelbuilder/triagebot/internal/workers"
)

// dossierStatuses filters which commerce records make the operator dossier.
var dossierStatuses = []string{"paid", "lost", "redrop", "angry_redrop"}

// Platform is the outbound bot surface the orchestrator needs.
type Platform interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendMarkdown(ctx context.Context, chatID int64, text string) error
	SendTicketHeader(ctx context.Context, groupID, ticketID int64, topic string) error
	ForwardMessage(ctx context.Context, toChatID, fromChatID int64, messageID int) error
}

// Pool yields worker sessions for group creation.
type Pool interface {
	AcquireForGroupCreation(ctx context.Context) (*workers.Session, error)
}

// Orchestrator performs escalations. Safe for concurrent use: each call
// acquires its own worker session.
type Orchestrator struct {
	repo     store.Repository
	platform Platform
	pool     Pool

	botUsername string
	devAdmin    string
	development bool
	photoPath   string
}

func New(repo store.Repository, platform Platform, pool Pool, botUsername, devAdmin string, development bool) *Orchestrator {
	return &Orchestrator{
		repo:        repo,
		platform:    platform,
		pool:        pool,
		botUsername: botUsername,
		devAdmin:    devAdmin,
		development: development,
		photoPath:   "data/warning.jpg",
	}
}

// Escalate moves a ticket in front of humans. The worker session is released
// on every path.
func (o *Orchestrator) Escalate(ctx context.Context, t *store.TicketWithMessages) error {
	sess, err := o.pool.AcquireForGroupCreation(ctx)
	if err != nil {
		if errors.Is(err, workers.ErrNoIdentity) {
			o.reportExhausted(ctx, t)
			return nil
		}
		return fmt.Errorf("acquire worker: %w", err)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			slog.Warn("worker session close failed", "name", sess.Name(), "error", err)
		}
	}()

	groupID, err := o.ensureGroup(ctx, sess, t.UserID)
	if err != nil {
		return err
	}

	if err := o.repo.SetMessagesForwarded(ctx, t.ID); err != nil {
		return err
	}
	// Reload: messages may have arrived between the snapshot and now.
	fresh, err := o.repo.GetTicket(ctx, t.ID)
	if err != nil {
		return err
	}

	if err := o.postDossier(ctx, groupID, t.UserID); err != nil {
		slog.Error("dossier post failed", "user_id", t.UserID, "group_id", groupID, "error", err)
	}

	topic := fresh.SupportIssue
	if topic == "" {
		topic = "Unknown"
	}
	if err := o.platform.SendTicketHeader(ctx, groupID, fresh.ID, topic); err != nil {
		return err
	}

	for _, m := range fresh.Messages {
		if m.IsDeleted {
			if err := o.platform.SendText(ctx, groupID, "(DELETED MESSAGE)\n"+m.UserText); err != nil {
				slog.Error("deleted-message note failed", "group_id", groupID, "error", err)
			}
			continue
		}
		if err := o.platform.ForwardMessage(ctx, groupID, t.UserID, m.MessageID); err != nil {
			slog.Error("message forward failed",
				"group_id", groupID, "message_id", m.MessageID, "error", err)
		}
	}

	slog.Info("ticket escalated", "ticket_id", fresh.ID, "user_id", t.UserID, "group_id", groupID)
	return nil
}

// ensureGroup returns the user's bound operator group, creating it on first
// escalation.
func (o *Orchestrator) ensureGroup(ctx context.Context, sess *workers.Session, userID int64) (int64, error) {
	binding, err := o.repo.GetGroupBinding(ctx, userID)
	if err == nil {
		return binding.GroupID, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return 0, err
	}

	groupID, err := o.createGroup(ctx, sess, userID)
	if err != nil {
		return 0, fmt.Errorf("create operator group: %w", err)
	}
	if err := o.repo.UpsertGroupBinding(ctx, userID, groupID, sess.Name()); err != nil {
		return 0, err
	}
	slog.Info("operator group created",
		"user_id", userID, "group_id", groupID, "created_by", sess.Name())
	return groupID, nil
}

// postDossier renders and posts the user dossier, split into parts when it
// exceeds the platform message limit.
func (o *Orchestrator) postDossier(ctx context.Context, groupID, userID int64) error {
	d, err := o.repo.GetUserAndDrops(ctx, userID, dossierStatuses, "updated_at ASC")
	if err != nil {
		return err
	}
	for _, part := range RenderDossier(d) {
		if err := o.platform.SendMarkdown(ctx, groupID, part); err != nil {
			return err
		}
	}
	return nil
}

// adminUsername picks the human to invite: a fixed account in development,
// the configured support handle in production.
func (o *Orchestrator) adminUsername(ctx context.Context) (string, error) {
	if o.development {
		return o.devAdmin, nil
	}
	settings, err := o.repo.GetBotSettings(ctx)
	if err != nil {
		return "", err
	}
	return settings.SupportUsername, nil
}

// reportExhausted surfaces a no-identity condition where operators will see
// it: the user's existing group when bound, otherwise the error log.
func (o *Orchestrator) reportExhausted(ctx context.Context, t *store.TicketWithMessages) {
	settings, err := o.repo.GetBotSettings(ctx)
	support := ""
	if err == nil {
		support = settings.SupportUsername
	}
	text := fmt.Sprintf("🚨 %s: no worker identity available, ticket %d for user %d could not be escalated.",
		support, t.ID, t.UserID)

	if binding, err := o.repo.GetGroupBinding(ctx, t.UserID); err == nil {
		if err := o.platform.SendText(ctx, binding.GroupID, text); err == nil {
			return
		}
	}
	slog.Error("escalation failed, worker pool exhausted",
		"ticket_id", t.ID, "user_id", t.UserID, "support", support)
}
