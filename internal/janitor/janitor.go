// Package janitor reaps idle operator groups on a nightly schedule. A group
// must be deleted by the same worker identity that created it, so the sweep
// resolves sessions by the binding's created_by name.
package janitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/adhocore/gronx"

	"github.com/nextlevelbuilder/triagebot/internal/store"
	"github.com/nextlevelbuilder/triagebot/internal/workers"
)

const (
	// schedule fires the sweep at 03:00 UTC daily.
	schedule = "0 3 * * *"

	// idleCutoff is how old a user's latest ticket must be before their
	// group is considered abandoned.
	idleCutoff = 5 * 24 * time.Hour

	// errorBackoff pauses the sweep after a failed iteration.
	errorBackoff = 300 * time.Second
)

// Pool resolves worker sessions by identity name, without quota checks.
type Pool interface {
	ByName(ctx context.Context, name string) (*workers.Session, error)
}

// Janitor owns the nightly sweep loop.
type Janitor struct {
	repo store.Repository
	pool Pool
	cron *gronx.Gronx
	now  func() time.Time
}

func New(repo store.Repository, pool Pool) *Janitor {
	return &Janitor{repo: repo, pool: pool, cron: gronx.New(), now: time.Now}
}

// Run checks the schedule once a minute and sweeps when it is due.
func (j *Janitor) Run(ctx context.Context) error {
	slog.Info("janitor started", "schedule", schedule)
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	var lastRun time.Time
	for {
		select {
		case <-ctx.Done():
			slog.Info("janitor stopped")
			return ctx.Err()
		case <-ticker.C:
			now := j.now().UTC()
			due, err := j.cron.IsDue(schedule, now)
			if err != nil {
				slog.Error("janitor schedule check failed", "error", err)
				continue
			}
			if !due || now.Sub(lastRun) < time.Hour {
				continue
			}
			lastRun = now
			j.Sweep(ctx)
		}
	}
}

// Sweep walks every group binding once and deletes the abandoned ones.
// Exported for the sessions command and for tests.
func (j *Janitor) Sweep(ctx context.Context) {
	bindings, err := j.repo.GetAllGroupBindings(ctx)
	if err != nil {
		slog.Error("janitor binding scan failed", "error", err)
		return
	}
	slog.Info("janitor sweep started", "bindings", len(bindings))

	deleted := 0
	for _, b := range bindings {
		if ctx.Err() != nil {
			return
		}
		ok, err := j.sweepOne(ctx, b)
		if err != nil {
			slog.Error("janitor iteration failed",
				"user_id", b.UserID, "group_id", b.GroupID, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(errorBackoff):
			}
			continue
		}
		if ok {
			deleted++
		}
	}
	slog.Info("janitor sweep finished", "deleted", deleted)
}

// sweepOne deletes a single binding's group if the user has gone quiet.
// Returns true when the group was deleted.
func (j *Janitor) sweepOne(ctx context.Context, b store.GroupBinding) (bool, error) {
	open, err := j.repo.GetOpenTickets(ctx, b.UserID)
	if err != nil {
		return false, err
	}
	if len(open) > 0 {
		return false, nil
	}

	latest, err := j.repo.GetLatestTicketTime(ctx, b.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if j.now().Sub(latest) < idleCutoff {
		return false, nil
	}

	sess, err := j.pool.ByName(ctx, b.CreatedBy)
	if err != nil {
		slog.Warn("janitor worker unavailable",
			"created_by", b.CreatedBy, "group_id", b.GroupID, "error", err)
		return false, nil
	}
	defer sess.Close()

	chatID := b.GroupID
	if chatID < 0 {
		chatID = -chatID
	}
	if _, err := sess.API().MessagesDeleteChat(ctx, chatID); err != nil {
		return false, fmt.Errorf("delete chat %d: %w", chatID, err)
	}
	if err := j.repo.DeleteGroupBinding(ctx, b.UserID); err != nil {
		return false, err
	}
	slog.Info("idle operator group deleted",
		"user_id", b.UserID, "group_id", b.GroupID, "created_by", b.CreatedBy)
	return true, nil
}
