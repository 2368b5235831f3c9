package pg

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/nextlevelbuilder/triagebot/internal/store"
)

func (r *Repository) UpsertGroupBinding(ctx context.Context, userID, groupID int64, createdBy string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO support_group_ids (user_id, group_id, created_by)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id)
		 DO UPDATE SET group_id = EXCLUDED.group_id, created_by = EXCLUDED.created_by`,
		userID, groupID, createdBy)
	if err != nil {
		return wrap("upsert group binding", err)
	}
	return nil
}

func (r *Repository) GetGroupBinding(ctx context.Context, userID int64) (*store.GroupBinding, error) {
	var b store.GroupBinding
	var createdBy *string
	err := r.db.QueryRow(ctx,
		`SELECT user_id, group_id, created_by FROM support_group_ids WHERE user_id = $1`,
		userID).Scan(&b.UserID, &b.GroupID, &createdBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, wrap("get group binding", err)
	}
	b.CreatedBy = deref(createdBy)
	return &b, nil
}

func (r *Repository) DeleteGroupBinding(ctx context.Context, userID int64) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM support_group_ids WHERE user_id = $1`, userID)
	if err != nil {
		return wrap("delete group binding", err)
	}
	return nil
}

func (r *Repository) GetAllGroupBindings(ctx context.Context) ([]store.GroupBinding, error) {
	rows, err := r.db.Query(ctx,
		`SELECT user_id, group_id, created_by FROM support_group_ids`)
	if err != nil {
		return nil, wrap("get all group bindings", err)
	}
	defer rows.Close()
	var out []store.GroupBinding
	for rows.Next() {
		var b store.GroupBinding
		var createdBy *string
		if err := rows.Scan(&b.UserID, &b.GroupID, &createdBy); err != nil {
			return nil, wrap("get all group bindings: scan", err)
		}
		b.CreatedBy = deref(createdBy)
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("get all group bindings: rows", err)
	}
	return out, nil
}

// CountGroupsCreatedBy ignores the "+" prefix: session files are named by
// bare phone number while bindings record the "+<phone>" form.
func (r *Repository) CountGroupsCreatedBy(ctx context.Context, createdBy string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM support_group_ids WHERE ltrim(created_by, '+') = ltrim($1, '+')`,
		createdBy).Scan(&count)
	if err != nil {
		return 0, wrap("count groups created by", err)
	}
	return count, nil
}

// UpsertMute mutes a user until the given time, extending any existing mute.
func (r *Repository) UpsertMute(ctx context.Context, userID int64, until time.Time) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO support_user_muted (user_id, muted_until)
		 VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET muted_until = EXCLUDED.muted_until`,
		userID, until)
	if err != nil {
		return wrap("upsert mute", err)
	}
	slog.Debug("user muted", "user_id", userID, "until", until)
	return nil
}

// IsMuted reports whether the user is muted, deleting the row on the way out
// when the mute has expired.
func (r *Repository) IsMuted(ctx context.Context, userID int64) (bool, error) {
	var until time.Time
	err := r.db.QueryRow(ctx,
		`SELECT muted_until FROM support_user_muted WHERE user_id = $1`,
		userID).Scan(&until)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, wrap("is muted", err)
	}
	if until.Before(time.Now().UTC()) {
		if _, err := r.db.Exec(ctx,
			`DELETE FROM support_user_muted WHERE user_id = $1`, userID); err != nil {
			return false, wrap("is muted: expire", err)
		}
		return false, nil
	}
	return true, nil
}

// settingsCache is the read-through cache in front of the bot_settings row.
// The row is edited by the admin panel at runtime, so reads go back to the
// database once the TTL lapses.
type settingsCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	fetched time.Time
	value   *store.BotSettings
}

func (r *Repository) GetBotSettings(ctx context.Context) (*store.BotSettings, error) {
	r.settings.mu.Lock()
	defer r.settings.mu.Unlock()

	if r.settings.value != nil && time.Since(r.settings.fetched) < r.settings.ttl {
		v := *r.settings.value
		return &v, nil
	}

	var s store.BotSettings
	err := r.db.QueryRow(ctx,
		`SELECT bot_username, support_username FROM bot_settings LIMIT 1`).
		Scan(&s.BotUsername, &s.SupportUsername)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, wrap("get bot settings", err)
	}
	r.settings.value = &s
	r.settings.fetched = time.Now()
	v := s
	return &v, nil
}
