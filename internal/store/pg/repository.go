package pg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/nextlevelbuilder/triagebot/internal/store"
)

// Repository implements store.Repository backed by Postgres.
type Repository struct {
	db       DB
	settings settingsCache
}

// New creates a Repository over an open pool (or a mock in tests).
func New(db DB) *Repository {
	return &Repository{db: db, settings: settingsCache{ttl: time.Minute}}
}

func wrap(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, store.ErrStorage, err)
}

// AppendUserMessage finds or creates the open ticket for the user and inserts
// the message, in one transaction. Concurrent appends for the same user
// serialize on the find-or-create step at the database.
func (r *Repository) AppendUserMessage(ctx context.Context, userID int64, messageID int, text string, replied bool) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return wrap("append message: begin", err)
	}
	defer tx.Rollback(ctx)

	var ticketID int64
	err = tx.QueryRow(ctx,
		`SELECT ticket_id FROM support_tickets
		 WHERE user_id = $1 AND closed = FALSE
		 LIMIT 1 FOR UPDATE`, userID).Scan(&ticketID)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		err = tx.QueryRow(ctx,
			`INSERT INTO support_tickets (user_id) VALUES ($1) RETURNING ticket_id`,
			userID).Scan(&ticketID)
		if err != nil {
			return wrap("append message: create ticket", err)
		}
		slog.Debug("support ticket created", "ticket_id", ticketID, "user_id", userID)
	case err != nil:
		return wrap("append message: find ticket", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO support_messages (ticket_id, user_id, message_id, user_text, replied)
		 VALUES ($1, $2, $3, $4, $5)`,
		ticketID, userID, messageID, text, replied)
	if err != nil {
		return wrap("append message: insert", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return wrap("append message: commit", err)
	}
	return nil
}

func (r *Repository) GetActiveTickets(ctx context.Context, filter store.TicketFilter) ([]store.TicketWithMessages, error) {
	query := `SELECT ticket_id, user_id, closed, messages_forwarded, support_issue, lang, created_at
		FROM support_tickets WHERE closed = FALSE`
	args := []any{}
	if filter.Forwarded != nil {
		args = append(args, *filter.Forwarded)
		query += fmt.Sprintf(" AND messages_forwarded = $%d", len(args))
	}
	if filter.UserID != 0 {
		args = append(args, filter.UserID)
		query += fmt.Sprintf(" AND user_id = $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, wrap("get active tickets", err)
	}
	defer rows.Close()

	var tickets []store.TicketWithMessages
	ids := []int64{}
	byID := map[int64]int{}
	for rows.Next() {
		var t store.Ticket
		var issue, lang *string
		if err := rows.Scan(&t.ID, &t.UserID, &t.Closed, &t.MessagesForwarded, &issue, &lang, &t.CreatedAt); err != nil {
			return nil, wrap("get active tickets: scan", err)
		}
		t.SupportIssue = deref(issue)
		t.Lang = deref(lang)
		byID[t.ID] = len(tickets)
		ids = append(ids, t.ID)
		tickets = append(tickets, store.TicketWithMessages{Ticket: t})
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("get active tickets: rows", err)
	}
	if len(tickets) == 0 {
		return nil, nil
	}

	msgRows, err := r.db.Query(ctx,
		`SELECT id, ticket_id, user_id, message_id, user_text, replied, is_deleted, created_at
		 FROM support_messages WHERE ticket_id = ANY($1)
		 ORDER BY message_id ASC`, ids)
	if err != nil {
		return nil, wrap("get active tickets: messages", err)
	}
	defer msgRows.Close()

	for msgRows.Next() {
		var m store.Message
		if err := msgRows.Scan(&m.ID, &m.TicketID, &m.UserID, &m.MessageID, &m.UserText, &m.Replied, &m.IsDeleted, &m.CreatedAt); err != nil {
			return nil, wrap("get active tickets: scan message", err)
		}
		if i, ok := byID[m.TicketID]; ok {
			tickets[i].Messages = append(tickets[i].Messages, m)
		}
	}
	if err := msgRows.Err(); err != nil {
		return nil, wrap("get active tickets: message rows", err)
	}
	return tickets, nil
}

func (r *Repository) GetTicket(ctx context.Context, ticketID int64) (*store.TicketWithMessages, error) {
	var t store.TicketWithMessages
	var issue, lang *string
	err := r.db.QueryRow(ctx,
		`SELECT ticket_id, user_id, closed, messages_forwarded, support_issue, lang, created_at
		 FROM support_tickets WHERE ticket_id = $1`, ticketID).
		Scan(&t.ID, &t.UserID, &t.Closed, &t.MessagesForwarded, &issue, &lang, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, wrap("get ticket", err)
	}
	t.SupportIssue = deref(issue)
	t.Lang = deref(lang)

	rows, err := r.db.Query(ctx,
		`SELECT id, ticket_id, user_id, message_id, user_text, replied, is_deleted, created_at
		 FROM support_messages WHERE ticket_id = $1`, ticketID)
	if err != nil {
		return nil, wrap("get ticket: messages", err)
	}
	defer rows.Close()
	for rows.Next() {
		var m store.Message
		if err := rows.Scan(&m.ID, &m.TicketID, &m.UserID, &m.MessageID, &m.UserText, &m.Replied, &m.IsDeleted, &m.CreatedAt); err != nil {
			return nil, wrap("get ticket: scan message", err)
		}
		t.Messages = append(t.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("get ticket: message rows", err)
	}
	sort.Slice(t.Messages, func(i, j int) bool { return t.Messages[i].MessageID < t.Messages[j].MessageID })
	return &t, nil
}

func (r *Repository) GetMessage(ctx context.Context, userID int64, messageID int) (*store.Message, *store.Ticket, error) {
	var m store.Message
	var t store.Ticket
	var issue, lang *string
	err := r.db.QueryRow(ctx,
		`SELECT sm.id, sm.ticket_id, sm.user_id, sm.message_id, sm.user_text, sm.replied, sm.is_deleted, sm.created_at,
		        st.closed, st.messages_forwarded, st.support_issue, st.lang, st.created_at
		 FROM support_messages sm
		 JOIN support_tickets st ON st.ticket_id = sm.ticket_id
		 WHERE sm.user_id = $1 AND sm.message_id = $2`, userID, messageID).
		Scan(&m.ID, &m.TicketID, &m.UserID, &m.MessageID, &m.UserText, &m.Replied, &m.IsDeleted, &m.CreatedAt,
			&t.Closed, &t.MessagesForwarded, &issue, &lang, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, store.ErrNotFound
	}
	if err != nil {
		return nil, nil, wrap("get message", err)
	}
	t.ID = m.TicketID
	t.UserID = m.UserID
	t.SupportIssue = deref(issue)
	t.Lang = deref(lang)
	return &m, &t, nil
}

func (r *Repository) SetLangAndCategory(ctx context.Context, ticketID int64, category, lang string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE support_tickets SET support_issue = $1, lang = $2
		 WHERE ticket_id = $3 AND support_issue IS NULL`,
		category, lang, ticketID)
	if err != nil {
		return wrap("set lang and category", err)
	}
	return nil
}

func (r *Repository) MarkMessagesReplied(ctx context.Context, ticketID int64) error {
	_, err := r.db.Exec(ctx,
		`UPDATE support_messages SET replied = TRUE WHERE ticket_id = $1`, ticketID)
	if err != nil {
		return wrap("mark messages replied", err)
	}
	return nil
}

func (r *Repository) MarkMessageDeleted(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx,
		`UPDATE support_messages SET is_deleted = TRUE WHERE id = $1`, id)
	if err != nil {
		return wrap("mark message deleted", err)
	}
	return nil
}

func (r *Repository) CloseTicket(ctx context.Context, ticketID int64) error {
	_, err := r.db.Exec(ctx,
		`UPDATE support_tickets SET closed = TRUE WHERE ticket_id = $1`, ticketID)
	if err != nil {
		return wrap("close ticket", err)
	}
	return nil
}

func (r *Repository) SetMessagesForwarded(ctx context.Context, ticketID int64) error {
	_, err := r.db.Exec(ctx,
		`UPDATE support_tickets SET messages_forwarded = TRUE WHERE ticket_id = $1`, ticketID)
	if err != nil {
		return wrap("set messages forwarded", err)
	}
	return nil
}

// UpdateEditedMessage rewrites the stored text only while the message is
// still unreplied; the guard lives in the UPDATE itself so a concurrent
// mark-replied cannot race it.
func (r *Repository) UpdateEditedMessage(ctx context.Context, userID int64, messageID int, newText string) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE support_messages SET user_text = $1
		 WHERE user_id = $2 AND message_id = $3 AND replied = FALSE`,
		newText, userID, messageID)
	if err != nil {
		return false, wrap("update edited message", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *Repository) GetPreviousCategoryKey(ctx context.Context, userID int64) (string, error) {
	var issue *string
	err := r.db.QueryRow(ctx,
		`SELECT support_issue FROM support_tickets
		 WHERE user_id = $1
		 ORDER BY created_at DESC, ticket_id DESC
		 OFFSET 1 LIMIT 1`, userID).Scan(&issue)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", wrap("get previous category", err)
	}
	return deref(issue), nil
}

func (r *Repository) GetOpenTickets(ctx context.Context, userID int64) ([]store.Ticket, error) {
	rows, err := r.db.Query(ctx,
		`SELECT ticket_id, user_id, closed, messages_forwarded, support_issue, lang, created_at
		 FROM support_tickets WHERE user_id = $1 AND closed = FALSE`, userID)
	if err != nil {
		return nil, wrap("get open tickets", err)
	}
	defer rows.Close()
	var out []store.Ticket
	for rows.Next() {
		var t store.Ticket
		var issue, lang *string
		if err := rows.Scan(&t.ID, &t.UserID, &t.Closed, &t.MessagesForwarded, &issue, &lang, &t.CreatedAt); err != nil {
			return nil, wrap("get open tickets: scan", err)
		}
		t.SupportIssue = deref(issue)
		t.Lang = deref(lang)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("get open tickets: rows", err)
	}
	return out, nil
}

func (r *Repository) GetLatestTicketTime(ctx context.Context, userID int64) (time.Time, error) {
	var latest *time.Time
	err := r.db.QueryRow(ctx,
		`SELECT MAX(created_at) FROM support_tickets WHERE user_id = $1`, userID).Scan(&latest)
	if err != nil {
		return time.Time{}, wrap("get latest ticket time", err)
	}
	if latest == nil {
		return time.Time{}, store.ErrNotFound
	}
	return *latest, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
