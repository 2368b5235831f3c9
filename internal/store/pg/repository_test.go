package pg

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextlevelbuilder/triagebot/internal/store"
)

func newMock(t *testing.T) (pgxmock.PgxPoolIface, *Repository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, New(mock)
}

func TestAppendUserMessageExistingTicket(t *testing.T) {
	mock, repo := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT ticket_id FROM support_tickets`)).
		WithArgs(int64(111)).
		WillReturnRows(pgxmock.NewRows([]string{"ticket_id"}).AddRow(int64(7)))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO support_messages`)).
		WithArgs(int64(7), int64(111), 42, "hi there", false).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	err := repo.AppendUserMessage(context.Background(), 111, 42, "hi there", false)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendUserMessageCreatesTicket(t *testing.T) {
	mock, repo := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT ticket_id FROM support_tickets`)).
		WithArgs(int64(222)).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO support_tickets (user_id) VALUES ($1) RETURNING ticket_id`)).
		WithArgs(int64(222)).
		WillReturnRows(pgxmock.NewRows([]string{"ticket_id"}).AddRow(int64(8)))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO support_messages`)).
		WithArgs(int64(8), int64(222), 1, "(photo)", true).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	err := repo.AppendUserMessage(context.Background(), 222, 1, "(photo)", true)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendUserMessageWrapsStorageError(t *testing.T) {
	mock, repo := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT ticket_id FROM support_tickets`)).
		WithArgs(int64(1)).
		WillReturnError(errors.New("connection refused"))
	mock.ExpectRollback()

	err := repo.AppendUserMessage(context.Background(), 1, 1, "x", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrStorage)
}

func TestUpdateEditedMessageRepliedGuard(t *testing.T) {
	mock, repo := newMock(t)

	// Guard lives in the UPDATE: zero rows affected means already replied.
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE support_messages SET user_text = $1`)).
		WithArgs("new text", int64(111), 42).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	updated, err := repo.UpdateEditedMessage(context.Background(), 111, 42, "new text")
	require.NoError(t, err)
	assert.False(t, updated)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE support_messages SET user_text = $1`)).
		WithArgs("new text", int64(111), 43).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	updated, err = repo.UpdateEditedMessage(context.Background(), 111, 43, "new text")
	require.NoError(t, err)
	assert.True(t, updated)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIsMutedExpiresOnRead(t *testing.T) {
	mock, repo := newMock(t)

	expired := time.Now().UTC().Add(-time.Hour)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT muted_until FROM support_user_muted`)).
		WithArgs(int64(555)).
		WillReturnRows(pgxmock.NewRows([]string{"muted_until"}).AddRow(expired))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM support_user_muted`)).
		WithArgs(int64(555)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	muted, err := repo.IsMuted(context.Background(), 555)
	require.NoError(t, err)
	assert.False(t, muted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIsMutedActive(t *testing.T) {
	mock, repo := newMock(t)

	until := time.Now().UTC().Add(time.Hour)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT muted_until FROM support_user_muted`)).
		WithArgs(int64(555)).
		WillReturnRows(pgxmock.NewRows([]string{"muted_until"}).AddRow(until))

	muted, err := repo.IsMuted(context.Background(), 555)
	require.NoError(t, err)
	assert.True(t, muted)
}

func TestSetLangAndCategoryOnlyFirstTime(t *testing.T) {
	mock, repo := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta(`AND support_issue IS NULL`)).
		WithArgs("ok", "eng", int64(9)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.SetLangAndCategory(context.Background(), 9, "ok", "eng"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLatestTicketTimeAbsent(t *testing.T) {
	mock, repo := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT MAX(created_at) FROM support_tickets`)).
		WithArgs(int64(777)).
		WillReturnRows(pgxmock.NewRows([]string{"max"}).AddRow(nil))

	_, err := repo.GetLatestTicketTime(context.Background(), 777)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGetGroupBindingNotFound(t *testing.T) {
	mock, repo := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT user_id, group_id, created_by FROM support_group_ids`)).
		WithArgs(int64(1)).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetGroupBinding(context.Background(), 1)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGetActiveTicketsStitchesMessages(t *testing.T) {
	mock, repo := newMock(t)
	now := time.Now()

	unforwarded := false
	mock.ExpectQuery(regexp.QuoteMeta(`FROM support_tickets WHERE closed = FALSE AND messages_forwarded = $1`)).
		WithArgs(false).
		WillReturnRows(pgxmock.NewRows(
			[]string{"ticket_id", "user_id", "closed", "messages_forwarded", "support_issue", "lang", "created_at"}).
			AddRow(int64(1), int64(111), false, false, nil, nil, now).
			AddRow(int64(2), int64(222), false, false, strPtr("ok"), strPtr("eng"), now))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM support_messages WHERE ticket_id = ANY($1)`)).
		WithArgs([]int64{1, 2}).
		WillReturnRows(pgxmock.NewRows(
			[]string{"id", "ticket_id", "user_id", "message_id", "user_text", "replied", "is_deleted", "created_at"}).
			AddRow(int64(10), int64(1), int64(111), 5, "hello", false, false, now).
			AddRow(int64(11), int64(2), int64(222), 6, "thanks", true, false, now))

	tickets, err := repo.GetActiveTickets(context.Background(), store.TicketFilter{Forwarded: &unforwarded})
	require.NoError(t, err)
	require.Len(t, tickets, 2)
	require.Len(t, tickets[0].Messages, 1)
	assert.Equal(t, "hello", tickets[0].Messages[0].UserText)
	assert.Equal(t, "ok", tickets[1].SupportIssue)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserAndDropsEscalationOrderKey(t *testing.T) {
	mock, repo := newMock(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT user_id, username, first_name, last_name, created_at, updated_at`)).
		WithArgs(int64(77)).
		WillReturnRows(pgxmock.NewRows(
			[]string{"user_id", "username", "first_name", "last_name", "created_at", "updated_at"}).
			AddRow(int64(77), strPtr("lost_soul"), strPtr("Jānis"), nil, now, now))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT r.role_name`)).
		WithArgs(int64(77)).
		WillReturnRows(pgxmock.NewRows([]string{"role_name"}).AddRow("user"))
	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY d.updated_at ASC`)).
		WithArgs(int64(77), []string{"paid", "lost"}).
		WillReturnRows(pgxmock.NewRows(
			[]string{"drop_id", "status", "lost", "area_name", "batch_amount", "updated_at", "city", "reason", "emoji"}).
			AddRow(int64(1001), "paid", false, strPtr("Purvciems"), 2.5, now, nil, nil, strPtr("🌿")))

	d, err := repo.GetUserAndDrops(context.Background(), 77, []string{"paid", "lost"}, "updated_at ASC")
	require.NoError(t, err)
	assert.Equal(t, "lost_soul", d.User.Username)
	assert.Equal(t, []string{"user"}, d.Roles)
	require.Len(t, d.Drops, 1)
	assert.Equal(t, "Purvciems", d.Drops[0].AreaName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserAndDropsRejectsUnknownOrderKey(t *testing.T) {
	mock, repo := newMock(t)

	// The whitelist must fail closed before any SQL is issued.
	_, err := repo.GetUserAndDrops(context.Background(), 77, []string{"paid"}, "drop_id; DROP TABLE drops")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrStorage)
	require.NoError(t, mock.ExpectationsWereMet())
}

func strPtr(s string) *string { return &s }
