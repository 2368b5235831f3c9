package escalate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextlevelbuilder/triagebot/internal/store"
	"github.com/nextlevelbuilder/triagebot/internal/workers"
)

type fakeRepo struct {
	store.Repository

	binding    *store.GroupBinding
	ticket     *store.TicketWithMessages
	dossier    *store.UserDossier
	dossierErr error
	settings   store.BotSettings

	forwardedTickets []int64
	dossierStatuses  []string
	dossierOrder     string
}

func (f *fakeRepo) GetGroupBinding(ctx context.Context, userID int64) (*store.GroupBinding, error) {
	if f.binding == nil {
		return nil, store.ErrNotFound
	}
	return f.binding, nil
}

func (f *fakeRepo) SetMessagesForwarded(ctx context.Context, ticketID int64) error {
	f.forwardedTickets = append(f.forwardedTickets, ticketID)
	return nil
}

func (f *fakeRepo) GetTicket(ctx context.Context, ticketID int64) (*store.TicketWithMessages, error) {
	return f.ticket, nil
}

func (f *fakeRepo) GetUserAndDrops(ctx context.Context, userID int64, statuses []string, orderBy string) (*store.UserDossier, error) {
	f.dossierStatuses = statuses
	f.dossierOrder = orderBy
	if f.dossierErr != nil {
		return nil, f.dossierErr
	}
	return f.dossier, nil
}

func (f *fakeRepo) GetBotSettings(ctx context.Context) (*store.BotSettings, error) {
	s := f.settings
	return &s, nil
}

type sent struct {
	chatID int64
	text   string
}

type fakePlatform struct {
	texts     []sent
	markdown  []sent
	headers   []sent // chatID + topic
	forwards  []int
	forwardTo []int64
}

func (f *fakePlatform) SendText(ctx context.Context, chatID int64, text string) error {
	f.texts = append(f.texts, sent{chatID, text})
	return nil
}

func (f *fakePlatform) SendMarkdown(ctx context.Context, chatID int64, text string) error {
	f.markdown = append(f.markdown, sent{chatID, text})
	return nil
}

func (f *fakePlatform) SendTicketHeader(ctx context.Context, groupID, ticketID int64, topic string) error {
	f.headers = append(f.headers, sent{groupID, topic})
	return nil
}

func (f *fakePlatform) ForwardMessage(ctx context.Context, toChatID, fromChatID int64, messageID int) error {
	f.forwardTo = append(f.forwardTo, toChatID)
	f.forwards = append(f.forwards, messageID)
	return nil
}

type fakePool struct{ err error }

func (f *fakePool) AcquireForGroupCreation(ctx context.Context) (*workers.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &workers.Session{}, nil
}

func escalationTicket() *store.TicketWithMessages {
	return &store.TicketWithMessages{
		Ticket: store.Ticket{ID: 5, UserID: 77, SupportIssue: "cant_find"},
		Messages: []store.Message{
			{MessageID: 10, UserText: "i cant find it"},
			{MessageID: 11, UserText: "photo was here", IsDeleted: true},
			{MessageID: 12, UserText: "still nothing"},
		},
	}
}

func boundRepo(ticket *store.TicketWithMessages) *fakeRepo {
	return &fakeRepo{
		binding: &store.GroupBinding{UserID: 77, GroupID: -900, CreatedBy: "+37120000001"},
		ticket:  ticket,
		dossier: &store.UserDossier{User: store.User{ID: 77, Username: "lost_soul"}},
	}
}

func newTestOrchestrator(repo *fakeRepo, platform *fakePlatform, pool Pool) *Orchestrator {
	return New(repo, platform, pool, "triage_bot", "dev_admin", false)
}

func TestEscalateReusesBoundGroup(t *testing.T) {
	ticket := escalationTicket()
	repo := boundRepo(ticket)
	platform := &fakePlatform{}
	o := newTestOrchestrator(repo, platform, &fakePool{})

	require.NoError(t, o.Escalate(context.Background(), ticket))

	assert.Equal(t, []int64{5}, repo.forwardedTickets)
	require.Len(t, platform.headers, 1)
	assert.Equal(t, int64(-900), platform.headers[0].chatID)
	assert.Equal(t, "cant_find", platform.headers[0].text)

	// Deleted messages become explicit notes, the rest are forwarded in order.
	require.Len(t, platform.texts, 1)
	assert.Equal(t, "(DELETED MESSAGE)\nphoto was here", platform.texts[0].text)
	assert.Equal(t, []int{10, 12}, platform.forwards)
	for _, to := range platform.forwardTo {
		assert.Equal(t, int64(-900), to)
	}
}

func TestEscalatePostsDossierWithWhitelistedOrder(t *testing.T) {
	ticket := escalationTicket()
	repo := boundRepo(ticket)
	platform := &fakePlatform{}
	o := newTestOrchestrator(repo, platform, &fakePool{})

	require.NoError(t, o.Escalate(context.Background(), ticket))

	// The order key must stay one the repository accepts.
	assert.Equal(t, "updated_at ASC", repo.dossierOrder)
	assert.Equal(t, []string{"paid", "lost", "redrop", "angry_redrop"}, repo.dossierStatuses)
	require.NotEmpty(t, platform.markdown)
	assert.Equal(t, int64(-900), platform.markdown[0].chatID)
	assert.Contains(t, platform.markdown[0].text, "@lost_soul")
}

func TestEscalateDossierFailureDoesNotBlock(t *testing.T) {
	ticket := escalationTicket()
	repo := boundRepo(ticket)
	repo.dossierErr = errors.New("dossier query failed")
	platform := &fakePlatform{}
	o := newTestOrchestrator(repo, platform, &fakePool{})

	require.NoError(t, o.Escalate(context.Background(), ticket))

	assert.Empty(t, platform.markdown)
	require.Len(t, platform.headers, 1)
	assert.Equal(t, []int{10, 12}, platform.forwards)
}

func TestEscalateUnknownTopicFallback(t *testing.T) {
	ticket := escalationTicket()
	ticket.SupportIssue = ""
	repo := boundRepo(ticket)
	platform := &fakePlatform{}
	o := newTestOrchestrator(repo, platform, &fakePool{})

	require.NoError(t, o.Escalate(context.Background(), ticket))

	require.Len(t, platform.headers, 1)
	assert.Equal(t, "Unknown", platform.headers[0].text)
}

func TestEscalatePoolExhaustedReportsToBoundGroup(t *testing.T) {
	ticket := escalationTicket()
	repo := boundRepo(ticket)
	repo.settings = store.BotSettings{SupportUsername: "@support"}
	platform := &fakePlatform{}
	o := newTestOrchestrator(repo, platform, &fakePool{err: workers.ErrNoIdentity})

	require.NoError(t, o.Escalate(context.Background(), ticket))

	require.Len(t, platform.texts, 1)
	assert.Equal(t, int64(-900), platform.texts[0].chatID)
	assert.Contains(t, platform.texts[0].text, "no worker identity")
	assert.Contains(t, platform.texts[0].text, "@support")
	assert.Empty(t, repo.forwardedTickets, "ticket must stay unforwarded for a retry")
	assert.Empty(t, platform.headers)
}

func TestEscalatePoolExhaustedWithoutGroup(t *testing.T) {
	repo := &fakeRepo{settings: store.BotSettings{SupportUsername: "@support"}}
	platform := &fakePlatform{}
	o := newTestOrchestrator(repo, platform, &fakePool{err: workers.ErrNoIdentity})

	require.NoError(t, o.Escalate(context.Background(), escalationTicket()))

	assert.Empty(t, platform.texts)
	assert.Empty(t, repo.forwardedTickets)
}

func TestEscalatePoolErrorPropagates(t *testing.T) {
	repo := boundRepo(escalationTicket())
	platform := &fakePlatform{}
	o := newTestOrchestrator(repo, platform, &fakePool{err: errors.New("proxy down")})

	err := o.Escalate(context.Background(), escalationTicket())
	require.Error(t, err)
	assert.Empty(t, repo.forwardedTickets)
}
