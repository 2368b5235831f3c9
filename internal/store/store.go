// Package store defines the persistence entities and the typed repository
// interface every other component depends on.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrStorage wraps every database failure surfaced by a repository
// implementation. Callers that want to distinguish "row missing" from
// "database broken" check ErrNotFound first.
var (
	ErrStorage  = errors.New("storage error")
	ErrNotFound = errors.New("not found")
)

// User is an end user of the shop bot.
type User struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Ticket is one support episode for a user. SupportIssue and Lang are empty
// until the engine classifies the ticket; they are set together exactly once.
type Ticket struct {
	ID                int64
	UserID            int64
	Closed            bool
	MessagesForwarded bool
	SupportIssue      string
	Lang              string
	CreatedAt         time.Time
}

// Message is a single user utterance stored under a ticket. UserText holds
// the raw text for text messages and a bracketed placeholder like "(photo)"
// for everything else.
type Message struct {
	ID        int64
	TicketID  int64
	UserID    int64
	MessageID int
	UserText  string
	Replied   bool
	IsDeleted bool
	CreatedAt time.Time
}

// TicketWithMessages aggregates a ticket with its messages, sorted by
// platform message id.
type TicketWithMessages struct {
	Ticket
	Messages []Message
}

// GroupBinding maps a user to the operator group created on their behalf.
// CreatedBy is the worker identity name ("+<phone>") that created the group;
// the janitor must delete the group through the same identity.
type GroupBinding struct {
	UserID    int64
	GroupID   int64
	CreatedBy string
}

// Drop is one commerce record used to render the operator dossier.
type Drop struct {
	ID           int64
	Status       string
	Lost         bool
	AreaName     string
	CityName     string
	ProductEmoji string
	Reason       string
	Amount       float64
	UpdatedAt    time.Time
}

// UserDossier bundles everything the escalation dossier needs in one fetch.
type UserDossier struct {
	User  User
	Roles []string
	Drops []Drop
}

// BotSettings are the externally editable operational strings.
type BotSettings struct {
	BotUsername     string
	SupportUsername string
}

// TicketFilter narrows GetActiveTickets. Forwarded=nil means "don't filter".
type TicketFilter struct {
	Forwarded *bool
	UserID    int64
}

// Repository is the typed data-access layer over the persistent store.
// Every operation is transactional at the statement level; AppendUserMessage
// is transactional as a unit. Failures wrap ErrStorage.
type Repository interface {
	// AppendUserMessage finds or creates the open ticket for the user and
	// inserts the message under it, atomically.
	AppendUserMessage(ctx context.Context, userID int64, messageID int, text string, replied bool) error

	GetActiveTickets(ctx context.Context, filter TicketFilter) ([]TicketWithMessages, error)
	GetTicket(ctx context.Context, ticketID int64) (*TicketWithMessages, error)
	GetMessage(ctx context.Context, userID int64, messageID int) (*Message, *Ticket, error)

	SetLangAndCategory(ctx context.Context, ticketID int64, category, lang string) error
	MarkMessagesReplied(ctx context.Context, ticketID int64) error
	MarkMessageDeleted(ctx context.Context, id int64) error
	CloseTicket(ctx context.Context, ticketID int64) error
	SetMessagesForwarded(ctx context.Context, ticketID int64) error

	// UpdateEditedMessage overwrites the stored text of an unreplied message.
	// A replied message is left untouched and false is returned.
	UpdateEditedMessage(ctx context.Context, userID int64, messageID int, newText string) (bool, error)

	GetUser(ctx context.Context, userID int64) (*User, error)
	GetUserRoles(ctx context.Context, userID int64) ([]string, error)
	GetUserAndDrops(ctx context.Context, userID int64, statuses []string, orderBy string) (*UserDossier, error)
	GetPreviousCategoryKey(ctx context.Context, userID int64) (string, error)
	GetOpenTickets(ctx context.Context, userID int64) ([]Ticket, error)
	GetLatestTicketTime(ctx context.Context, userID int64) (time.Time, error)

	UpsertMute(ctx context.Context, userID int64, until time.Time) error
	IsMuted(ctx context.Context, userID int64) (bool, error)

	UpsertGroupBinding(ctx context.Context, userID, groupID int64, createdBy string) error
	GetGroupBinding(ctx context.Context, userID int64) (*GroupBinding, error)
	DeleteGroupBinding(ctx context.Context, userID int64) error
	GetAllGroupBindings(ctx context.Context) ([]GroupBinding, error)
	CountGroupsCreatedBy(ctx context.Context, createdBy string) (int, error)

	GetBotSettings(ctx context.Context) (*BotSettings, error)
}
