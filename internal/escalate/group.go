package escalate

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/gotd/td/telegram/uploader"
	"github.com/gotd/td/tg"

	"github.com/nextlevelbuilder/triagebot/internal/workers"
)

// createGroup builds the three-party operator group through the worker
// session: bot + admin invited, admin promoted, the user id parked in the
// about field so the operator route can resolve the user later. Returns the
// negated chat id (platform convention for group peers on the Bot API side).
func (o *Orchestrator) createGroup(ctx context.Context, sess *workers.Session, userID int64) (int64, error) {
	api := sess.API()

	botUser, err := resolveUser(ctx, api, o.botUsername)
	if err != nil {
		return 0, fmt.Errorf("resolve bot %s: %w", o.botUsername, err)
	}
	adminName, err := o.adminUsername(ctx)
	if err != nil {
		return 0, err
	}
	adminUser, err := resolveUser(ctx, api, adminName)
	if err != nil {
		return 0, fmt.Errorf("resolve admin %s: %w", adminName, err)
	}

	title := o.groupTitle(ctx, userID)
	invited, err := api.MessagesCreateChat(ctx, &tg.MessagesCreateChatRequest{
		Users: []tg.InputUserClass{inputUser(botUser), inputUser(adminUser)},
		Title: title,
	})
	if err != nil {
		return 0, fmt.Errorf("create chat %q: %w", title, err)
	}
	chatID, err := createdChatID(invited)
	if err != nil {
		return 0, err
	}

	if _, err := api.MessagesEditChatAdmin(ctx, &tg.MessagesEditChatAdminRequest{
		ChatID:  chatID,
		UserID:  inputUser(adminUser),
		IsAdmin: true,
	}); err != nil {
		return 0, fmt.Errorf("promote admin in %d: %w", chatID, err)
	}

	if _, err := api.MessagesEditChatAbout(ctx, &tg.MessagesEditChatAboutRequest{
		Peer:  &tg.InputPeerChat{ChatID: chatID},
		About: strconv.FormatInt(userID, 10),
	}); err != nil {
		return 0, fmt.Errorf("set about on %d: %w", chatID, err)
	}

	// Cosmetic; a group without the warning photo still works.
	if err := o.setGroupPhoto(ctx, api, chatID); err != nil {
		slog.Warn("group photo upload failed", "chat_id", chatID, "error", err)
	}

	return -chatID, nil
}

func (o *Orchestrator) setGroupPhoto(ctx context.Context, api *tg.Client, chatID int64) error {
	file, err := uploader.NewUploader(api).FromPath(ctx, o.photoPath)
	if err != nil {
		return err
	}
	photo := &tg.InputChatUploadedPhoto{}
	photo.SetFile(file)
	_, err = api.MessagesEditChatPhoto(ctx, &tg.MessagesEditChatPhotoRequest{
		ChatID: chatID,
		Photo:  photo,
	})
	return err
}

// groupTitle is the user's display name, or a numeric fallback.
func (o *Orchestrator) groupTitle(ctx context.Context, userID int64) string {
	u, err := o.repo.GetUser(ctx, userID)
	if err != nil {
		return fmt.Sprintf("User %d", userID)
	}
	title := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if title == "" {
		title = fmt.Sprintf("User %d", userID)
	}
	return title
}

func resolveUser(ctx context.Context, api *tg.Client, username string) (*tg.User, error) {
	resolved, err := api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{
		Username: strings.TrimPrefix(username, "@"),
	})
	if err != nil {
		return nil, err
	}
	for _, u := range resolved.Users {
		if user, ok := u.(*tg.User); ok {
			return user, nil
		}
	}
	return nil, fmt.Errorf("username %s did not resolve to a user", username)
}

func inputUser(u *tg.User) *tg.InputUser {
	return &tg.InputUser{UserID: u.ID, AccessHash: u.AccessHash}
}

// createdChatID digs the fresh chat id out of the createChat updates.
func createdChatID(invited *tg.MessagesInvitedUsers) (int64, error) {
	updates, ok := invited.Updates.(*tg.Updates)
	if !ok {
		return 0, fmt.Errorf("unexpected createChat result %T", invited.Updates)
	}
	for _, c := range updates.Chats {
		if chat, ok := c.(*tg.Chat); ok {
			return chat.ID, nil
		}
	}
	return 0, fmt.Errorf("createChat returned no chat")
}
