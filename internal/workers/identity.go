package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/dcs"
	"github.com/gotd/td/tg"
)

// ErrNotAuthorized means the on-disk session exists but is not signed in.
var ErrNotAuthorized = errors.New("worker session not authorized")

// Identity is one worker account: credentials plus the on-disk session blob.
// Each identity is tied to a sticky egress proxy keyed by its name.
type Identity struct {
	Name        string // file base name, usually the phone number
	APIID       int
	APIHash     string
	SessionPath string
}

type credsFile struct {
	AppID   int    `json:"app_id"`
	AppHash string `json:"app_hash"`
}

// loadIdentity reads "<dir>/<name>.json" next to "<name>.session".
func loadIdentity(dir, name string) (*Identity, error) {
	raw, err := os.ReadFile(filepath.Join(dir, name+".json"))
	if err != nil {
		return nil, fmt.Errorf("read credentials for %s: %w", name, err)
	}
	var creds credsFile
	if err := json.Unmarshal(raw, &creds); err != nil {
		return nil, fmt.Errorf("parse credentials for %s: %w", name, err)
	}
	if creds.AppID == 0 || creds.AppHash == "" {
		return nil, fmt.Errorf("incomplete credentials for %s", name)
	}
	return &Identity{
		Name:        name,
		APIID:       creds.AppID,
		APIHash:     creds.AppHash,
		SessionPath: filepath.Join(dir, name+".session"),
	}, nil
}

// Session is a connected worker client. The caller owns it and must Close()
// on every exit path; at most one task may use a session at a time.
type Session struct {
	identity *Identity
	client   *telegram.Client
	self     *tg.User
	cancel   context.CancelFunc
	done     chan error
}

// connect opens the identity's session through its sticky proxy and verifies
// authorization. The gotd client runs on a background goroutine until Close.
func (i *Identity) connect(ctx context.Context, auth ProxyAuth) (*Session, error) {
	dialer, err := stickyDialer(auth, i.Name)
	if err != nil {
		return nil, err
	}

	client := telegram.NewClient(i.APIID, i.APIHash, telegram.Options{
		SessionStorage: &session.FileStorage{Path: i.SessionPath},
		Resolver:       dcs.Plain(dcs.PlainOptions{Dial: dialer.DialContext}),
	})

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	ready := make(chan struct{})

	go func() {
		done <- client.Run(runCtx, func(ctx context.Context) error {
			close(ready)
			<-ctx.Done()
			return ctx.Err()
		})
	}()

	select {
	case <-ready:
	case err := <-done:
		cancel()
		return nil, fmt.Errorf("connect %s: %w", i.Name, err)
	case <-time.After(45 * time.Second):
		cancel()
		<-done
		return nil, fmt.Errorf("connect %s: timed out", i.Name)
	case <-ctx.Done():
		cancel()
		<-done
		return nil, ctx.Err()
	}

	status, err := client.Auth().Status(ctx)
	if err != nil {
		cancel()
		<-done
		return nil, fmt.Errorf("auth status %s: %w", i.Name, err)
	}
	if !status.Authorized {
		cancel()
		<-done
		return nil, fmt.Errorf("%s: %w", i.Name, ErrNotAuthorized)
	}

	self, err := client.Self(ctx)
	if err != nil {
		cancel()
		<-done
		return nil, fmt.Errorf("self %s: %w", i.Name, err)
	}

	return &Session{identity: i, client: client, self: self, cancel: cancel, done: done}, nil
}

// API returns the raw MTProto client for chat management calls.
func (s *Session) API() *tg.Client { return s.client.API() }

// Name is the canonical identity name recorded as a group's created_by:
// "+<phone>" of the signed-in account.
func (s *Session) Name() string {
	if s.self != nil && s.self.Phone != "" {
		return "+" + s.self.Phone
	}
	return s.identity.Name
}

// Close stops the background client. Safe to call more than once.
func (s *Session) Close() error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	s.cancel = nil
	err := <-s.done
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
