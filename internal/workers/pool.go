// Package workers manages the pool of user-API worker identities that create
// and administer operator groups. Each identity carries its own credentials,
// on-disk session blob, and sticky egress proxy.
package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// GroupLimit caps how many operator groups a single identity may own.
// The count is read from the database and is advisory: capacity planning,
// not a hard invariant.
const GroupLimit = 45

// ErrNoIdentity means every identity is unauthorized, unreachable, or at
// its group quota. Callers surface this as a visible operational error.
var ErrNoIdentity = errors.New("no worker identity available")

// GroupCounter is the one repository operation the pool needs.
type GroupCounter interface {
	CountGroupsCreatedBy(ctx context.Context, createdBy string) (int, error)
}

// Pool enumerates the identities under a sessions directory and hands out
// connected sessions. Sessions are exclusive: the caller must Close() on all
// exit paths before the identity can be used again.
type Pool struct {
	dir     string
	auth    ProxyAuth
	counter GroupCounter

	mu    sync.RWMutex
	names []string
}

func NewPool(dir string, auth ProxyAuth, counter GroupCounter) (*Pool, error) {
	p := &Pool{dir: dir, auth: auth, counter: counter}
	if err := p.refresh(); err != nil {
		return nil, err
	}
	return p, nil
}

// refresh re-reads the sessions directory. An identity is a "<name>.session"
// file with a "<name>.json" credentials file next to it.
func (p *Pool) refresh() error {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return fmt.Errorf("read sessions dir %s: %w", p.dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".session") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".session")
		if _, err := os.Stat(filepath.Join(p.dir, name+".json")); err != nil {
			slog.Warn("worker session without credentials file skipped", "name", name)
			continue
		}
		names = append(names, name)
	}
	p.mu.Lock()
	p.names = names
	p.mu.Unlock()
	slog.Debug("worker identities enumerated", "count", len(names))
	return nil
}

// Names returns the currently known identity names.
func (p *Pool) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.names...)
}

// Watch re-enumerates identities when session files are added or removed.
// Blocks until ctx is done.
func (p *Pool) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(p.dir); err != nil {
		return fmt.Errorf("watch %s: %w", p.dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if err := p.refresh(); err != nil {
				slog.Warn("worker pool refresh failed", "error", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("worker pool watcher error", "error", err)
		}
	}
}

// AcquireForGroupCreation returns a connected session for an identity that
// is under its group quota. Identities are tried in random order for
// fairness; unauthorized or unreachable ones are skipped.
func (p *Pool) AcquireForGroupCreation(ctx context.Context) (*Session, error) {
	names := p.Names()
	rand.Shuffle(len(names), func(i, j int) { names[i], names[j] = names[j], names[i] })

	for _, name := range names {
		count, err := p.counter.CountGroupsCreatedBy(ctx, canonicalName(name))
		if err != nil {
			return nil, err
		}
		if count >= GroupLimit {
			slog.Debug("worker identity at group limit", "name", name, "groups", count)
			continue
		}
		sess, err := p.connect(ctx, name)
		if err != nil {
			slog.Warn("worker identity skipped", "name", name, "error", err)
			continue
		}
		slog.Info("worker identity acquired", "name", sess.Name(), "groups", count)
		return sess, nil
	}
	return nil, ErrNoIdentity
}

// ByName connects the named identity without a capacity check. Groups must
// be deleted by the identity that created them, so the janitor looks workers
// up by their recorded created_by name.
func (p *Pool) ByName(ctx context.Context, name string) (*Session, error) {
	for _, candidate := range p.Names() {
		if candidate == name || canonicalName(candidate) == canonicalName(name) {
			return p.connect(ctx, candidate)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoIdentity, name)
}

func (p *Pool) connect(ctx context.Context, name string) (*Session, error) {
	ident, err := loadIdentity(p.dir, name)
	if err != nil {
		return nil, err
	}
	return ident.connect(ctx, p.auth)
}

// canonicalName normalizes "+37120000000" and "37120000000" to one form so
// session files match the created_by column regardless of the plus sign.
func canonicalName(name string) string {
	return strings.TrimPrefix(strings.TrimSpace(name), "+")
}
