package workers

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCounter struct {
	counts map[string]int
}

func (s *stubCounter) CountGroupsCreatedBy(ctx context.Context, name string) (int, error) {
	return s.counts[name], nil
}

func writeIdentity(t *testing.T, dir, name string, withCreds bool) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".session"), []byte("blob"), 0o600))
	if withCreds {
		creds := []byte(`{"app_id": 12345, "app_hash": "abcdef"}`)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name+".json"), creds, 0o600))
	}
}

func TestPoolEnumeratesPairedFiles(t *testing.T) {
	dir := t.TempDir()
	writeIdentity(t, dir, "37120000001", true)
	writeIdentity(t, dir, "37120000002", true)
	writeIdentity(t, dir, "37120000003", false) // session without creds: skipped

	pool, err := NewPool(dir, ProxyAuth{}, &stubCounter{})
	require.NoError(t, err)

	names := pool.Names()
	assert.ElementsMatch(t, []string{"37120000001", "37120000002"}, names)
}

func TestPoolRefreshPicksUpNewFiles(t *testing.T) {
	dir := t.TempDir()
	pool, err := NewPool(dir, ProxyAuth{}, &stubCounter{})
	require.NoError(t, err)
	assert.Empty(t, pool.Names())

	writeIdentity(t, dir, "37120000009", true)
	require.NoError(t, pool.refresh())
	assert.Equal(t, []string{"37120000009"}, pool.Names())
}

func TestAcquireSkipsIdentitiesAtGroupLimit(t *testing.T) {
	dir := t.TempDir()
	writeIdentity(t, dir, "37120000001", true)

	counter := &stubCounter{counts: map[string]int{"37120000001": GroupLimit}}
	pool, err := NewPool(dir, ProxyAuth{}, counter)
	require.NoError(t, err)

	_, err = pool.AcquireForGroupCreation(context.Background())
	assert.ErrorIs(t, err, ErrNoIdentity)
}

func TestAcquireEmptyPool(t *testing.T) {
	pool, err := NewPool(t.TempDir(), ProxyAuth{}, &stubCounter{})
	require.NoError(t, err)

	_, err = pool.AcquireForGroupCreation(context.Background())
	assert.ErrorIs(t, err, ErrNoIdentity)
}

func TestByNameUnknownIdentity(t *testing.T) {
	pool, err := NewPool(t.TempDir(), ProxyAuth{}, &stubCounter{})
	require.NoError(t, err)

	_, err = pool.ByName(context.Background(), "+37129999999")
	assert.ErrorIs(t, err, ErrNoIdentity)
}

func TestLoadIdentityValidation(t *testing.T) {
	dir := t.TempDir()
	writeIdentity(t, dir, "good", true)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "incomplete.json"), []byte(`{"app_id": 0}`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte(`{`), 0o600))

	ident, err := loadIdentity(dir, "good")
	require.NoError(t, err)
	assert.Equal(t, 12345, ident.APIID)
	assert.Equal(t, "abcdef", ident.APIHash)
	assert.Equal(t, filepath.Join(dir, "good.session"), ident.SessionPath)

	_, err = loadIdentity(dir, "incomplete")
	assert.Error(t, err)
	_, err = loadIdentity(dir, "broken")
	assert.Error(t, err)
	_, err = loadIdentity(dir, "missing")
	assert.ErrorIs(t, err, os.ErrNotExist)
}
