package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenAt(filepath.Join(t.TempDir(), "state", "opshub.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveAndCurrentUser(t *testing.T) {
	s := openTestStore(t)

	u, err := s.CurrentUser()
	require.NoError(t, err)
	assert.Nil(t, u, "fresh store has nobody signed in")

	want := User{ID: "u-1", Email: "ada@example.com", Name: "Ada", Role: "admin"}
	require.NoError(t, s.SaveUser(want))

	u, err = s.CurrentUser()
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, want, *u)
}

func TestSaveUserReplacesPrevious(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.SaveUser(User{ID: "u-1", Email: "first@example.com"}))
	require.NoError(t, s.SaveUser(User{ID: "u-2", Email: "second@example.com"}))

	u, err := s.CurrentUser()
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "u-2", u.ID, "only one signed-in user at a time")
}

func TestSaveUserRequiresID(t *testing.T) {
	s := openTestStore(t)
	assert.Error(t, s.SaveUser(User{Email: "nobody@example.com"}))
}

func TestClearWipesUser(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.SaveUser(User{ID: "u-1"}))
	require.NoError(t, s.Clear())

	u, err := s.CurrentUser()
	require.NoError(t, err)
	assert.Nil(t, u)

	// Clearing an already-empty store is fine; the logout guard may fire
	// when nobody is signed in.
	assert.NoError(t, s.Clear())
}

func TestAuthEventTrail(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.RecordAuthEvent("login", "ada@example.com"))
	require.NoError(t, s.RecordAuthEvent("forced_logout", "session invalid"))

	events, err := s.RecentAuthEvents(10)
	require.NoError(t, err)
	require.Len(t, events, 2)

	// Most recent first.
	assert.Equal(t, "forced_logout", events[0].Event)
	assert.Equal(t, "session invalid", events[0].Detail)
	assert.Equal(t, "login", events[1].Event)
}

func TestRecentAuthEventsLimit(t *testing.T) {
	s := openTestStore(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.RecordAuthEvent("login", ""))
	}

	events, err := s.RecentAuthEvents(3)
	require.NoError(t, err)
	assert.Len(t, events, 3)

	events, err = s.RecentAuthEvents(0)
	require.NoError(t, err)
	assert.Len(t, events, 5, "non-positive limit falls back to the default")
}

func TestRecordAuthEventRequiresType(t *testing.T) {
	s := openTestStore(t)
	assert.Error(t, s.RecordAuthEvent("", "detail"))
}

func TestOpenAtRecoversCorruptDatabase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "opshub.db")
	require.NoError(t, os.WriteFile(path, []byte("this is not a sqlite file"), 0600))

	s, err := OpenAt(path)
	require.NoError(t, err, "corrupt db is renamed aside, not fatal")
	defer s.Close()

	require.NoError(t, s.SaveUser(User{ID: "u-1"}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var backups int
	for _, e := range entries {
		if strings.Contains(e.Name(), ".corrupt.") {
			backups++
		}
	}
	assert.Equal(t, 1, backups, "original file preserved under a .corrupt name")
}

func TestOpenAtRequiresPath(t *testing.T) {
	_, err := OpenAt("   ")
	assert.Error(t, err)
}

func TestDefaultPathHonorsHomeOverride(t *testing.T) {
	t.Setenv("OPSHUB_HOME", "/tmp/opshub-home")
	assert.Equal(t, filepath.Join("/tmp/opshub-home", "state", "opshub.db"), DefaultPath())
}

func TestReopenPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "opshub.db")

	s, err := OpenAt(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveUser(User{ID: "u-1", Email: "ada@example.com"}))
	require.NoError(t, s.Close())

	s, err = OpenAt(path)
	require.NoError(t, err)
	defer s.Close()

	u, err := s.CurrentUser()
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "u-1", u.ID)
}
