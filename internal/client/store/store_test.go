package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nagare-io/authgate/internal/auth/models"
)

func openTestStore(t *testing.T, secret string) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "tokens.db"), secret)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testTokens() models.TokenSet {
	return models.TokenSet{
		IDToken:      "id-token",
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
		TokenType:    "Bearer",
		ExpiresAt:    time.Now().Add(time.Hour).Truncate(time.Millisecond),
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := openTestStore(t, "hunter2")
	want := testTokens()

	require.NoError(t, s.Save(want))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, want.IDToken, got.IDToken)
	assert.Equal(t, want.AccessToken, got.AccessToken)
	assert.Equal(t, want.RefreshToken, got.RefreshToken)
	assert.Equal(t, want.TokenType, got.TokenType)
	// Expiration is stored as epoch millis.
	assert.Equal(t, want.ExpiresAt.UnixMilli(), got.ExpiresAt.UnixMilli())
}

func TestLoadEmptyStore(t *testing.T) {
	s := openTestStore(t, "hunter2")

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, models.TokenSet{}, got)
}

func TestSaveReplacesPreviousSession(t *testing.T) {
	s := openTestStore(t, "hunter2")

	first := testTokens()
	require.NoError(t, s.Save(first))

	second := testTokens()
	second.AccessToken = "second-access-token"
	second.RefreshToken = "" // no refresh token this time
	require.NoError(t, s.Save(second))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "second-access-token", got.AccessToken)
	assert.Empty(t, got.RefreshToken, "previous session's refresh token must not survive")
}

func TestClear(t *testing.T) {
	s := openTestStore(t, "hunter2")
	require.NoError(t, s.Save(testTokens()))
	require.NoError(t, s.Clear())

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, models.TokenSet{}, got)
}

func TestLoadWithWrongKeyWipesStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.db")

	s, err := Open(path, "original-secret")
	require.NoError(t, err)
	require.NoError(t, s.Save(testTokens()))
	require.NoError(t, s.Close())

	// Reopening under a different secret must behave as "no session".
	s, err = Open(path, "different-secret")
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Load()
	require.NoError(t, err, "an unreadable store is empty, not an error")
	assert.Equal(t, models.TokenSet{}, got)

	// The unreadable rows are gone too.
	s2, err := Open(path, "original-secret")
	require.NoError(t, err)
	defer s2.Close()
	got, err = s2.Load()
	require.NoError(t, err)
	assert.Equal(t, models.TokenSet{}, got)
}

func TestLoadCorruptedRowWipesStore(t *testing.T) {
	s := openTestStore(t, "hunter2")
	require.NoError(t, s.Save(testTokens()))

	_, err := s.db.Exec("UPDATE tokens SET value = 'garbage' WHERE key = ?", KeyAccessToken)
	require.NoError(t, err)

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, models.TokenSet{}, got)
}

func TestLoadMalformedExpirationWipesStore(t *testing.T) {
	s := openTestStore(t, "hunter2")
	require.NoError(t, s.Save(testTokens()))

	bad, err := encrypt([]byte("not-a-number"), s.key)
	require.NoError(t, err)
	_, err = s.db.Exec("UPDATE tokens SET value = ? WHERE key = ?", bad, KeyTokenExpiration)
	require.NoError(t, err)

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, models.TokenSet{}, got)
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.db")

	s, err := Open(path, "hunter2")
	require.NoError(t, err)
	want := testTokens()
	require.NoError(t, s.Save(want))
	require.NoError(t, s.Close())

	s, err = Open(path, "hunter2")
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, want.AccessToken, got.AccessToken)
}
