package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naveenspark/rlsnotes/pkg/domain"
)

func testSession() *domain.Session {
	return &domain.Session{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "bearer",
		ExpiresAt:    time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		User:         domain.User{ID: uuid.New(), Email: "ada@example.com"},
	}
}

func TestStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	st := NewStore(path)

	got, err := st.Load()
	require.NoError(t, err)
	assert.Nil(t, got)

	want := testSession()
	require.NoError(t, st.Save(want))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err = st.Load()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.AccessToken, got.AccessToken)
	assert.Equal(t, want.User.ID, got.User.ID)
	assert.True(t, want.ExpiresAt.Equal(got.ExpiresAt))
}

func TestStore_SaveNilClears(t *testing.T) {
	st := NewStore(filepath.Join(t.TempDir(), "session.json"))
	require.NoError(t, st.Save(testSession()))
	require.NoError(t, st.Save(nil))

	got, err := st.Load()
	require.NoError(t, err)
	assert.Nil(t, got)
	require.NoError(t, st.Clear())
}

func TestStore_EmptyAndCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	st := NewStore(path)

	require.NoError(t, os.WriteFile(path, nil, 0o600))
	got, err := st.Load()
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	_, err = st.Load()
	require.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`{"access_token":""}`), 0o600))
	got, err = st.Load()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_NoPath(t *testing.T) {
	st := NewStore("")
	require.NoError(t, st.Save(testSession()))
	got, err := st.Load()
	require.NoError(t, err)
	assert.Nil(t, got)
}
