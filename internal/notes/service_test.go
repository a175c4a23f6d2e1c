package notes

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/naveenspark/rlsnotes/internal/session"
	"github.com/naveenspark/rlsnotes/internal/stub"
	"github.com/naveenspark/rlsnotes/pkg/client"
	"github.com/naveenspark/rlsnotes/pkg/domain"
)

func newManager(t *testing.T) *session.Manager {
	t.Helper()
	backend, err := stub.New(stub.Options{AnonKey: "anon", BcryptCost: bcrypt.MinCost})
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() }) //nolint:errcheck
	ts := httptest.NewServer(backend.Handler())
	t.Cleanup(ts.Close)
	return session.NewManager(client.New(ts.URL, "anon"), nil)
}

func TestService_CreateThenList(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()
	_, err := m.SignUp(ctx, "ada@example.com", "hunter22")
	require.NoError(t, err)

	svc := NewService(m, "", "", nil)
	require.NoError(t, svc.Create(ctx, domain.NoteDraft{Title: "one", Content: "1"}))
	require.NoError(t, svc.Create(ctx, domain.NoteDraft{Title: "two", Content: "2"}))

	notes, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "two", notes[0].TitleOr(""))
	assert.True(t, domain.SortedByIDDesc(notes))

	s, err := m.GetSession(ctx)
	require.NoError(t, err)
	for _, n := range notes {
		assert.Equal(t, s.User.ID, n.UserID)
	}
}

func TestService_SignedOut(t *testing.T) {
	svc := NewService(newManager(t), "notes", domain.DefaultNoteColumns, nil)
	ctx := context.Background()

	notes, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, notes)

	err = svc.Create(ctx, domain.NoteDraft{Title: "t", Content: "c"})
	require.Error(t, err)
	assert.Equal(t, `new row violates row-level security policy for table "notes"`, client.Reason(err))
}

func TestService_UnknownTable(t *testing.T) {
	svc := NewService(newManager(t), "todos", "", nil)
	_, err := svc.List(context.Background())
	require.Error(t, err)
	assert.Equal(t, `relation "public.todos" does not exist`, client.Reason(err))
}

type failingSource struct{ err error }

func (f failingSource) Client(context.Context) (*client.Client, error) {
	return nil, f.err
}

func TestService_SessionError(t *testing.T) {
	boom := errors.New("refresh failed")
	svc := NewService(failingSource{err: boom}, "", "", nil)

	_, err := svc.List(context.Background())
	require.ErrorIs(t, err, boom)
	require.ErrorIs(t, svc.Create(context.Background(), domain.NoteDraft{}), boom)
}
