package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/naveenspark/rlsnotes/internal/config"
	"github.com/naveenspark/rlsnotes/internal/stub"
	"github.com/naveenspark/rlsnotes/pkg/domain"
)

const (
	testAnonKey  = "cli-anon-key"
	testPassword = "hunter22"
)

// setupBackend starts a stub backend and points the environment at it.
func setupBackend(t *testing.T) {
	t.Helper()
	srv, err := stub.New(stub.Options{AnonKey: testAnonKey, BcryptCost: bcrypt.MinCost})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Close() //nolint:errcheck
	})

	isolateEnv(t)
	t.Setenv("RLSNOTES_URL", ts.URL)
	t.Setenv("RLSNOTES_ANON_KEY", testAnonKey)
}

// isolateEnv keeps config, .env files and the session file inside a temp dir.
func isolateEnv(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Chdir(dir)
	for _, name := range []string{
		"RLSNOTES_URL", "RLSNOTES_ANON_KEY", "RLSNOTES_PASSWORD",
		"SUPABASE_URL", "SUPABASE_ANON_KEY",
		"NEXT_PUBLIC_SUPABASE_URL", "NEXT_PUBLIC_SUPABASE_ANON_KEY",
	} {
		t.Setenv(name, "")
	}
	t.Setenv("RLSNOTES_SESSION_FILE", filepath.Join(dir, "session.json"))
	t.Setenv("RLSNOTES_LOG_FILE", filepath.Join(dir, "rlsnotes.log"))
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	c := newCLI(strings.NewReader(stdin), &out, &out)
	defer c.close()
	c.rootCmd.SetArgs(args)
	err := c.rootCmd.Execute()
	return out.String(), err
}

func mustExecute(t *testing.T, args ...string) string {
	t.Helper()
	out, err := execute(t, "", args...)
	require.NoError(t, err, "rlsnotes %s", strings.Join(args, " "))
	return out
}

func decodeNotes(t *testing.T, out string) []domain.Note {
	t.Helper()
	var list []domain.Note
	require.NoError(t, json.Unmarshal([]byte(out), &list), "output: %s", out)
	return list
}

func alertMessage(t *testing.T, err error) string {
	t.Helper()
	var alert *alertError
	require.True(t, errors.As(err, &alert), "want alert, got %v", err)
	return alert.msg
}

func TestVersion(t *testing.T) {
	isolateEnv(t)
	out := mustExecute(t, "version")
	assert.Contains(t, out, "R L S   N O T E S")
	assert.Contains(t, out, "dev")
}

func TestMissingBackend(t *testing.T) {
	isolateEnv(t)
	_, err := execute(t, "", "notes", "list")
	assert.ErrorIs(t, err, config.ErrMissingBackend)
}

func TestUnknownOutputFormat(t *testing.T) {
	setupBackend(t)
	_, err := execute(t, "", "notes", "list", "-o", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}

func TestNotesFlow(t *testing.T) {
	setupBackend(t)

	out := mustExecute(t, "signup", "alice@example.com", "--password", testPassword)
	assert.Contains(t, out, signedUpMessage)

	out = mustExecute(t, "signin", "alice@example.com", "--password", testPassword)
	assert.Contains(t, out, "Signed in as alice@example.com")

	out = mustExecute(t, "whoami")
	assert.Contains(t, out, "email:   alice@example.com")

	out = mustExecute(t, "notes", "add", "--title", "Groceries", "--content", "milk, eggs")
	assert.True(t, strings.HasPrefix(out, "Note added.\n"), out)
	assert.Contains(t, out, "Groceries")
	assert.Contains(t, out, "milk, eggs")

	mustExecute(t, "notes", "add", "--title", "Second", "--content", "later")

	list := decodeNotes(t, mustExecute(t, "notes", "list", "-o", "json"))
	require.Len(t, list, 2)
	assert.Equal(t, "Second", list[0].TitleOr(""))
	assert.Equal(t, "Groceries", list[1].TitleOr(""))
	assert.True(t, domain.SortedByIDDesc(list))
	assert.Equal(t, list[0].UserID, list[1].UserID)

	out = mustExecute(t, "signout")
	assert.Contains(t, out, "Signed out.")

	list = decodeNotes(t, mustExecute(t, "notes", "list", "-o", "json"))
	assert.Empty(t, list)

	out = mustExecute(t, "whoami")
	assert.Contains(t, out, "Not signed in.")
}

func TestNotesAreIsolatedPerUser(t *testing.T) {
	setupBackend(t)

	mustExecute(t, "signup", "alice@example.com", "--password", testPassword)
	mustExecute(t, "notes", "add", "--title", "alice only", "--content", "secret")
	mustExecute(t, "signout")

	mustExecute(t, "signup", "bob@example.com", "--password", testPassword)
	list := decodeNotes(t, mustExecute(t, "notes", "list", "-o", "json"))
	assert.Empty(t, list)

	mustExecute(t, "notes", "add", "--title", "bob's", "--content", "")
	list = decodeNotes(t, mustExecute(t, "notes", "list", "-o", "json"))
	require.Len(t, list, 1)
	assert.Equal(t, "bob's", list[0].TitleOr(""))
}

func TestSignInFailure(t *testing.T) {
	setupBackend(t)
	mustExecute(t, "signup", "alice@example.com", "--password", testPassword)
	mustExecute(t, "signout")

	_, err := execute(t, "", "signin", "alice@example.com", "--password", "wrong-password")
	assert.Equal(t, "Sign in failed: Invalid login credentials", alertMessage(t, err))

	out := mustExecute(t, "whoami")
	assert.Contains(t, out, "Not signed in.")
}

func TestSignUpDuplicate(t *testing.T) {
	setupBackend(t)
	mustExecute(t, "signup", "alice@example.com", "--password", testPassword)

	_, err := execute(t, "", "signup", "alice@example.com", "--password", testPassword)
	assert.Equal(t, "Sign up failed: User already registered", alertMessage(t, err))
}

func TestInsertWhileSignedOut(t *testing.T) {
	setupBackend(t)
	_, err := execute(t, "", "notes", "add", "--title", "x")
	msg := alertMessage(t, err)
	assert.True(t, strings.HasPrefix(msg, "Insert failed: "), msg)
}

func TestPasswordPrompt(t *testing.T) {
	setupBackend(t)
	out, err := execute(t, testPassword+"\n", "signup", "--email", "carol@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "Password: ")
	assert.Contains(t, out, signedUpMessage)

	t.Setenv("RLSNOTES_PASSWORD", testPassword)
	out = mustExecute(t, "signin", "carol@example.com")
	assert.NotContains(t, out, "Password: ")
	assert.Contains(t, out, "Signed in as carol@example.com")
}

func TestWriteNotes(t *testing.T) {
	title := "Groceries"
	content := "milk"
	list := []domain.Note{{ID: 2, Title: &title, Content: &content}, {ID: 1}}

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeNotes(&buf, list, "table"))
		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 3)
		assert.True(t, strings.HasPrefix(lines[0], "ID"))
		assert.Contains(t, lines[1], "Groceries")
		assert.Contains(t, lines[2], noTitle)
	})

	t.Run("table keeps multi-line notes on one row", func(t *testing.T) {
		title := "two\tparts"
		content := "first line\nsecond line\r\n\tindented"
		var buf bytes.Buffer
		require.NoError(t, writeNotes(&buf, []domain.Note{{ID: 7, Title: &title, Content: &content}}, "table"))
		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 2)
		assert.Contains(t, lines[1], "two parts")
		assert.Contains(t, lines[1], "first line second line indented")
	})

	t.Run("empty table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeNotes(&buf, nil, "table"))
		assert.Equal(t, "No notes.\n", buf.String())
	})

	t.Run("empty json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeNotes(&buf, nil, "json"))
		assert.Equal(t, "[]\n", buf.String())
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeNotes(&buf, list, "yaml"))
		var got []map[string]any
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
		require.Len(t, got, 2)
		assert.Equal(t, "Groceries", got[0]["title"])
		assert.Nil(t, got[1]["title"])
	})
}
