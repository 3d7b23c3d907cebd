package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/concierge/pkg/adapters/sqlite"
	"github.com/aretw0/concierge/pkg/domain"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "concierge version")
}

func TestCatalog(t *testing.T) {
	out, err := execute(t, "catalog", "--raw")
	require.NoError(t, err)
	assert.Contains(t, out, "Yuna")
}

func TestSessionCommands(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "concierge.db")
	db, err := sqlite.NewStore(dsn)
	require.NoError(t, err)

	sess := domain.NewSession("77011234567@c.us", time.Now())
	sess.Stage = domain.StageConversation
	sess.ClientName = "Anna"
	sess.ClientPhone = "77011234567"
	require.NoError(t, db.SaveSession(context.Background(), sess))
	require.NoError(t, db.Close())

	out, err := execute(t, "session", "ls", "--store", dsn)
	require.NoError(t, err)
	assert.Contains(t, out, "77011234567@c.us [conversation]")
	assert.Contains(t, out, "(Anna, 77011234567)")

	out, err = execute(t, "session", "inspect", "77011234567@c.us", "--store", dsn)
	require.NoError(t, err)
	assert.Contains(t, out, `"client_name": "Anna"`)

	out, err = execute(t, "session", "reset", "77011234567@c.us", "--store", dsn)
	require.NoError(t, err)
	assert.Contains(t, out, "Reset session")

	out, err = execute(t, "stats", "--store", dsn)
	require.NoError(t, err)
	assert.Contains(t, out, "Active dialogs: 0")

	_, err = execute(t, "session", "reset", "nobody", "--store", dsn)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}
