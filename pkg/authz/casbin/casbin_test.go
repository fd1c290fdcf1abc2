package casbin

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newDB(t *testing.T, path string) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestAuthorizeThroughRole(t *testing.T) {
	ctx := context.Background()
	a, err := New(newDB(t, filepath.Join(t.TempDir(), "authz.db")), "")
	require.NoError(t, err)

	require.NoError(t, a.Grant("curator", "documents", "publish"))
	require.NoError(t, a.AssignRole("curator", "alice"))

	ok, err := a.Authorize(ctx, "alice", "documents", "publish")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.Authorize(ctx, "alice", "documents", "delete")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = a.Authorize(ctx, "bob", "documents", "publish")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = a.Authorize(ctx, "", "documents", "publish")
	require.NoError(t, err)
	assert.False(t, ok)

	has, err := a.HasRole("alice", "curator")
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, a.RevokeRole("curator", "alice"))
	ok, err = a.Authorize(ctx, "alice", "documents", "publish")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPoliciesPersistAcrossEnforcers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "authz.db")

	first, err := New(newDB(t, path), "")
	require.NoError(t, err)
	require.NoError(t, first.Grant("curator", "documents", "publish"))
	require.NoError(t, first.AssignRole("curator", "alice", "carol"))
	// granting twice keeps a single rule
	require.NoError(t, first.AssignRole("curator", "alice"))

	second, err := New(newDB(t, path), "")
	require.NoError(t, err)
	ok, err := second.Authorize(context.Background(), "carol", "documents", "publish")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestModelFromFile(t *testing.T) {
	modelPath := filepath.Join(t.TempDir(), "rbac_model.conf")
	require.NoError(t, os.WriteFile(modelPath, []byte(DefaultModel), 0o600))

	a, err := New(newDB(t, filepath.Join(t.TempDir(), "authz.db")), modelPath)
	require.NoError(t, err)
	require.NoError(t, a.Grant("reader", "documents", "read"))
	require.NoError(t, a.AssignRole("reader", "dave"))

	ok, err := a.Authorize(context.Background(), "dave", "documents", "read")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = New(newDB(t, filepath.Join(t.TempDir(), "other.db")), filepath.Join(t.TempDir(), "missing.conf"))
	assert.Error(t, err)
}
