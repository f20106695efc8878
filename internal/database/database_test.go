package database

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nido-racing/trackcam/internal/model"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(zerolog.Nop())
	db, err := m.GetSqliteDB("")
	require.NoError(t, err)
	m.DB = db
	m.IsValid = true
	m.ShouldSaveLocal = true
	return m
}

func TestGetSqliteDB_InMemory(t *testing.T) {
	m := NewManager(zerolog.Nop())
	db, err := m.GetSqliteDB("")
	require.NoError(t, err)
	require.NotNil(t, db)

	var version int
	require.NoError(t, db.Raw("PRAGMA user_version;").Scan(&version).Error)
	assert.Equal(t, 1, version)
}

func TestGetSqliteDB_File(t *testing.T) {
	m := NewManager(zerolog.Nop())
	path := t.TempDir() + "/trackcam.db"
	db, err := m.GetSqliteDB(path)
	require.NoError(t, err)
	require.NotNil(t, db)
}

func TestSetup_MigratesModels(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Setup())

	assert.True(t, m.DB.Migrator().HasTable(&model.Camera{}))
	assert.True(t, m.DB.Migrator().HasTable(&model.CameraPlayer{}))
}

func TestSetup_Idempotent(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Setup())
	require.NoError(t, m.Setup())
}
