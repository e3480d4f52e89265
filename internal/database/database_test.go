package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"jobfeed/internal/config"
	"jobfeed/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sqliteConfig(t *testing.T) *config.Config {
	return &config.Config{
		Env:        "test",
		DBDriver:   "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "feed.db"),
	}
}

func TestConnect_SQLiteMigratesSchema(t *testing.T) {
	db, err := Connect(sqliteConfig(t))
	require.NoError(t, err)

	for _, m := range PersistentModels() {
		assert.True(t, db.Migrator().HasTable(m), "missing table for %T", m)
	}
	assert.True(t, db.Migrator().HasIndex("posts", "idx_posts_feed"))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
}

func TestMigrate_Idempotent(t *testing.T) {
	db, err := Open(sqliteConfig(t))
	require.NoError(t, err)

	require.NoError(t, Migrate(context.Background(), db))
	require.NoError(t, Migrate(context.Background(), db))
}

func TestOpen_TimestampsAreUTC(t *testing.T) {
	db, err := Connect(sqliteConfig(t))
	require.NoError(t, err)

	acct := models.Account{ID: 1, Role: models.RoleCompany, DisplayName: "Acme"}
	require.NoError(t, db.Create(&acct).Error)
	assert.Equal(t, time.UTC, acct.CreatedAt.Location())
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(&config.Config{DBDriver: "mysql"})
	assert.Error(t, err)
}

func TestConfigurePool(t *testing.T) {
	db, err := Open(sqliteConfig(t))
	require.NoError(t, err)

	cfg := &config.Config{
		DBDriver:                 "postgres",
		DBMaxOpenConns:           10,
		DBMaxIdleConns:           5,
		DBConnMaxLifetimeMinutes: 15,
	}
	require.NoError(t, configurePool(db, cfg))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 10, sqlDB.Stats().MaxOpenConnections)
}

func TestSQLVerb(t *testing.T) {
	assert.Equal(t, "select", sqlVerb(`SELECT * FROM "posts"`))
	assert.Equal(t, "insert", sqlVerb("  INSERT INTO posts VALUES (1)"))
	assert.Equal(t, "unknown", sqlVerb(""))
}
