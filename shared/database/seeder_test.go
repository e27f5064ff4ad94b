package database

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"backoffice-backend/shared/config"
	"backoffice-backend/shared/database/models"
)

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		Security: config.SecurityOptions{
			EncryptRounds:      4,
			PasswordLevel:      "simple",
			UnoSeeds:           []string{"888"},
			SuperAdminUsername: "admin",
			SuperAdminEmail:    "admin@example.com",
			SuperAdminPassword: "Admin@123456",
		},
	}
}

func TestMigrateAndSeed_Idempotent(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()

	require.NoError(t, Migrate(db))
	require.NoError(t, Migrate(db))
	for _, table := range models.LogTables() {
		assert.True(t, db.Migrator().HasTable(table))
	}

	require.NoError(t, SeedDatabase(ctx, db, testConfig()))
	require.NoError(t, SeedDatabase(ctx, db, testConfig()))

	var orgs, supers, dicts, items, roles int64
	require.NoError(t, db.Model(&models.Organization{}).Count(&orgs).Error)
	require.NoError(t, db.Model(&models.SystemUser{}).Where("is_super = ?", true).Count(&supers).Error)
	require.NoError(t, db.Model(&models.Dict{}).Count(&dicts).Error)
	require.NoError(t, db.Model(&models.DictItem{}).Count(&items).Error)
	require.NoError(t, db.Model(&models.Role{}).Count(&roles).Error)
	assert.Equal(t, int64(1), orgs)
	assert.Equal(t, int64(1), supers)
	assert.Equal(t, int64(2), dicts)
	assert.Equal(t, int64(5), items)
	assert.Equal(t, int64(3), roles)

	var admin models.SystemUser
	require.NoError(t, db.Where("is_super = ?", true).First(&admin).Error)
	var root models.Organization
	require.NoError(t, db.First(&root).Error)
	assert.Equal(t, root.ID, admin.OrgID)
}

func TestResetDatabase(t *testing.T) {
	db := openSQLite(t)
	require.NoError(t, Migrate(db))

	tables, err := TableNames(db)
	require.NoError(t, err)
	assert.Contains(t, tables, "sys_organization")
	assert.Contains(t, tables, models.SystemUserLogTable)

	require.NoError(t, ResetDatabase(db))
	for _, table := range tables {
		assert.False(t, db.Migrator().HasTable(table), table)
	}
}
