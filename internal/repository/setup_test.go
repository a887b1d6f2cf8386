package repository

import (
	"testing"

	"investwallet/internal/model"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB 每个测试一个独立的内存库，互不干扰
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&model.Wallet{},
		&model.Transaction{},
		&model.KYCRecord{},
		&model.Product{},
		&model.Portfolio{},
		&model.OutboxMessage{},
	)
	require.NoError(t, err)

	return db
}
