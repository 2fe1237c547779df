package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yeremiapane/billiard-hall/models"
	"github.com/yeremiapane/billiard-hall/utils"
)

func TestMigrateAndSeedIsIdempotent(t *testing.T) {
	utils.InitLogger()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, Migrate(db))
	require.NoError(t, Seed(db))
	require.NoError(t, Seed(db))

	var tables []models.Table
	require.NoError(t, db.Order("number ASC").Find(&tables).Error)
	require.Len(t, tables, 5)
	assert.Equal(t, 1, tables[0].Number)
	assert.Equal(t, "15000", tables[0].HourlyRate.String())
	assert.Equal(t, models.TableMaintenance, tables[4].Status)
	assert.Equal(t, models.ClassCarambola, tables[4].Class)
}
