package database

import (
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yeremiapane/billiard-hall/models"
	"github.com/yeremiapane/billiard-hall/utils"
)

// Migrate creates or updates the tables and sessions schema.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Table{}, &models.Session{}); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	utils.InfoLogger.Println("AutoMigrate completed.")
	return nil
}

// DefaultTables is the floor a fresh venue starts with.
func DefaultTables() []models.Table {
	return []models.Table{
		{Number: 1, Name: "Mesa 1 - Pool", Class: models.ClassPool, HourlyRate: decimal.NewFromInt(15000), Status: models.TableAvailable, Color: "#1a1a2e"},
		{Number: 2, Name: "Mesa 2 - Pool", Class: models.ClassPool, HourlyRate: decimal.NewFromInt(15000), Status: models.TableAvailable, Color: "#16213e"},
		{Number: 3, Name: "Mesa 3 - Pool", Class: models.ClassPool, HourlyRate: decimal.NewFromInt(15000), Status: models.TableAvailable, Color: "#0f3460"},
		{Number: 4, Name: "Mesa Premium", Class: models.ClassPool, HourlyRate: decimal.NewFromInt(20000), Status: models.TableAvailable, Color: "#e94560"},
		{Number: 5, Name: "Mesa Carambola", Class: models.ClassCarambola, HourlyRate: decimal.NewFromInt(18000), Status: models.TableMaintenance, Color: "#533483"},
	}
}

// Seed inserts the default tables, skipping numbers that already exist.
func Seed(db *gorm.DB) error {
	tables := DefaultTables()
	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "number"}},
		DoNothing: true,
	}).Create(&tables)
	if res.Error != nil {
		return fmt.Errorf("seed tables: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		utils.InfoLogger.Printf("Seeded %d tables", res.RowsAffected)
	}
	return nil
}
