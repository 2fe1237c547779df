package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Table occupancy states.
const (
	TableAvailable   = "available"
	TableOccupied    = "occupied"
	TableMaintenance = "maintenance"
	TableReserved    = "reserved"
)

// Table classes.
const (
	ClassPool      = "pool"
	ClassCarambola = "carambola"
	ClassSnooker   = "snooker"
	ClassDemo      = "demo"
)

const DefaultTableColor = "#1a1a2e"

type Table struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	Number     int             `gorm:"not null;uniqueIndex" json:"number"`
	Name       string          `gorm:"type:varchar(50)" json:"name"`
	Class      string          `gorm:"type:varchar(20);not null;default:'pool'" json:"class"`
	HourlyRate decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"hourly_rate"`
	Status     string          `gorm:"type:varchar(20);not null;default:'available';index" json:"status"`
	Color      string          `gorm:"type:varchar(7);not null;default:'#1a1a2e'" json:"color"`
	CreatedAt  time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"not null" json:"updated_at"`
}

func IsTableStatus(s string) bool {
	switch s {
	case TableAvailable, TableOccupied, TableMaintenance, TableReserved:
		return true
	}
	return false
}

func IsTableClass(s string) bool {
	switch s {
	case ClassPool, ClassCarambola, ClassSnooker, ClassDemo:
		return true
	}
	return false
}
