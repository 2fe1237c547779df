package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Session states. Finalized and cancelled are terminal.
const (
	SessionActive    = "active"
	SessionPaused    = "paused"
	SessionFinalized = "finalized"
	SessionCancelled = "cancelled"
)

// Session is one occupancy episode of a table.
type Session struct {
	ID      uint `gorm:"primaryKey" json:"id"`
	TableID uint `gorm:"not null;index" json:"table_id"`
	// TableNumber is copied at start so history stays readable after the
	// table is deleted. Sessions have no foreign key to tables.
	TableNumber int   `gorm:"not null" json:"table_number"`
	CustomerID  *uint `gorm:"index" json:"customer_id,omitempty"`

	StartedAt     time.Time  `gorm:"not null" json:"started_at"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
	PausedAt      *time.Time `json:"paused_at,omitempty"`
	PausedSeconds int64      `gorm:"not null;default:0" json:"paused_seconds"`

	Minutes    int             `gorm:"not null;default:0" json:"minutes"`
	Cost       decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"cost"`
	HourlyRate decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"hourly_rate"`

	Status string `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
	Notes  string `gorm:"type:text" json:"notes,omitempty"`

	// OpenTableID mirrors TableID while the session is active or paused and is
	// NULL afterwards. The unique index allows a single open session per table.
	OpenTableID *uint `gorm:"uniqueIndex" json:"-"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (s *Session) IsTerminal() bool {
	return s.Status == SessionFinalized || s.Status == SessionCancelled
}

func (s *Session) PausedFor() time.Duration {
	return time.Duration(s.PausedSeconds) * time.Second
}

func IsSessionStatus(s string) bool {
	switch s {
	case SessionActive, SessionPaused, SessionFinalized, SessionCancelled:
		return true
	}
	return false
}
