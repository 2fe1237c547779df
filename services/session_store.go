package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yeremiapane/billiard-hall/models"
)

const (
	DefaultSessionLimit = 50
	MaxSessionLimit     = 500
)

// SessionFilter narrows List. Zero values mean no filter.
type SessionFilter struct {
	Status  string
	TableID uint
	Limit   int
}

// Attribution tells the consumption collaborator whom a session belongs to.
type Attribution struct {
	SessionID   uint   `json:"session_id"`
	TableID     uint   `json:"table_id"`
	TableNumber int    `json:"table_number"`
	CustomerID  *uint  `json:"customer_id,omitempty"`
	Status      string `json:"status"`
}

// SessionStore reads sessions. All writes go through SessionEngine.
type SessionStore struct {
	db *gorm.DB
}

func NewSessionStore(db *gorm.DB) *SessionStore {
	return &SessionStore{db: db}
}

func (s *SessionStore) Get(ctx context.Context, id uint) (models.Session, error) {
	if id == 0 {
		return models.Session{}, fmt.Errorf("%w: session id is required", ErrValidation)
	}
	return findSession(s.db.WithContext(ctx), id)
}

// get reads a session inside tx, locking the row where the dialect supports it.
func (s *SessionStore) get(tx *gorm.DB, id uint) (models.Session, error) {
	return findSession(tx.Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func findSession(q *gorm.DB, id uint) (models.Session, error) {
	var session models.Session
	err := q.First(&session, id).Error
	if err != nil {
		return models.Session{}, storageErr(err, fmt.Sprintf("session %d", id))
	}
	return session, nil
}

// List returns sessions newest first.
func (s *SessionStore) List(ctx context.Context, f SessionFilter) ([]models.Session, error) {
	if f.Status != "" && !models.IsSessionStatus(f.Status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, f.Status)
	}
	if f.Limit < 0 {
		return nil, fmt.Errorf("%w: limit must not be negative", ErrValidation)
	}
	if f.Limit == 0 {
		f.Limit = DefaultSessionLimit
	}
	if f.Limit > MaxSessionLimit {
		f.Limit = MaxSessionLimit
	}

	q := s.db.WithContext(ctx).Model(&models.Session{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.TableID != 0 {
		q = q.Where("table_id = ?", f.TableID)
	}

	var sessions []models.Session
	if err := q.Order("started_at DESC, id DESC").Limit(f.Limit).Find(&sessions).Error; err != nil {
		return nil, storageErr(err, "list sessions")
	}
	return sessions, nil
}

// Open returns the active or paused session of a table, or nil when the
// table is free.
func (s *SessionStore) Open(ctx context.Context, tableID uint) (*models.Session, error) {
	return s.open(s.db.WithContext(ctx), tableID)
}

func (s *SessionStore) open(tx *gorm.DB, tableID uint) (*models.Session, error) {
	var session models.Session
	err := tx.Where("open_table_id = ?", tableID).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr(err, fmt.Sprintf("open session of table %d", tableID))
	}
	return &session, nil
}

// OpenByTable returns every active or paused session keyed by table id.
func (s *SessionStore) OpenByTable(ctx context.Context) (map[uint]models.Session, error) {
	var sessions []models.Session
	err := s.db.WithContext(ctx).
		Where("status IN ?", []string{models.SessionActive, models.SessionPaused}).
		Find(&sessions).Error
	if err != nil {
		return nil, storageErr(err, "open sessions")
	}
	out := make(map[uint]models.Session, len(sessions))
	for _, session := range sessions {
		out[session.TableID] = session
	}
	return out, nil
}

// Active returns sessions whose clock is running. Paused sessions are left out.
func (s *SessionStore) Active(ctx context.Context) ([]models.Session, error) {
	var sessions []models.Session
	err := s.db.WithContext(ctx).
		Where("status = ?", models.SessionActive).
		Order("id ASC").
		Find(&sessions).Error
	if err != nil {
		return nil, storageErr(err, "active sessions")
	}
	return sessions, nil
}

// Attribution resolves the table and customer a session belongs to, so that
// consumption can be charged to the right tab.
func (s *SessionStore) Attribution(ctx context.Context, sessionID uint) (Attribution, error) {
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return Attribution{}, err
	}
	return Attribution{
		SessionID:   session.ID,
		TableID:     session.TableID,
		TableNumber: session.TableNumber,
		CustomerID:  session.CustomerID,
		Status:      session.Status,
	}, nil
}

// FinalizedByCustomer returns the finalized sessions of a customer, oldest
// first, for the customer tab.
func (s *SessionStore) FinalizedByCustomer(ctx context.Context, customerID uint) ([]models.Session, error) {
	if customerID == 0 {
		return nil, fmt.Errorf("%w: customer id is required", ErrValidation)
	}
	var sessions []models.Session
	err := s.db.WithContext(ctx).
		Where("customer_id = ? AND status = ?", customerID, models.SessionFinalized).
		Order("started_at ASC, id ASC").
		Find(&sessions).Error
	if err != nil {
		return nil, storageErr(err, fmt.Sprintf("sessions of customer %d", customerID))
	}
	return sessions, nil
}
