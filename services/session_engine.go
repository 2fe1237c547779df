package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/yeremiapane/billiard-hall/billing"
	"github.com/yeremiapane/billiard-hall/hub"
	"github.com/yeremiapane/billiard-hall/lock"
	"github.com/yeremiapane/billiard-hall/models"
	"github.com/yeremiapane/billiard-hall/utils"
)

type StartInput struct {
	TableID    uint   `json:"table_id"`
	CustomerID *uint  `json:"customer_id"`
	Notes      string `json:"notes"`
}

// LiveCost is what a session owes right now. Terminal sessions report their
// stored totals.
type LiveCost struct {
	SessionID uint            `json:"session_id"`
	TableID   uint            `json:"table_id"`
	Status    string          `json:"status"`
	Minutes   int             `json:"minutes"`
	Cost      decimal.Decimal `json:"cost"`
}

// SessionEngine owns every session state change and the table occupancy that
// goes with it. Each transition holds the table's lock and runs in a single
// transaction; events are published only after commit.
type SessionEngine struct {
	db        *gorm.DB
	tables    *TableRegistry
	sessions  *SessionStore
	locks     lock.Locker
	publisher hub.Publisher
	Now       func() time.Time
}

func NewSessionEngine(db *gorm.DB, tables *TableRegistry, sessions *SessionStore, locks lock.Locker, publisher hub.Publisher) *SessionEngine {
	if locks == nil {
		locks = lock.NewKeyedMutex()
	}
	if publisher == nil {
		publisher = hub.Discard{}
	}
	return &SessionEngine{
		db:        db,
		tables:    tables,
		sessions:  sessions,
		locks:     locks,
		publisher: publisher,
		Now:       time.Now,
	}
}

// Start opens a session on an available table and marks it occupied.
func (e *SessionEngine) Start(ctx context.Context, in StartInput) (models.Session, error) {
	if in.TableID == 0 {
		return models.Session{}, fmt.Errorf("%w: table id is required", ErrValidation)
	}
	if in.CustomerID != nil && *in.CustomerID == 0 {
		in.CustomerID = nil
	}

	release, err := e.locks.Lock(ctx, tableKey(in.TableID))
	if err != nil {
		return models.Session{}, fmt.Errorf("%w: lock table %d: %v", ErrStorage, in.TableID, err)
	}
	defer release()

	now := e.Now()
	var session models.Session
	var table models.Table
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := e.tables.get(tx, in.TableID)
		if err != nil {
			return err
		}
		if t.Status != models.TableAvailable {
			return fmt.Errorf("%w: table %d is %s", ErrConflict, t.Number, t.Status)
		}
		open, err := e.sessions.open(tx, t.ID)
		if err != nil {
			return err
		}
		if open != nil {
			return fmt.Errorf("%w: table %d already has session %d", ErrConflict, t.Number, open.ID)
		}

		if err := e.tables.setOccupancy(tx, t.ID, models.TableAvailable, models.TableOccupied); err != nil {
			return err
		}

		tableID := t.ID
		session = models.Session{
			TableID:     t.ID,
			TableNumber: t.Number,
			CustomerID:  in.CustomerID,
			StartedAt:   now,
			Status:      models.SessionActive,
			Notes:       strings.TrimSpace(in.Notes),
			OpenTableID: &tableID,
		}
		if err := tx.Create(&session).Error; err != nil {
			return storageErr(err, fmt.Sprintf("table %d already has an open session", t.Number))
		}

		table, err = e.tables.get(tx, t.ID)
		return err
	})
	if err != nil {
		return models.Session{}, storageErr(err, fmt.Sprintf("start session on table %d", in.TableID))
	}

	utils.InfoLogger.Printf("Session %d started on table %d", session.ID, table.Number)
	e.publisher.Publish(hub.TableUpdated(table, &session))
	return session, nil
}

// Pause stops the clock of an active session. The minutes accrued so far are
// kept on the session as a snapshot.
func (e *SessionEngine) Pause(ctx context.Context, sessionID uint) (models.Session, error) {
	session, _, err := e.transition(ctx, sessionID, func(tx *gorm.DB, s *models.Session, t models.Table, now time.Time) error {
		if s.Status != models.SessionActive {
			return fmt.Errorf("%w: session %d is %s, only active sessions can be paused", ErrInvalidState, s.ID, s.Status)
		}
		start, end := billing.Window(s.StartedAt, s.PausedFor(), nil, now)
		return e.update(tx, s, []string{models.SessionActive}, map[string]interface{}{
			"status":    models.SessionPaused,
			"paused_at": now,
			"minutes":   billing.ElapsedMinutes(start, end),
		})
	})
	if err != nil {
		return models.Session{}, err
	}

	utils.InfoLogger.Printf("Session %d paused at %d min", session.ID, session.Minutes)
	e.publisher.Publish(hub.SessionPaused(session))
	return session, nil
}

// Resume restarts the clock of a paused session. The pause is added to the
// session's paused total and is never billed.
func (e *SessionEngine) Resume(ctx context.Context, sessionID uint) (models.Session, error) {
	session, _, err := e.transition(ctx, sessionID, func(tx *gorm.DB, s *models.Session, t models.Table, now time.Time) error {
		if s.Status != models.SessionPaused {
			return fmt.Errorf("%w: session %d is %s, only paused sessions can be resumed", ErrInvalidState, s.ID, s.Status)
		}
		return e.update(tx, s, []string{models.SessionPaused}, map[string]interface{}{
			"status":         models.SessionActive,
			"paused_at":      nil,
			"paused_seconds": closePause(s, now),
		})
	})
	if err != nil {
		return models.Session{}, err
	}

	utils.InfoLogger.Printf("Session %d resumed", session.ID)
	e.publisher.Publish(hub.SessionResumed(session))
	return session, nil
}

// Finish bills the session at the table's current rate, finalizes it and
// frees the table.
func (e *SessionEngine) Finish(ctx context.Context, sessionID uint) (models.Session, error) {
	session, table, err := e.transition(ctx, sessionID, func(tx *gorm.DB, s *models.Session, t models.Table, now time.Time) error {
		if s.IsTerminal() {
			return fmt.Errorf("%w: session %d is already %s", ErrInvalidState, s.ID, s.Status)
		}
		pausedSeconds := closePause(s, now)
		start, end := billing.Window(s.StartedAt, time.Duration(pausedSeconds)*time.Second, nil, now)
		minutes, cost := billing.Compute(start, end, t.HourlyRate)

		err := e.update(tx, s, []string{models.SessionActive, models.SessionPaused}, map[string]interface{}{
			"status":         models.SessionFinalized,
			"ended_at":       now,
			"paused_at":      nil,
			"paused_seconds": pausedSeconds,
			"minutes":        minutes,
			"cost":           cost,
			"hourly_rate":    t.HourlyRate,
			"open_table_id":  nil,
		})
		if err != nil {
			return err
		}
		return e.release(tx, t.ID)
	})
	if err != nil {
		return models.Session{}, err
	}

	utils.InfoLogger.Printf("Session %d finalized on table %d: %d min, %s",
		session.ID, session.TableNumber, session.Minutes, utils.FormatCurrency(session.Cost))
	e.publisher.Publish(hub.SessionFinalized(session), hub.TableUpdated(table, nil))
	return session, nil
}

// Cancel ends the session without billing it and frees the table.
func (e *SessionEngine) Cancel(ctx context.Context, sessionID uint) (models.Session, error) {
	session, table, err := e.transition(ctx, sessionID, func(tx *gorm.DB, s *models.Session, t models.Table, now time.Time) error {
		if s.IsTerminal() {
			return fmt.Errorf("%w: session %d is already %s", ErrInvalidState, s.ID, s.Status)
		}
		err := e.update(tx, s, []string{models.SessionActive, models.SessionPaused}, map[string]interface{}{
			"status":         models.SessionCancelled,
			"ended_at":       now,
			"paused_at":      nil,
			"paused_seconds": closePause(s, now),
			"open_table_id":  nil,
		})
		if err != nil {
			return err
		}
		return e.release(tx, t.ID)
	})
	if err != nil {
		return models.Session{}, err
	}

	utils.InfoLogger.Printf("Session %d cancelled on table %d", session.ID, session.TableNumber)
	e.publisher.Publish(hub.SessionCancelled(session), hub.TableUpdated(table, nil))
	return session, nil
}

// Live reports the minutes and cost of a session as of now. Open sessions are
// billed at the table's current rate.
func (e *SessionEngine) Live(ctx context.Context, sessionID uint) (LiveCost, error) {
	s, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		return LiveCost{}, err
	}
	out := LiveCost{SessionID: s.ID, TableID: s.TableID, Status: s.Status, Minutes: s.Minutes, Cost: s.Cost}
	if s.IsTerminal() {
		return out, nil
	}

	t, err := e.tables.Get(ctx, s.TableID)
	if err != nil {
		return LiveCost{}, err
	}
	out.Minutes, out.Cost = liveCost(s, t.HourlyRate, e.Now())
	return out, nil
}

type transitionFunc func(tx *gorm.DB, s *models.Session, t models.Table, now time.Time) error

// transition locks the session's table, re-reads both rows inside a
// transaction and hands them to fn. It returns the session and table as
// committed.
func (e *SessionEngine) transition(ctx context.Context, sessionID uint, fn transitionFunc) (models.Session, models.Table, error) {
	current, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		return models.Session{}, models.Table{}, err
	}

	release, err := e.locks.Lock(ctx, tableKey(current.TableID))
	if err != nil {
		return models.Session{}, models.Table{}, fmt.Errorf("%w: lock table %d: %v", ErrStorage, current.TableID, err)
	}
	defer release()

	now := e.Now()
	var session models.Session
	var table models.Table
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		s, err := e.sessions.get(tx, sessionID)
		if err != nil {
			return err
		}
		t, err := e.tables.get(tx, s.TableID)
		if err != nil && !s.IsTerminal() {
			return err
		}
		if err := fn(tx, &s, t, now); err != nil {
			return err
		}

		if session, err = e.sessions.get(tx, sessionID); err != nil {
			return err
		}
		table, err = e.tables.get(tx, s.TableID)
		return err
	})
	if err != nil {
		return models.Session{}, models.Table{}, storageErr(err, fmt.Sprintf("session %d", sessionID))
	}
	return session, table, nil
}

// update applies values to s only while it is still in one of the from
// states.
func (e *SessionEngine) update(tx *gorm.DB, s *models.Session, from []string, values map[string]interface{}) error {
	res := tx.Model(&models.Session{}).
		Where("id = ? AND status IN ?", s.ID, from).
		Updates(values)
	if res.Error != nil {
		return storageErr(res.Error, fmt.Sprintf("session %d", s.ID))
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: session %d changed concurrently", ErrInvalidState, s.ID)
	}
	return nil
}

// release frees a table whose session just ended.
func (e *SessionEngine) release(tx *gorm.DB, tableID uint) error {
	return e.tables.setOccupancy(tx, tableID, models.TableOccupied, models.TableAvailable)
}

// closePause returns the session's paused total with any open pause closed
// at now. Partial seconds round up so no paused time is billed.
func closePause(s *models.Session, now time.Time) int64 {
	total := s.PausedSeconds
	if s.PausedAt != nil && now.After(*s.PausedAt) {
		total += int64((now.Sub(*s.PausedAt) + time.Second - 1) / time.Second)
	}
	return total
}
