package hub

import (
	"github.com/shopspring/decimal"

	"github.com/yeremiapane/billiard-hall/models"
)

// Event types pushed on the venue channel.
const (
	EventTableUpdated     = "table-updated"
	EventTableCreated     = "table-created"
	EventTableDeleted     = "table-deleted"
	EventSessionTime      = "session-time"
	EventSessionPaused    = "session-paused"
	EventSessionResumed   = "session-resumed"
	EventSessionFinalized = "session-finalized"
	EventSessionCancelled = "session-cancelled"
)

type Event struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Publisher delivers events to viewers. Implementations must not block the
// caller on delivery and must not report delivery failures back to it.
type Publisher interface {
	Publish(events ...Event)
}

// Fanout publishes every event to each of its publishers in order.
type Fanout []Publisher

func (f Fanout) Publish(events ...Event) {
	for _, p := range f {
		if p != nil {
			p.Publish(events...)
		}
	}
}

// Discard drops everything. Useful where no viewers exist, e.g. one-off tools.
type Discard struct{}

func (Discard) Publish(...Event) {}

type TablePayload struct {
	Table   models.Table    `json:"table"`
	Session *models.Session `json:"session,omitempty"`
}

type TableDeletedPayload struct {
	TableID uint `json:"table_id"`
}

type SessionTimePayload struct {
	SessionID uint            `json:"session_id"`
	TableID   uint            `json:"table_id"`
	Minutes   int             `json:"minutes"`
	Cost      decimal.Decimal `json:"cost"`
}

type SessionPayload struct {
	Session models.Session `json:"session"`
	TableID uint           `json:"table_id,omitempty"`
}

func TableUpdated(table models.Table, session *models.Session) Event {
	return Event{Event: EventTableUpdated, Data: TablePayload{Table: table, Session: session}}
}

func TableCreated(table models.Table) Event {
	return Event{Event: EventTableCreated, Data: TablePayload{Table: table}}
}

func TableDeleted(tableID uint) Event {
	return Event{Event: EventTableDeleted, Data: TableDeletedPayload{TableID: tableID}}
}

func SessionTime(sessionID, tableID uint, minutes int, cost decimal.Decimal) Event {
	return Event{Event: EventSessionTime, Data: SessionTimePayload{
		SessionID: sessionID,
		TableID:   tableID,
		Minutes:   minutes,
		Cost:      cost,
	}}
}

func SessionPaused(s models.Session) Event {
	return Event{Event: EventSessionPaused, Data: SessionPayload{Session: s}}
}

func SessionResumed(s models.Session) Event {
	return Event{Event: EventSessionResumed, Data: SessionPayload{Session: s}}
}

func SessionFinalized(s models.Session) Event {
	return Event{Event: EventSessionFinalized, Data: SessionPayload{Session: s, TableID: s.TableID}}
}

func SessionCancelled(s models.Session) Event {
	return Event{Event: EventSessionCancelled, Data: SessionPayload{Session: s, TableID: s.TableID}}
}
