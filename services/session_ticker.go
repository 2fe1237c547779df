package services

import (
	"context"
	"sync"
	"time"

	"github.com/yeremiapane/billiard-hall/hub"
	"github.com/yeremiapane/billiard-hall/utils"
)

const DefaultTickInterval = 10 * time.Second

// SessionTicker periodically publishes the running minutes and cost of every
// active session. It only reads; it never takes table locks.
type SessionTicker struct {
	sessions  *SessionStore
	tables    *TableRegistry
	publisher hub.Publisher
	Interval  time.Duration
	Now       func() time.Time

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewSessionTicker(sessions *SessionStore, tables *TableRegistry, publisher hub.Publisher, interval time.Duration) *SessionTicker {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	if publisher == nil {
		publisher = hub.Discard{}
	}
	return &SessionTicker{
		sessions:  sessions,
		tables:    tables,
		publisher: publisher,
		Interval:  interval,
		Now:       time.Now,
		stopChan:  make(chan struct{}),
	}
}

// Start runs the ticker until ctx is cancelled or Stop is called.
func (st *SessionTicker) Start(ctx context.Context) {
	st.wg.Add(1)
	go func() {
		defer st.wg.Done()
		ticker := time.NewTicker(st.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if _, err := st.Tick(ctx); err != nil {
					utils.ErrorLogger.Errorf("Session tick failed: %v", err)
				}
			case <-ctx.Done():
				return
			case <-st.stopChan:
				return
			}
		}
	}()
}

// Stop halts the ticker and waits for an in-flight tick to finish.
func (st *SessionTicker) Stop() {
	st.stopOnce.Do(func() { close(st.stopChan) })
	st.wg.Wait()
}

// Tick publishes one session-time event per active session and returns how
// many it sent.
func (st *SessionTicker) Tick(ctx context.Context) (int, error) {
	active, err := st.sessions.Active(ctx)
	if err != nil {
		return 0, err
	}
	if len(active) == 0 {
		return 0, nil
	}

	ids := make([]uint, 0, len(active))
	for _, s := range active {
		ids = append(ids, s.TableID)
	}
	rates, err := st.tables.rates(ctx, ids)
	if err != nil {
		return 0, err
	}

	now := st.Now()
	events := make([]hub.Event, 0, len(active))
	for _, s := range active {
		rate, ok := rates[s.TableID]
		if !ok {
			utils.ErrorLogger.Warnf("Session %d points at missing table %d", s.ID, s.TableID)
			continue
		}
		minutes, cost := liveCost(s, rate, now)
		events = append(events, hub.SessionTime(s.ID, s.TableID, minutes, cost))
	}
	st.publisher.Publish(events...)
	utils.InfoLogger.Debugf("Session tick: %d active", len(events))
	return len(events), nil
}
