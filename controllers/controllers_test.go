package controllers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yeremiapane/billiard-hall/database"
	"github.com/yeremiapane/billiard-hall/hub"
	"github.com/yeremiapane/billiard-hall/lock"
	"github.com/yeremiapane/billiard-hall/router"
	"github.com/yeremiapane/billiard-hall/services"
	"github.com/yeremiapane/billiard-hall/utils"
)

func TestMain(m *testing.M) {
	utils.InitLoggerWithLevel("warn")
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	router *gin.Engine
	clock  *testClock
}

// setupTestServer wires the full HTTP surface over an in-memory database
// seeded with the default five tables.
func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, database.Migrate(db))
	require.NoError(t, database.Seed(db))

	clock := &testClock{now: time.Date(2024, 3, 9, 18, 0, 0, 0, time.UTC)}
	locks := lock.NewKeyedMutex()
	sessions := services.NewSessionStore(db)
	tables := services.NewTableRegistry(db, sessions, locks, hub.Discard{})
	tables.Now = clock.Now
	engine := services.NewSessionEngine(db, tables, sessions, locks, hub.Discard{})
	engine.Now = clock.Now

	r := router.SetupRouter(router.Deps{
		Tables:   tables,
		Sessions: sessions,
		Engine:   engine,
	})
	return &testServer{router: r, clock: clock}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) (int, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, path, &buf)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var resp envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "body: %s", w.Body.String())
	return w.Code, resp
}

func decode(t *testing.T, raw json.RawMessage, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(raw, dst))
}
