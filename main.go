package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"github.com/yeremiapane/billiard-hall/config"
	"github.com/yeremiapane/billiard-hall/database"
	"github.com/yeremiapane/billiard-hall/hub"
	"github.com/yeremiapane/billiard-hall/kafka"
	"github.com/yeremiapane/billiard-hall/lock"
	"github.com/yeremiapane/billiard-hall/router"
	"github.com/yeremiapane/billiard-hall/services"
	"github.com/yeremiapane/billiard-hall/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		utils.InitLogger()
		utils.ErrorLogger.Fatalf("Invalid configuration: %v", err)
	}
	utils.InitLoggerWithLevel(cfg.LogLevel)

	if cfg.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize DB
	db, err := config.InitDB(cfg.Database)
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		utils.ErrorLogger.Fatalf("Failed to migrate: %v", err)
	}
	if cfg.SeedData {
		if err := database.Seed(db); err != nil {
			utils.ErrorLogger.Fatalf("Failed to seed: %v", err)
		}
	}

	// Per-table locks: Redis when several instances share the database,
	// in-process otherwise.
	var locks lock.Locker = lock.NewKeyedMutex()
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			utils.ErrorLogger.Fatalf("Failed to connect to redis at %s: %v", cfg.RedisAddr, err)
		}
		defer rdb.Close()
		locks = lock.NewRedisLocker(rdb, cfg.LockTTL)
		utils.InfoLogger.Printf("Using redis table locks at %s", cfg.RedisAddr)
	}

	viewers := hub.New()
	feed, err := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to start session feed: %v", err)
	}
	publisher := hub.Fanout{viewers, feed}

	sessions := services.NewSessionStore(db)
	tables := services.NewTableRegistry(db, sessions, locks, publisher)
	engine := services.NewSessionEngine(db, tables, sessions, locks, publisher)

	viewers.Snapshot = floorSnapshot(tables)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	ticker := services.NewSessionTicker(sessions, tables, publisher, cfg.TickInterval)
	ticker.Start(ctx)

	r := router.SetupRouter(router.Deps{
		Tables:         tables,
		Sessions:       sessions,
		Engine:         engine,
		Hub:            viewers,
		CORSOrigin:     cfg.CORSOrigin,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		utils.InfoLogger.Printf("Listening on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.ErrorLogger.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	utils.InfoLogger.Println("Shutting down...")

	ticker.Stop()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.ErrorLogger.Errorf("Server forced to shutdown: %v", err)
	}
	viewers.Close()
	if err := feed.Close(); err != nil {
		utils.ErrorLogger.Errorf("Closing session feed: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	utils.InfoLogger.Println("Server exited")
}

// floorSnapshot sends a new viewer one table-updated event per table so its
// display starts from the current floor.
func floorSnapshot(tables *services.TableRegistry) func(context.Context) ([]hub.Event, error) {
	return func(ctx context.Context) ([]hub.Event, error) {
		views, err := tables.ListWithSessions(ctx)
		if err != nil {
			return nil, err
		}
		events := make([]hub.Event, 0, len(views))
		for _, v := range views {
			events = append(events, hub.TableUpdated(v.Table, v.Session))
		}
		return events, nil
	}
}
