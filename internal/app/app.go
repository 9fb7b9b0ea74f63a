package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/chatrelay/chatrelay/internal/chat"
	"github.com/chatrelay/chatrelay/internal/clock"
	"github.com/chatrelay/chatrelay/internal/config"
	"github.com/chatrelay/chatrelay/internal/db"
	"github.com/chatrelay/chatrelay/internal/http/api/admin"
	"github.com/chatrelay/chatrelay/internal/http/api/front"
	"github.com/chatrelay/chatrelay/internal/quota"
	"github.com/chatrelay/chatrelay/internal/session"
	"github.com/chatrelay/chatrelay/internal/upstream"
)

// shutdownTimeout bounds graceful HTTP shutdown on context cancellation.
const shutdownTimeout = 10 * time.Second

// RunServer boots the relay with database-backed stores and serves until the
// context is cancelled.
func RunServer(ctx context.Context, cfg config.Config) error {
	conn, errOpen := db.Open(cfg.Database.DSN)
	if errOpen != nil {
		return errOpen
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	tiers, errTiers := cfg.TierTable()
	if errTiers != nil {
		return errTiers
	}

	quotaStore := quota.NewStore(conn, tiers, clock.System())
	sessions := session.NewStore(conn, cfg.Chat.SessionLimit)
	completer := upstream.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.APIKey, cfg.Upstream.Timeout.Std())
	svc := chat.NewService(quotaStore, sessions, completer, chat.Options{
		SystemPrompt: cfg.Chat.SystemPrompt,
		Temperature:  cfg.Chat.Temperature,
		MaxTokens:    cfg.Chat.MaxTokens,
	})

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	front.RegisterFrontRoutes(engine, conn, svc, sessions)
	admin.RegisterAdminRoutes(engine, quotaStore, cfg.AdminSecret)

	if cfg.Chat.DailySweep {
		go runDailySweep(ctx, quotaStore)
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: engine,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()
	log.Infof("relay listening on :%d", cfg.Port)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
			return errShutdown
		}
		return nil
	case errServe := <-serveErr:
		if errors.Is(errServe, http.ErrServerClosed) {
			return nil
		}
		return errServe
	}
}

// runDailySweep resets usage counters shortly after each local midnight. The
// sweep is a convenience pass; correctness rests on the lazy rollover inside
// EnsureUser, so failures here are logged and retried the next day.
func runDailySweep(ctx context.Context, store *quota.Store) {
	for {
		timer := time.NewTimer(untilNextMidnight(time.Now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		sweepCtx, cancel := context.WithTimeout(ctx, time.Minute)
		count, errReset := store.BulkResetUsage(sweepCtx)
		cancel()
		if errReset != nil {
			log.WithError(errReset).Warn("daily sweep: bulk reset failed")
			continue
		}
		log.Infof("daily sweep: reset usage for %d users", count)
	}
}

// untilNextMidnight returns the wait until the next local calendar day.
func untilNextMidnight(now time.Time) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
	return next.Sub(now)
}
