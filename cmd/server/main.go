package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/wecall/signaling/internal/adapters/http"
	wsignal "github.com/wecall/signaling/internal/adapters/signal"
	"github.com/wecall/signaling/internal/app"
	"github.com/wecall/signaling/internal/auth"
	"github.com/wecall/signaling/internal/config"
	"github.com/wecall/signaling/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	var (
		logs  store.CallLogs
		notes store.Notifications
	)
	if cfg.DBPath != "" {
		db, err := store.OpenSQLite(cfg.DBPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open store")
		}
		defer db.Close()
		logs = db
		notes = db.Notes()
		log.Info().Str("path", cfg.DBPath).Msg("using sqlite store")
	} else {
		logs = store.NewMemory()
		notes = store.NewNotesMemory()
		log.Info().Msg("using in-memory store")
	}

	presence := app.NewPresence()
	fanout := app.NewFanout(presence, notes)
	calls := app.NewCallManager(presence, logs, fanout, cfg.RingTimeout)

	verifier := auth.NewJWT(cfg.Secret)
	limiter := wsignal.NewRateLimiter(cfg.CallRateLimit, cfg.CallRateWindow)
	ctl := wsignal.NewController(presence, calls, verifier, limiter, cfg.ReadLimit, cfg.PingPeriod)

	r := router.SetupRouter(ctx, cfg, ctl, logs)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("signaling server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
