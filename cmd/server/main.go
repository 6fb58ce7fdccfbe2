package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tgarchive/viewer/internal/auth"
	"github.com/tgarchive/viewer/internal/config"
	"github.com/tgarchive/viewer/internal/httpapi"
	"github.com/tgarchive/viewer/internal/massop"
	"github.com/tgarchive/viewer/internal/media"
	"github.com/tgarchive/viewer/internal/push"
	"github.com/tgarchive/viewer/internal/realtime"
	"github.com/tgarchive/viewer/internal/scope"
	"github.com/tgarchive/viewer/internal/stats"
	"github.com/tgarchive/viewer/internal/storage"
	"github.com/tgarchive/viewer/internal/wsfanout"
)

func main() {
	// Configure structured logging
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = log.With().Str("service", "archive-viewer").Logger()

	// Pretty logging for local dev (only when explicitly set to "dev")
	if os.Getenv("ENV") == "dev" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}

	cfg := config.Load()
	ctx := context.Background()

	store, err := storage.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open storage backend")
	}
	defer store.Close(ctx)

	if cfg.MasterPasswordHash == "" || cfg.MasterSalt == "" {
		log.Fatal().Msg("MASTER_PASSWORD_HASH and MASTER_SALT are required")
	}

	masterScope := displayFilter(cfg.DisplayChatIDs)
	if masterScope != nil {
		corrected := scope.AutoCorrectMasterFilter(ctx, store, *masterScope)
		masterScope = &corrected
	}

	sessions := auth.NewSessionStore(
		time.Duration(cfg.AuthSessionSeconds)*time.Second,
		cfg.MaxSessionsPerUser,
	)
	rateLimiter := auth.NewLoginRateLimiter(
		cfg.LoginRateLimit,
		time.Duration(cfg.LoginRateWindowSec)*time.Second,
	)
	loginSvc := &auth.LoginService{
		Store:       store,
		Sessions:    sessions,
		RateLimiter: rateLimiter,
		Master: auth.MasterCredentials{
			Username:     cfg.MasterUsername,
			PasswordHash: cfg.MasterPasswordHash,
			Salt:         cfg.MasterSalt,
		},
		MasterScope: masterScope,
	}

	go sweepLoop(sessions, rateLimiter)

	protector := massop.New(
		cfg.MassOpThreshold,
		time.Duration(cfg.MassOpWindowSeconds*float64(time.Second)),
		time.Duration(cfg.MassOpBufferDelay*float64(time.Second)),
	)

	hub := wsfanout.NewHub()

	pushDispatcher := push.New(store, push.Config{
		Mode:      push.Mode(cfg.PushNotifications),
		VAPIDPub:  cfg.VAPIDPublicKey,
		VAPIDPriv: cfg.VAPIDPrivateKey,
		Subject:   cfg.VAPIDSubject,
	})

	mediaGateway, err := media.New(cfg.MediaRoot)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize media gateway")
	}

	bridge := realtime.New(store, protector, hub, pushDispatcher, 500*time.Millisecond)
	bridgeCtx, cancelBridge := context.WithCancel(ctx)
	go bridge.Run(bridgeCtx)
	defer func() {
		cancelBridge()
		bridge.Stop()
	}()

	loc, err := time.LoadLocation(cfg.ViewerTimezone)
	if err != nil {
		log.Warn().Err(err).Str("tz", cfg.ViewerTimezone).Msg("unknown viewer timezone, falling back to UTC")
		loc = time.UTC
	}
	scheduler := &stats.Scheduler{Store: store, Hour: cfg.StatsCalculationHour, Location: loc}
	statsCtx, cancelStats := context.WithCancel(ctx)
	go scheduler.Run(statsCtx)
	defer cancelStats()

	srv := &httpapi.Server{
		Cfg:       cfg,
		Store:     store,
		Sessions:  sessions,
		Login:     loginSvc,
		Protector: protector,
		Bridge:    bridge,
		Hub:       hub,
		Push:      pushDispatcher,
		Media:     mediaGateway,
	}

	httpAddr := cfg.ListenAddr
	httpServer := &http.Server{
		Addr:         httpAddr,
		Handler:      srv.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", httpAddr).Str("driver", string(cfg.DBDriver)).Msg("starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("server stopped")
}

func displayFilter(ids []int64) *[]int64 {
	if ids == nil {
		return nil
	}
	return &ids
}

// sweepLoop removes expired sessions and stale login-rate-limit buckets
// periodically so the process memory does not grow unbounded.
func sweepLoop(sessions *auth.SessionStore, rateLimiter *auth.LoginRateLimiter) {
	ticker := time.NewTicker(15 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		removedSessions := sessions.SweepExpired()
		removedIPs := rateLimiter.Sweep()
		log.Debug().
			Int("sessions", removedSessions).
			Int("rate_limit_ips", removedIPs).
			Msg("background sweep completed")
	}
}
