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

	router "github.com/quizhive/quizsync/internal/adapters/http"
	ws "github.com/quizhive/quizsync/internal/adapters/signal"
	"github.com/quizhive/quizsync/internal/auth"
	"github.com/quizhive/quizsync/internal/bus"
	"github.com/quizhive/quizsync/internal/chat"
	"github.com/quizhive/quizsync/internal/config"
	"github.com/quizhive/quizsync/internal/domain"
	"github.com/quizhive/quizsync/internal/game"
	"github.com/quizhive/quizsync/internal/metrics"
	"github.com/quizhive/quizsync/internal/ratelimit"
	"github.com/quizhive/quizsync/internal/registry"
	"github.com/quizhive/quizsync/internal/store"
	"github.com/quizhive/quizsync/internal/voice"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	if err := domain.ValidateRoomTypes(); err != nil {
		log.Fatal().Err(err).Msg("invalid room type table")
	}

	st, err := store.New(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create store")
	}
	defer func() { _ = st.Close() }()
	if err := st.Ping(ctx); err != nil {
		// The store is best-effort everywhere; start anyway and let the
		// liveness probe report unhealthy until it comes back.
		log.Warn().Err(err).Msg("redis unreachable at startup, continuing degraded")
	} else {
		log.Info().Msg("connected to redis")
	}

	if cfg.AuthDisabled {
		log.Warn().Msg("WS auth middleware: DISABLED via WS_AUTH_DISABLED")
	} else {
		log.Info().Msg("WS auth middleware: ENABLED")
	}
	if !cfg.LiveKitConfigured() {
		log.Warn().Msg("livekit credentials missing, voice will use fallback mode")
	}

	eventBus := bus.New(st)
	go eventBus.Run(ctx)

	users := metrics.NewUserTracker(10 * time.Minute)
	go users.Run(ctx)

	chatSvc := chat.NewService(
		eventBus,
		chat.NewFilter(),
		chat.NewModeration(st),
		chat.NewHistory(st, cfg.ChatHistoryLimit, cfg.ChatTTL),
	)
	gameSvc := game.NewService(eventBus, game.NewThrottle(st, cfg.VoteThrottle), game.DefaultSchemas(), st)
	voiceSvc := voice.NewService(eventBus, voice.NewProvider(cfg.LiveKitAPIKey, cfg.LiveKitAPISecret, cfg.LiveKitURL))

	ctl := &ws.Controller{
		Gate:         auth.NewGate(cfg.AuthSecret),
		Limiter:      ratelimit.New(st),
		Registry:     registry.New(eventBus, st),
		Chat:         chatSvc,
		Game:         gameSvc,
		Voice:        voiceSvc,
		Users:        users,
		AuthDisabled: cfg.AuthDisabled,
	}

	r := router.SetupRouter(ctx, cfg, ctl, st)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("quizsync server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	log.Info().Msg("server exited gracefully")
}
