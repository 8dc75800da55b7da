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

	"github.com/astrolune/star/internal/adapters/archive"
	router "github.com/astrolune/star/internal/adapters/http"
	ws "github.com/astrolune/star/internal/adapters/signal"
	"github.com/astrolune/star/internal/app"
	"github.com/astrolune/star/internal/config"
	"github.com/astrolune/star/internal/core"
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
		log.Error().Err(err).Msg("failed to load config")
	}

	store := core.NewStore()

	var arch core.Archive = archive.Nop{}
	var badgerArch *archive.BadgerArchive
	if cfg.Persistence {
		badgerArch, err = archive.Open(cfg.DataDir)
		if err != nil {
			log.Fatal().Err(err).Str("dir", cfg.DataDir).Msg("failed to open archive")
		}
		arch = badgerArch
	}

	hub := ws.NewHub(store)
	engine := app.NewEngine(store, hub, arch)
	ctl := ws.NewController(engine, hub, cfg.ReadLimit, cfg.PingPeriod)

	r := router.SetupRouter(ctx, cfg, engine, ctl)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("STAR collaboration server started")
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
	if badgerArch != nil {
		if err := badgerArch.Close(); err != nil {
			log.Error().Err(err).Msg("archive close")
		}
	}
	log.Info().Msg("Server exited gracefully")
}
