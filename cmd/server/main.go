package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DoyleJ11/rally-backend/internal/census"
	"github.com/DoyleJ11/rally-backend/internal/config"
	"github.com/DoyleJ11/rally-backend/internal/engine"
	"github.com/DoyleJ11/rally-backend/internal/httpapi"
	"github.com/DoyleJ11/rally-backend/internal/hub"
	"github.com/DoyleJ11/rally-backend/internal/logging"
	"github.com/DoyleJ11/rally-backend/internal/narration"
	"github.com/DoyleJ11/rally-backend/internal/profile"
	"github.com/DoyleJ11/rally-backend/internal/ws"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	profiles, closeProfiles, err := openProfiles(cfg, log)
	if err != nil {
		return err
	}
	defer closeProfiles()

	var narrator narration.Narrator = narration.Disabled{}
	if cfg.NarrationAPIKey != "" {
		narrator = narration.NewOpenAI(narration.OpenAIConfig{
			APIKey:  cfg.NarrationAPIKey,
			BaseURL: cfg.NarrationBaseURL,
			Model:   cfg.NarrationModel,
		})
		log.Info("narration enabled", zap.String("model", cfg.NarrationModel))
	} else {
		log.Info("narration disabled, using fallback commentary")
	}

	var rooms uint64
	h := hub.NewHub(ctx, hub.Options{
		NewRNG: func() engine.RNG {
			if cfg.RNGSeed == 0 {
				return engine.NewRandRNG(0)
			}
			rooms++
			return engine.NewRandRNG(cfg.RNGSeed + rooms)
		},
		Narrator:         narrator,
		NarrationTimeout: cfg.NarrationTimeout,
		Logger:           log,
	})

	sched, err := census.Start(h, cfg.CensusInterval, log)
	if err != nil {
		return err
	}
	defer func() { _ = sched.Shutdown() }()

	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: httpapi.SetupRoutes(h, profiles, ws.Options{
			IdleTimeout:    cfg.WSIdleTimeout,
			OriginPatterns: cfg.WSOriginPatterns,
			Logger:         log,
		}, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		select {
		case h.Inbox() <- hub.ShutdownHub{}:
		case <-h.Done():
		}
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

func openProfiles(cfg config.Config, log *zap.Logger) (profile.Store, func(), error) {
	if cfg.DatabaseURL != "" {
		store, err := profile.OpenPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		log.Info("profiles stored in postgres")
		return store, func() { _ = store.Close() }, nil
	}

	store, err := profile.NewFileStore(cfg.ProfileDir)
	if err != nil {
		return nil, nil, err
	}
	log.Info("profiles stored on disk", zap.String("dir", cfg.ProfileDir))
	return store, func() {}, nil
}
