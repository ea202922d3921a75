package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/ent0n29/voicecard/internal/app"
	"github.com/ent0n29/voicecard/internal/config"
	"github.com/ent0n29/voicecard/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	flags := pflag.NewFlagSet("voicecard", pflag.ExitOnError)
	flags.StringVar(&cfg.BindAddr, "bind", cfg.BindAddr, "listen address (overrides APP_BIND_ADDR)")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (overrides APP_LOG_LEVEL)")
	_ = flags.Parse(os.Args[1:])

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	built, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("startup failed")
	}
	defer func() {
		if err := built.Cleanup(); err != nil {
			log.WithError(err).Warn("cleanup failed")
		}
	}()

	log.WithFields(logrus.Fields{
		"mode":   built.Info.CardStoreMode,
		"seeded": built.Info.SeededCards,
	}).Info("card store ready")
	log.WithField("dispatch_mode", cfg.DispatchMode).Info("agent dispatch configured")
	if !built.Info.Ready {
		log.WithField("missing", built.Info.Missing).Warn("session service not configured; provisioning requests will fail")
	}
	if !built.Info.DocStoreConfig {
		log.Debug("document store client config incomplete")
	}

	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: built.API.Router(),
	}

	go func() {
		log.WithField("addr", cfg.BindAddr).Info("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("listen error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("graceful shutdown failed")
		_ = httpServer.Close()
	}

	log.Info("shutdown complete")
}
