package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ridelink/server/pkg/api"
	"github.com/ridelink/server/pkg/bootstrap"
	"github.com/ridelink/server/pkg/infrastructure/oauth"
	"github.com/ridelink/server/pkg/infrastructure/sentry"
	"github.com/ridelink/server/pkg/integrations/strava"
	ridesync "github.com/ridelink/server/pkg/sync"
)

func main() {
	log := bootstrap.NewLogger("server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := bootstrap.NewService(ctx)
	if err != nil {
		log.Error("Failed to initialize service", "error", err)
		os.Exit(1)
	}
	cfg := svc.Config

	if err := sentry.Init(sentry.Config{
		DSN:         cfg.SentryDSN,
		Environment: cfg.Environment,
		ServerName:  "ridelink-server",
	}, log); err != nil {
		log.Error("Failed to initialize Sentry", "error", err)
		os.Exit(1)
	}
	defer sentry.Flush(2 * time.Second)

	tokenSourceFor := func(userID string) oauth.TokenSource {
		return oauth.NewStoreTokenSource(svc.DB, userID, cfg.StravaClientID, cfg.StravaClientSecret)
	}
	clientFor := func(userID string) *strava.Client {
		return strava.NewClient(oauth.NewHTTPClient(tokenSourceFor(userID)))
	}

	uploader := &ridesync.Uploader{
		DB:        svc.DB,
		Pub:       svc.Pub,
		Log:       bootstrap.NewLogger("uploader"),
		ClientFor: clientFor,
	}
	importer := &ridesync.Importer{
		DB:        svc.DB,
		Pub:       svc.Pub,
		Log:       bootstrap.NewLogger("importer"),
		ClientFor: clientFor,
	}
	processor := &ridesync.Processor{
		DB:       svc.DB,
		Importer: importer,
		Log:      bootstrap.NewLogger("webhook"),
	}

	server := &api.Server{
		Cfg:            cfg,
		DB:             svc.DB,
		Log:            bootstrap.NewLogger("api"),
		Uploader:       uploader,
		Processor:      processor,
		ClientFor:      clientFor,
		SubClient:      strava.NewClient(nil),
		TokenSourceFor: tokenSourceFor,
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("Graceful shutdown failed", "error", err)
		}
	}()

	log.Info("Listening", "addr", cfg.ListenAddr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("Server exited", "error", err)
		os.Exit(1)
	}
	log.Info("Server stopped")
}
