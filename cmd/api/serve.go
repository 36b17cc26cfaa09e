package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"workhub/api/internal/app"
	"workhub/api/internal/auth"
	"workhub/api/internal/blob"
	"workhub/api/internal/email"
	"workhub/api/internal/export"
	"workhub/api/internal/extract"
	"workhub/api/internal/intel"
	"workhub/api/internal/search"
	"workhub/api/internal/session"
	"workhub/api/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	dataStore := store.NewPostgresStore(db)
	deps := app.Deps{
		Store:     dataStore,
		Extractor: extract.Default{},
		Exporter:  export.NewService(),
	}

	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger)
	}
	searchService := search.NewService(meiliClient, pgfts, logger)
	defer searchService.Close()
	go searchService.ReindexAllFromPG(ctx, pgfts)
	deps.Search = searchService

	if strings.TrimSpace(cfg.RedisURL) != "" {
		logger.Info("using redis for session revocation")
		redisStore, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer redisStore.Close()
		deps.Revoked = redisStore
	} else {
		logger.Info("using postgres for session revocation")
	}

	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		blobs, err := blob.NewMinioStore(ctx, blob.Config{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			return err
		}
		deps.Blobs = blobs
	}

	mailer := email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})
	deps.Mail = mailer

	model, err := newModel(ctx, cfg, logger)
	if err != nil {
		return err
	}
	deps.Model = model

	scheduler := intel.NewScheduler(intel.NewGenerator(model, dataStore, logger), cfg.IntelHour, intel.SystemClock, logger)
	if cfg.IntelEnabled {
		scheduler.Start(ctx)
	}
	defer scheduler.Stop()
	deps.Scheduler = scheduler

	if cfg.OAuthConfigured() {
		deps.Login = auth.NewProvider(auth.ProviderConfig{
			ClientID:     cfg.OAuthClientID,
			ClientSecret: cfg.OAuthClientSecret,
			AuthURL:      cfg.OAuthAuthURL,
			TokenURL:     cfg.OAuthTokenURL,
			UserInfoURL:  cfg.OAuthUserInfoURL,
			RedirectURL:  cfg.OAuthRedirectURL,
			Scopes:       cfg.OAuthScopes,
		})
	} else {
		logger.Warn("OAuth provider not configured, login is unavailable")
	}

	service := app.New(cfg, deps, logger)
	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin, logger)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Streaming chat and summary replies hold the connection open.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("workhub api listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
	return nil
}
