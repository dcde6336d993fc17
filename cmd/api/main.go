package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/TaherBala2507/mini-crm/internal/auth"
	"github.com/TaherBala2507/mini-crm/internal/config"
	"github.com/TaherBala2507/mini-crm/internal/crm"
	"github.com/TaherBala2507/mini-crm/internal/files"
	"github.com/TaherBala2507/mini-crm/internal/httpapi"
	"github.com/TaherBala2507/mini-crm/internal/logs"
	"github.com/TaherBala2507/mini-crm/internal/obs"
	"github.com/TaherBala2507/mini-crm/internal/store/pg"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logs.New(logs.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	})

	obs.Init()
	obs.InitBuildInfo(version, commit)

	db, err := pg.Open(cfg.Database.DSN)
	if err != nil {
		logger.WithError(err).Fatal("open database")
	}
	defer db.Close()

	tokens, err := auth.NewTokenManager(cfg.Auth.Secret,
		auth.WithIssuer(cfg.Auth.Issuer),
		auth.WithAccessTTL(cfg.Auth.AccessTTL),
		auth.WithRefreshTTL(cfg.Auth.RefreshTTL),
		auth.WithResetTTL(cfg.Auth.ResetTTL),
		auth.WithVerifyTTL(cfg.Auth.VerifyTTL),
	)
	if err != nil {
		logger.WithError(err).Fatal("token manager")
	}

	authSvc, err := auth.NewService(db.Auth(), tokens, logger)
	if err != nil {
		logger.WithError(err).Fatal("auth service")
	}
	roleSvc, err := auth.NewRoleService(db.Auth())
	if err != nil {
		logger.WithError(err).Fatal("role service")
	}

	storage, err := files.NewDisk(cfg.Uploads.Dir)
	if err != nil {
		logger.WithError(err).Fatal("file storage")
	}

	crmStore := db.CRM()
	leadSvc, err := crm.NewLeadService(crmStore)
	if err != nil {
		logger.WithError(err).Fatal("lead service")
	}
	projectSvc, err := crm.NewProjectService(crmStore)
	if err != nil {
		logger.WithError(err).Fatal("project service")
	}
	taskSvc, err := crm.NewTaskService(crmStore)
	if err != nil {
		logger.WithError(err).Fatal("task service")
	}
	noteSvc, err := crm.NewNoteService(crmStore)
	if err != nil {
		logger.WithError(err).Fatal("note service")
	}
	attachSvc, err := crm.NewAttachmentService(crmStore, storage, cfg.Uploads.MaxSizeBytes, logger)
	if err != nil {
		logger.WithError(err).Fatal("attachment service")
	}
	analyticsSvc, err := crm.NewAnalyticsService(crmStore)
	if err != nil {
		logger.WithError(err).Fatal("analytics service")
	}

	limiter := httpapi.NewRateLimiter(float64(cfg.RateLimit.PerSecond), cfg.RateLimit.Burst)
	defer limiter.Close()

	api := httpapi.New(httpapi.Options{
		Auth:         authSvc,
		Roles:        roleSvc,
		Leads:        leadSvc,
		Projects:     projectSvc,
		Tasks:        taskSvc,
		Notes:        noteSvc,
		Attachments:  attachSvc,
		Analytics:    analyticsSvc,
		Ready:        httpapi.ReadyProbe{DB: db.SQL()},
		Limiter:      limiter,
		Log:          logger,
		Version:      version,
		MaxBodyBytes: cfg.Uploads.MaxSizeBytes,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.WithField("addr", srv.Addr).Infof("starting mini-crm %s", version)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("listen")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Warn("shutdown")
	}
	logger.Info("stopped")
}
