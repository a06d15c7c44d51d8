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

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"FOM-CERTS/internal"
	"FOM-CERTS/internal/config"
	"FOM-CERTS/internal/handlers"
	"FOM-CERTS/internal/render"
	"FOM-CERTS/internal/security"
	"FOM-CERTS/internal/services"
	"FOM-CERTS/internal/storage"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}

	format := cfg.Log.Format
	if format == "" && cfg.IsDevelopment() {
		format = "text"
	}
	log := config.NewLogger(cfg.Log.Level, format)
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, log); err != nil {
		log.WithError(err).Error("server exited")
		os.Exit(1)
	}
}

// run wires the service and blocks until a shutdown signal or a server
// failure. Deferred cleanups always run before it returns.
func run(cfg *config.Config, log *logrus.Logger) error {
	ctx := context.Background()

	var store services.Store
	switch cfg.Database.Driver {
	case "memory":
		log.Warn("using in-memory store, data is lost on restart")
		store = services.NewMemoryStore()
	default:
		db, err := internal.InitDB(cfg, log)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer func() {
			if err := internal.CloseDB(db); err != nil {
				log.WithError(err).Error("failed to close database")
			}
		}()
		store = services.NewGormStore(db)
	}

	verifyBase := cfg.Security.VerifyBaseURL
	if verifyBase == "" {
		verifyBase = "http://localhost:" + cfg.Server.Port
	}
	generator, err := security.NewGenerator(cfg.Security.SecretKey, verifyBase)
	if err != nil {
		return fmt.Errorf("failed to initialize security generator: %w", err)
	}

	var artifacts storage.ArtifactStore
	if cfg.GCS.BucketName != "" {
		gcs, err := storage.NewGCSClient(ctx, cfg.GCS.BucketName, cfg.GCS.ProjectID, cfg.GCS.CredentialsPath)
		if err != nil {
			return fmt.Errorf("failed to initialize GCS client: %w", err)
		}
		defer gcs.Close()
		artifacts = gcs
		log.WithField("bucket", cfg.GCS.BucketName).Info("caching artifacts in GCS")
	} else {
		local, err := storage.NewLocalStore(cfg.Storage.LocalDir)
		if err != nil {
			return fmt.Errorf("failed to initialize local artifact store: %w", err)
		}
		artifacts = local
		cleanup := handlers.NewFileCleanupService(local.Root(), cfg.Storage.MaxAge, log)
		cleanup.Start()
		defer cleanup.Stop()
	}

	renderer, err := render.NewGotenbergRenderer(cfg.Gotenberg.URL, cfg.Gotenberg.Timeout, log)
	if err != nil {
		return fmt.Errorf("failed to initialize Gotenberg client: %w", err)
	}

	verifications := services.NewVerificationLogService(store, log)
	defer verifications.Wait()

	router := handlers.NewRouter(handlers.Deps{
		Organizations: services.NewOrganizationService(store),
		Templates:     services.NewTemplateService(store),
		Certificates: services.NewCertificateManager(store, generator, log, services.ManagerOptions{
			OrgCode: cfg.Security.OrgCode,
		}),
		Documents:     services.NewDocumentService(store, renderer, artifacts, log, services.DocumentOptions{}),
		Verifications: verifications,
		Log:           log,
		AllowOrigins:  cfg.Server.AllowOrigins,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{
			"port":        cfg.Server.Port,
			"environment": cfg.Server.Environment,
			"store":       cfg.Database.Driver,
		}).Info("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err, ok := <-serveErr:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-quit:
	}
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}
