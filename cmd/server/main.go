package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BerylCAtieno/forensic-docs-api/internal/analyzer"
	"github.com/BerylCAtieno/forensic-docs-api/internal/config"
	"github.com/BerylCAtieno/forensic-docs-api/internal/converter"
	"github.com/BerylCAtieno/forensic-docs-api/internal/db"
	"github.com/BerylCAtieno/forensic-docs-api/internal/ocr"
	"github.com/BerylCAtieno/forensic-docs-api/internal/processor"
	"github.com/BerylCAtieno/forensic-docs-api/internal/repository"
	"github.com/BerylCAtieno/forensic-docs-api/internal/router"
	"github.com/BerylCAtieno/forensic-docs-api/internal/services"
	"github.com/BerylCAtieno/forensic-docs-api/internal/storage"
	"github.com/BerylCAtieno/forensic-docs-api/internal/utils"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger := utils.NewLogger(cfg.LogLevel)

	ctx := context.Background()

	// Initialize database
	connectCtx, cancel := context.WithTimeout(ctx, time.Minute)
	repo, closeDB, err := openRepository(connectCtx, cfg, logger)
	cancel()
	if err != nil {
		logger.Fatal("Failed to initialize database", "driver", cfg.DBDriver, "error", err)
	}
	defer closeDB()

	// Initialize the document pipeline
	store, err := storage.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize storage", "provider", cfg.StorageProvider, "error", err)
	}

	conv := converter.New(cfg, logger)

	engine, err := ocr.New(ctx, cfg, conv, logger)
	if err != nil {
		logger.Fatal("Failed to initialize OCR engine", "engine", cfg.OCREngine, "error", err)
	}
	if c, ok := engine.(io.Closer); ok {
		defer c.Close()
	}

	proc, err := processor.New(cfg, store, engine, conv, logger)
	if err != nil {
		logger.Fatal("Failed to initialize document processor", "error", err)
	}

	llm, err := analyzer.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize analyzer", "provider", cfg.AnalyzerProvider, "error", err)
	}
	if c, ok := llm.(io.Closer); ok {
		defer c.Close()
	}

	// Setup HTTP router
	handler := router.NewRouter(router.Services{
		Clients:   services.NewClientService(repo, logger),
		Cases:     services.NewCaseService(repo, logger),
		Documents: services.NewDocumentService(repo, proc, llm, logger),
		Reports:   services.NewReportService(repo, llm, logger),
		Files:     services.NewFileService(store, logger),
	}, router.Options{
		MaxFileSize:      cfg.MaxFileSize,
		UploadRatePerMin: cfg.UploadRatePerMin,
	}, logger)

	// Create HTTP server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      15 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	// Start server
	go func() {
		logger.Info("Starting server",
			"port", cfg.Port,
			"storage", store.Name(),
			"ocr_engine", engine.Name(),
			"db", cfg.DBDriver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}

func openRepository(ctx context.Context, cfg *config.Config, logger *utils.Logger) (repository.Repository, func(), error) {
	switch cfg.DBDriver {
	case "mongo":
		client, err := db.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Connected to MongoDB", "database", cfg.MongoDB)
		closeFn := func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := client.Disconnect(disconnectCtx); err != nil {
				logger.Warn("Failed to disconnect from MongoDB", "error", err)
			}
		}
		return repository.NewMongoRepository(client.Database(cfg.MongoDB)), closeFn, nil
	default:
		// Run migrations
		if err := db.RunMigrations(cfg.DatabaseURL); err != nil {
			return nil, nil, err
		}
		database, err := db.NewSQLiteDB(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Connected to SQLite", "file", cfg.DatabaseURL)
		return repository.NewRepository(database), func() { database.Close() }, nil
	}
}
