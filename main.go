package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cmportal/adapters/postgres"
	"cmportal/internal"
	"cmportal/internal/config"
	"cmportal/internal/container"
	"cmportal/internal/errors"
	"cmportal/ui"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := internal.NewLogger(internal.ParseLogLevel(appConfig.LogLevel))
	gin.SetMode(appConfig.Server.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appContainer, err := container.New(appConfig, logger)
	if err != nil {
		log.Fatalf("Failed to create container: %v", err)
	}

	if appConfig.Database.Enabled() {
		if err := initDatabase(ctx, appContainer, appConfig); err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		log.Println("Postgres reference mirror ready")
	}

	// A failed warm-up is not fatal: the cache retries on the next request
	if err := appContainer.Reference.Warm(ctx); err != nil {
		log.Printf("Reference tables not loaded at startup: %v", err)
	}

	go appContainer.Uploads.RunSweeper(ctx, appConfig.Uploads.CleanupInterval)

	server, err := ui.NewServer(appContainer)
	if err != nil {
		log.Fatalf("Failed to initialize server: %v", err)
	}

	if appConfig.Admin.Enabled {
		admin := &http.Server{
			Addr:              ":" + appConfig.Admin.Port,
			Handler:           ui.NewAdmin(appContainer),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			log.Printf("Admin server starting on :%s (health, cache, pprof)", appConfig.Admin.Port)
			if err := admin.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("Admin server failed: %v", err)
			}
		}()
		defer admin.Close()
	}

	if err := server.Start(ctx, ":"+appConfig.Server.Port); err != nil && err != http.ErrServerClosed {
		log.Printf("Server stopped: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := appContainer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
	log.Println("cmportal stopped")
}

// initDatabase connects to Postgres and hands the connection to the container,
// which migrates the mirror schema
func initDatabase(ctx context.Context, c *container.Container, appConfig *config.Config) error {
	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	db, err := postgres.Open(connectCtx, appConfig.Database.URL)
	if err != nil {
		return errors.Wrap(err, "failed to connect to database")
	}
	if err := c.InitWithDatabase(connectCtx, db); err != nil {
		db.Close()
		return err
	}
	return nil
}
