package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"sage.app/companion/internal/api"
	"sage.app/companion/internal/config"
	"sage.app/companion/internal/core"
	"sage.app/companion/internal/store"
)

func main() {
	// Load configuration
	config.LoadConfig()

	// Setup logging
	if level, err := log.ParseLevel(strings.ToLower(config.AppConfig.LogLevel)); err == nil {
		log.SetLevel(level)
	}
	log.SetFormatter(&log.JSONFormatter{})
	if log.IsLevelEnabled(log.DebugLevel) {
		log.Debug("Service starting in DEBUG mode")
	}

	// Initialize database store
	dbStore, err := store.NewSQLiteStore(config.AppConfig.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer dbStore.Close()

	// Initialize workflow gateway
	gateway := core.NewWorkflowGateway(
		config.AppConfig.WebhookBaseURL,
		time.Duration(config.AppConfig.WebhookTimeoutSecs)*time.Second,
	)

	// Initialize services
	chatService := core.NewChatService(dbStore, gateway)
	chartService := core.NewChartService(dbStore, gateway)

	// Initialize API Handler and Router
	apiHandler := api.NewAPIHandler(chatService, chartService)
	router := api.NewRouter(apiHandler)

	// Start HTTP server
	serverAddr := fmt.Sprintf(":%s", config.AppConfig.HTTPPort)

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second, // workflow invocations can take a while
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		log.Infof("Starting server on %s. Press Ctrl+C to quit.", serverAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v", serverAddr, err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	// Give active connections time to finish.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exiting gracefully")
}
