package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modpit/craftd/internal/api"
	"github.com/modpit/craftd/internal/config"
	"github.com/modpit/craftd/internal/fetch"
	"github.com/modpit/craftd/internal/instance"
	"github.com/modpit/craftd/internal/logging"
	"github.com/modpit/craftd/internal/ram"
	"github.com/modpit/craftd/internal/resolver"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if _, err := logging.Init(cfg.Logging); err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logging.Close()

	if err := os.MkdirAll(cfg.Storage.InstancesDir, 0755); err != nil {
		log.Fatalf("Failed to create instances root: %v", err)
	}

	fetcher := fetch.NewFetcher(
		fetch.WithUserAgent(cfg.Fetch.UserAgent),
		fetch.WithTimeout(time.Duration(cfg.Fetch.TimeoutSeconds)*time.Second),
	)
	res := resolver.NewTemplateResolver(cfg.Resolver.URLTemplates)

	defaults := instance.Defaults{
		MinRAMMB: ram.Parse(cfg.Defaults.MinRAM, 1024),
		MaxRAMMB: ram.Parse(cfg.Defaults.MaxRAM, 2048),
		GamePort: cfg.Defaults.GamePort,
	}

	provisioner, supervisor, registry := instance.Wire(cfg.Storage.InstancesDir, res, fetcher, defaults)

	router := api.SetupRouter(cfg, provisioner, supervisor, registry)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Instance processes run in their own process groups and keep
	// running; only the HTTP surface drains.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
