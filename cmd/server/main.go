// Package main is the entry point for the BasinAtlas server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/basinatlas/server/internal/api"
	"github.com/basinatlas/server/internal/cache"
	"github.com/basinatlas/server/internal/config"
	"github.com/basinatlas/server/internal/data/geojson"
	"github.com/basinatlas/server/internal/observability"
	"github.com/basinatlas/server/internal/render"
	"github.com/basinatlas/server/internal/service"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config/server.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting BasinAtlas server on port %d", cfg.Server.Port)

	// Initialize components
	ctx := context.Background()

	// Initialize cache manager (shared across all datasets)
	cacheManager, err := cache.NewManager(cache.Config{
		ImageCacheSizeMB: cfg.Cache.ImageSizeMB,
		ImageTTL:         time.Duration(cfg.Cache.ImageTTLMinutes) * time.Minute,
		ViewCacheSize:    cfg.Cache.ViewCacheSize,
	})
	if err != nil {
		log.Fatalf("Failed to initialize cache: %v", err)
	}
	defer cacheManager.Close()

	// Initialize renderer and metrics (shared across all datasets)
	renderer := render.NewRenderer(render.Config{
		LegendWidth:  cfg.Render.LegendWidth,
		LegendHeight: cfg.Render.LegendHeight,
		MapWidth:     cfg.Render.MapWidth,
		MapHeight:    cfg.Render.MapHeight,
	})
	metrics := observability.NewMetrics()

	// Initialize dataset registry
	datasetIDs := cfg.Data.DatasetIDs()
	registry := api.NewDatasetRegistry(cfg.Data.DefaultDataset(), datasetIDs, cfg.Server.Title)

	log.Printf("Initializing %d dataset(s), default: %s", len(datasetIDs), cfg.Data.DefaultDataset())

	// Initialize each dataset
	for _, datasetID := range datasetIDs {
		ds := cfg.Data.Datasets[datasetID]

		fc, err := geojson.Load(ds.GeoJSONPath)
		if err != nil {
			log.Fatalf("Failed to load basins for dataset %q: %v", datasetID, err)
		}

		log.Printf("  [%s] Loaded from: %s", datasetID, ds.GeoJSONPath)
		log.Printf("    Basins: %d, Continents: %d, Default basin: %s",
			fc.Len(), len(fc.Continents()), ds.DefaultBasin)

		basinService := service.NewBasinService(service.BasinServiceConfig{
			DatasetID:    datasetID,
			Collection:   fc,
			Cache:        cacheManager,
			Renderer:     renderer,
			Metrics:      metrics,
			DefaultBasin: ds.DefaultBasin,
			Cutoff:       cfg.Scale.Options(),
		})

		registry.Register(datasetID, basinService)
	}

	// Set up HTTP router
	router := api.NewRouter(api.RouterConfig{
		Registry:    registry,
		CORSOrigins: cfg.Server.CORSOrigins,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on http://localhost:%d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
