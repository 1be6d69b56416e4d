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

	"github.com/nimbusops/incidentwatch/internal/api"
	"github.com/nimbusops/incidentwatch/internal/config"
	"github.com/nimbusops/incidentwatch/internal/detection"
	"github.com/nimbusops/incidentwatch/internal/incidents"
	"github.com/nimbusops/incidentwatch/internal/metrics"
	"github.com/nimbusops/incidentwatch/internal/source"
)

func main() {
	log.Println("Starting IncidentWatch...")

	// Load configuration
	cfg := loadConfig()

	// Initialize incident store
	store, err := incidents.NewSQLiteStore(cfg.Storage.SQLite.Path)
	if err != nil {
		log.Fatalf("Failed to initialize incident store: %v", err)
	}
	defer store.Close()

	// Create context for services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize metrics source
	metricsSource := initSource(cfg)

	// Initialize detection engine
	rules := []detection.Rule{
		detection.NewCPURule(cfg.Detection.Rules.CPU.ThresholdPercent, cfg.Detection.Rules.CPU.WindowMinutes),
		detection.NewMemoryRule(cfg.Detection.Rules.Memory.ThresholdGB, cfg.Detection.Rules.Memory.WindowMinutes),
		detection.NewNetworkRule(cfg.Detection.Rules.Network.ThresholdKBps, cfg.Detection.Rules.Network.WindowMinutes),
	}
	engine := detection.NewEngine(detection.Config{
		ResourceID:      cfg.Resource.ID,
		LookbackMinutes: cfg.Detection.LookbackMinutes,
		PollInterval:    cfg.Detection.PollInterval,
	}, metricsSource, store, rules)

	// Start background detection
	if !cfg.Detection.Disabled {
		if err := engine.Start(ctx); err != nil {
			log.Fatalf("Failed to start detection engine: %v", err)
		}
	}

	// Periodic incident retention cleanup
	go runCleanup(ctx, store, cfg.Detection.Retention)

	// Create API server
	server := api.NewServer(cfg, engine, metricsSource, store)

	// Start HTTP server
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("IncidentWatch API listening on port %d", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down IncidentWatch...")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	if !cfg.Detection.Disabled {
		engine.Stop()
	}

	log.Println("IncidentWatch stopped")
}

func loadConfig() *config.Config {
	configPath := os.Getenv("INCIDENTWATCH_CONFIG")
	if configPath != "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			log.Printf("Failed to load config from %s: %v, using defaults", configPath, err)
			return config.LoadFromEnv()
		}
		return cfg
	}
	return config.LoadFromEnv()
}

func initSource(cfg *config.Config) metrics.Source {
	switch cfg.Source.Type {
	case "azure":
		azureCfg := source.AzureMonitorConfig{}
		if cfg.Source.Azure != nil {
			azureCfg = source.AzureMonitorConfig{
				SubscriptionID: cfg.Source.Azure.SubscriptionID,
				ResourceGroup:  cfg.Source.Azure.ResourceGroup,
				VMName:         cfg.Source.Azure.VMName,
				Token:          cfg.Source.Azure.Token,
			}
		}
		monitor := source.NewAzureMonitor(azureCfg)
		if cfg.Resource.ID == "" {
			cfg.Resource.ID = monitor.ResourceURI()
		}
		return monitor

	default:
		simCfg := source.SimulatorConfig{}
		if cfg.Source.Simulator != nil {
			simCfg = source.SimulatorConfig{
				CPUPercent:    cfg.Source.Simulator.CPUPercent,
				MemoryBytes:   cfg.Source.Simulator.MemoryBytes,
				NetworkInBps:  cfg.Source.Simulator.NetworkInBps,
				NetworkOutBps: cfg.Source.Simulator.NetworkOutBps,
			}
		}
		if cfg.Resource.ID == "" {
			cfg.Resource.ID = "local-vm"
		}
		return source.NewSimulator(simCfg)
	}
}

func runCleanup(ctx context.Context, store incidents.Store, retention time.Duration) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := store.Cleanup(ctx, retention); err != nil {
				log.Printf("Incident cleanup failed: %v", err)
			}
		}
	}
}
