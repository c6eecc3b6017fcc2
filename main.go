package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/natefinch/lumberjack.v2"

	"resolvr/api"
	"resolvr/config"
	"resolvr/handlers"
	"resolvr/internal/metrics"
	"resolvr/services/debrid"
	"resolvr/services/playback"
	"resolvr/services/sources"
)

const prequeueTTL = 15 * time.Minute

func main() {
	portOverride := flag.Int("port", 0, "override server port from config")
	flag.Parse()

	fmt.Println("resolvr starting...")

	configPath := os.Getenv("RESOLVR_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("cache", "settings.json")
	}

	cfgManager := config.NewManager(configPath)
	settings, err := cfgManager.Load()
	if err != nil {
		log.Fatalf("failed to load settings: %v", err)
	}

	// Set up file logging with rotation
	if settings.Log.File != "" {
		logDir := filepath.Dir(settings.Log.File)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			log.Printf("Warning: could not create log directory %s: %v", logDir, err)
		} else {
			fileWriter := &lumberjack.Logger{
				Filename:   settings.Log.File,
				MaxSize:    settings.Log.MaxSize,
				MaxBackups: settings.Log.MaxBackups,
				MaxAge:     settings.Log.MaxAge,
				Compress:   settings.Log.Compress,
			}
			log.SetOutput(io.MultiWriter(os.Stdout, fileWriter))
			log.SetFlags(log.LstdFlags | log.Lshortfile)
			log.Printf("Logging to file: %s", settings.Log.File)
		}
	}

	if *portOverride > 0 {
		settings.Server.Port = *portOverride
	}

	// Source providers from config
	registry := sources.NewRegistry(cfgManager)
	if err := buildProvidersFromConfig(registry, settings.Sources); err != nil {
		log.Fatalf("failed to build source providers: %v", err)
	}
	fetcher := sources.NewFetcher(registry)

	// Acceleration service wiring
	debridClient := debrid.NewClient(settings.Debrid.APIKey, settings.Debrid.BaseURL)
	if debridClient.HasCredential() {
		log.Println("[main] acceleration credential configured")
	} else {
		log.Println("[main] no acceleration credential, torrents will surface as magnet fallbacks")
	}
	prechecker := debrid.NewPrechecker(debridClient)
	resolver := debrid.NewResolver(debridClient)

	playbackService := playback.NewService(fetcher, prechecker, resolver,
		debridClient.HasCredential, settings.Playback.MaxCandidates)
	prequeuer := playback.NewPrequeuer(playbackService, prequeueTTL)

	// Metrics
	promRegistry := prometheus.NewRegistry()
	metrics.Register(promRegistry)

	// HTTP surface
	r := mux.NewRouter()
	api.Register(r,
		handlers.NewPlaybackHandler(playbackService, prequeuer),
		handlers.NewSourcesHandler(registry),
		promRegistry,
	)

	addr := fmt.Sprintf("%s:%d", settings.Server.Host, settings.Server.Port)
	fmt.Printf("Server starting on %s\n", addr)

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // resolutions can poll for a while
		IdleTimeout:  120 * time.Second,
	}

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-shutdownChan
	log.Println("Shutdown signal received, cleaning up...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	log.Println("Shutdown complete")
}

// buildProvidersFromConfig registers one provider per configured source.
func buildProvidersFromConfig(registry *sources.Registry, configs []config.SourceConfig) error {
	httpClient := &http.Client{Timeout: 20 * time.Second}
	for _, sc := range configs {
		var provider sources.Provider
		switch sc.Type {
		case "streamlist":
			provider = sources.NewStreamListProvider(sc.ID, sc.Name, sc.URL, sc.Options, httpClient)
		case "torznab":
			if sc.URL == "" {
				log.Printf("[main] skipping torznab source %q: no URL configured", sc.ID)
				continue
			}
			provider = sources.NewTorznabProvider(sc.ID, sc.Name, sc.URL, sc.APIKey, httpClient)
		default:
			log.Printf("[main] skipping source %q: unknown type %q", sc.ID, sc.Type)
			continue
		}
		if err := registry.Register(provider, sc.Priority, sc.Enabled); err != nil {
			return err
		}
	}
	return nil
}
