// Package cmd wires the Vertex Bridge subsystems together: credential
// source, token manager, catalog fetcher, usage store, HTTP server, config
// watcher, and the graceful shutdown sequence.
package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/luispater/VertexBridge/internal/api"
	"github.com/luispater/VertexBridge/internal/api/handlers"
	"github.com/luispater/VertexBridge/internal/auth"
	"github.com/luispater/VertexBridge/internal/catalog"
	"github.com/luispater/VertexBridge/internal/config"
	"github.com/luispater/VertexBridge/internal/logging"
	"github.com/luispater/VertexBridge/internal/token"
	"github.com/luispater/VertexBridge/internal/usage"
	"github.com/luispater/VertexBridge/internal/util"
	"github.com/luispater/VertexBridge/internal/watcher"
)

// StartService runs the bridge until a termination signal arrives.
func StartService(cfg *config.Config, configPath string) {
	if err := logging.ConfigureLogOutput(cfg.LoggingToFile); err != nil {
		log.Errorf("failed to configure log output: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// One outbound client shared by the forwarder, the catalog fetcher and
	// the credential source; connections are reused across requests. No
	// client timeout: proxied streaming responses are long-lived.
	httpClient := &http.Client{}
	transport, errProxy := util.OutboundTransport(cfg.ProxyURL)
	if errProxy != nil {
		log.Fatalf("failed to configure outbound proxy: %v", errProxy)
	}
	if transport != nil {
		httpClient.Transport = transport
		log.Infof("outbound traffic routed through proxy %s", cfg.ProxyURL)
	}

	tokenFilePath := auth.TokenFilePath(cfg.AuthDir)
	storage := auth.LoadTokenStorage(tokenFilePath)
	source := auth.NewCredentialSource(storage, httpClient)

	if cfg.ProjectID == "" {
		if storage.ProjectID != "" {
			cfg.ProjectID = storage.ProjectID
		} else if adc, ok := source.(*auth.ADCSource); ok {
			projectID, err := adc.ProjectID(ctx)
			if err != nil {
				log.Fatalf("failed to resolve project ID: %v", err)
			}
			cfg.ProjectID = projectID
		} else {
			log.Fatal("project ID not configured, set project-id or login with --project-id")
		}
		log.Infof("using project ID: %s", cfg.ProjectID)
	}

	tokenManager := token.NewManager(storage, tokenFilePath, source)
	if cfg.AutoRefresh {
		tokenManager.StartAutoRefresh(ctx)
	}

	usageStore, errUsage := usage.Open("usage.bolt")
	if errUsage != nil {
		log.Warnf("usage tracking disabled: %v", errUsage)
		usageStore = nil
	}

	fetcher := catalog.NewFetcher(httpClient)
	apiHandlers := handlers.NewAPIHandler(cfg, tokenManager, httpClient, fetcher, usageStore)
	server := api.NewServer(cfg, apiHandlers)

	if !cfg.IsLoopbackBind() && cfg.Key == "" {
		log.Warn("server is exposed beyond localhost, PLEASE SET A KEY!")
	}

	configWatcher, errWatcher := watcher.NewWatcher(configPath, server.UpdateConfig)
	if errWatcher != nil {
		log.Warnf("config hot-reload disabled: %v", errWatcher)
	} else if errStart := configWatcher.Start(ctx); errStart != nil {
		log.Warnf("config hot-reload disabled: %v", errStart)
	}

	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("API server failed to start: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Info("received shutdown signal, cleaning up...")

	cancel()
	if configWatcher != nil {
		_ = configWatcher.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Errorf("error stopping API server: %v", err)
	}

	if err := usageStore.Close(); err != nil {
		log.Errorf("error closing usage store: %v", err)
	}
	httpClient.CloseIdleConnections()
	log.Info("cleanup completed, exiting")
}

// DoLogin runs the interactive OAuth login flow and stores the resulting
// credential state in the auth directory.
func DoLogin(cfg *config.Config, projectID string) {
	ctx := context.Background()
	if err := auth.Login(ctx, cfg.AuthDir, projectID); err != nil {
		log.Fatalf("login failed: %v", err)
	}
}
