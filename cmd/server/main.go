package main

import (
	"flag"
	"os"
	"path"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/luispater/VertexBridge/internal/cmd"
	"github.com/luispater/VertexBridge/internal/config"
	"github.com/luispater/VertexBridge/internal/logging"
)

func main() {
	logging.SetupBaseLogger()

	var (
		login            bool
		projectID        string
		configPath       string
		bind             string
		port             int
		key              string
		autoRefresh      bool
		filterModelNames bool
	)

	flag.BoolVar(&login, "login", false, "Login Google Account")
	flag.StringVar(&projectID, "project-id", "", "Google Cloud project ID")
	flag.StringVar(&configPath, "config", "", "Configure File Path")
	flag.StringVar(&bind, "b", "localhost", "Host to bind to")
	flag.StringVar(&bind, "bind", "localhost", "Host to bind to")
	flag.IntVar(&port, "p", 8086, "Port to listen on")
	flag.IntVar(&port, "port", 8086, "Port to listen on")
	flag.StringVar(&key, "k", "", "API key; when empty, any caller is accepted")
	flag.StringVar(&key, "key", "", "API key; when empty, any caller is accepted")
	flag.BoolVar(&autoRefresh, "auto-refresh", true, "Background token refresh check every 5 minutes")
	flag.BoolVar(&filterModelNames, "filter-model-names", true, "Filter the model catalog by the configured name prefixes")
	flag.Parse()

	if configPath == "" {
		wd, err := os.Getwd()
		if err != nil {
			log.Fatalf("failed to get working directory: %v", err)
		}
		configPath = path.Join(wd, "config.yaml")
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Flags passed explicitly override the persisted config and are saved
	// back, matching restart-with-same-settings behavior.
	changed := false
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "b", "bind":
			changed = changed || cfg.Bind != bind
			cfg.Bind = bind
		case "p", "port":
			changed = changed || cfg.Port != port
			cfg.Port = port
		case "k", "key":
			changed = changed || cfg.Key != key
			cfg.Key = key
		case "auto-refresh":
			changed = changed || cfg.AutoRefresh != autoRefresh
			cfg.AutoRefresh = autoRefresh
		case "filter-model-names":
			changed = changed || cfg.FilterModelNames != filterModelNames
			cfg.FilterModelNames = filterModelNames
		case "project-id":
			changed = changed || cfg.ProjectID != projectID
			cfg.ProjectID = projectID
		}
	})
	if changed {
		if errSave := config.SaveConfig(configPath, cfg); errSave != nil {
			log.Errorf("failed to save config: %v", errSave)
		}
	}

	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}

	if strings.HasPrefix(cfg.AuthDir, "~") {
		home, errUserHomeDir := os.UserHomeDir()
		if errUserHomeDir != nil {
			log.Fatalf("failed to get home directory: %v", errUserHomeDir)
		}
		parts := strings.Split(cfg.AuthDir, string(os.PathSeparator))
		if len(parts) > 1 {
			parts[0] = home
			cfg.AuthDir = path.Join(parts...)
		} else {
			cfg.AuthDir = home
		}
	}

	if login {
		cmd.DoLogin(cfg, projectID)
	} else {
		log.Infof("server: http://%s:%d", cfg.Bind, cfg.Port)
		cmd.StartService(cfg, configPath)
	}
}
