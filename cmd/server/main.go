package main

import (
	"context"
	"flag"
	"log"
	"strings"
	"time"

	"github.com/himanishpuri/tunebot/internal/app"
	"github.com/himanishpuri/tunebot/internal/config"
	"github.com/himanishpuri/tunebot/pkg/logger"
)

var (
	port           int
	dataPath       string
	allowedOrigins string
	fetchTimeout   time.Duration
)

func init() {
	flag.IntVar(&port, "port", 0, "HTTP server port (default HTTP_PORT)")
	flag.StringVar(&dataPath, "data", "", "Directory holding the corpora and cache (default DATA_PATH)")
	flag.StringVar(&allowedOrigins, "origins", "*", "Comma-separated list of allowed CORS origins (use * for all)")
	flag.DurationVar(&fetchTimeout, "fetch-timeout", 5*time.Minute, "Upper bound on waiting for a fetch slot")
}

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if port != 0 {
		cfg.HTTPPort = port
	}
	if dataPath != "" {
		cfg.DataPath = dataPath
	}

	var origins []string
	if allowedOrigins == "*" {
		origins = []string{"*"}
	} else {
		origins = strings.Split(allowedOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
	}

	lcfg := logger.DefaultConfig()
	lcfg.Level = logger.ParseLevel(cfg.LogLevel)
	lcfg.ErrorFile = cfg.LogFilePath()
	lg := logger.New(lcfg)

	service, err := app.New(context.Background(), cfg, app.WithLogger(lg))
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}
	defer service.Close()

	server := NewServer(service, &ServerConfig{
		Port:           cfg.HTTPPort,
		DataPath:       cfg.DataPath,
		AllowedOrigins: origins,
		FetchTimeout:   fetchTimeout,
	}, lg)
	if err := server.Start(); err != nil {
		lg.Errorf("Server failed: %v", err)
	}
}
