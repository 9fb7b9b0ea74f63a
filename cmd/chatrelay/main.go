package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/chatrelay/chatrelay/internal/app"
	"github.com/chatrelay/chatrelay/internal/config"
)

// main runs the CLI entrypoint and exits on unrecoverable errors.
func main() {
	if errRun := run(os.Args[1:]); errRun != nil {
		log.WithError(errRun).Error("command failed")
		os.Exit(1)
	}
}

// run parses flags, loads config, and starts the relay server.
func run(args []string) error {
	_ = godotenv.Load()

	fs := flag.NewFlagSet("chatrelay", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "config file path (or env CONFIG_PATH)")
	port := fs.Int("port", 0, "server port (overrides config)")
	if errParse := fs.Parse(args); errParse != nil {
		return errParse
	}

	configPath := config.ResolveConfigPath(*cfgPath)
	cfg, errLoad := config.Load(configPath)
	if errLoad != nil {
		return errLoad
	}
	if *port > 0 {
		cfg.Port = *port
	}
	if strings.TrimSpace(cfg.AdminSecret) == "" {
		log.Warn("no admin secret configured; admin endpoints are disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Infof("starting relay with config=%s", configPath)
	return app.RunServer(ctx, cfg)
}
