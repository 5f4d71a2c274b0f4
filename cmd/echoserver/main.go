package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hazyhaar/iwa-quic-echo/pkg/quicecho"
	"gopkg.in/yaml.v3"
)

type config struct {
	Addr     string `yaml:"addr"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	LogLevel string `yaml:"log_level"`
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		cmdServe(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: echoserver <command>\n\nCommands:\n  serve    Start the QUIC echo / HTTP-3 / WebTransport server\n")
}

func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "path to config file")
	fs.Parse(args)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg := loadConfig(*cfgPath, logger)
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))

	var creds *quicecho.Credentials
	if cfg.CertFile != "" && cfg.KeyFile != "" {
		var err error
		creds, err = quicecho.LoadCredentials(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			logger.Error("failed to load TLS credentials", "error", err)
			os.Exit(1)
		}
	}

	srv, err := quicecho.New(quicecho.Config{
		Addr:        cfg.Addr,
		Credentials: creds,
		Logger:      logger,
	})
	if err != nil {
		logger.Error("server init failed", "error", err)
		os.Exit(1)
	}

	// SIGHUP has no hot-reloadable state in this server (credentials are
	// loaded once at startup, per spec.md §6); SIGINT/SIGTERM drive graceful
	// shutdown, matching the teacher's lifecycle idiom.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	go func() {
		for range sighup {
			logger.Info("SIGHUP received", "active_connections", srv.ActiveConnections())
		}
	}()

	go func() {
		if err := srv.Serve(ctx); err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	if err := srv.Stop(); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

func loadConfig(path string, logger *slog.Logger) config {
	cfg := config{
		Addr:     quicecho.DefaultAddr,
		LogLevel: "info",
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info("no config file, using defaults", "path", path)
			return cfg
		}
		logger.Error("read config", "error", err)
		os.Exit(1)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		logger.Error("parse config", "error", err)
		os.Exit(1)
	}
	return cfg
}

func parseLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
