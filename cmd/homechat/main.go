package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"homechat/config"
	"homechat/internal/app"
	"homechat/internal/web"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	logger := app.NewLogger(cfg.Log, os.Stdout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	hub := web.NewHub(logger)

	assistant, err := app.New(cfg, logger, hub)
	if err != nil {
		logger.Error("building assistant", "error", err)
		os.Exit(1)
	}

	if err := assistant.Start(ctx); err != nil {
		logger.Error("starting assistant", "error", err)
		assistant.Close(context.Background())
		os.Exit(1)
	}

	// Validated by config.Load.
	proxies, _ := cfg.Server.Proxies()

	server := web.NewServer(web.Config{
		Addr:           cfg.Server.Addr,
		RateLimit:      cfg.Server.RateLimit,
		TrustedProxies: proxies,
	}, web.Deps{
		Sessions: assistant.Sessions,
		Router:   assistant.Router,
		STT:      assistant.STT,
		Weather:  assistant.Weather,
		Timers:   assistant.Scheduler,
		Journal:  assistant.Journal,
		Hub:      hub,
		Mode:     assistant.Dispatcher.Mode(),
	}, logger)

	if err := server.Start(ctx); err != nil {
		logger.Error("starting server", "error", err)
		assistant.Close(context.Background())
		os.Exit(1)
	}

	logger.Info("starting homechat",
		"addr", cfg.Server.Addr,
		"mode", assistant.Dispatcher.Mode(),
	)

	<-ctx.Done()

	if err := server.Stop(); err != nil {
		logger.Error("stopping server", "error", err)
	}

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer closeCancel()
	assistant.Close(closeCtx)
}
