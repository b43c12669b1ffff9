package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"libadmin/pkg/circuitbreaker"
	"libadmin/pkg/config"
	"libadmin/pkg/web"
)

func main() {
	log.Println("Starting library admin...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	notice, err := cfg.NoticeMarkdown()
	if err != nil {
		log.Printf("Homepage notice disabled: %v", err)
	}

	level := slog.LevelInfo
	if !cfg.IsProd() {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	breaker := circuitbreaker.NewCircuitBreakerWithWindow(
		cfg.Breaker.MaxFailures, cfg.Breaker.Timeout.Std(), cfg.Breaker.Window.Std())

	server, err := web.New(web.Options{
		BackendURL:       cfg.Backend.BaseURL,
		Timeout:          cfg.Backend.Timeout.Std(),
		SoftDeleteStatus: cfg.Backend.SoftDeleteStatus,
		Breaker:          breaker,
		SessionTTL:       cfg.Session.TTL.Std(),
		CookieName:       cfg.Session.CookieName,
		SecureCookie:     cfg.Session.Secure,
		PageSize:         cfg.UI.PageSize,
		Notice:           notice,
		Logger:           logger,
	})
	if err != nil {
		log.Fatalf("Failed to build web server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("Library admin starting on %s (backend %s)", cfg.Server.Address, cfg.Backend.BaseURL)
	if err := server.Run(ctx, cfg.Server.Address); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
	log.Println("Library admin stopped")
}
