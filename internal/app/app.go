package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"smartmailer/internal/action"
	"smartmailer/internal/classifier"
	"smartmailer/internal/config"
	"smartmailer/internal/db"
	"smartmailer/internal/handlers"
	"smartmailer/internal/metrics"
	"smartmailer/internal/orchestrator"
	"smartmailer/internal/retry"
	"smartmailer/internal/server"
	"smartmailer/internal/store"
	"smartmailer/internal/templates"
	"smartmailer/internal/transport"
)

// Run initializes and starts the application
func Run() error {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(logrus.InfoLevel)

	logrus.Info("Starting SmartMailer Service")

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	dbConn, err := db.Init(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	st := store.New(dbConn)

	m := metrics.NewMetrics()

	var fetcher transport.MailboxFetcher
	if cfg.Mailbox.UseIMAP {
		fetcher, err = transport.NewIMAPFetcher(&cfg.Mailbox)
		if err != nil {
			return fmt.Errorf("failed to create IMAP fetcher: %w", err)
		}
		logrus.Info("Using IMAP for mailbox polling")
	} else {
		fetcher, err = transport.NewGmailFetcher(&cfg.Mailbox)
		if err != nil {
			return fmt.Errorf("failed to create Gmail fetcher: %w", err)
		}
		logrus.Info("Using Gmail API for mailbox polling")
	}

	sender, err := transport.NewGmailSender(&cfg.Mailbox, cfg.AutoReply.SenderName)
	if err != nil {
		return fmt.Errorf("failed to create reply sender: %w", err)
	}

	notifier := transport.NewTelegramNotifier(&cfg.Telegram)
	if err := notifier.TestConnection(context.Background()); err != nil {
		logrus.Warnf("Telegram connectivity check failed: %v", err)
	}

	cls := classifier.New(cfg.Rules)
	router := action.NewRouter(templates.NewRenderer(cfg.AutoReply.SenderName), cfg.AutoReply.Enabled)
	policy := retry.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay,
		MaxDelay:    cfg.Retry.MaxDelay,
	}

	orch := orchestrator.New(&cfg.Scheduler, policy, fetcher, st, cls, router, sender, notifier, m)

	h := handlers.NewHandlers(st, orch, notifier)
	engine := server.SetupRouter(h)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if err := orch.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	go func() {
		logrus.Infof("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := orch.Stop(); err != nil {
		logrus.Errorf("Failed to stop scheduler: %v", err)
	}
	orch.Wait()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("HTTP server shutdown error: %v", err)
	}

	if err := fetcher.Close(); err != nil {
		logrus.Errorf("Failed to close fetcher: %v", err)
	}
	if err := sender.Close(); err != nil {
		logrus.Errorf("Failed to close sender: %v", err)
	}

	logrus.Info("Server stopped gracefully")
	return nil
}
