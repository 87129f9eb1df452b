package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"group-order/internal/config"
	"group-order/internal/database"
	"group-order/internal/logger"
	"group-order/internal/messaging"
	"group-order/internal/repository"
	"group-order/internal/repository/memory"
	"group-order/internal/repository/postgres"
	"group-order/internal/services/auth"
	"group-order/internal/services/catalog"
	"group-order/internal/services/notification"
	"group-order/internal/services/order"
	"group-order/internal/web"
	"group-order/migrations"
)

const (
	modeAPI        = "api-service"
	modeSubscriber = "notification-subscriber"

	shutdownTimeout = 10 * time.Second
)

func main() {
	var (
		mode          = flag.String("mode", "", "Service mode (api-service, notification-subscriber)")
		configPath    = flag.String("config", "config.yaml", "Path to the YAML config file")
		port          = flag.Int("port", 0, "HTTP port (overrides config)")
		storage       = flag.String("storage", "postgres", "Order storage backend (postgres, memory)")
		notifications = flag.Bool("notifications", true, "Publish order notifications to RabbitMQ")
		prefetch      = flag.Int("prefetch", 1, "RabbitMQ prefetch count")
	)
	flag.Parse()

	if *mode == "" {
		fmt.Fprintf(os.Stderr, "Error: --mode flag is required\n")
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}
	needs := config.Needs{Broker: true}
	if *mode == modeAPI {
		needs = config.Needs{API: true, Database: *storage == "postgres", Broker: *notifications}
	}
	if err := cfg.Validate(needs); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(*mode, cfg.Log.Level)
	requestID := logger.GenerateRequestID()

	log.Info("service_started", fmt.Sprintf("Starting %s", *mode), requestID, map[string]any{
		"mode":    *mode,
		"port":    cfg.Server.Port,
		"storage": *storage,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch *mode {
	case modeAPI:
		err = runAPIService(ctx, cfg, log, *storage, *notifications)
	case modeSubscriber:
		err = runNotificationSubscriber(ctx, cfg, log, *prefetch)
	default:
		err = fmt.Errorf("unknown mode: %s", *mode)
	}
	if err != nil {
		log.Error("service_failed", fmt.Sprintf("%s failed", *mode), requestID, err, nil)
		os.Exit(1)
	}

	log.Info("service_stopped", "Service stopped gracefully", requestID, nil)
}

// runAPIService serves the HTTP API until ctx is cancelled
func runAPIService(ctx context.Context, cfg *config.Config, log *logger.Logger, storage string, notifications bool) error {
	requestID := logger.GenerateRequestID()

	store, closeStore, err := openStore(ctx, cfg, log, storage)
	if err != nil {
		return err
	}
	defer closeStore()

	var notifier order.Notifier
	if notifications {
		conn, err := messaging.New(ctx, cfg, log)
		if err != nil {
			return fmt.Errorf("failed to initialize messaging: %w", err)
		}
		defer conn.Close()
		log.Info("rabbitmq_connected", "Connected to RabbitMQ", requestID, nil)

		notifier = notification.NewDispatcher(store, messaging.NewPublisher(conn, log), log)
	}

	catalogService := catalog.NewService(store, log)
	if _, err := catalogService.BootstrapAdmin(ctx, cfg.Auth.AdminName, cfg.Auth.AdminPhone, cfg.Auth.AdminPassword); err != nil {
		return fmt.Errorf("failed to bootstrap admin: %w", err)
	}

	authService := auth.NewService(store, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	orderService := order.NewService(store, notifier, log)

	mux := http.NewServeMux()
	authn := authService.Middleware(log)
	auth.NewHandler(authService, catalogService, log).RegisterRoutes(mux)
	catalog.NewHandler(catalogService, log).RegisterRoutes(mux, authn)
	order.NewHandler(orderService, log).RegisterRoutes(mux, authn)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           web.WithLogging(log, mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("service_started", fmt.Sprintf("API service started on port %d", cfg.Server.Port), requestID, map[string]any{
			"port": cfg.Server.Port,
		})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("graceful_shutdown", "Received shutdown signal", requestID, nil)
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err = server.Shutdown(shutdownCtx)

	// let in-flight notifications finish before the broker connection closes
	orderService.Wait()
	return err
}

func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger, storage string) (repository.Store, func(), error) {
	switch storage {
	case "memory":
		log.Info("storage_selected", "Using in-memory storage", "startup", nil)
		return memory.NewStore(), func() {}, nil
	case "postgres":
		db, err := database.New(ctx, cfg, log)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		if err := db.RunMigrations(ctx, migrations.FS); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		return postgres.NewStore(db), db.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend: %s", storage)
	}
}

// runNotificationSubscriber consumes notifications until ctx is cancelled
func runNotificationSubscriber(ctx context.Context, cfg *config.Config, log *logger.Logger, prefetch int) error {
	conn, err := messaging.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize messaging: %w", err)
	}

	consumer := messaging.NewConsumer(conn, log, messaging.NotificationsQueue, "notification-subscriber", prefetch)
	return notification.NewSubscriber(consumer, log, os.Stdout).Start(ctx)
}
