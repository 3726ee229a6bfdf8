package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/pesio-ai/be-fund-distributions/internal/cache"
	"github.com/pesio-ai/be-fund-distributions/internal/client"
	"github.com/pesio-ai/be-fund-distributions/internal/common/config"
	"github.com/pesio-ai/be-fund-distributions/internal/common/database"
	"github.com/pesio-ai/be-fund-distributions/internal/common/logger"
	"github.com/pesio-ai/be-fund-distributions/internal/common/middleware"
	"github.com/pesio-ai/be-fund-distributions/internal/handler"
	"github.com/pesio-ai/be-fund-distributions/internal/repository"
	"github.com/pesio-ai/be-fund-distributions/internal/service"
)

func serveCmd() *cobra.Command {
	var migrateFirst bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and gRPC servers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			if migrateFirst {
				if err := repository.Migrate(cfg.Database.DSN(), cfg.Database.Database, log.Logger); err != nil {
					return err
				}
			}
			return serve(cmd.Context(), cfg, log)
		},
	}
	cmd.Flags().BoolVar(&migrateFirst, "migrate", false, "apply pending migrations before serving")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	log.Info().
		Str("service", cfg.Service.Name).
		Str("version", cfg.Service.Version).
		Str("environment", cfg.Service.Environment).
		Msg("Starting Fund Distributions Service")

	// Initialize database
	db, err := database.New(ctx, database.Config{
		Host:        cfg.Database.Host,
		Port:        cfg.Database.Port,
		User:        cfg.Database.User,
		Password:    cfg.Database.Password,
		Database:    cfg.Database.Database,
		SSLMode:     cfg.Database.SSLMode,
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		MaxConnTime: cfg.Database.MaxConnTime,
		MaxIdleTime: cfg.Database.MaxIdleTime,
		HealthCheck: cfg.Database.HealthCheck,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	log.Info().Msg("Database connection established")

	// Initialize repositories
	distributionRepo := repository.NewDistributionRepository(db)
	rulesRepo := repository.NewApprovalRulesRepository(db)
	auditRepo := repository.NewApprovalAuditRepository(db)
	directoryRepo := repository.NewDirectoryRepository(db)

	var directories service.DirectoryReader = directoryRepo
	if cfg.Redis.Addr != "" {
		store := cache.NewRedisStore(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer store.Close()
		if err := store.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis unreachable; directory reads fall through to the database")
		}
		directories = cache.NewDirectoryCache(store, directoryRepo, cfg.Redis.TTL, log.Logger)
		log.Info().Str("addr", cfg.Redis.Addr).Dur("ttl", cfg.Redis.TTL).Msg("Directory cache enabled")
	}

	// Notifications are optional
	var publisher client.EventPublisher
	if cfg.NATS.URL != "" {
		natsClient, err := client.NewNATSClient(cfg.NATS.URL, cfg.Service.Name, log.Logger)
		if err != nil {
			log.Warn().Err(err).Msg("NATS unavailable; approval notifications disabled")
		} else {
			defer natsClient.Close()
			publisher = natsClient
		}
	}
	notifier := client.NewNotificationPublisher(publisher, cfg.NATS.SubjectPrefix, log.Logger)

	waterfallClient, err := client.NewWaterfallGRPCClient(cfg.Waterfall.GRPCAddr, client.WaterfallClientConfig{
		Timeout: cfg.Waterfall.Timeout,
	}, log.Logger)
	if err != nil {
		return fmt.Errorf("failed to create waterfall gRPC client: %w", err)
	}
	defer waterfallClient.Close()
	log.Info().Str("waterfall_grpc", cfg.Waterfall.GRPCAddr).Msg("gRPC service clients initialized")

	// Initialize services
	distributionService := service.NewDistributionService(
		distributionRepo, rulesRepo, auditRepo, db, directories, waterfallClient, notifier, log)
	routingService := service.NewApprovalRoutingService(
		distributionRepo, rulesRepo, auditRepo, notifier, log)

	// Setup HTTP routes
	mux := http.NewServeMux()
	handler.NewHTTPHandler(distributionService, routingService, log).Register(mux)

	// Apply middleware
	h := middleware.Chain(mux, &log.Logger, cfg.Server.RequestTimeout)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	// Start gRPC server
	grpcServer := grpc.NewServer()
	handler.RegisterDistributionServiceServer(grpcServer, handler.NewGRPCHandler(distributionService, routingService, log.Logger))
	reflection.Register(grpcServer)

	grpcListener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
	if err != nil {
		return fmt.Errorf("failed to create gRPC listener: %w", err)
	}

	go func() {
		log.Info().Int("port", cfg.Server.GRPCPort).Msg("Starting gRPC server")
		if err := grpcServer.Serve(grpcListener); err != nil {
			errCh <- fmt.Errorf("gRPC server failed: %w", err)
		}
	}()

	// Graceful shutdown
	select {
	case <-ctx.Done():
	case err = <-errCh:
		log.Error().Err(err).Msg("Server error")
	}

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Error().Err(shutdownErr).Msg("HTTP server shutdown failed")
	}

	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(cfg.Server.ShutdownTimeout):
		grpcServer.Stop()
	}

	log.Info().Msg("Server stopped")
	return err
}
