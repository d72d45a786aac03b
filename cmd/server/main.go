package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/zowe/zowe-cli-sub009/internal/api"
	"github.com/zowe/zowe-cli-sub009/internal/auth"
	"github.com/zowe/zowe-cli-sub009/internal/config"
	"github.com/zowe/zowe-cli-sub009/internal/logging"
	"github.com/zowe/zowe-cli-sub009/internal/mcp"
	"github.com/zowe/zowe-cli-sub009/internal/repository"
	"github.com/zowe/zowe-cli-sub009/internal/services"
	"github.com/zowe/zowe-cli-sub009/internal/tls"
)

const serviceName = "zwf-mcp"

var version = "dev"

func main() {
	ctx := context.Background()

	configFile := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Configuration loading failed: %v", err)
	}

	logger, err := logging.New(logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format, File: cfg.Logging.File})
	if err != nil {
		log.Fatalf("Logger initialization failed: %v", err)
	}
	defer logger.Sync()

	logger.Info("Configuration loaded",
		"zosmf", cfg.BaseURL(),
		"version", cfg.Zosmf.Version,
		"issuer", cfg.Auth.Issuer,
		"db", cfg.DB.Enable,
	)

	client, err := services.NewZosmfClient(cfg.BaseURL(),
		services.WithHTTPClient(auth.NewHTTPClient(ctx, auth.ClientConfigFrom(cfg))),
		services.WithVersion(cfg.Zosmf.Version),
		services.WithRateLimit(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst),
		services.WithLogger(logger),
	)
	if err != nil {
		log.Fatalf("z/OSMF client initialization failed: %v", err)
	}

	var runs repository.RunStore = repository.NewMemoryRunStore()
	if cfg.DB.Enable {
		store, pool, err := repository.OpenPostgresRunStore(ctx, cfg.DSN())
		if err != nil {
			log.Fatalf("Database initialization failed: %v", err)
		}
		defer pool.Close()
		runs = store
		logger.Info("Database connected")
	}

	workflowService := services.NewWorkflowService(client, logger,
		services.WithRunStore(runs),
		services.WithWaitDefaults(cfg.Polling.Interval, cfg.Polling.MaxInterval, cfg.Polling.Timeout),
	)

	authz, err := auth.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("auth initialization failed: %v", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(otelecho.Middleware(serviceName))

	e.GET("/health", api.NewHandler(serviceName, version).HandleHealth)

	// Mount MCP protocol handlers behind authentication
	mcpServer := mcp.NewServer(workflowService, version)
	mcpHandlers := http.NewServeMux()
	mcp.MountHTTPHandlers(mcpHandlers, mcpServer.GetMCPServer(), authz.RequireAuth)
	e.Any("/mcp", echo.WrapHandler(mcpHandlers))
	e.Any("/mcp/*", echo.WrapHandler(mcpHandlers))

	logger.Info("MCP protocol handlers mounted")

	server := &http.Server{
		Addr:        cfg.Server.Addr,
		Handler:     e,
		ReadTimeout: 15 * time.Second,
		// SSE streams stay open, so no write timeout.
		IdleTimeout: 60 * time.Second,
	}
	if cfg.TLS.Enable {
		if _, err := tls.EnsureCertificate(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.Hostnames); err != nil {
			log.Fatalf("TLS setup failed: %v", err)
		}
		server.TLSConfig, err = tls.ServerConfig(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		if err != nil {
			log.Fatalf("TLS setup failed: %v", err)
		}
	}

	// Graceful shutdown handling
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "address", server.Addr, "tls", cfg.TLS.Enable)
		if server.TLSConfig != nil {
			serverErrors <- server.ListenAndServeTLS("", "")
		} else {
			serverErrors <- server.ListenAndServe()
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
			os.Exit(1)
		}
	case sig := <-shutdown:
		logger.Info("Shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
			if err := server.Close(); err != nil {
				logger.Error("Server close error", "error", err)
			}
		}

		logger.Info("Server stopped gracefully")
	}
}
