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

	"github.com/zowe/zowe-cli-sub009/internal/api"
	"github.com/zowe/zowe-cli-sub009/internal/auth"
	"github.com/zowe/zowe-cli-sub009/internal/config"
	"github.com/zowe/zowe-cli-sub009/internal/emulator"
	"github.com/zowe/zowe-cli-sub009/internal/logging"
	"github.com/zowe/zowe-cli-sub009/internal/tls"
)

func main() {
	configFile := flag.String("config", "", "Path to config file")
	seedFile := flag.String("seed", "", "Seed file with definitions and workflows (overrides server.seed_file)")
	addr := flag.String("addr", "", "Listen address (overrides server.addr)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Configuration loading failed: %v", err)
	}
	if *seedFile != "" {
		cfg.Server.SeedFile = *seedFile
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	logger, err := logging.New(logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format, File: cfg.Logging.File})
	if err != nil {
		log.Fatalf("Logger initialization failed: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	backend := emulator.New()
	if cfg.Server.SeedFile != "" {
		seed, err := emulator.LoadSeedFile(cfg.Server.SeedFile)
		if err != nil {
			logger.Error("failed to load seed file", "path", cfg.Server.SeedFile, "error", err)
			os.Exit(1)
		}
		keys, err := seed.Apply(ctx, backend)
		if err != nil {
			logger.Error("failed to apply seed", "error", err)
			os.Exit(1)
		}
		logger.Info("seed applied", "definitions", len(seed.Definitions), "workflows", len(keys))
	}

	var guards []echo.MiddlewareFunc
	if cfg.Server.DevBypass || cfg.Auth.User != "" || cfg.Auth.Issuer != "" {
		authz, err := auth.New(ctx, cfg, logger)
		if err != nil {
			logger.Error("failed to initialize auth", "error", err)
			os.Exit(1)
		}
		guards = append(guards, echo.WrapMiddleware(authz.RequireAuth))
	} else {
		logger.Warn("no credentials configured, the emulator accepts anonymous requests")
	}

	e := api.NewRouter(backend, "zwf-emulator", guards...)
	e.Use(middleware.RequestID())

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      e,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	if cfg.TLS.Enable {
		if created, err := tls.EnsureCertificate(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.Hostnames); err != nil {
			logger.Error("failed to prepare certificate", "error", err)
			os.Exit(1)
		} else if created {
			logger.Info("generated self-signed certificate", "cert", cfg.TLS.CertFile)
		}
		server.TLSConfig, err = tls.ServerConfig(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		if err != nil {
			logger.Error("failed to load certificate", "error", err)
			os.Exit(1)
		}
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("emulator starting", "address", server.Addr, "tls", cfg.TLS.Enable)
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
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("server shutdown error", "error", err)
			_ = server.Close()
		}
		logger.Info("emulator stopped")
	}
}
