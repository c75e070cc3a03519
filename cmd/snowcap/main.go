// Command snowcap runs the HTTP and gRPC servers that expose the
// Plan/Apply pipeline, wiring a warehouse session, telemetry, and the
// resource catalog the way the teacher's cmd/app/main.go wires a
// bootstrap.Service — minus the Launcher/ServerManager abstraction
// itself, which lived in lib-commons (dropped, see DESIGN.md) and is
// replaced here by a plain signal.Notify-driven shutdown.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/snowcapio/snowcap/internal/catalog"
	"github.com/snowcapio/snowcap/internal/config"
	"github.com/snowcapio/snowcap/internal/logging"
	"github.com/snowcapio/snowcap/internal/sqlsession"
	"github.com/snowcapio/snowcap/internal/telemetry"
	grpctransport "github.com/snowcapio/snowcap/internal/transport/grpc"
	httptransport "github.com/snowcapio/snowcap/internal/transport/http"
)

// processConfig is this process's top-level env-bound configuration,
// the Go analogue of the teacher's bootstrap.Config.
type processConfig struct {
	EnvName  string `env:"ENV_NAME"`
	LogLevel string `env:"LOG_LEVEL"`

	HTTPAddress string `env:"SNOWCAP_HTTP_ADDRESS"`
	GRPCAddress string `env:"SNOWCAP_GRPC_ADDRESS"`
}

func (c processConfig) httpAddress() string {
	if c.HTTPAddress != "" {
		return c.HTTPAddress
	}

	return ":3002"
}

func (c processConfig) grpcAddress() string {
	if c.GRPCAddress != "" {
		return c.GRPCAddress
	}

	return ":3003"
}

func main() {
	config.LoadDotEnv()

	var procCfg processConfig
	if err := config.SetFromEnvVars(&procCfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load process config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewZapLogger(procCfg.EnvName, procCfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	var telCfg telemetry.Config
	if err := config.SetFromEnvVars(&telCfg); err != nil {
		logger.Fatalf("failed to load telemetry config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider, err := telemetry.Init(ctx, telCfg)
	if err != nil {
		logger.Fatalf("failed to initialize telemetry: %v", err)
	}
	defer provider.Shutdown(context.Background())

	var sessCfg sqlsession.Config
	if err := config.SetFromEnvVars(&sessCfg); err != nil {
		logger.Fatalf("failed to load session config: %v", err)
	}

	hub := sqlsession.NewConnectionHub(sessCfg, logger)
	defer hub.Close()

	registry := catalog.DefaultRegistry()

	httpServer := httptransport.NewServer(registry, nil, nil, logger, httptransport.NewHubSessionOpener(hub, logger))
	grpcServer := grpctransport.NewServer(registry, nil, nil, logger, grpctransport.NewHubSessionOpener(hub, logger))

	router := httpServer.NewRouter()
	grpcSrv := grpctransport.NewGRPCServer(grpcServer)

	errs := make(chan error, 2)

	go func() {
		logger.Infof("HTTP server listening on %s", procCfg.httpAddress())

		if err := router.Listen(procCfg.httpAddress()); err != nil {
			errs <- fmt.Errorf("http server: %w", err)
		}
	}()

	go func() {
		lis, err := net.Listen("tcp", procCfg.grpcAddress())
		if err != nil {
			errs <- fmt.Errorf("grpc listener: %w", err)
			return
		}

		logger.Infof("gRPC server listening on %s", procCfg.grpcAddress())

		if err := grpcSrv.Serve(lis); err != nil {
			errs <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errs:
		if !errors.Is(err, context.Canceled) {
			logger.Errorf("server error: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := router.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Errorf("http shutdown: %v", err)
	}

	grpcSrv.GracefulStop()
}
