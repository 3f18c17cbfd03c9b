// Command coordinatord runs a single edge-compute swarm coordinator: the
// HTTP boundary plus every background timer described in §5 of the
// coordinator design, wired together by the coordinator package.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"edgecoord/config"
	"edgecoord/coordinator"
	"edgecoord/observability/logging"
	telemetry "edgecoord/observability/otel"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "path to coordinator configuration (YAML)")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	slogger := logging.Setup("coordinator", cfg.Environment)

	otlpEndpoint := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	otlpHeaders := telemetry.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	insecure := true
	if value := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE")); value != "" {
		if parsed, parseErr := strconv.ParseBool(value); parseErr == nil {
			insecure = parsed
		}
	}
	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "coordinator-" + cfg.CoordinatorID,
		Environment: cfg.Environment,
		Endpoint:    otlpEndpoint,
		Insecure:    insecure,
		Headers:     otlpHeaders,
		Metrics:     true,
		Traces:      true,
	})
	if err != nil {
		slogger.Error("failed to initialise telemetry", "error", err)
		os.Exit(1)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	c, err := coordinator.New(cfg)
	if err != nil {
		slogger.Error("failed to build coordinator", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErrCh := make(chan error, 1)
	go func() {
		serveErrCh <- c.Serve(ctx)
	}()

	select {
	case <-ctx.Done():
		slogger.Info("coordinator: shutdown signal received")
	case err := <-serveErrCh:
		if err != nil {
			slogger.Error("coordinator: serve failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.Shutdown(shutdownCtx); err != nil {
		slogger.Error("coordinator: graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}
