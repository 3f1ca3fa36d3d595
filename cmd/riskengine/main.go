// Command riskengine is the composition root for the position risk and
// liquidation-protection engine. It loads configuration, wires
// telemetry/logging, constructs the Engine, and runs the monitor loop
// until a shutdown signal. It adds no HTTP/gRPC handler surface — spec
// §1 scopes that out; this mirrors services/lendingd's wiring shape
// without its transport layer.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/nhbchain/riskengine/alert"
	"github.com/nhbchain/riskengine/config"
	"github.com/nhbchain/riskengine/correlation"
	"github.com/nhbchain/riskengine/engine"
	"github.com/nhbchain/riskengine/monitor"
	"github.com/nhbchain/riskengine/observability/logging"
	telemetry "github.com/nhbchain/riskengine/observability/otel"
	"github.com/nhbchain/riskengine/position"
	"github.com/nhbchain/riskengine/price"
	"github.com/nhbchain/riskengine/price/httpadapter"
	"github.com/nhbchain/riskengine/stress"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "config/riskengine.yaml", "path to risk engine config")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("RISKENGINE_ENV"))
	logger := logging.Setup("riskengine", env)

	otlpEndpoint := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	otlpHeaders := telemetry.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	insecure := true
	if value := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE")); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			insecure = parsed
		}
	}
	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "riskengine",
		Environment: env,
		Endpoint:    otlpEndpoint,
		Insecure:    insecure,
		Headers:     otlpHeaders,
		Metrics:     true,
		Traces:      true,
	})
	if err != nil {
		log.Fatalf("init telemetry: %v", err)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	eng, err := build(cfg, logger)
	if err != nil {
		log.Fatalf("build engine: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go eng.Monitor.Run(ctx)
	logger.Info("risk engine monitor loop started")

	<-ctx.Done()
	logger.Info("shutdown signal received")
	eng.Monitor.Stop()
	if err := eng.Alerts.Close(); err != nil {
		logger.Warn("closing alert audit sink", slog.String("error", err.Error()))
	}
}

func build(cfg config.Config, logger *slog.Logger) (*engine.Engine, error) {
	adapters := make([]price.Adapter, 0, len(cfg.PriceFeed.Oracles))
	for _, o := range cfg.PriceFeed.Oracles {
		if !o.Enabled || o.Endpoint == "" {
			continue
		}
		timeout := time.Duration(o.TimeoutS * float64(time.Second))
		adapters = append(adapters, httpadapter.New(o.ID, o.Endpoint, o.APIKey, timeout, 0))
	}

	aggregator, err := price.New(cfg.PriceFeedConfig(), adapters, logger)
	if err != nil {
		return nil, err
	}

	store := position.NewStore(cfg.Monitoring.MaxConcurrentPositions)
	alerts := alert.New(cfg.AlertThresholds(), cfg.AuditLogPath, logger)
	monitorLoop := monitor.New(cfg.MonitorConfig(), store, aggregator, alerts, logger)

	correlationEngine, err := correlation.New(cfg.CorrelationConfig())
	if err != nil {
		return nil, err
	}

	stressCfg, err := cfg.StressConfig()
	if err != nil {
		return nil, err
	}
	stressEngine, err := stress.New(stressCfg)
	if err != nil {
		return nil, err
	}

	return engine.New(store, aggregator, alerts, monitorLoop, correlationEngine, stressEngine, logger), nil
}
