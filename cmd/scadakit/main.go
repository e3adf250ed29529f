package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/scadakit/scadakit/config"
	"github.com/scadakit/scadakit/feed"
	"github.com/scadakit/scadakit/internal/logging"
	"github.com/scadakit/scadakit/panel"
	"github.com/scadakit/scadakit/telemetry"
)

func main() {
	cfgPath := flag.String("config", "panel.yaml", "Path to configuration file")
	configCheck := flag.Bool("config-check", false, "Validate configuration and exit")
	liveView := flag.Bool("live-view", false, "Enable the live view web interface")
	liveViewListen := flag.String("live-view-listen", ":18090", "Live view listen address")
	user := flag.String("user", "operator", "Operator user name")
	roles := flag.String("roles", "operator", "Comma separated operator roles")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		if *configCheck {
			fmt.Fprintf(os.Stderr, "configuration invalid: %v\n", err)
			os.Exit(1)
		}
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if *configCheck {
		fmt.Println("Configuration check completed successfully.")
		os.Exit(0)
	}

	logger, cleanup, err := logging.Setup(cfg.Logging)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to setup logger")
	}
	defer cleanup()
	log.Logger = logger

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	collector, err := newCollector(cfg.Telemetry)
	if err != nil {
		logger.Warn().Err(err).Msg("telemetry disabled")
		collector = telemetry.Noop()
	}

	operator := panel.User{
		ID:    *user,
		Name:  *user,
		Level: "operator",
		Roles: parseRoles(*roles),
	}

	// The feed doubles as the command sink once started; the publish helpers
	// tolerate a nil feed so the panel stays usable without a broker.
	var source *feed.Feed
	sinks := panel.Sinks{
		Command: func(deviceID, parameter string, value interface{}) {
			source.PublishCommand(deviceID, parameter, value)
		},
		AlarmAcknowledge: func(alarmID string) {
			source.PublishAcknowledge(alarmID)
		},
		EmergencyStop: func() {
			source.PublishEmergencyStop()
		},
	}

	p, err := panel.New(cfg, sinks, operator, logger, panel.WithCollector(collector))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create panel")
	}
	defer p.Close()

	if cfg.Feed.Enabled {
		source, err = feed.New(cfg.Feed, p, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create telemetry feed")
		}
		if err := source.Start(); err != nil {
			logger.Fatal().Err(err).Msg("failed to start telemetry feed")
		}
		defer source.Close()
	}

	if *liveView || cfg.LiveView.Enabled {
		listen := cfg.LiveView.Listen
		if *liveView {
			listen = *liveViewListen
		}
		if err := p.EnableLiveView(listen); err != nil {
			logger.Fatal().Err(err).Msg("failed to start live view")
		}
	}

	if cfg.Telemetry.Enabled && cfg.Telemetry.Listen != "" {
		go serveMetrics(cfg.Telemetry.Listen)
	}

	<-ctx.Done()
	logger.Info().Msg("shutting down")
}

func newCollector(cfg config.TelemetryConfig) (telemetry.Collector, error) {
	if !cfg.Enabled {
		return telemetry.Noop(), nil
	}
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch provider {
	case "", "prometheus":
		return telemetry.NewPrometheusCollector(nil)
	default:
		return telemetry.Noop(), fmt.Errorf("unsupported telemetry provider %q", cfg.Provider)
	}
}

func serveMetrics(listen string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(listen, mux); err != nil {
		log.Error().Err(err).Msg("metrics server stopped")
	}
}

func parseRoles(raw string) []config.Role {
	parts := strings.Split(raw, ",")
	roles := make([]config.Role, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			roles = append(roles, config.Role(trimmed))
		}
	}
	return roles
}
