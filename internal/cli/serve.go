package cli

import (
	"context"
	"fmt"
	"time"

	"personasim/internal/observability"
	"personasim/internal/pipeline"
	"personasim/internal/server"
	"personasim/internal/store"

	"github.com/spf13/cobra"
)

var serveFlags struct {
	port     string
	host     string
	tlsMode  string
	certFile string
	keyFile  string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start an HTTP server that exposes personas, questions, simulation, analysis,
comparison, framework rendering and export as JSON endpoints.

Available endpoints:
- GET /health, GET /stats
- GET, POST /personas; GET, DELETE /personas/{name}; POST /personas/extract
- GET, PUT /questions; POST /questions/extract
- POST /simulate, /analyze, /compare, /framework
- GET /export/{persona}?format=docx|pdf|markdown|text

TLS Configuration:
- Use --tls-mode to set TLS mode: disabled or server
- Use --cert-file and --key-file for TLS certificates`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveFlags.port, "port", "p", "", "Port to listen on (default from config)")
	serveCmd.Flags().StringVar(&serveFlags.host, "host", "", "Host to bind to (default from config)")
	serveCmd.Flags().StringVar(&serveFlags.tlsMode, "tls-mode", "", "TLS mode: disabled or server (overrides config)")
	serveCmd.Flags().StringVar(&serveFlags.certFile, "cert-file", "", "Server certificate file (PEM, overrides config)")
	serveCmd.Flags().StringVar(&serveFlags.keyFile, "key-file", "", "Server private key file (PEM, overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := getConfigFromContext(ctx)
	if err != nil {
		return err
	}
	logger, err := getLoggerFromContext(ctx)
	if err != nil {
		return err
	}

	overrides := []struct {
		flag string
		dst  *string
		val  string
	}{
		{"port", &cfg.Server.Port, serveFlags.port},
		{"host", &cfg.Server.Host, serveFlags.host},
		{"tls-mode", &cfg.Server.TLS.Mode, serveFlags.tlsMode},
		{"cert-file", &cfg.Server.TLS.CertFile, serveFlags.certFile},
		{"key-file", &cfg.Server.TLS.KeyFile, serveFlags.keyFile},
	}
	for _, o := range overrides {
		if cmd.Flags().Changed(o.flag) {
			*o.dst = o.val
		}
	}
	if err := cfg.ValidateTLSConfig(); err != nil {
		return fmt.Errorf("invalid TLS configuration: %w", err)
	}

	om, err := observability.NewObservabilityManager(observability.GetObservabilityConfig(cfg, Version), cfg)
	if err != nil {
		return fmt.Errorf("failed to start observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := om.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Observability shutdown failed", "error", err)
		}
	}()

	locker, closeLocker, err := store.NewLocker(ctx, cfg.Storage.Lock, logger)
	if err != nil {
		return err
	}
	defer func() { _ = closeLocker() }()

	clients, closeClients, err := pipeline.NewClients(cfg, om, logger)
	if err != nil {
		return fmt.Errorf("failed to create AI clients: %w", err)
	}
	defer func() { _ = closeClients() }()

	st := store.New(cfg.Storage.DataDir, locker, logger)
	p := pipeline.New(st, clients, pipeline.OptionsFromConfig(cfg), logger).WithMetrics(om)

	return server.NewServer(cfg, p, om, server.ConfigFromApp(cfg, Version), logger).Run(ctx)
}
