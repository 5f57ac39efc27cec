// Command pza-cli is an interactive client for Panduza platforms.
//
// It connects to the platform broker, loads the announced structure and
// lets the user list, read, write and watch attributes.
//
// Usage:
//
//	pza-cli [flags] [command [args...]]
//
// Without a command, an interactive shell is started. With a command, that
// single command is run and the program exits.
//
// Flags:
//
//	-config string      YAML configuration file
//	-address string     Broker address (default "127.0.0.1")
//	-port int           Broker port (default 1883)
//	-namespace string   Topic namespace
//	-backend string     Transport backend: mqtt, nats (default "mqtt")
//	-insecure           Disable mutual TLS
//	-discover           Find the platform via mDNS instead of -address
//	-trace string       Write a protocol trace file (.plog)
//	-trace-console      Also log trace events through the console logger
//	-metrics string     Serve Prometheus metrics on this address
//	-log-level string   Log level: debug, info, warn, error (default "info")
//
// Examples:
//
//	# Interactive shell against a local platform without TLS
//	pza-cli -insecure
//
//	# One-shot write through a discovered platform
//	pza-cli -discover set pza/psu/control/enable on
//
//	# Record a trace for pza-log
//	pza-cli -insecure -trace session.plog
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/panduza/panduza-go/cmd/pza-cli/interactive"
	"github.com/panduza/panduza-go/pkg/cert"
	"github.com/panduza/panduza-go/pkg/discovery"
	"github.com/panduza/panduza-go/pkg/log"
	"github.com/panduza/panduza-go/pkg/reactor"
)

// Options holds the command-line settings.
type Options struct {
	ConfigFile string
	Address    string
	Port       uint
	Namespace  string
	Backend    string
	Insecure   bool
	Discover   bool
	Interface  string
	CACert     string
	Cert       string
	Key        string
	TraceFile  string
	TraceLog   bool
	Metrics    string
	LogLevel   string
}

var opts Options

func init() {
	flag.StringVar(&opts.ConfigFile, "config", "", "YAML configuration file")
	flag.StringVar(&opts.Address, "address", "", "Broker address (default 127.0.0.1)")
	flag.UintVar(&opts.Port, "port", 0, "Broker port (default 1883)")
	flag.StringVar(&opts.Namespace, "namespace", "", "Topic namespace")
	flag.StringVar(&opts.Backend, "backend", "", "Transport backend: mqtt, nats")
	flag.BoolVar(&opts.Insecure, "insecure", false, "Disable mutual TLS")
	flag.BoolVar(&opts.Discover, "discover", false, "Find the platform via mDNS")
	flag.StringVar(&opts.Interface, "interface", "", "Network interface for mDNS discovery")
	flag.StringVar(&opts.CACert, "ca", "", "Root CA certificate (default ~/.panduza/certificate/root_ca_certificate.pem)")
	flag.StringVar(&opts.Cert, "cert", "", "Client certificate (default ~/.panduza/certificate/client_certificate.pem)")
	flag.StringVar(&opts.Key, "key", "", "Client private key (default ~/.panduza/keys/client_private_key.pem)")
	flag.StringVar(&opts.TraceFile, "trace", "", "Write a protocol trace file")
	flag.BoolVar(&opts.TraceLog, "trace-console", false, "Also log trace events (use with -log-level debug)")
	flag.StringVar(&opts.Metrics, "metrics", "", "Serve Prometheus metrics on this address (e.g. :9100)")
	flag.StringVar(&opts.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
}

func main() {
	flag.Parse()

	logger := setupLogging(opts.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, cleanup, err := buildConfig(ctx, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	logger.Info("connecting", "address", cfg.Address, "port", cfg.Port, "backend", cfg.Backend)
	r, err := reactor.Connect(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer r.Close()
	logger.Info("connected", "attributes", r.Structure().Len(), "source", fmt.Sprintf("0x%04x", r.Source()))

	if opts.Metrics != "" {
		serveMetrics(opts.Metrics, cfg.Registerer.(prometheus.Gatherer), logger)
	}

	// One-shot mode
	if flag.NArg() > 0 {
		shell := interactive.New(r, os.Stdout)
		defer shell.Close()
		shell.Exec(ctx, strings.Join(flag.Args(), " "))
		return
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received signal", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	shell := interactive.New(r, nil)
	defer shell.Close()
	if err := shell.Run(ctx, cancel); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setupLogging(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger
}

// buildConfig layers defaults, the config file, discovery and flags.
func buildConfig(ctx context.Context, logger *slog.Logger) (reactor.Config, func(), error) {
	cleanup := func() {}

	cfg := reactor.DefaultConfig()
	if opts.ConfigFile != "" {
		loaded, err := reactor.LoadConfig(opts.ConfigFile)
		if err != nil {
			return cfg, cleanup, err
		}
		cfg = loaded
	}

	if opts.Discover {
		if err := applyDiscovery(ctx, &cfg, logger); err != nil {
			return cfg, cleanup, err
		}
	}

	if opts.Address != "" {
		cfg.Address = opts.Address
	}
	if opts.Port != 0 {
		cfg.Port = uint16(opts.Port)
	}
	if opts.Namespace != "" {
		cfg.Namespace = opts.Namespace
	}
	if opts.Backend != "" {
		cfg.Backend = opts.Backend
	}
	if opts.Insecure {
		cfg.SecurityDisabled = true
	}

	if !cfg.SecurityDisabled {
		defaults, err := cert.UserDefaultPaths(cert.DefaultRole)
		if err != nil {
			return cfg, cleanup, err
		}
		cfg.CACertificatePath = firstNonEmpty(opts.CACert, cfg.CACertificatePath, defaults.RootCA)
		cfg.ClientCertificatePath = firstNonEmpty(opts.Cert, cfg.ClientCertificatePath, defaults.Certificate)
		cfg.ClientPrivateKeyPath = firstNonEmpty(opts.Key, cfg.ClientPrivateKeyPath, defaults.PrivateKey)
	}

	cfg.Logger = logger

	var sinks []log.Logger
	var fl *log.FileLogger
	if opts.TraceLog {
		sinks = append(sinks, log.NewSlogAdapter(logger))
	}
	if opts.TraceFile != "" {
		var err error
		if fl, err = log.NewFileLogger(opts.TraceFile); err != nil {
			return cfg, cleanup, fmt.Errorf("failed to open trace file: %w", err)
		}
		sinks = append(sinks, fl)
		logger.Info("protocol trace enabled", "file", fl.Path())
	}
	if len(sinks) > 0 {
		trace := log.NewMultiLogger(sinks...)
		cfg.Trace = trace
		cleanup = func() {
			if err := trace.Close(); err != nil {
				logger.Warn("closing trace", "error", err)
			}
			if fl != nil && fl.Dropped() > 0 {
				logger.Warn("trace events dropped", "file", fl.Path(), "count", fl.Dropped())
			}
		}
	}

	if opts.Metrics != "" {
		cfg.Registerer = prometheus.NewRegistry()
	}

	return cfg, cleanup, nil
}

// applyDiscovery points cfg at the first platform found via mDNS.
func applyDiscovery(ctx context.Context, cfg *reactor.Config, logger *slog.Logger) error {
	browser := discovery.NewBrowser(discovery.BrowserConfig{
		Interface: opts.Interface,
		Timeout:   3 * time.Second,
		Logger:    logger,
	})
	platforms, err := browser.FindAll(ctx)
	if err != nil {
		return fmt.Errorf("discovery failed: %w", err)
	}
	var usable []*discovery.PlatformService
	for _, p := range platforms {
		if err := p.Compatible(); err != nil {
			logger.Warn("skipping platform", "instance", p.InstanceName, "error", err)
			continue
		}
		usable = append(usable, p)
	}
	if len(usable) == 0 {
		return errors.New("no compatible platform found via mDNS")
	}

	p := usable[0]
	for _, other := range usable[1:] {
		logger.Info("ignoring additional platform", "instance", other.InstanceName, "endpoint", other.Endpoint())
	}
	logger.Info("discovered platform", "instance", p.InstanceName, "endpoint", p.Endpoint(), "version", p.Version)

	cfg.Address = p.Address()
	cfg.Port = p.Port
	if cfg.Port == 0 {
		cfg.Port = discovery.DefaultPort
	}
	if p.Namespace != "" {
		cfg.Namespace = p.Namespace
	}
	if p.Backend != "" {
		cfg.Backend = p.Backend
	}
	cfg.SecurityDisabled = p.SecurityDisabled
	return nil
}

func serveMetrics(addr string, g prometheus.Gatherer, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	logger.Info("serving metrics", "address", addr)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
