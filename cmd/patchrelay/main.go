// ABOUTME: Entry point for the PatchRelay patch decision service.
// ABOUTME: Handles initialization, configuration parsing, and starts the HTTP server.

package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jfeddern/PatchRelay/internal/cache"
	"github.com/jfeddern/PatchRelay/internal/engine"
	"github.com/jfeddern/PatchRelay/internal/metrics"
	"github.com/jfeddern/PatchRelay/internal/propagation"
	"github.com/jfeddern/PatchRelay/internal/providers"
	"github.com/jfeddern/PatchRelay/internal/server"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"
)

const (
	defaultRequestsPerSecond = 20
	defaultBurst             = 40
)

func main() {
	config, err := parseConfig(os.Args[1:], os.Getenv)
	if err != nil {
		log.Fatal(err)
	}

	// Set up structured logging
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		if parsed, err := logrus.ParseLevel(level); err == nil {
			logger.SetLevel(parsed)
		} else {
			logger.WithField("log_level", level).Warn("Invalid LOG_LEVEL, using info")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown gracefully
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Received shutdown signal")
		cancel()
	}()

	relay, err := NewRelay(ctx, config, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create relay")
	}

	if err := relay.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to start relay")
	}
}

// Tuning is the optional YAML file of evaluation and propagation parameters
type Tuning struct {
	Evaluation  engine.EvalOptions  `yaml:"evaluation"`
	Propagation propagation.Options `yaml:"propagation"`
	Concurrency int                 `yaml:"concurrency"`
	IntelTTL    time.Duration       `yaml:"intel_ttl"`
}

// LoadTuning reads a tuning file on top of the defaults
func LoadTuning(path string) (*Tuning, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading tuning file: %w", err)
	}

	t := &Tuning{
		Evaluation:  engine.DefaultEvalOptions(),
		Propagation: propagation.DefaultOptions(),
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(t); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing tuning file: %w", err)
	}
	if t.Evaluation.DelayDays < 0 || t.Evaluation.HorizonDays < 0 || t.Concurrency < 0 {
		return nil, fmt.Errorf("tuning values must not be negative")
	}
	return t, nil
}

func parseConfig(args []string, getenv func(string) string) (*engine.Config, error) {
	config := &engine.Config{
		Eval:        engine.DefaultEvalOptions(),
		Propagation: propagation.DefaultOptions(),
	}

	var tuningFile, timezone string
	fs := flag.NewFlagSet("patchrelay", flag.ContinueOnError)
	fs.StringVar(&config.Mode, "mode", "local", "Inventory mode: local, s3, kube, postgres or mock")
	fs.IntVar(&config.Port, "port", 9090, "Port to expose the API and metrics on")
	fs.StringVar(&config.InventoryFile, "inventory-file", "", "Path to JSON or YAML inventory snapshot (local mode)")
	fs.StringVar(&config.IntelDir, "intel-dir", "", "Directory with KEV, EPSS and business impact feeds")
	fs.DurationVar(&config.RefreshInterval, "refresh-interval", 5*time.Minute, "Interval to re-evaluate the inventory")
	fs.BoolVar(&config.MockMode, "mock", false, "Serve the built-in demo hospital network (no external calls)")
	fs.StringVar(&config.S3Bucket, "s3-bucket", "", "S3 bucket holding the inventory snapshot (s3 mode)")
	fs.StringVar(&config.S3Key, "s3-key", "", "S3 object key of the inventory snapshot (s3 mode)")
	fs.StringVar(&config.AWSRegion, "aws-region", "", "AWS region for S3")
	fs.StringVar(&config.DatabaseURL, "database-url", "", "PostgreSQL CMDB connection URL (postgres mode)")
	fs.StringVar(&config.KubeNamespace, "kube-namespace", "default", "Namespace of the inventory ConfigMap (kube mode)")
	fs.StringVar(&config.KubeConfigMap, "kube-configmap", "", "Name of the inventory ConfigMap (kube mode)")
	fs.StringVar(&config.KubeKey, "kube-key", "", "ConfigMap key holding the snapshot (default inventory.yaml, .yml or .json)")
	fs.StringVar(&timezone, "timezone", "", "IANA time zone for maintenance windows (default local)")
	fs.StringVar(&tuningFile, "config", "", "Optional YAML tuning file")
	fs.DurationVar(&config.IntelTTL, "intel-ttl", cache.DefaultTTL, "How long loaded threat intel is reused")
	fs.IntVar(&config.Concurrency, "concurrency", 10, "Assets evaluated in parallel")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Override with environment variables if set
	if v := getenv("MODE"); v != "" {
		config.Mode = v
	}
	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			log.Printf("Invalid PORT environment variable: %s", v)
		} else {
			config.Port = port
		}
	}
	if v := getenv("INVENTORY_FILE"); v != "" {
		config.InventoryFile = v
	}
	if v := getenv("INTEL_DIR"); v != "" {
		config.IntelDir = v
	}
	if v := getenv("REFRESH_INTERVAL"); v != "" {
		if interval, err := time.ParseDuration(v); err == nil {
			config.RefreshInterval = interval
		}
	}
	if v := getenv("MOCK_MODE"); v == "true" || v == "1" {
		config.MockMode = true
	}
	if v := getenv("S3_BUCKET"); v != "" {
		config.S3Bucket = v
	}
	if v := getenv("S3_KEY"); v != "" {
		config.S3Key = v
	}
	if v := getenv("AWS_REGION"); v != "" {
		config.AWSRegion = v
	}
	if v := getenv("DATABASE_URL"); v != "" {
		config.DatabaseURL = v
	}
	if v := getenv("KUBE_NAMESPACE"); v != "" {
		config.KubeNamespace = v
	}
	if v := getenv("KUBE_CONFIGMAP"); v != "" {
		config.KubeConfigMap = v
	}
	if v := getenv("KUBE_CONFIGMAP_KEY"); v != "" {
		config.KubeKey = v
	}
	if v := getenv("TIMEZONE"); v != "" {
		timezone = v
	}
	if v := getenv("CONFIG_FILE"); v != "" {
		tuningFile = v
	}

	config.Location = time.Local
	if timezone != "" {
		loc, err := time.LoadLocation(timezone)
		if err != nil {
			return nil, fmt.Errorf("invalid timezone %q: %w", timezone, err)
		}
		config.Location = loc
	}

	if tuningFile != "" {
		tuning, err := LoadTuning(tuningFile)
		if err != nil {
			return nil, err
		}
		config.Eval = tuning.Evaluation
		config.Propagation = tuning.Propagation
		if tuning.Concurrency > 0 {
			config.Concurrency = tuning.Concurrency
		}
		if tuning.IntelTTL > 0 {
			config.IntelTTL = tuning.IntelTTL
		}
	}

	// Validate configuration
	if config.RefreshInterval <= 0 {
		return nil, errors.New("refresh interval must be positive")
	}
	if config.MockMode {
		return config, nil
	}
	mode, err := providers.ParseMode(config.Mode)
	if err != nil {
		return nil, err
	}
	switch mode {
	case providers.ModeLocal:
		if config.InventoryFile == "" {
			return nil, errors.New("inventory file is required for local mode (unless using mock mode)")
		}
	case providers.ModeS3:
		if config.S3Bucket == "" || config.S3Key == "" {
			return nil, errors.New("S3 bucket and key are required for s3 mode")
		}
	case providers.ModeKube:
		if config.KubeConfigMap == "" {
			return nil, errors.New("ConfigMap name is required for kube mode")
		}
	case providers.ModePostgres:
		if config.DatabaseURL == "" {
			return nil, errors.New("database URL is required for postgres mode")
		}
	}

	return config, nil
}

type Relay struct {
	config    *engine.Config
	logger    *logrus.Logger
	inventory engine.InventorySource
	engine    *engine.Engine
	limiter   *rate.Limiter
}

func NewRelay(ctx context.Context, config *engine.Config, logger *logrus.Logger) (*Relay, error) {
	logger.WithFields(logrus.Fields{
		"mode":             config.Mode,
		"port":             config.Port,
		"mock":             config.MockMode,
		"refresh_interval": config.RefreshInterval,
		"timezone":         config.Location.String(),
	}).Info("Initializing PatchRelay")

	providerConfig := providers.ProviderConfigFrom(config)

	inventory, err := providers.CreateInventorySource(ctx, providerConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create inventory source: %w", err)
	}
	intelSource := providers.CreateIntelSource(providerConfig, inventory, logger)

	return &Relay{
		config:    config,
		logger:    logger,
		inventory: inventory,
		engine:    engine.NewEngine(inventory, intelSource, config, logger),
		limiter:   rate.NewLimiter(rate.Limit(defaultRequestsPerSecond), defaultBurst),
	}, nil
}

func (e *Relay) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", e.securityMiddleware(metrics.CreateMetricsHandler(e.engine, e.logger)))
	mux.HandleFunc("/decisions", e.securityMiddleware(server.CreateDecisionsHandler(e.engine, e.logger)))
	mux.HandleFunc("/decisions/{id}", e.securityMiddleware(server.DecisionHandler(e.engine, e.logger)))
	mux.HandleFunc("/propagation", e.securityMiddleware(server.PropagationHandler(e.engine, e.logger)))
	mux.HandleFunc("/health", e.securityMiddleware(e.healthHandler))
	return mux
}

func (e *Relay) Start(ctx context.Context) error {
	defer e.Close()

	// Start the decision engine
	go e.engine.Start(ctx)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", e.config.Port),
		Handler:           e.routes(),
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}

	go func() {
		<-ctx.Done()
		e.logger.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			e.logger.WithError(err).Warn("HTTP server shutdown failed")
		}
	}()

	e.logger.WithFields(logrus.Fields{
		"port": e.config.Port,
		"mode": e.config.Mode,
	}).Info("Starting HTTP server")

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}

	return nil
}

// Close releases resources held by the inventory source, such as a database pool
func (e *Relay) Close() {
	if closer, ok := e.inventory.(interface{ Close() }); ok {
		e.logger.WithField("source", e.inventory.Name()).Info("Closing inventory source")
		closer.Close()
	}
}

func (e *Relay) securityMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Security headers
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; script-src 'none'; object-src 'none'; frame-ancestors 'none'")

		// Only allow specific HTTP methods
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		if e.limiter != nil && !e.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}

		// Log the request
		e.logger.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"remote_ip":  r.RemoteAddr,
			"user_agent": r.UserAgent(),
		}).Debug("HTTP request received")

		next(w, r)
	}
}

func (e *Relay) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	_, last := e.engine.GetDecisions()
	if last.IsZero() {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprintf(w, `{"status":"starting"}`)
		return
	}
	fmt.Fprintf(w, `{"status":"ok","run_id":%q,"last_collection":%q}`, e.engine.RunID(), last.UTC().Format(time.RFC3339))
}
