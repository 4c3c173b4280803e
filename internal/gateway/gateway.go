// ABOUTME: Gateway wires the store, provider orchestrator, and watch endpoints into one server
// ABOUTME: Owns the HTTP server lifecycle including optional Tailscale listeners

package gateway

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"
	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"

	"github.com/2389/spark-gateway/internal/assets"
	"github.com/2389/spark-gateway/internal/auth"
	"github.com/2389/spark-gateway/internal/chat"
	"github.com/2389/spark-gateway/internal/config"
	"github.com/2389/spark-gateway/internal/provider"
	"github.com/2389/spark-gateway/internal/settings"
	"github.com/2389/spark-gateway/internal/store"
	"github.com/2389/spark-gateway/internal/watch"
)

// Gateway is the main spark-gateway server.
type Gateway struct {
	config       *config.Config
	store        store.Store
	orchestrator *chat.Orchestrator
	reporter     *chat.Reporter
	hub          *watch.Hub
	httpServer   *http.Server
	tsnetServer  *tsnet.Server
	logger       *slog.Logger
	startedAt    time.Time
}

// initStore opens the SQLite store, honoring SPARK_DB_PATH as an override.
func initStore(cfg *config.Config) (store.Store, error) {
	dbPath := cfg.Database.Path
	if envPath := os.Getenv("SPARK_DB_PATH"); envPath != "" {
		dbPath = envPath
	}

	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// New creates a Gateway backed by the SQLite database named in cfg.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	s, err := initStore(cfg)
	if err != nil {
		return nil, err
	}
	return NewWithStore(cfg, s, logger), nil
}

// NewWithStore creates a Gateway on top of an existing store. The gateway
// takes ownership of s and closes it on Shutdown.
func NewWithStore(cfg *config.Config, s store.Store, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}

	hub := watch.NewHub(logger)
	registry := provider.NewRegistry(provider.Options{Referer: cfg.Gateway.Referer})

	gw := &Gateway{
		config: cfg,
		store:  s,
		orchestrator: chat.NewOrchestrator(chat.Config{
			Settings:         s,
			Exchanges:        s,
			Registry:         registry,
			Timeout:          cfg.Gateway.RequestTimeout,
			MaxResponseBytes: cfg.Gateway.MaxResponseBytes,
			StripMarkdown:    cfg.Gateway.StripMarkdown,
			Logger:           logger,
		}),
		reporter:  chat.NewReporter(s, hub, logger),
		hub:       hub,
		logger:    logger,
		startedAt: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", gw.handleHealth)
	mux.HandleFunc("/health/ready", gw.handleReady)

	// The settings page is public; the API calls it makes are not.
	if page, err := assets.ConfigPage(configPageData()); err != nil {
		logger.Error("failed to render config page", "error", err)
	} else {
		mux.Handle("/config", page)
	}
	mux.Handle("/static/", http.StripPrefix("/static/", assets.FileServer()))

	api := http.NewServeMux()
	gw.registerAPIRoutes(api)

	if cfg.Auth.JWTSecret != "" {
		verifier := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
		mux.Handle("/api/", auth.HTTPAuthMiddleware(verifier)(api))
		logger.Info("JWT authentication enabled for /api routes")
	} else {
		mux.Handle("/api/", api)
		logger.Warn("JWT secret not configured, /api routes are unauthenticated")
	}

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw
}

// configPageData describes the built-in providers to the settings page.
func configPageData() assets.PageData {
	data := assets.PageData{
		DefaultProvider: string(provider.DefaultKind),
		SystemMessage:   settings.DefaultSystemMessage,
	}
	for _, kind := range provider.Kinds() {
		p := provider.ProfileFor(kind)
		data.Providers = append(data.Providers, assets.ProviderDefaults{
			Kind:      string(kind),
			Name:      p.DisplayName,
			BaseURL:   p.BaseURL,
			Model:     p.Model,
			WebSearch: p.SupportsWebSearch,
		})
	}
	return data
}

// Handler returns the root HTTP handler.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// setupListener creates the HTTP listener, on Tailscale when enabled.
func (g *Gateway) setupListener(ctx context.Context) (net.Listener, error) {
	if g.config.Tailscale.Enabled {
		return g.setupTailscaleListener(ctx)
	}

	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on HTTP address %s: %w", g.config.Server.HTTPAddr, err)
	}
	return ln, nil
}

// Run starts serving and blocks until ctx is cancelled or the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := g.setupListener(ctx)
	if err != nil {
		_ = g.store.Close()
		return err
	}

	g.logger.Info("HTTP server listening", "addr", ln.Addr().String())

	// Readiness is reported once at startup, before any watch link subscribes.
	g.reporter.Report(ctx)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		<-egCtx.Done()
		g.logger.Info("stopping HTTP server")
		return g.gracefulShutdown()
	})

	return eg.Wait()
}

func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// resolveTailscaleStateDir returns the configured state dir or the default under the home directory.
func resolveTailscaleStateDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory for tailscale state (set tailscale.state_dir explicitly): %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "spark-gateway", "tailscale"), nil
}

// resolveTailscaleAuthKey returns the configured auth key or TS_AUTHKEY.
func resolveTailscaleAuthKey(configured string) (string, error) {
	authKey := configured
	if authKey == "" {
		authKey = os.Getenv("TS_AUTHKEY")
	}
	if authKey == "" {
		return "", errors.New("tailscale auth key required: set auth_key in config or TS_AUTHKEY environment variable")
	}
	return authKey, nil
}

func (g *Gateway) setupTailscaleListener(ctx context.Context) (net.Listener, error) {
	tsCfg := g.config.Tailscale

	stateDir, err := resolveTailscaleStateDir(tsCfg.StateDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}

	authKey, err := resolveTailscaleAuthKey(tsCfg.AuthKey)
	if err != nil {
		return nil, err
	}

	g.tsnetServer = &tsnet.Server{
		Hostname:  tsCfg.Hostname,
		Dir:       stateDir,
		Ephemeral: tsCfg.Ephemeral,
		AuthKey:   authKey,
	}

	g.logger.Info("starting tailscale node", "hostname", tsCfg.Hostname, "state_dir", stateDir, "ephemeral", tsCfg.Ephemeral)
	status, err := g.tsnetServer.Up(ctx)
	if err != nil {
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("starting tailscale: %w", err)
	}
	g.logTailscaleStatus(tsCfg.Hostname, status)

	switch {
	case tsCfg.Funnel:
		g.logger.Info("enabling tailscale funnel (public HTTPS) on :443")
		ln, err := g.tsnetServer.ListenFunnel("tcp", ":443")
		if err != nil {
			_ = g.tsnetServer.Close()
			return nil, fmt.Errorf("listening on tailscale funnel: %w", err)
		}
		return ln, nil
	case tsCfg.HTTPS:
		return g.createTailscaleTLSListener()
	default:
		ln, err := g.tsnetServer.Listen("tcp", ":80")
		if err != nil {
			_ = g.tsnetServer.Close()
			return nil, fmt.Errorf("listening on tailscale HTTP port: %w", err)
		}
		return ln, nil
	}
}

func (g *Gateway) logTailscaleStatus(hostname string, status *ipnstate.Status) {
	var tsAddr, dnsName string
	if len(status.TailscaleIPs) > 0 {
		tsAddr = status.TailscaleIPs[0].String()
	} else {
		g.logger.Warn("tailscale node has no IP addresses assigned")
	}
	if status.Self != nil {
		dnsName = status.Self.DNSName
	}
	g.logger.Info("tailscale node ready", "hostname", hostname, "tailscale_ip", tsAddr, "dns_name", dnsName)
}

func (g *Gateway) createTailscaleTLSListener() (net.Listener, error) {
	g.logger.Info("enabling HTTPS with Tailscale certs on :443")
	ln, err := g.tsnetServer.Listen("tcp", ":443")
	if err != nil {
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("listening on tailscale HTTPS port: %w", err)
	}
	lc, err := g.tsnetServer.LocalClient()
	if err != nil {
		_ = ln.Close()
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("getting tailscale local client: %w", err)
	}
	return tls.NewListener(ln, &tls.Config{
		GetCertificate: lc.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}), nil
}

func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown gracefully stops the server and releases resources.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	// Event streams only end when their hub channel closes, so the hub goes
	// first or the HTTP server would wait on them until ctx expires.
	g.hub.Close()

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))

	if g.tsnetServer != nil {
		errs = appendCloseError(errs, "tailscale shutdown", g.tsnetServer.Close())
	}
	errs = appendCloseError(errs, "store close", g.store.Close())

	return errors.Join(errs...)
}

// handleHealth returns 200 OK if the server is running.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK once an API key is configured.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	status := g.reporter.Status(r.Context())
	if !status.Ready {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("no API key configured"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "ready (%s)", status.ProviderName)
}
