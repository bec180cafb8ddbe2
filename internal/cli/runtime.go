package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sigil/keytool/internal/certify"
	"sigil/keytool/internal/config"
	"sigil/keytool/internal/console"
	"sigil/keytool/internal/keyring"
	"sigil/keytool/internal/platform/privacylog"
	"sigil/keytool/internal/platform/ratelimit"
	"sigil/keytool/internal/seal"
	"sigil/keytool/internal/trust"
)

// runtime holds the assembled collaborators for one command
// invocation.
type runtime struct {
	cfg     config.Config
	log     *slog.Logger
	ring    *keyring.Store
	trust   *trust.Store
	sealer  *seal.Protector
	signSvc *certify.Service
	term    *console.Terminal
	metrics *http.Server
}

func newRuntime(opts *options) (*runtime, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	// The listing owns stdout; logs go to stderr.
	log := slog.New(privacylog.WrapHandler(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	})))

	if err := os.MkdirAll(cfg.HomeDir, 0o700); err != nil {
		return nil, fmt.Errorf("create home directory: %w", err)
	}

	reg := prometheus.NewRegistry()
	ring, err := keyring.Open(cfg.RingDir(), reg)
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}
	trustStore, err := trust.Open(cfg.TrustPath())
	if err != nil {
		return nil, fmt.Errorf("open trust store: %w", err)
	}

	attempts := ratelimit.New(cfg.Unlock.AttemptsPerMinute, cfg.Unlock.AttemptBurst, 10*time.Minute)
	sealer := seal.New(seal.Params{
		Time:     cfg.Unlock.KDFTime,
		MemoryKB: cfg.Unlock.KDFMemoryKB,
		Threads:  cfg.Unlock.KDFThreads,
	}, attempts)

	term := console.New(os.Stdin, os.Stdout, opts.assumeYes)
	signSvc := certify.New(ring, sealer, cfg.HashAlgorithm, term.ReadPassphrase)

	rt := &runtime{
		cfg:     cfg,
		log:     log,
		ring:    ring,
		trust:   trustStore,
		sealer:  sealer,
		signSvc: signSvc,
		term:    term,
	}
	if cfg.MetricsAddress != "" {
		rt.metrics = startMetrics(cfg.MetricsAddress, reg, log)
	}
	return rt, nil
}

func (rt *runtime) Close() {
	rt.signSvc.Forget()
	if rt.metrics != nil {
		if err := rt.metrics.Close(); err != nil {
			rt.log.Warn("metrics server close", "error", err)
		}
	}
}

func startMetrics(addr string, reg *prometheus.Registry, log *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("metrics server stopped", "error", err)
		}
	}()
	log.Debug("metrics server listening", "addr", addr)
	return srv
}
