package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"pdf_stream_proxy/internal/admin"
	"pdf_stream_proxy/internal/cache"
	"pdf_stream_proxy/internal/config"
	"pdf_stream_proxy/internal/limits"
	"pdf_stream_proxy/internal/obs"
	"pdf_stream_proxy/internal/proxy"
	"pdf_stream_proxy/internal/server"
	"pdf_stream_proxy/internal/upstream"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "pdfproxy",
		Short: "Range-aware caching proxy for remotely stored PDFs",
	}
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the proxy server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serve() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	warnings, err := config.Validate(cfg)
	if err != nil {
		return err
	}
	if err := obs.SetupLogging(cfg.Log.Level, cfg.Log.JSON); err != nil {
		return err
	}
	for _, warning := range warnings {
		log.Warn(warning)
	}

	metrics := obs.NewMetrics()

	store := cache.NewMemoryStore(cfg.Cache.MaxSizeBytes, config.Duration(cfg.Cache.TTLMS))
	store.SetEvictHook(func(reason string, _ int64) {
		metrics.RecordCacheEviction(reason)
	})
	metrics.SetCacheStats(store.Stats())

	var coalescer *cache.Coalescer
	if cfg.Cache.CoalesceEnabled {
		coalescer = cache.NewCoalescer(cfg.Cache.MaxFlights)
	}

	fetcher := upstream.NewFetcher(upstream.Config{
		HeadTimeout:        config.Duration(cfg.Upstream.HeadTimeoutMS),
		GetTimeout:         config.Duration(cfg.Upstream.GetTimeoutMS),
		LengthMemoTTL:      config.Duration(cfg.Upstream.LengthMemoTTLMS),
		InsecureSkipVerify: cfg.Upstream.InsecureSkipVerify,
	}, metrics)
	defer fetcher.Close()

	handler := &proxy.Handler{
		Cache:        store,
		Coalescer:    coalescer,
		Fetcher:      fetcher,
		Metrics:      metrics,
		CacheControl: cfg.Proxy.CacheControl,
		CoalesceWait: config.Duration(cfg.Cache.CoalesceWaitMS),
		MaxURLBytes:  cfg.Proxy.MaxURLBytes,
	}

	mux := http.NewServeMux()
	mux.Handle("/pdf-proxy", handler)
	mux.Handle("/metrics", metrics.Handler())
	if cfg.Admin.Token != "" {
		auth, err := admin.NewAuthenticator(admin.AuthConfig{Token: cfg.Admin.Token})
		if err != nil {
			return err
		}
		mux.Handle("/admin/", admin.NewHandler(admin.HandlerConfig{
			Store: store,
			Auth:  auth,
			RateLimiter: admin.NewRateLimiter(admin.RateLimitConfig{
				RPS:           cfg.Admin.RateLimitRPS,
				Burst:         cfg.Admin.RateLimitBurst,
				MaxFailures:   cfg.Admin.MaxAuthFailures,
				BlockDuration: config.Duration(cfg.Admin.AuthBlockMS),
			}),
		}))
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	serverLimits, err := limits.FromConfig(cfg.Limits)
	if err != nil {
		return err
	}
	inflight := server.NewInflightTracker()
	srv, err := server.Start(mux, cfg.ListenAddr, server.Options{
		Limits:   serverLimits,
		Shutdown: server.ShutdownFromConfig(cfg.Shutdown),
		Inflight: inflight,
	})
	if err != nil {
		return err
	}
	log.WithField("addr", srv.Addr).Info("listening")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	return srv.Shutdown()
}
