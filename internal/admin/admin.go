package admin

import (
	"net/http"

	"pdf_stream_proxy/internal/cache"
)

type HandlerConfig struct {
	Store       *cache.MemoryStore
	Auth        *Authenticator
	RateLimiter *RateLimiter
}

func NewHandler(cfg HandlerConfig) http.Handler {
	h := &handler{
		store:       cfg.Store,
		auth:        cfg.Auth,
		rateLimiter: cfg.RateLimiter,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/admin/cache/stats", h.handleStats)
	mux.HandleFunc("/admin/cache/purge", h.handlePurge)
	mux.HandleFunc("/admin/cache/flush", h.handleFlush)
	h.mux = mux
	return h
}
