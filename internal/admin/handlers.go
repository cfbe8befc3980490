package admin

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"pdf_stream_proxy/internal/cache"
	"pdf_stream_proxy/internal/proxy"
)

type handler struct {
	store       *cache.MemoryStore
	auth        *Authenticator
	rateLimiter *RateLimiter
	mux         *http.ServeMux
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get(proxy.RequestIDHeader)
	if requestID == "" {
		requestID = proxy.NewRequestID()
	}
	w.Header().Set(proxy.RequestIDHeader, requestID)

	if h.rateLimiter != nil {
		if !h.rateLimiter.Allow(r.RemoteAddr) {
			writeError(w, requestID, http.StatusTooManyRequests, "rate_limited")
			return
		}
	}

	if h.auth == nil {
		writeError(w, requestID, http.StatusUnauthorized, "auth unavailable")
		return
	}
	if err := h.auth.Authenticate(r); err != nil {
		if h.rateLimiter != nil {
			h.rateLimiter.RecordFailure(r.RemoteAddr)
		}
		status := http.StatusUnauthorized
		message := "unauthorized"
		var authErr *AuthError
		if errors.As(err, &authErr) {
			status = authErr.Status
			message = authErr.Message
		}
		writeError(w, requestID, status, message)
		return
	}
	if h.rateLimiter != nil {
		h.rateLimiter.ResetFailures(r.RemoteAddr)
	}

	h.mux.ServeHTTP(w, r)
}

func (h *handler) handleStats(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get(proxy.RequestIDHeader)
	if r.Method != http.MethodGet {
		writeError(w, requestID, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.store == nil {
		writeError(w, requestID, http.StatusServiceUnavailable, "cache unavailable")
		return
	}
	writeJSON(w, requestID, http.StatusOK, h.store.Stats())
}

type purgeRequest struct {
	URL   string `json:"url"`
	Scope string `json:"scope"`
}

type purgeResponse struct {
	Removed int `json:"removed"`
}

func (h *handler) handlePurge(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get(proxy.RequestIDHeader)
	if r.Method != http.MethodPost {
		writeError(w, requestID, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.store == nil {
		writeError(w, requestID, http.StatusServiceUnavailable, "cache unavailable")
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, requestID, http.StatusBadRequest, "invalid body")
		return
	}
	var req purgeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, requestID, http.StatusBadRequest, "invalid body")
		return
	}
	if req.URL == "" {
		writeError(w, requestID, http.StatusBadRequest, "url is required")
		return
	}
	removed := h.store.PurgePrefix(cache.KeyPrefix(req.Scope, req.URL))
	writeJSON(w, requestID, http.StatusOK, purgeResponse{Removed: removed})
}

func (h *handler) handleFlush(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get(proxy.RequestIDHeader)
	if r.Method != http.MethodPost {
		writeError(w, requestID, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.store == nil {
		writeError(w, requestID, http.StatusServiceUnavailable, "cache unavailable")
		return
	}
	writeJSON(w, requestID, http.StatusOK, purgeResponse{Removed: h.store.Flush()})
}

func writeError(w http.ResponseWriter, requestID string, status int, message string) {
	writeJSON(w, requestID, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, requestID string, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(proxy.RequestIDHeader, requestID)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
