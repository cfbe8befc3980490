package integration

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"pdf_stream_proxy/internal/cache"
	"pdf_stream_proxy/internal/obs"
	"pdf_stream_proxy/internal/proxy"
	"pdf_stream_proxy/internal/upstream"
)

// originCounter wraps the fake object store and counts the upstream calls
// the proxy makes, split by method.
type originCounter struct {
	next  http.Handler
	heads atomic.Int32
	gets  atomic.Int32
}

func (c *originCounter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodHead:
		c.heads.Add(1)
	case http.MethodGet:
		c.gets.Add(1)
	}
	c.next.ServeHTTP(w, r)
}

type fixtureConfig struct {
	cacheMaxBytes int64
	cacheTTL      time.Duration
	coalesce      bool
	coalesceWait  time.Duration
	headTimeout   time.Duration
	getTimeout    time.Duration
	lengthMemoTTL time.Duration
}

type fixture struct {
	originURL string
	proxyURL  string
	origin    *originCounter
	store     *cache.MemoryStore
	client    *http.Client
}

func startProxy(t *testing.T, origin http.Handler, cfg fixtureConfig) *fixture {
	t.Helper()
	if origin == nil {
		origin = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	}

	counter := &originCounter{next: origin}
	originServer := httptest.NewTLSServer(counter)
	t.Cleanup(originServer.Close)

	if cfg.cacheMaxBytes == 0 {
		cfg.cacheMaxBytes = cache.DefaultMaxSizeBytes
	}
	if cfg.cacheTTL == 0 {
		cfg.cacheTTL = cache.DefaultTTL
	}

	metrics := obs.NewMetrics()
	store := cache.NewMemoryStore(cfg.cacheMaxBytes, cfg.cacheTTL)
	store.SetEvictHook(func(reason string, _ int64) {
		metrics.RecordCacheEviction(reason)
	})

	var coalescer *cache.Coalescer
	if cfg.coalesce {
		coalescer = cache.NewCoalescer(0)
	}

	fetcher := upstream.NewFetcher(upstream.Config{
		HeadTimeout:        cfg.headTimeout,
		GetTimeout:         cfg.getTimeout,
		LengthMemoTTL:      cfg.lengthMemoTTL,
		InsecureSkipVerify: true,
	}, metrics)
	t.Cleanup(fetcher.Close)

	handler := &proxy.Handler{
		Cache:        store,
		Coalescer:    coalescer,
		Fetcher:      fetcher,
		Metrics:      metrics,
		CoalesceWait: cfg.coalesceWait,
	}

	mux := http.NewServeMux()
	mux.Handle("/pdf-proxy", handler)
	mux.Handle("/metrics", metrics.Handler())

	proxyServer := httptest.NewServer(mux)
	t.Cleanup(proxyServer.Close)

	return &fixture{
		originURL: originServer.URL,
		proxyURL:  proxyServer.URL,
		origin:    counter,
		store:     store,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

// proxyRequestURL builds the /pdf-proxy URL targeting path on the fake
// object store.
func (f *fixture) proxyRequestURL(path string, scope string) string {
	target := f.originURL + path
	values := url.Values{}
	values.Set("url", target)
	if scope != "" {
		values.Set("scope", scope)
	}
	return f.proxyURL + "/pdf-proxy?" + values.Encode()
}

func (f *fixture) get(t *testing.T, requestURL string, rangeHeader string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, requestURL, nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, body
}

func (f *fixture) head(t *testing.T, requestURL string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodHead, requestURL, nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	_ = resp.Body.Close()
	return resp
}

// pdfOrigin serves body as a PDF object with correct HEAD and Range
// semantics, the way a blob store would.
func pdfOrigin(body []byte) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", itoa(len(body)))
			return
		}
		if rangeHeader := r.Header.Get("Range"); rangeHeader != "" {
			serveRange(w, body, rangeHeader)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Etag", `"origin-v1"`)
		_, _ = w.Write(body)
	})
}
