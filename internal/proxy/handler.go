package proxy

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"pdf_stream_proxy/internal/cache"
	"pdf_stream_proxy/internal/obs"
	"pdf_stream_proxy/internal/ranges"
	"pdf_stream_proxy/internal/upstream"
)

const (
	DefaultCacheControl = "public, max-age=300"
	DefaultCoalesceWait = 30 * time.Second
	defaultMaxURLBytes  = 8 * 1024
)

type Handler struct {
	Cache     cache.Store
	Coalescer *cache.Coalescer
	Fetcher   *upstream.Fetcher
	Metrics   *obs.Metrics

	CacheControl string
	CoalesceWait time.Duration
	MaxURLBytes  int
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Cache == nil || h.Fetcher == nil {
		http.Error(w, "proxy not ready", http.StatusServiceUnavailable)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	start := time.Now()
	requestID := NewRequestID()
	recorder := NewResponseRecorder(w)
	recorder.Header().Set(RequestIDHeader, requestID)

	info := obs.RequestContext{
		RequestID:  requestID,
		Method:     r.Method,
		UserAgent:  r.UserAgent(),
		RemoteAddr: r.RemoteAddr,
	}
	defer func() {
		info.Status = recorder.Status()
		info.BytesOut = recorder.BytesWritten()
		info.ErrorCategory = recorder.ErrorCategory()
		info.Duration = time.Since(start)
		obs.LogAccess(info)
		h.Metrics.ObserveRequest(r.Method, recorder.Status(), info.Duration)
	}()

	rawURL := r.URL.Query().Get("url")
	scope := r.URL.Query().Get("scope")
	info.Scope = scope

	if limit := h.maxURLBytes(); len(rawURL) > limit {
		h.Metrics.RecordProxyError(CategoryInvalidInput)
		WriteProxyError(recorder, requestID, http.StatusRequestURITooLong, CategoryInvalidInput, "url parameter too long")
		return
	}
	target, err := upstream.ValidateURL(rawURL)
	if err != nil {
		h.Metrics.RecordProxyError(CategoryInvalidInput)
		WriteProxyError(recorder, requestID, http.StatusBadRequest, CategoryInvalidInput, "missing or invalid url parameter")
		return
	}
	targetURL := target.String()
	info.TargetHost = target.Host
	info.TargetPath = target.Path

	upstreamStart := time.Now()
	total, err := h.Fetcher.HeadLength(r.Context(), targetURL)
	info.UpstreamDuration = time.Since(upstreamStart)
	if err != nil {
		status, category, message := mapUpstreamError(err)
		h.Metrics.RecordProxyError(category)
		WriteProxyError(recorder, requestID, status, category, message)
		return
	}

	if r.Method == http.MethodHead {
		h.writeExistence(recorder, total)
		return
	}

	rangeHeader := r.Header.Get("Range")
	info.RangeSpec = rangeHeader
	br, err := ranges.Parse(rangeHeader, total)
	if err != nil {
		h.Metrics.RecordProxyError(CategoryUnsatisfiableRange)
		recorder.Header().Set("Content-Range", ranges.Unsatisfied(total))
		WriteProxyError(recorder, requestID, http.StatusRequestedRangeNotSatisfiable, CategoryUnsatisfiableRange, "requested range is not satisfiable")
		return
	}

	key := cache.BuildKey(scope, targetURL, br)
	data, lookup := h.Cache.Lookup(key)
	info.CacheStatus = string(lookup)
	h.Metrics.RecordCacheRequest(string(lookup))
	if lookup == cache.LookupHit {
		h.writeDocument(recorder, br, data, nil)
		return
	}

	fetchStart := time.Now()
	data, header, err := h.fetchChunk(r, targetURL, br, key)
	info.UpstreamDuration += time.Since(fetchStart)
	if err != nil {
		status, category, message := mapUpstreamError(err)
		h.Metrics.RecordProxyError(category)
		WriteProxyError(recorder, requestID, status, category, message)
		return
	}

	h.Cache.Set(key, data)
	h.Metrics.SetCacheStats(h.Cache.Stats())
	h.writeDocument(recorder, br, data, header)
}

// fetchChunk performs the upstream GET, deduplicating concurrent fills for
// the same key through the coalescer when one is configured. A follower
// whose wait times out breaks away and fetches on its own.
func (h *Handler) fetchChunk(r *http.Request, targetURL string, br *ranges.ByteRange, key string) ([]byte, http.Header, error) {
	if h.Coalescer != nil {
		flight, leader, ok := h.Coalescer.Start(key)
		if ok && leader {
			doc, err := h.Fetcher.FetchRange(r.Context(), targetURL, br, r.Header)
			if err != nil {
				h.Coalescer.Finish(key, flight, nil, nil, err)
				return nil, nil, err
			}
			h.Coalescer.Finish(key, flight, doc.Data, doc.Header, nil)
			return doc.Data, doc.Header, nil
		}
		if ok {
			data, header, err, waited := h.Coalescer.Wait(flight, h.coalesceWait())
			if waited {
				return data, header, err
			}
			h.Metrics.RecordCoalesceBreakaway()
		}
	}

	doc, err := h.Fetcher.FetchRange(r.Context(), targetURL, br, r.Header)
	if err != nil {
		return nil, nil, err
	}
	return doc.Data, doc.Header, nil
}

func (h *Handler) writeDocument(recorder *ResponseRecorder, br *ranges.ByteRange, data []byte, upstreamHeader http.Header) {
	headers := recorder.Header()
	headers.Set("Accept-Ranges", "bytes")
	headers.Set("Cache-Control", h.cacheControl())
	headers.Set("Content-Type", "application/pdf")
	copyUpstreamHeaders(headers, upstreamHeader)
	headers.Set("Content-Length", strconv.Itoa(len(data)))

	if br != nil {
		headers.Set("Content-Range", br.ContentRange())
		recorder.WriteHeader(http.StatusPartialContent)
	} else {
		recorder.WriteHeader(http.StatusOK)
	}
	_, _ = recorder.Write(data)
}

// writeExistence answers a proxy HEAD: availability and length only, no
// byte transfer, no cache population.
func (h *Handler) writeExistence(recorder *ResponseRecorder, total int64) {
	headers := recorder.Header()
	headers.Set("Accept-Ranges", "bytes")
	headers.Set("Content-Type", "application/pdf")
	headers.Set("Content-Length", strconv.FormatInt(total, 10))
	if stats, err := json.Marshal(h.Cache.Stats()); err == nil {
		headers.Set("X-Cache-Stats", string(stats))
	}
	recorder.WriteHeader(http.StatusOK)
}

func (h *Handler) cacheControl() string {
	if h.CacheControl == "" {
		return DefaultCacheControl
	}
	return h.CacheControl
}

func (h *Handler) coalesceWait() time.Duration {
	if h.CoalesceWait <= 0 {
		return DefaultCoalesceWait
	}
	return h.CoalesceWait
}

func (h *Handler) maxURLBytes() int {
	if h.MaxURLBytes <= 0 {
		return defaultMaxURLBytes
	}
	return h.MaxURLBytes
}

func mapUpstreamError(err error) (int, string, string) {
	var docErr *upstream.InvalidDocumentError
	switch {
	case errors.As(err, &docErr):
		return http.StatusUnprocessableEntity, CategoryInvalidDocument, docErr.Error()
	case errors.Is(err, upstream.ErrTimeout):
		return http.StatusGatewayTimeout, CategoryTimeout, "upstream request timed out"
	case errors.Is(err, upstream.ErrEmptyResponse):
		return http.StatusBadGateway, CategoryEmptyResponse, "upstream returned an empty response"
	case errors.Is(err, upstream.ErrUnavailable):
		return http.StatusBadGateway, CategoryUpstreamUnavailable, "upstream unavailable"
	default:
		return http.StatusInternalServerError, CategoryInternal, "internal error"
	}
}
