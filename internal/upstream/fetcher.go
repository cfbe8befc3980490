package upstream

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"pdf_stream_proxy/internal/obs"
	"pdf_stream_proxy/internal/ranges"
	"pdf_stream_proxy/internal/transport"
)

const (
	DefaultHeadTimeout   = 10 * time.Second
	DefaultGetTimeout    = 30 * time.Second
	DefaultLengthMemoTTL = time.Minute

	pdfSignature      = "%PDF"
	errorPageMaxBytes = 1000
)

var forwardedConditionalHeaders = []string{"If-None-Match", "If-Modified-Since"}

type Config struct {
	HeadTimeout   time.Duration
	GetTimeout    time.Duration
	LengthMemoTTL time.Duration

	// InsecureSkipVerify disables TLS certificate verification against the
	// object store. Meant for self-signed test deployments only.
	InsecureSkipVerify bool
}

// Document is the payload of one successful upstream GET together with the
// response headers the handler may copy through.
type Document struct {
	Data   []byte
	Header http.Header
}

// Fetcher performs HEAD and ranged GET requests against the origin object
// store. Discovered content lengths are memoized with a short TTL so a
// burst of range requests for one resource costs a single upstream HEAD.
type Fetcher struct {
	client      *http.Client
	transport   *http.Transport
	headTimeout time.Duration
	getTimeout  time.Duration
	lengths     *ttlcache.Cache[string, int64]
	metrics     *obs.Metrics
}

func NewFetcher(cfg Config, metrics *obs.Metrics) *Fetcher {
	if cfg.HeadTimeout <= 0 {
		cfg.HeadTimeout = DefaultHeadTimeout
	}
	if cfg.GetTimeout <= 0 {
		cfg.GetTimeout = DefaultGetTimeout
	}

	rt := transport.NewTransport(transport.Options{
		ResponseHeaderTimeout: cfg.GetTimeout,
		InsecureSkipVerify:    cfg.InsecureSkipVerify,
	})

	fetcher := &Fetcher{
		client:      &http.Client{Transport: rt},
		transport:   rt,
		headTimeout: cfg.HeadTimeout,
		getTimeout:  cfg.GetTimeout,
		metrics:     metrics,
	}
	if cfg.LengthMemoTTL > 0 {
		fetcher.lengths = ttlcache.New[string, int64](
			ttlcache.WithTTL[string, int64](cfg.LengthMemoTTL),
			ttlcache.WithDisableTouchOnHit[string, int64](),
		)
		go fetcher.lengths.Start()
	}
	return fetcher
}

func (f *Fetcher) Close() {
	if f == nil {
		return
	}
	transport.CloseIdle(f.transport)
	if f.lengths != nil {
		f.lengths.Stop()
	}
}

// ValidateURL rejects anything that is not an https reference to a PDF
// before any network call is made.
func ValidateURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.Wrap(ErrInvalidURL, "url is empty")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidURL, err.Error())
	}
	if parsed.Scheme != "https" {
		return nil, errors.Wrapf(ErrInvalidURL, "scheme %q is not https", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, errors.Wrap(ErrInvalidURL, "url has no host")
	}
	if !strings.HasSuffix(strings.ToLower(parsed.Path), ".pdf") {
		return nil, errors.Wrap(ErrInvalidURL, "path does not reference a pdf")
	}
	return parsed, nil
}

// HeadLength discovers the total byte length of the resource via an
// upstream HEAD request.
func (f *Fetcher) HeadLength(ctx context.Context, target string) (int64, error) {
	if f == nil {
		return 0, ErrUnavailable
	}
	if f.lengths != nil {
		if item := f.lengths.Get(target); item != nil {
			return item.Value(), nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, f.headTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return 0, errors.Wrap(ErrUnavailable, err.Error())
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	f.metrics.ObserveUpstreamRoundTrip("head", time.Since(start))
	if err != nil {
		return 0, f.classifyTransportError("head", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		f.metrics.RecordUpstreamError("head", "bad_status")
		return 0, errors.Wrapf(ErrUnavailable, "head %s: status %d", target, resp.StatusCode)
	}
	if resp.ContentLength <= 0 {
		f.metrics.RecordUpstreamError("head", "no_length")
		return 0, errors.Wrapf(ErrUnavailable, "head %s: no usable content-length", target)
	}

	if f.lengths != nil {
		f.lengths.Set(target, resp.ContentLength, ttlcache.DefaultTTL)
	}
	return resp.ContentLength, nil
}

// FetchRange retrieves the resource bytes, forwarding the byte range (when
// present) and any conditional headers from the inbound request. Full-file
// responses are signature-checked; range responses are not, a chunk from
// the middle of a file legitimately lacks the header.
func (f *Fetcher) FetchRange(ctx context.Context, target string, br *ranges.ByteRange, inbound http.Header) (*Document, error) {
	if f == nil {
		return nil, ErrUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, f.getTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, errors.Wrap(ErrUnavailable, err.Error())
	}
	if br != nil {
		req.Header.Set("Range", br.RequestHeader())
	}
	for _, name := range forwardedConditionalHeaders {
		if value := inbound.Get(name); value != "" {
			req.Header.Set(name, value)
		}
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	f.metrics.ObserveUpstreamRoundTrip("get", time.Since(start))
	if err != nil {
		return nil, f.classifyTransportError("get", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		f.metrics.RecordUpstreamError("get", "bad_status")
		return nil, errors.Wrapf(ErrUnavailable, "get %s: status %d", target, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeoutError(err) {
			f.metrics.RecordUpstreamError("get", "timeout")
			return nil, errors.Wrap(ErrTimeout, err.Error())
		}
		f.metrics.RecordUpstreamError("get", "read_failed")
		return nil, errors.Wrap(ErrUnavailable, err.Error())
	}
	if len(data) == 0 {
		f.metrics.RecordUpstreamError("get", "empty")
		return nil, errors.Wrapf(ErrEmptyResponse, "get %s", target)
	}

	if br == nil && !bytes.HasPrefix(data, []byte(pdfSignature)) {
		f.metrics.RecordUpstreamError("get", "invalid_document")
		docErr := &InvalidDocumentError{URL: target}
		if len(data) < errorPageMaxBytes {
			docErr.Body = string(data)
		}
		log.WithField("url", obs.RedactURLQuery(target)).WithField("bytes", len(data)).Warn("upstream returned non-PDF content")
		return nil, docErr
	}

	return &Document{Data: data, Header: resp.Header}, nil
}

func (f *Fetcher) classifyTransportError(op string, err error) error {
	if isTimeoutError(err) {
		f.metrics.RecordUpstreamError(op, "timeout")
		return errors.Wrap(ErrTimeout, err.Error())
	}
	f.metrics.RecordUpstreamError(op, "transport")
	return errors.Wrap(ErrUnavailable, err.Error())
}

func isTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}
