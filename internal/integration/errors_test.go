package integration

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"pdf_stream_proxy/internal/testutil"
)

func decodeErrorBody(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("error body is not JSON: %v (%q)", err, body)
	}
	return decoded
}

func TestMissingURLParameter(t *testing.T) {
	f := startProxy(t, pdfOrigin(testutil.PDFBody(128)), fixtureConfig{})

	resp, body := f.get(t, f.proxyURL+"/pdf-proxy", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	decoded := decodeErrorBody(t, body)
	if decoded["error_category"] != "invalid_input" {
		t.Fatalf("category: %v", decoded["error_category"])
	}
	if f.origin.heads.Load() != 0 || f.origin.gets.Load() != 0 {
		t.Fatalf("invalid input must not reach upstream")
	}
}

func TestRejectsNonPDFPath(t *testing.T) {
	f := startProxy(t, pdfOrigin(testutil.PDFBody(128)), fixtureConfig{})

	resp, _ := f.get(t, f.proxyURL+"/pdf-proxy?url=https%3A%2F%2Fstore.example.com%2Fbook.epub", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestZeroContentLengthIs502(t *testing.T) {
	origin := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", "0")
			return
		}
		_, _ = w.Write(testutil.PDFBody(128))
	})
	f := startProxy(t, origin, fixtureConfig{})

	resp, _ := f.get(t, f.proxyRequestURL("/book.pdf", ""), "")
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.StatusCode)
	}
	if f.origin.gets.Load() != 0 {
		t.Fatalf("failed HEAD must not be followed by a GET")
	}
}

func TestUpstreamErrorIs502(t *testing.T) {
	origin := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", "1000")
			return
		}
		http.Error(w, "internal", http.StatusInternalServerError)
	})
	f := startProxy(t, origin, fixtureConfig{})

	resp, body := f.get(t, f.proxyRequestURL("/book.pdf", ""), "")
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.StatusCode)
	}
	decoded := decodeErrorBody(t, body)
	if decoded["error_category"] != "upstream_unavailable" {
		t.Fatalf("category: %v", decoded["error_category"])
	}
}

func TestEmptyUpstreamBodyIs502(t *testing.T) {
	origin := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", "1000")
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	f := startProxy(t, origin, fixtureConfig{})

	resp, body := f.get(t, f.proxyRequestURL("/book.pdf", ""), "")
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.StatusCode)
	}
	decoded := decodeErrorBody(t, body)
	if decoded["error_category"] != "empty_response" {
		t.Fatalf("category: %v", decoded["error_category"])
	}
	if f.store.Stats().Entries != 0 {
		t.Fatalf("failed fetches must not be cached")
	}
}

func TestInvalidDocumentIs422WithText(t *testing.T) {
	errorPage := "<html><body>signature expired</body></html>"
	origin := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", "1000")
			return
		}
		_, _ = w.Write([]byte(errorPage))
	})
	f := startProxy(t, origin, fixtureConfig{})

	resp, body := f.get(t, f.proxyRequestURL("/book.pdf", ""), "")
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	decoded := decodeErrorBody(t, body)
	message, _ := decoded["message"].(string)
	if !strings.Contains(message, "signature expired") {
		t.Fatalf("error page text not surfaced: %q", message)
	}
	if f.store.Stats().Entries != 0 {
		t.Fatalf("invalid documents must not be cached")
	}
}

func TestUpstreamGetTimeoutIs504(t *testing.T) {
	origin := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", "1000")
			return
		}
		time.Sleep(500 * time.Millisecond)
		_, _ = w.Write(testutil.PDFBody(1000))
	})
	f := startProxy(t, origin, fixtureConfig{getTimeout: 50 * time.Millisecond})

	resp, body := f.get(t, f.proxyRequestURL("/book.pdf", ""), "")
	if resp.StatusCode != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", resp.StatusCode)
	}
	decoded := decodeErrorBody(t, body)
	if decoded["error_category"] != "timeout" {
		t.Fatalf("category: %v", decoded["error_category"])
	}
	if f.store.Stats().Entries != 0 {
		t.Fatalf("partial data must not be cached on timeout")
	}
}

func TestUpstreamHeadTimeoutIs504(t *testing.T) {
	origin := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.Header().Set("Content-Length", "1000")
	})
	f := startProxy(t, origin, fixtureConfig{headTimeout: 50 * time.Millisecond})

	resp, _ := f.get(t, f.proxyRequestURL("/book.pdf", ""), "")
	if resp.StatusCode != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", resp.StatusCode)
	}
}
