package integration

import (
	"bytes"
	"net/http"
	"testing"

	"pdf_stream_proxy/internal/testutil"
)

func TestRangeRequestProxied(t *testing.T) {
	body := testutil.PDFBody(1000)
	f := startProxy(t, pdfOrigin(body), fixtureConfig{})

	resp, got := f.get(t, f.proxyRequestURL("/book.pdf", ""), "bytes=0-99")
	if resp.StatusCode != http.StatusPartialContent {
		t.Fatalf("expected 206, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Content-Range") != "bytes 0-99/1000" {
		t.Fatalf("content-range: %q", resp.Header.Get("Content-Range"))
	}
	if resp.Header.Get("Content-Length") != "100" {
		t.Fatalf("content-length: %q", resp.Header.Get("Content-Length"))
	}
	if !bytes.Equal(got, body[:100]) {
		t.Fatalf("chunk mismatch")
	}
	if heads := f.origin.heads.Load(); heads != 1 {
		t.Fatalf("expected one upstream HEAD, got %d", heads)
	}
	if gets := f.origin.gets.Load(); gets != 1 {
		t.Fatalf("expected one upstream GET, got %d", gets)
	}
}

func TestRangeChunkCached(t *testing.T) {
	body := testutil.PDFBody(1000)
	f := startProxy(t, pdfOrigin(body), fixtureConfig{})

	f.get(t, f.proxyRequestURL("/book.pdf", ""), "bytes=100-199")
	resp, got := f.get(t, f.proxyRequestURL("/book.pdf", ""), "bytes=100-199")
	if resp.StatusCode != http.StatusPartialContent || !bytes.Equal(got, body[100:200]) {
		t.Fatalf("cached chunk broken: status %d", resp.StatusCode)
	}
	if gets := f.origin.gets.Load(); gets != 1 {
		t.Fatalf("expected the second chunk read to hit the cache, got %d GETs", gets)
	}
}

func TestRangeAndFullFileAreDistinctEntries(t *testing.T) {
	body := testutil.PDFBody(1000)
	f := startProxy(t, pdfOrigin(body), fixtureConfig{})

	_, got := f.get(t, f.proxyRequestURL("/book.pdf", ""), "bytes=0-999")
	if len(got) != 1000 {
		t.Fatalf("ranged read returned %d bytes", len(got))
	}

	// the full-file request covers the same bytes but must not be served
	// from the ranged entry
	resp, got := f.get(t, f.proxyRequestURL("/book.pdf", ""), "")
	if resp.StatusCode != http.StatusOK || len(got) != 1000 {
		t.Fatalf("full read: status %d, %d bytes", resp.StatusCode, len(got))
	}
	if gets := f.origin.gets.Load(); gets != 2 {
		t.Fatalf("full and ranged entries conflated: %d GETs", gets)
	}
}

func TestSuffixRangeProxied(t *testing.T) {
	body := testutil.PDFBody(1000)
	f := startProxy(t, pdfOrigin(body), fixtureConfig{})

	resp, got := f.get(t, f.proxyRequestURL("/book.pdf", ""), "bytes=-100")
	if resp.StatusCode != http.StatusPartialContent {
		t.Fatalf("expected 206, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Content-Range") != "bytes 900-999/1000" {
		t.Fatalf("content-range: %q", resp.Header.Get("Content-Range"))
	}
	if !bytes.Equal(got, body[900:]) {
		t.Fatalf("suffix chunk mismatch")
	}
}

func TestUnsatisfiableRange(t *testing.T) {
	body := testutil.PDFBody(1000)
	f := startProxy(t, pdfOrigin(body), fixtureConfig{})

	cases := []string{
		"bytes=0-10,20-30",
		"bytes=500-100",
		"bytes=0-1000",
		"bytes=abc-def",
	}
	for _, rangeHeader := range cases {
		resp, _ := f.get(t, f.proxyRequestURL("/book.pdf", ""), rangeHeader)
		if resp.StatusCode != http.StatusRequestedRangeNotSatisfiable {
			t.Fatalf("%q: expected 416, got %d", rangeHeader, resp.StatusCode)
		}
		if resp.Header.Get("Content-Range") != "bytes */1000" {
			t.Fatalf("%q: content-range %q", rangeHeader, resp.Header.Get("Content-Range"))
		}
	}
	if gets := f.origin.gets.Load(); gets != 0 {
		t.Fatalf("unsatisfiable ranges must not reach upstream, got %d GETs", gets)
	}
}

func TestNonBytesRangeUnitServedFull(t *testing.T) {
	body := testutil.PDFBody(500)
	f := startProxy(t, pdfOrigin(body), fixtureConfig{})

	resp, got := f.get(t, f.proxyRequestURL("/book.pdf", ""), "items=0-10")
	if resp.StatusCode != http.StatusOK || len(got) != 500 {
		t.Fatalf("unknown range unit should degrade to full file: status %d, %d bytes", resp.StatusCode, len(got))
	}
}
