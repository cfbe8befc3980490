package proxy

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"

	"pdf_stream_proxy/internal/upstream"
)

func TestMapUpstreamError(t *testing.T) {
	cases := []struct {
		err      error
		status   int
		category string
	}{
		{errors.Wrap(upstream.ErrTimeout, "head"), http.StatusGatewayTimeout, CategoryTimeout},
		{errors.Wrap(upstream.ErrEmptyResponse, "get"), http.StatusBadGateway, CategoryEmptyResponse},
		{errors.Wrap(upstream.ErrUnavailable, "get"), http.StatusBadGateway, CategoryUpstreamUnavailable},
		{&upstream.InvalidDocumentError{Body: "denied"}, http.StatusUnprocessableEntity, CategoryInvalidDocument},
		{errors.New("surprise"), http.StatusInternalServerError, CategoryInternal},
	}
	for _, tc := range cases {
		status, category, message := mapUpstreamError(tc.err)
		if status != tc.status || category != tc.category {
			t.Fatalf("%v: got (%d, %s), want (%d, %s)", tc.err, status, category, tc.status, tc.category)
		}
		if message == "" {
			t.Fatalf("%v: empty message", tc.err)
		}
	}
}

func TestInvalidDocumentMessageCarriesBody(t *testing.T) {
	_, _, message := mapUpstreamError(&upstream.InvalidDocumentError{Body: "<html>denied</html>"})
	if message != "upstream content is not a valid PDF: <html>denied</html>" {
		t.Fatalf("unexpected message: %q", message)
	}
}

func TestWriteProxyError(t *testing.T) {
	rec := httptest.NewRecorder()
	recorder := NewResponseRecorder(rec)
	WriteProxyError(recorder, "req-1", http.StatusBadGateway, CategoryUpstreamUnavailable, "upstream unavailable")

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("got status %d", rec.Code)
	}
	if recorder.ErrorCategory() != CategoryUpstreamUnavailable {
		t.Fatalf("error category not recorded")
	}
	var body ProxyErrorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid error body: %v", err)
	}
	if body.RequestID != "req-1" || body.Status != http.StatusBadGateway || body.ErrorCategory != CategoryUpstreamUnavailable {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestNewRequestIDUnique(t *testing.T) {
	if NewRequestID() == NewRequestID() {
		t.Fatalf("request ids must be unique")
	}
}
