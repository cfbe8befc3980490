package proxy

import "net/http"

// Headers that may be copied from the upstream response to the client.
// Everything else, hop-by-hop headers in particular, stays behind.
var passThroughHeaders = []string{
	"Content-Type",
	"Etag",
	"Last-Modified",
	"Content-Range",
}

var hopByHopHeaders = map[string]struct{}{
	"Connection":          {},
	"Keep-Alive":          {},
	"Proxy-Authenticate":  {},
	"Proxy-Authorization": {},
	"Te":                  {},
	"Trailer":             {},
	"Transfer-Encoding":   {},
	"Upgrade":             {},
}

func copyUpstreamHeaders(dst http.Header, src http.Header) {
	if src == nil {
		return
	}
	for _, name := range passThroughHeaders {
		if _, hopByHop := hopByHopHeaders[name]; hopByHop {
			continue
		}
		if value := src.Get(name); value != "" {
			dst.Set(name, value)
		}
	}
}
