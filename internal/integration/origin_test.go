package integration

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

func itoa(n int) string {
	return strconv.Itoa(n)
}

// serveRange implements just enough single-range semantics for the fake
// object store: "bytes=N-M" with both bounds present.
func serveRange(w http.ResponseWriter, body []byte, rangeHeader string) {
	spec := strings.TrimPrefix(rangeHeader, "bytes=")
	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return
	}
	start, err1 := strconv.Atoi(parts[0])
	end, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || start > end || end >= len(body) {
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, len(body)))
	w.WriteHeader(http.StatusPartialContent)
	_, _ = w.Write(body[start : end+1])
}
