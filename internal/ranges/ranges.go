package ranges

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const bytesPrefix = "bytes="

var ErrUnsatisfiable = errors.New("unsatisfiable byte range")

type ByteRange struct {
	Start int64
	End   int64
	Total int64
}

// Parse resolves an HTTP Range header against a known resource length.
// A nil range with a nil error means no byte range was requested and the
// full resource should be served. ErrUnsatisfiable means the header named
// a byte range that cannot be satisfied and the caller should answer 416.
func Parse(header string, total int64) (*ByteRange, error) {
	header = strings.TrimSpace(header)
	if header == "" || !strings.HasPrefix(header, bytesPrefix) {
		return nil, nil
	}
	if total <= 0 {
		return nil, ErrUnsatisfiable
	}

	spec := strings.TrimSpace(strings.TrimPrefix(header, bytesPrefix))
	if spec == "" || strings.Contains(spec, ",") {
		return nil, ErrUnsatisfiable
	}

	dash := strings.Index(spec, "-")
	if dash < 0 {
		return nil, ErrUnsatisfiable
	}
	startPart := spec[:dash]
	endPart := spec[dash+1:]

	if startPart == "" {
		// suffix form: last N bytes
		suffix, err := parseOffset(endPart)
		if err != nil || suffix <= 0 {
			return nil, ErrUnsatisfiable
		}
		start := total - suffix
		if start < 0 {
			start = 0
		}
		return &ByteRange{Start: start, End: total - 1, Total: total}, nil
	}

	start, err := parseOffset(startPart)
	if err != nil {
		return nil, ErrUnsatisfiable
	}

	end := total - 1
	if endPart != "" {
		end, err = parseOffset(endPart)
		if err != nil {
			return nil, ErrUnsatisfiable
		}
	}

	if start < 0 || end >= total || start > end {
		return nil, ErrUnsatisfiable
	}
	return &ByteRange{Start: start, End: end, Total: total}, nil
}

func parseOffset(value string) (int64, error) {
	if value == "" {
		return 0, errors.New("empty offset")
	}
	for _, ch := range value {
		if ch < '0' || ch > '9' {
			return 0, errors.New("non-numeric offset")
		}
	}
	return strconv.ParseInt(value, 10, 64)
}

func (r *ByteRange) Length() int64 {
	if r == nil {
		return 0
	}
	return r.End - r.Start + 1
}

// ContentRange renders the Content-Range value for a 206 response.
func (r *ByteRange) ContentRange() string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, r.Total)
}

// RequestHeader renders the Range value forwarded upstream.
func (r *ByteRange) RequestHeader() string {
	return fmt.Sprintf("bytes=%d-%d", r.Start, r.End)
}

// Unsatisfied renders the Content-Range value for a 416 response.
func Unsatisfied(total int64) string {
	return fmt.Sprintf("bytes */%d", total)
}
