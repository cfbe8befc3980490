package cache

import (
	"net/url"
	"strconv"
	"strings"

	"pdf_stream_proxy/internal/ranges"
)

const GlobalScope = "global"

// BuildKey derives the cache key for one chunk. A full-file entry and a
// ranged entry of the same resource never share a key. The scope is
// caller-supplied free text, so it is escaped before entering the key;
// otherwise a scope embedding the field separators could collide with a
// different scope/url pair.
func BuildKey(scope string, target string, br *ranges.ByteRange) string {
	scope = normalizeScope(scope)

	var builder strings.Builder
	builder.Grow(len(scope) + len(target) + 48)
	builder.WriteString("s=")
	builder.WriteString(scope)
	builder.WriteString("|u=")
	builder.WriteString(target)
	builder.WriteString("|r=")
	if br == nil {
		builder.WriteString("full")
	} else {
		builder.WriteString(strconv.FormatInt(br.Start, 10))
		builder.WriteString("-")
		builder.WriteString(strconv.FormatInt(br.End, 10))
	}
	return builder.String()
}

// KeyPrefix is the common prefix of every key for one resource within a
// scope, covering the full-file entry and all of its ranged chunks.
func KeyPrefix(scope string, target string) string {
	return "s=" + normalizeScope(scope) + "|u=" + target + "|r="
}

func normalizeScope(scope string) string {
	scope = strings.TrimSpace(scope)
	if scope == "" {
		return GlobalScope
	}
	return url.QueryEscape(scope)
}
