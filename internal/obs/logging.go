package obs

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

type AccessLogEntry struct {
	Timestamp     string `json:"ts"`
	RequestID     string `json:"request_id"`
	Method        string `json:"method"`
	TargetHost    string `json:"target_host"`
	TargetPath    string `json:"target_path"`
	Scope         string `json:"scope"`
	RangeSpec     string `json:"range,omitempty"`
	Status        int    `json:"status"`
	DurationMS    int64  `json:"duration_ms"`
	UpstreamMS    int64  `json:"upstream_ms"`
	BytesOut      int64  `json:"bytes_out"`
	ErrorCategory string `json:"error_category"`
	CacheStatus   string `json:"cache_status"`
	UserAgent     string `json:"user_agent,omitempty"`
	RemoteAddr    string `json:"remote_addr,omitempty"`
}

func LogAccess(ctx RequestContext) {
	entry := AccessLogEntry{
		Timestamp:     time.Now().UTC().Format(time.RFC3339Nano),
		RequestID:     defaultString(ctx.RequestID, "none"),
		Method:        ctx.Method,
		TargetHost:    defaultString(ctx.TargetHost, "none"),
		TargetPath:    ctx.TargetPath,
		Scope:         defaultString(ctx.Scope, "global"),
		RangeSpec:     ctx.RangeSpec,
		Status:        ctx.Status,
		DurationMS:    ctx.Duration.Milliseconds(),
		UpstreamMS:    ctx.UpstreamDuration.Milliseconds(),
		BytesOut:      ctx.BytesOut,
		ErrorCategory: defaultString(ctx.ErrorCategory, "none"),
		CacheStatus:   defaultString(ctx.CacheStatus, "bypass"),
		UserAgent:     ctx.UserAgent,
		RemoteAddr:    ctx.RemoteAddr,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stdout, "log_marshal_error request_id=%s error=%v\n", entry.RequestID, err)
		return
	}
	_, _ = os.Stdout.Write(append(data, '\n'))
}

func defaultString(value string, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// RedactURLQuery blanks the values of credential-bearing query parameters
// so a logged document URL never exposes its signed access token.
func RedactURLQuery(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.RawQuery == "" {
		return raw
	}
	values := parsed.Query()
	redacted := false
	for name := range values {
		if isSensitiveParam(name) {
			values.Set(name, "[redacted]")
			redacted = true
		}
	}
	if !redacted {
		return raw
	}
	parsed.RawQuery = values.Encode()
	return parsed.String()
}

func isSensitiveParam(name string) bool {
	lowered := strings.ToLower(name)
	switch lowered {
	case "token", "signature", "sig", "key", "apikey", "api_key", "auth", "expires":
		return true
	}
	return strings.HasPrefix(lowered, "x-amz-")
}

// SetupLogging configures the process-wide logrus logger used for
// operational (non access-log) messages.
func SetupLogging(level string, jsonFormat bool) error {
	if jsonFormat {
		log.SetFormatter(&log.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	if strings.TrimSpace(level) == "" {
		level = "info"
	}
	parsed, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	log.SetLevel(parsed)
	return nil
}
