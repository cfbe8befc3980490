package limits

import (
	"fmt"
	"time"

	"pdf_stream_proxy/internal/config"
)

const (
	defaultMaxHeaderBytes    = 64 * 1024
	defaultReadHeaderTimeout = 2 * time.Second
	defaultIdleTimeout       = 30 * time.Second
)

type Limits struct {
	MaxHeaderBytes    int
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
}

func Default() Limits {
	return Limits{
		MaxHeaderBytes:    defaultMaxHeaderBytes,
		ReadHeaderTimeout: defaultReadHeaderTimeout,
		ReadTimeout:       0,
		WriteTimeout:      0,
		IdleTimeout:       defaultIdleTimeout,
	}
}

func FromConfig(cfg config.LimitsConfig) (Limits, error) {
	limits := Default()
	if cfg.MaxHeaderBytes > 0 {
		limits.MaxHeaderBytes = cfg.MaxHeaderBytes
	}
	if cfg.ReadHeaderTimeoutMS > 0 {
		limits.ReadHeaderTimeout = config.Duration(cfg.ReadHeaderTimeoutMS)
	} else if cfg.ReadHeaderTimeoutMS < 0 {
		return Limits{}, fmt.Errorf("read_header_timeout_ms must be positive")
	}
	limits.ReadTimeout = config.Duration(cfg.ReadTimeoutMS)
	limits.WriteTimeout = config.Duration(cfg.WriteTimeoutMS)
	if cfg.IdleTimeoutMS > 0 {
		limits.IdleTimeout = config.Duration(cfg.IdleTimeoutMS)
	}

	if limits.MaxHeaderBytes <= 0 {
		return Limits{}, fmt.Errorf("max_header_bytes must be positive")
	}
	if limits.ReadHeaderTimeout <= 0 {
		return Limits{}, fmt.Errorf("read_header_timeout_ms must be positive")
	}
	return limits, nil
}
