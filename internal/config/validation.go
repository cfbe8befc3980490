package config

import (
	"errors"
	"fmt"
	"strings"
)

func Validate(cfg *Config) ([]string, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	warnings := []string{}
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		return warnings, errors.New("listen_addr must be set")
	}
	if err := validateCache(cfg, &warnings); err != nil {
		return warnings, err
	}
	if err := validateUpstream(cfg, &warnings); err != nil {
		return warnings, err
	}
	if err := validateLimits(cfg); err != nil {
		return warnings, err
	}
	if err := validateShutdown(cfg); err != nil {
		return warnings, err
	}
	return warnings, nil
}

func validateCache(cfg *Config, warnings *[]string) error {
	if cfg.Cache.MaxSizeBytes <= 0 {
		return errors.New("cache.max_size_bytes must be > 0")
	}
	if cfg.Cache.TTLMS <= 0 {
		return errors.New("cache.ttl_ms must be > 0")
	}
	if cfg.Cache.CoalesceEnabled && cfg.Cache.CoalesceWaitMS <= 0 {
		return errors.New("cache.coalesce_wait_ms must be > 0 when coalescing is enabled")
	}
	if cfg.Cache.MaxFlights < 0 {
		return errors.New("cache.max_flights must be non-negative")
	}
	if cfg.Cache.MaxSizeBytes < 1024*1024 {
		*warnings = append(*warnings, fmt.Sprintf("cache.max_size_bytes=%d is smaller than a typical chunk", cfg.Cache.MaxSizeBytes))
	}
	return nil
}

func validateUpstream(cfg *Config, warnings *[]string) error {
	if cfg.Upstream.HeadTimeoutMS <= 0 {
		return errors.New("upstream.head_timeout_ms must be > 0")
	}
	if cfg.Upstream.GetTimeoutMS <= 0 {
		return errors.New("upstream.get_timeout_ms must be > 0")
	}
	if cfg.Upstream.LengthMemoTTLMS < 0 {
		return errors.New("upstream.length_memo_ttl_ms must be non-negative")
	}
	if cfg.Cache.CoalesceEnabled && cfg.Cache.CoalesceWaitMS < cfg.Upstream.GetTimeoutMS {
		*warnings = append(*warnings, "cache.coalesce_wait_ms is shorter than upstream.get_timeout_ms, followers may break away before the leader finishes")
	}
	if cfg.Upstream.InsecureSkipVerify {
		*warnings = append(*warnings, "upstream.insecure_skip_verify is set, TLS certificates will not be verified")
	}
	return nil
}

func validateLimits(cfg *Config) error {
	if cfg.Limits.MaxHeaderBytes < 0 {
		return errors.New("limits.max_header_bytes must be non-negative")
	}
	for name, value := range map[string]int{
		"limits.read_header_timeout_ms": cfg.Limits.ReadHeaderTimeoutMS,
		"limits.read_timeout_ms":        cfg.Limits.ReadTimeoutMS,
		"limits.write_timeout_ms":       cfg.Limits.WriteTimeoutMS,
		"limits.idle_timeout_ms":        cfg.Limits.IdleTimeoutMS,
	} {
		if value < 0 {
			return fmt.Errorf("%s must be non-negative", name)
		}
	}
	return nil
}

func validateShutdown(cfg *Config) error {
	for name, value := range map[string]int{
		"shutdown.drain_ms":            cfg.Shutdown.DrainMS,
		"shutdown.graceful_timeout_ms": cfg.Shutdown.GracefulTimeoutMS,
		"shutdown.force_close_ms":      cfg.Shutdown.ForceCloseMS,
	} {
		if value < 0 {
			return fmt.Errorf("%s must be non-negative", name)
		}
	}
	return nil
}
