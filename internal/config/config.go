package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type Config struct {
	ListenAddr string         `mapstructure:"listen_addr"`
	Log        LogConfig      `mapstructure:"log"`
	Cache      CacheConfig    `mapstructure:"cache"`
	Upstream   UpstreamConfig `mapstructure:"upstream"`
	Proxy      ProxyConfig    `mapstructure:"proxy"`
	Limits     LimitsConfig   `mapstructure:"limits"`
	Shutdown   ShutdownConfig `mapstructure:"shutdown"`
	Admin      AdminConfig    `mapstructure:"admin"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

type CacheConfig struct {
	MaxSizeBytes    int64 `mapstructure:"max_size_bytes"`
	TTLMS           int   `mapstructure:"ttl_ms"`
	CoalesceEnabled bool  `mapstructure:"coalesce_enabled"`
	CoalesceWaitMS  int   `mapstructure:"coalesce_wait_ms"`
	MaxFlights      int   `mapstructure:"max_flights"`
}

type UpstreamConfig struct {
	HeadTimeoutMS      int  `mapstructure:"head_timeout_ms"`
	GetTimeoutMS       int  `mapstructure:"get_timeout_ms"`
	LengthMemoTTLMS    int  `mapstructure:"length_memo_ttl_ms"`
	InsecureSkipVerify bool `mapstructure:"insecure_skip_verify"`
}

type ProxyConfig struct {
	CacheControl string `mapstructure:"cache_control"`
	MaxURLBytes  int    `mapstructure:"max_url_bytes"`
}

type LimitsConfig struct {
	MaxHeaderBytes      int `mapstructure:"max_header_bytes"`
	ReadHeaderTimeoutMS int `mapstructure:"read_header_timeout_ms"`
	ReadTimeoutMS       int `mapstructure:"read_timeout_ms"`
	WriteTimeoutMS      int `mapstructure:"write_timeout_ms"`
	IdleTimeoutMS       int `mapstructure:"idle_timeout_ms"`
}

// AdminConfig controls the cache administration endpoints. An empty
// token leaves the endpoints unmounted.
type AdminConfig struct {
	Token           string `mapstructure:"token"`
	RateLimitRPS    int    `mapstructure:"rate_limit_rps"`
	RateLimitBurst  int    `mapstructure:"rate_limit_burst"`
	MaxAuthFailures int    `mapstructure:"max_auth_failures"`
	AuthBlockMS     int    `mapstructure:"auth_block_ms"`
}

type ShutdownConfig struct {
	DrainMS           int `mapstructure:"drain_ms"`
	GracefulTimeoutMS int `mapstructure:"graceful_timeout_ms"`
	ForceCloseMS      int `mapstructure:"force_close_ms"`
}

// Load reads the optional config file, applies PDFPROXY_-prefixed
// environment overrides and returns the typed configuration.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PDFPROXY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, "read config")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", "127.0.0.1:8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", true)
	v.SetDefault("cache.max_size_bytes", int64(50*1024*1024))
	v.SetDefault("cache.ttl_ms", 5*60*1000)
	v.SetDefault("cache.coalesce_enabled", true)
	v.SetDefault("cache.coalesce_wait_ms", 30*1000)
	v.SetDefault("cache.max_flights", 1000)
	v.SetDefault("upstream.head_timeout_ms", 10*1000)
	v.SetDefault("upstream.get_timeout_ms", 30*1000)
	v.SetDefault("upstream.length_memo_ttl_ms", 60*1000)
	v.SetDefault("upstream.insecure_skip_verify", false)
	v.SetDefault("proxy.cache_control", "public, max-age=300")
	v.SetDefault("proxy.max_url_bytes", 8*1024)
}

// Duration converts a millisecond config value to a time.Duration; zero
// and negative values map to zero so callers can apply their defaults.
func Duration(milliseconds int) time.Duration {
	if milliseconds <= 0 {
		return 0
	}
	return time.Duration(milliseconds) * time.Millisecond
}
