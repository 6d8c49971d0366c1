// Package config handles configuration for the edge cache server: defaults,
// a JSON file overlay, CAS_* environment variables and command-line flags,
// applied in that order.
package config

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/casedge/internal/common"
)

const (
	HotCacheMemory   = "memory"
	HotCachePostgres = "postgres"
)

// Config holds runtime settings for the edge cache.
//
// The S3* fields describe the authoritative object store. DatabaseDSN backs
// the durable key-value store (and the hot cache when HotCacheBackend is
// "postgres"); leaving it empty disables the key-value endpoints, which then
// fail closed with a configuration error.
type Config struct {
	HTTPAddr  string
	OriginURL string
	LogLevel  string

	S3Region          string
	S3Endpoint        string
	S3Bucket          string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3VirtualHost     bool

	DatabaseDSN string

	HotCacheBackend  string
	HotCacheMaxBytes int64
	HotBlobMaxBytes  int64
	HotBlobTTL       time.Duration

	ProjectsSuccessTTL  time.Duration
	ProjectsFailureTTL  time.Duration
	PrefixSuccessTTL    time.Duration
	PrefixFailureTTL    time.Duration
	KeyValueResponseTTL time.Duration

	MetricsEnabled    bool
	MetricsSampleRate float64

	JanitorInterval time.Duration
	ShutdownTimeout time.Duration
}

// LoadDefaults fills in everything that has a sensible default. Object store
// credentials have none and must be supplied.
func (c *Config) LoadDefaults() {
	c.HTTPAddr = ":8080"
	c.OriginURL = "https://tuist.dev"
	c.LogLevel = "info"
	c.HotCacheBackend = HotCacheMemory
	c.HotCacheMaxBytes = 512 << 20
	c.HotBlobMaxBytes = 25 << 20
	c.HotBlobTTL = 24 * time.Hour
	c.ProjectsSuccessTTL = 600 * time.Second
	c.ProjectsFailureTTL = 300 * time.Second
	c.PrefixSuccessTTL = 3600 * time.Second
	c.PrefixFailureTTL = 300 * time.Second
	c.KeyValueResponseTTL = 10 * time.Minute
	c.MetricsEnabled = true
	c.MetricsSampleRate = 0.1
	c.JanitorInterval = 5 * time.Minute
	c.ShutdownTimeout = 10 * time.Second
}

// LoadConfig applies defaults, then the JSON file, environment and flags.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJSON(cfg); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first missing required setting.
func (c *Config) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"S3 region", c.S3Region},
		{"S3 endpoint", c.S3Endpoint},
		{"S3 bucket", c.S3Bucket},
		{"S3 access key id", c.S3AccessKeyID},
		{"S3 secret access key", c.S3SecretAccessKey},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%w: %s is not set", common.ErrorConfiguration, r.name)
		}
	}

	switch c.HotCacheBackend {
	case HotCacheMemory:
	case HotCachePostgres:
		if c.DatabaseDSN == "" {
			return fmt.Errorf("%w: postgres hot cache requires a database DSN", common.ErrorConfiguration)
		}
	default:
		return fmt.Errorf("%w: unknown hot cache backend %q", common.ErrorConfiguration, c.HotCacheBackend)
	}

	if c.MetricsSampleRate < 0 || c.MetricsSampleRate > 1 {
		return fmt.Errorf("%w: metrics sample rate must be within [0, 1]", common.ErrorConfiguration)
	}
	return nil
}
