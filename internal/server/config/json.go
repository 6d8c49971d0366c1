package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/casedge/internal/flagx"
	"github.com/dmitrijs2005/casedge/internal/timex"
)

// JSONConfig mirrors Config for decoding the optional config file. Pointer
// fields distinguish "absent" from a zero value so a partial file only
// overrides what it names.
type JSONConfig struct {
	HTTPAddr  *string `json:"http_addr"`
	OriginURL *string `json:"origin_url"`
	LogLevel  *string `json:"log_level"`

	S3Region          *string `json:"s3_region"`
	S3Endpoint        *string `json:"s3_endpoint"`
	S3Bucket          *string `json:"s3_bucket"`
	S3AccessKeyID     *string `json:"s3_access_key_id"`
	S3SecretAccessKey *string `json:"s3_secret_access_key"`
	S3VirtualHost     *bool   `json:"s3_virtual_host"`

	DatabaseDSN *string `json:"database_dsn"`

	HotCacheBackend  *string         `json:"hot_cache_backend"`
	HotCacheMaxBytes *int64          `json:"hot_cache_max_bytes"`
	HotBlobMaxBytes  *int64          `json:"hot_blob_max_bytes"`
	HotBlobTTL       *timex.Duration `json:"hot_blob_ttl"`

	ProjectsSuccessTTL  *timex.Duration `json:"projects_success_ttl"`
	ProjectsFailureTTL  *timex.Duration `json:"projects_failure_ttl"`
	PrefixSuccessTTL    *timex.Duration `json:"prefix_success_ttl"`
	PrefixFailureTTL    *timex.Duration `json:"prefix_failure_ttl"`
	KeyValueResponseTTL *timex.Duration `json:"keyvalue_response_ttl"`

	MetricsEnabled    *bool    `json:"metrics_enabled"`
	MetricsSampleRate *float64 `json:"metrics_sample_rate"`

	JanitorInterval *timex.Duration `json:"janitor_interval"`
	ShutdownTimeout *timex.Duration `json:"shutdown_timeout"`
}

// parseJSON overlays the file named by -c/-config (or $CAS_CONFIG), if any.
func parseJSON(cfg *Config) error {
	path := flagx.ConfigPath()
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var jc JSONConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	jc.apply(cfg)
	return nil
}

func (jc *JSONConfig) apply(cfg *Config) {
	setString(&cfg.HTTPAddr, jc.HTTPAddr)
	setString(&cfg.OriginURL, jc.OriginURL)
	setString(&cfg.LogLevel, jc.LogLevel)
	setString(&cfg.S3Region, jc.S3Region)
	setString(&cfg.S3Endpoint, jc.S3Endpoint)
	setString(&cfg.S3Bucket, jc.S3Bucket)
	setString(&cfg.S3AccessKeyID, jc.S3AccessKeyID)
	setString(&cfg.S3SecretAccessKey, jc.S3SecretAccessKey)
	setString(&cfg.DatabaseDSN, jc.DatabaseDSN)
	setString(&cfg.HotCacheBackend, jc.HotCacheBackend)

	if jc.S3VirtualHost != nil {
		cfg.S3VirtualHost = *jc.S3VirtualHost
	}
	if jc.MetricsEnabled != nil {
		cfg.MetricsEnabled = *jc.MetricsEnabled
	}
	if jc.MetricsSampleRate != nil {
		cfg.MetricsSampleRate = *jc.MetricsSampleRate
	}
	if jc.HotCacheMaxBytes != nil {
		cfg.HotCacheMaxBytes = *jc.HotCacheMaxBytes
	}
	if jc.HotBlobMaxBytes != nil {
		cfg.HotBlobMaxBytes = *jc.HotBlobMaxBytes
	}

	setDuration(&cfg.HotBlobTTL, jc.HotBlobTTL)
	setDuration(&cfg.ProjectsSuccessTTL, jc.ProjectsSuccessTTL)
	setDuration(&cfg.ProjectsFailureTTL, jc.ProjectsFailureTTL)
	setDuration(&cfg.PrefixSuccessTTL, jc.PrefixSuccessTTL)
	setDuration(&cfg.PrefixFailureTTL, jc.PrefixFailureTTL)
	setDuration(&cfg.KeyValueResponseTTL, jc.KeyValueResponseTTL)
	setDuration(&cfg.JanitorInterval, jc.JanitorInterval)
	setDuration(&cfg.ShutdownTimeout, jc.ShutdownTimeout)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
