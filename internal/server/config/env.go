package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Environment variables read by parseEnv. Durations use Go syntax ("300s").
const (
	EnvHTTPAddr            = "CAS_HTTP_ADDR"
	EnvOriginURL           = "CAS_ORIGIN_URL"
	EnvLogLevel            = "CAS_LOG_LEVEL"
	EnvS3Region            = "CAS_S3_REGION"
	EnvS3Endpoint          = "CAS_S3_ENDPOINT"
	EnvS3Bucket            = "CAS_S3_BUCKET"
	EnvS3AccessKeyID       = "CAS_S3_ACCESS_KEY_ID"
	EnvS3SecretAccessKey   = "CAS_S3_SECRET_ACCESS_KEY"
	EnvS3VirtualHost       = "CAS_S3_VIRTUAL_HOST"
	EnvDatabaseDSN         = "CAS_DATABASE_DSN"
	EnvHotCacheBackend     = "CAS_HOT_CACHE_BACKEND"
	EnvHotCacheMaxBytes    = "CAS_HOT_CACHE_MAX_BYTES"
	EnvHotBlobMaxBytes     = "CAS_HOT_BLOB_MAX_BYTES"
	EnvHotBlobTTL          = "CAS_HOT_BLOB_TTL"
	EnvProjectsSuccessTTL  = "CAS_PROJECTS_SUCCESS_TTL"
	EnvProjectsFailureTTL  = "CAS_PROJECTS_FAILURE_TTL"
	EnvPrefixSuccessTTL    = "CAS_PREFIX_SUCCESS_TTL"
	EnvPrefixFailureTTL    = "CAS_PREFIX_FAILURE_TTL"
	EnvKeyValueResponseTTL = "CAS_KEYVALUE_RESPONSE_TTL"
	EnvMetricsEnabled      = "CAS_METRICS_ENABLED"
	EnvMetricsSampleRate   = "CAS_METRICS_SAMPLE_RATE"
	EnvJanitorInterval     = "CAS_JANITOR_INTERVAL"
	EnvShutdownTimeout     = "CAS_SHUTDOWN_TIMEOUT"
)

func parseEnv(cfg *Config) error {
	strs := map[string]*string{
		EnvHTTPAddr:          &cfg.HTTPAddr,
		EnvOriginURL:         &cfg.OriginURL,
		EnvLogLevel:          &cfg.LogLevel,
		EnvS3Region:          &cfg.S3Region,
		EnvS3Endpoint:        &cfg.S3Endpoint,
		EnvS3Bucket:          &cfg.S3Bucket,
		EnvS3AccessKeyID:     &cfg.S3AccessKeyID,
		EnvS3SecretAccessKey: &cfg.S3SecretAccessKey,
		EnvDatabaseDSN:       &cfg.DatabaseDSN,
		EnvHotCacheBackend:   &cfg.HotCacheBackend,
	}
	for name, dst := range strs {
		if v, ok := os.LookupEnv(name); ok {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		EnvHotBlobTTL:          &cfg.HotBlobTTL,
		EnvProjectsSuccessTTL:  &cfg.ProjectsSuccessTTL,
		EnvProjectsFailureTTL:  &cfg.ProjectsFailureTTL,
		EnvPrefixSuccessTTL:    &cfg.PrefixSuccessTTL,
		EnvPrefixFailureTTL:    &cfg.PrefixFailureTTL,
		EnvKeyValueResponseTTL: &cfg.KeyValueResponseTTL,
		EnvJanitorInterval:     &cfg.JanitorInterval,
		EnvShutdownTimeout:     &cfg.ShutdownTimeout,
	}
	for name, dst := range durations {
		v, ok := os.LookupEnv(name)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = d
	}

	ints := map[string]*int64{
		EnvHotCacheMaxBytes: &cfg.HotCacheMaxBytes,
		EnvHotBlobMaxBytes:  &cfg.HotBlobMaxBytes,
	}
	for name, dst := range ints {
		v, ok := os.LookupEnv(name)
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = n
	}

	bools := map[string]*bool{
		EnvS3VirtualHost:  &cfg.S3VirtualHost,
		EnvMetricsEnabled: &cfg.MetricsEnabled,
	}
	for name, dst := range bools {
		v, ok := os.LookupEnv(name)
		if !ok {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = b
	}

	if v, ok := os.LookupEnv(EnvMetricsSampleRate); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMetricsSampleRate, err)
		}
		cfg.MetricsSampleRate = f
	}

	return nil
}
