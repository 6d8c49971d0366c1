package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_parseEnv(t *testing.T) {
	t.Setenv(EnvS3Bucket, "artifacts")
	t.Setenv(EnvS3VirtualHost, "true")
	t.Setenv(EnvPrefixSuccessTTL, "90s")
	t.Setenv(EnvHotCacheMaxBytes, "2048")
	t.Setenv(EnvMetricsSampleRate, "0.5")

	cfg := &Config{}
	cfg.LoadDefaults()
	require.NoError(t, parseEnv(cfg))

	assert.Equal(t, "artifacts", cfg.S3Bucket)
	assert.True(t, cfg.S3VirtualHost)
	assert.Equal(t, 90*time.Second, cfg.PrefixSuccessTTL)
	assert.Equal(t, int64(2048), cfg.HotCacheMaxBytes)
	assert.Equal(t, 0.5, cfg.MetricsSampleRate)
}

func Test_parseEnv_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"duration", EnvProjectsSuccessTTL, "ten"},
		{"int", EnvHotBlobMaxBytes, "big"},
		{"bool", EnvMetricsEnabled, "maybe"},
		{"float", EnvMetricsSampleRate, "half"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			err := parseEnv(&Config{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}
