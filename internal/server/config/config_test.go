package config

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/dmitrijs2005/casedge/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	c := &Config{}
	c.LoadDefaults()
	c.S3Region = "auto"
	c.S3Endpoint = "https://s3.example.com"
	c.S3Bucket = "cas"
	c.S3AccessKeyID = "key"
	c.S3SecretAccessKey = "secret"
	return c
}

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, ":8080", c.HTTPAddr)
	assert.Equal(t, "https://tuist.dev", c.OriginURL)
	assert.Equal(t, HotCacheMemory, c.HotCacheBackend)
	assert.Equal(t, int64(25<<20), c.HotBlobMaxBytes)
	assert.Equal(t, 600*time.Second, c.ProjectsSuccessTTL)
	assert.Equal(t, 300*time.Second, c.ProjectsFailureTTL)
	assert.Equal(t, 3600*time.Second, c.PrefixSuccessTTL)
	assert.Equal(t, 300*time.Second, c.PrefixFailureTTL)
	assert.True(t, c.MetricsEnabled)
	assert.False(t, c.S3VirtualHost)
}

func TestValidate_OK(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidate_MissingObjectStoreSettings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"region", func(c *Config) { c.S3Region = "" }, "S3 region"},
		{"endpoint", func(c *Config) { c.S3Endpoint = "" }, "S3 endpoint"},
		{"bucket", func(c *Config) { c.S3Bucket = "" }, "S3 bucket"},
		{"access key", func(c *Config) { c.S3AccessKeyID = "" }, "S3 access key id"},
		{"secret", func(c *Config) { c.S3SecretAccessKey = "" }, "S3 secret access key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)

			err := c.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, common.ErrorConfiguration))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_HotCacheBackend(t *testing.T) {
	c := validConfig()
	c.HotCacheBackend = HotCachePostgres
	assert.ErrorIs(t, c.Validate(), common.ErrorConfiguration)

	c.DatabaseDSN = "postgres://localhost/cas"
	assert.NoError(t, c.Validate())

	c.HotCacheBackend = "redis"
	assert.ErrorIs(t, c.Validate(), common.ErrorConfiguration)
}

func TestValidate_SampleRate(t *testing.T) {
	c := validConfig()
	c.MetricsSampleRate = 1.5
	assert.ErrorIs(t, c.Validate(), common.ErrorConfiguration)
}

func TestLoadConfig_UsesDefaultsWithoutOverrides(t *testing.T) {
	orig := os.Args
	t.Cleanup(func() { os.Args = orig })
	os.Args = []string{"server"}
	t.Setenv("CAS_CONFIG", "")

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", c.HTTPAddr)
	assert.Equal(t, "https://tuist.dev", c.OriginURL)
}
