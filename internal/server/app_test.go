package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/casedge/internal/common"
	"github.com/dmitrijs2005/casedge/internal/server/config"
	"github.com/dmitrijs2005/casedge/internal/server/testutil"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	fs := testutil.NewFakeS3(t, "cas")
	fo := testutil.NewFakeOrigin(t)

	c := &config.Config{}
	c.LoadDefaults()
	c.HTTPAddr = "127.0.0.1:0"
	c.OriginURL = fo.URL
	c.LogLevel = "error"
	c.S3Region = "us-east-1"
	c.S3Endpoint = fs.URL
	c.S3Bucket = "cas"
	c.S3AccessKeyID = "key"
	c.S3SecretAccessKey = "secret"
	c.ShutdownTimeout = time.Second
	return c
}

func TestNewApp_InvalidConfig(t *testing.T) {
	c := testConfig(t)
	c.S3Bucket = ""

	_, err := NewApp(context.Background(), c)
	assert.ErrorIs(t, err, common.ErrorConfiguration)
}

func TestNewApp_PostgresHotCacheNeedsDSN(t *testing.T) {
	c := testConfig(t)
	c.HotCacheBackend = config.HotCachePostgres

	_, err := NewApp(context.Background(), c)
	assert.ErrorIs(t, err, common.ErrorConfiguration)
}

func TestNewApp_BadOriginURL(t *testing.T) {
	c := testConfig(t)
	c.OriginURL = "not-a-url"

	_, err := NewApp(context.Background(), c)
	assert.ErrorContains(t, err, "origin client init error")
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	app, err := NewApp(context.Background(), testConfig(t))
	require.NoError(t, err)
	assert.Nil(t, app.janitor)
	assert.NotNil(t, app.memory)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
	assert.Nil(t, app.memory)
}
