package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/casedge/internal/flagx"
)

var flagNames = []string{
	"-a", "-origin", "-log-level",
	"-s3-region", "-s3-endpoint", "-s3-bucket", "-s3-access-key-id", "-s3-secret-access-key", "-s3-virtual-host",
	"-d", "-hot-cache", "-hot-blob-max-bytes", "-metrics",
}

// parseFlags overlays the command-line flags. Only the deployment-shaped
// settings have flags; TTLs are tuned through the file or environment.
//
//	-a string                    HTTP bind address (":8080")
//	-origin string               origin base URL
//	-log-level string            debug|info|warn|error
//	-s3-region string            object store region
//	-s3-endpoint string          object store endpoint URL
//	-s3-bucket string            object store bucket
//	-s3-access-key-id string     object store access key id
//	-s3-secret-access-key string object store secret access key
//	-s3-virtual-host             use virtual-host style addressing
//	-d string                    PostgreSQL DSN
//	-hot-cache string            memory|postgres
//	-hot-blob-max-bytes int      largest blob kept in the hot tier
//	-metrics                     expose /metrics
func parseFlags(cfg *Config) error {
	args := flagx.FilterArgs(os.Args[1:], flagNames)

	fs := flag.NewFlagSet("server", flag.ContinueOnError)

	fs.StringVar(&cfg.HTTPAddr, "a", cfg.HTTPAddr, "HTTP bind address")
	fs.StringVar(&cfg.OriginURL, "origin", cfg.OriginURL, "origin base URL")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.S3Region, "s3-region", cfg.S3Region, "object store region")
	fs.StringVar(&cfg.S3Endpoint, "s3-endpoint", cfg.S3Endpoint, "object store endpoint")
	fs.StringVar(&cfg.S3Bucket, "s3-bucket", cfg.S3Bucket, "object store bucket")
	fs.StringVar(&cfg.S3AccessKeyID, "s3-access-key-id", cfg.S3AccessKeyID, "object store access key id")
	fs.StringVar(&cfg.S3SecretAccessKey, "s3-secret-access-key", cfg.S3SecretAccessKey, "object store secret access key")
	fs.BoolVar(&cfg.S3VirtualHost, "s3-virtual-host", cfg.S3VirtualHost, "virtual-host style object store addressing")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "database DSN")
	fs.StringVar(&cfg.HotCacheBackend, "hot-cache", cfg.HotCacheBackend, "hot cache backend (memory|postgres)")
	fs.Int64Var(&cfg.HotBlobMaxBytes, "hot-blob-max-bytes", cfg.HotBlobMaxBytes, "largest blob kept in the hot tier")
	fs.BoolVar(&cfg.MetricsEnabled, "metrics", cfg.MetricsEnabled, "expose /metrics")

	return fs.Parse(args)
}
