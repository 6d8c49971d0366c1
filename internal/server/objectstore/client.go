// Package objectstore talks to the S3-compatible bucket that is the
// authoritative home of every blob. Requests are built by hand so non-2xx
// responses can be handed back to callers untouched, and signed with the
// AWS SigV4 signer.
package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dmitrijs2005/casedge/internal/common"
	"github.com/dmitrijs2005/casedge/internal/hashx"
)

const (
	signingService = "s3"

	// DefaultResponseHeaderTimeout bounds the wait for response headers.
	// Bodies have no deadline so blobs of any size can stream.
	DefaultResponseHeaderTimeout = 30 * time.Second
	tlsHandshakeTimeout          = 10 * time.Second
)

// emptyPayloadHash is the SHA-256 of an empty body, used for HEAD and GET.
var emptyPayloadHash = hashx.Digest("")

// swapped out in tests
var (
	loadDefaultAWSConfig  = awsconfig.LoadDefaultConfig
	newS3ClientFromConfig = s3.NewFromConfig
)

type Config struct {
	Region          string
	Endpoint        string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	VirtualHost     bool

	// ResponseHeaderTimeout defaults to DefaultResponseHeaderTimeout.
	ResponseHeaderTimeout time.Duration
}

type Client struct {
	cfg     Config
	creds   aws.CredentialsProvider
	signer  *v4.Signer
	http    aws.HTTPClient
	s3      *s3.Client
	nowFunc func() time.Time
}

// New validates cfg and returns a signing client. httpClient may be nil, in
// which case signed requests share the SDK's client and its CA bundle.
func New(ctx context.Context, cfg Config, httpClient *http.Client) (*Client, error) {
	required := []struct {
		name  string
		value string
	}{
		{"region", cfg.Region},
		{"endpoint", cfg.Endpoint},
		{"access key id", cfg.AccessKeyID},
		{"secret access key", cfg.SecretAccessKey},
	}
	for _, r := range required {
		if r.value == "" {
			return nil, fmt.Errorf("%w: object store %s is not set", common.ErrorConfiguration, r.name)
		}
	}

	headerTimeout := cfg.ResponseHeaderTimeout
	if headerTimeout <= 0 {
		headerTimeout = DefaultResponseHeaderTimeout
	}

	// A buildable client lets the SDK install a custom CA bundle
	// (AWS_CA_BUNDLE or ca_bundle in the shared config).
	sdkClient := awshttp.NewBuildableClient().WithTransportOptions(func(t *http.Transport) {
		t.TLSHandshakeTimeout = tlsHandshakeTimeout
		t.ResponseHeaderTimeout = headerTimeout
	})

	awsCfg, err := loadDefaultAWSConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithHTTPClient(sdkClient),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	s3Client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = !cfg.VirtualHost
	})

	var signed aws.HTTPClient = sdkClient
	switch {
	case httpClient != nil:
		signed = httpClient
	case awsCfg.HTTPClient != nil:
		signed = awsCfg.HTTPClient
	}

	return &Client{
		cfg:     cfg,
		creds:   awsCfg.Credentials,
		signer:  v4.NewSigner(),
		http:    signed,
		s3:      s3Client,
		nowFunc: time.Now,
	}, nil
}

func (c *Client) Bucket() string {
	return c.cfg.Bucket
}

// URL returns the address of key in the configured bucket.
func (c *Client) URL(key string) (string, error) {
	return BuildURL(c.cfg.Endpoint, c.cfg.Bucket, key, c.cfg.VirtualHost)
}

// Exists reports whether a HEAD on key succeeds with a 2xx. Any failure,
// including transport errors, reads as "not present".
func (c *Client) Exists(ctx context.Context, key string) bool {
	resp, err := c.do(ctx, http.MethodHead, key, nil, "")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// Get fetches key. The caller owns the response body and must inspect the
// status code; only transport failures are returned as errors.
func (c *Client) Get(ctx context.Context, key string) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, key, nil, "")
}

// Put uploads body to key. As with Get, a non-2xx status is not an error.
func (c *Client) Put(ctx context.Context, key string, body []byte, contentType string) (*http.Response, error) {
	return c.do(ctx, http.MethodPut, key, body, contentType)
}

// Ping checks that the bucket is reachable with the configured credentials.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.s3.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.cfg.Bucket)})
	if err != nil {
		return fmt.Errorf("head bucket %s: %w", c.cfg.Bucket, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, key string, body []byte, contentType string) (*http.Response, error) {
	target, err := c.URL(key)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	payloadHash := emptyPayloadHash
	if body != nil {
		reader = bytes.NewReader(body)
		payloadHash = hashx.DigestBytes(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", method, err)
	}
	if body != nil {
		req.ContentLength = int64(len(body))
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("X-Amz-Content-Sha256", payloadHash)

	creds, err := c.creds.Retrieve(ctx)
	if err != nil {
		return nil, fmt.Errorf("retrieve credentials: %w", err)
	}
	if err := c.signer.SignHTTP(ctx, creds, req, payloadHash, signingService, c.cfg.Region, c.nowFunc()); err != nil {
		return nil, fmt.Errorf("sign %s request: %w", method, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, key, err)
	}
	return resp, nil
}
