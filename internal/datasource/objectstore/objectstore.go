// Package objectstore reads job input from S3-compatible object storage
// (MinIO, AWS S3) with minio-go.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config locates one object and the credentials to read it.
type Config struct {
	// Endpoint is a host[:port] or a full URL; an https scheme implies UseSSL.
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	UseSSL          bool
	// PathStyle forces path-style bucket addressing (MinIO deployments).
	PathStyle bool

	Bucket string
	Key    string

	// Transport overrides the HTTP transport; tests use it.
	Transport http.RoundTripper
}

// Object is a Source over a single object.
type Object struct {
	client *minio.Client
	bucket string
	key    string
}

// New validates cfg and builds the client. No request is made until Open.
func New(cfg Config) (*Object, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("objectstore: endpoint is required")
	}
	if cfg.Bucket == "" || cfg.Key == "" {
		return nil, fmt.Errorf("objectstore: bucket and key are required")
	}

	endpoint, secure := cfg.Endpoint, cfg.UseSSL
	if u, err := url.Parse(cfg.Endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		if u.Scheme == "https" {
			secure = true
		}
	}

	opts := &minio.Options{
		Secure:    secure,
		Region:    cfg.Region,
		Transport: cfg.Transport,
	}
	if cfg.AccessKeyID != "" || cfg.SecretAccessKey != "" {
		opts.Creds = credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	} else {
		opts.Creds = credentials.NewEnvAWS()
	}
	if cfg.PathStyle {
		opts.BucketLookup = minio.BucketLookupPath
	}

	client, err := minio.New(endpoint, opts)
	if err != nil {
		return nil, fmt.Errorf("objectstore: client: %w", err)
	}
	return &Object{client: client, bucket: cfg.Bucket, key: cfg.Key}, nil
}

// String returns the s3:// form of the object address.
func (o *Object) String() string { return "s3://" + o.bucket + "/" + o.key }

// Open stats the object so a missing key fails here rather than on first
// read, then returns the streaming reader.
func (o *Object) Open(ctx context.Context) (io.ReadCloser, error) {
	obj, err := o.client.GetObject(ctx, o.bucket, o.key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("objectstore: get %s: %w", o, err)
	}
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, fmt.Errorf("objectstore: stat %s: %w", o, err)
	}
	return obj, nil
}
