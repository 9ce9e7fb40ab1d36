package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	DriverMinio = "minio"
	DriverAWS   = "aws"
	DriverLocal = "local"

	DefaultEndpoint = "s3.amazonaws.com"
	DefaultRegion   = "us-east-1"
)

// ErrMissingCredentials is returned by New when the bucket, access key or
// secret key is not set.
var ErrMissingCredentials = errors.New("bucket, access key and secret key are required")

// Config describes how to reach the backing bucket.
type Config struct {
	Driver    string
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	Secure    bool
	PathStyle bool

	// DataDir is the root directory used by the local driver.
	DataDir string
}

// Configured reports whether all required settings are present.
func (c Config) Configured() bool {
	return strings.TrimSpace(c.Bucket) != "" &&
		strings.TrimSpace(c.AccessKey) != "" &&
		strings.TrimSpace(c.SecretKey) != ""
}

// New creates the StorageEngine selected by cfg.Driver.
func New(ctx context.Context, cfg Config) (StorageEngine, error) {
	if !cfg.Configured() {
		return nil, ErrMissingCredentials
	}

	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}

	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}

	switch cfg.Driver {
	case "", DriverMinio:
		return NewMinioClient(cfg)
	case DriverAWS:
		return NewAWSClient(ctx, cfg)
	case DriverLocal:
		if cfg.DataDir == "" {
			return nil, errors.New("local driver requires a data directory")
		}
		return NewLocalFileStorage(cfg.DataDir), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
