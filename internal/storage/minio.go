package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioClient stores objects in a single bucket of any S3 compatible service
// using minio-go.
type MinioClient struct {
	client *minio.Client
	bucket string
}

// NewMinioClient creates a MinioClient for cfg.Bucket on cfg.Endpoint.
func NewMinioClient(cfg Config) (*MinioClient, error) {
	lookup := minio.BucketLookupAuto
	if cfg.PathStyle {
		lookup = minio.BucketLookupPath
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       cfg.Secure,
		Region:       cfg.Region,
		BucketLookup: lookup,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	slog.Debug("Minio storage initialized", "endpoint", cfg.Endpoint, "bucket", cfg.Bucket, "secure", cfg.Secure)
	return &MinioClient{client: client, bucket: cfg.Bucket}, nil
}

// StreamPartSize is the multipart chunk used for streams of unknown length.
// minio-go buffers one whole part in memory per upload.
const StreamPartSize = 16 << 20

func putOptions(meta Metadata) minio.PutObjectOptions {
	opts := minio.PutObjectOptions{
		ContentType: meta.ContentType,
	}
	if meta.ContentLength < 0 {
		opts.PartSize = StreamPartSize
	}

	// minio-go passes x-amz-* user metadata through as plain headers.
	if meta.ACL != "" {
		opts.UserMetadata = map[string]string{"x-amz-acl": meta.ACL}
	}
	return opts
}

// minioResult maps a minio-go error onto a Response. Errors carrying an HTTP
// status become responses; everything else is a transport failure.
func minioResult(op string, key string, success int, err error) (*Response, error) {
	if err == nil {
		return newResponse(success, ""), nil
	}

	errResp := minio.ToErrorResponse(err)
	if errResp.StatusCode != 0 {
		message := errResp.Message
		if errResp.Code != "" {
			message = errResp.Code + ": " + errResp.Message
		}
		return newResponse(errResp.StatusCode, message), nil
	}

	return nil, &TransportError{Op: op, Key: key, Err: err}
}

func (c *MinioClient) PutFile(ctx context.Context, localPath string, key string, meta Metadata) (*Response, error) {
	_, err := c.client.FPutObject(ctx, c.bucket, key, localPath, putOptions(meta))
	return minioResult("put file", key, http.StatusOK, err)
}

func (c *MinioClient) PutStream(ctx context.Context, r io.Reader, key string, meta Metadata) (*Response, error) {
	size := meta.ContentLength
	if size < 0 {
		size = -1
	}

	_, err := c.client.PutObject(ctx, c.bucket, key, r, size, putOptions(meta))
	return minioResult("put stream", key, http.StatusOK, err)
}

func (c *MinioClient) DeleteObject(ctx context.Context, key string) (*Response, error) {
	err := c.client.RemoveObject(ctx, c.bucket, key, minio.RemoveObjectOptions{})
	return minioResult("delete", key, http.StatusNoContent, err)
}
