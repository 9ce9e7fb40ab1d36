package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3API is the subset of the AWS S3 client used by AWSClient. It allows a
// mock client in tests.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// AWSClient stores objects in a single Amazon S3 bucket through the AWS SDK
// for Go v2.
type AWSClient struct {
	Bucket string
	client S3API
}

// NewAWSClient loads the AWS configuration with the static credentials from
// cfg and returns a client for cfg.Bucket.
func NewAWSClient(ctx context.Context, cfg Config) (*AWSClient, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" && cfg.Endpoint != DefaultEndpoint {
		scheme := "http://"
		if cfg.Secure {
			scheme = "https://"
		}
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(scheme + cfg.Endpoint)
		})
	}
	if cfg.PathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	slog.Debug("AWS storage initialized", "bucket", cfg.Bucket, "region", cfg.Region)
	return NewAWSClientWithAPI(cfg.Bucket, s3.NewFromConfig(awsCfg, s3Opts...)), nil
}

// NewAWSClientWithAPI creates an AWSClient around an existing S3API.
func NewAWSClientWithAPI(bucket string, api S3API) *AWSClient {
	return &AWSClient{Bucket: bucket, client: api}
}

// awsResult maps an AWS SDK error onto a Response. Errors that carry an HTTP
// response become responses; everything else is a transport failure.
func awsResult(op string, key string, success int, err error) (*Response, error) {
	if err == nil {
		return newResponse(success, ""), nil
	}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		message := respErr.Error()
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			message = apiErr.ErrorCode() + ": " + apiErr.ErrorMessage()
		}
		return newResponse(respErr.HTTPStatusCode(), message), nil
	}

	return nil, &TransportError{Op: op, Key: key, Err: err}
}

func (c *AWSClient) PutFile(ctx context.Context, localPath string, key string, meta Metadata) (*Response, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return nil, &TransportError{Op: "put file", Key: key, Err: err}
	}
	defer f.Close()

	if meta.ContentLength < 0 {
		info, err := f.Stat()
		if err != nil {
			return nil, &TransportError{Op: "put file", Key: key, Err: err}
		}
		meta.ContentLength = info.Size()
	}

	return c.PutStream(ctx, f, key, meta)
}

func (c *AWSClient) PutStream(ctx context.Context, r io.Reader, key string, meta Metadata) (*Response, error) {
	input := &s3.PutObjectInput{
		Bucket: aws.String(c.Bucket),
		Key:    aws.String(key),
		Body:   r,
	}
	if meta.ContentLength >= 0 {
		input.ContentLength = aws.Int64(meta.ContentLength)
	}
	if meta.ContentType != "" {
		input.ContentType = aws.String(meta.ContentType)
	}
	if meta.ACL != "" {
		input.ACL = types.ObjectCannedACL(meta.ACL)
	}

	_, err := c.client.PutObject(ctx, input)
	return awsResult("put stream", key, http.StatusOK, err)
}

func (c *AWSClient) DeleteObject(ctx context.Context, key string) (*Response, error) {
	_, err := c.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.Bucket),
		Key:    aws.String(key),
	})
	return awsResult("delete", key, http.StatusNoContent, err)
}
