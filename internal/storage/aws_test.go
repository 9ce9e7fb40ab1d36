package storage_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/eteran/bucketd/internal/storage"

	"github.com/stretchr/testify/require"
)

// mockS3Client implements storage.S3API for unit testing.
type mockS3Client struct {
	objects map[string][]byte
	inputs  []*s3.PutObjectInput
	// err is returned from every call when set.
	err error
}

func newMockS3Client() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte)}
}

func (m *mockS3Client) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	m.inputs = append(m.inputs, params)
	if m.err != nil {
		return nil, m.err
	}
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	m.objects[aws.ToString(params.Key)] = data
	return &s3.PutObjectOutput{ETag: aws.String(`"etag"`)}, nil
}

func (m *mockS3Client) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	delete(m.objects, aws.ToString(params.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func responseError(status int, code string, message string) error {
	return &awshttp.ResponseError{
		ResponseError: &smithyhttp.ResponseError{
			Response: &smithyhttp.Response{Response: &http.Response{StatusCode: status}},
			Err:      &smithy.GenericAPIError{Code: code, Message: message},
		},
		RequestID: "req-1",
	}
}

func TestAWSClientPutStream(t *testing.T) {
	t.Parallel()

	mock := newMockS3Client()
	client := storage.NewAWSClientWithAPI("my-bucket", mock)

	resp, err := client.PutStream(t.Context(), strings.NewReader("hello"), "docs/a.txt", storage.Metadata{
		ContentLength: 5,
		ContentType:   "text/plain",
		ACL:           storage.ACLPublicRead,
	})
	require.NoError(t, storage.Check(resp, err), "PutStream error")

	require.Len(t, mock.inputs, 1, "PutObject calls")
	input := mock.inputs[0]
	require.Equal(t, "my-bucket", aws.ToString(input.Bucket), "bucket")
	require.Equal(t, "docs/a.txt", aws.ToString(input.Key), "key")
	require.Equal(t, int64(5), aws.ToInt64(input.ContentLength), "content length")
	require.Equal(t, "text/plain", aws.ToString(input.ContentType), "content type")
	require.Equal(t, types.ObjectCannedACLPublicRead, input.ACL, "acl")
	require.Equal(t, []byte("hello"), mock.objects["docs/a.txt"], "stored payload")
}

func TestAWSClientStatusErrors(t *testing.T) {
	t.Parallel()

	mock := newMockS3Client()
	mock.err = responseError(http.StatusForbidden, "AccessDenied", "Access Denied")
	client := storage.NewAWSClientWithAPI("my-bucket", mock)

	resp, err := client.PutStream(t.Context(), strings.NewReader("x"), "k", storage.Metadata{ContentLength: 1})
	require.NoError(t, err, "a response error is not a transport error")
	require.Equal(t, http.StatusForbidden, resp.StatusCode, "status code")

	err = storage.Check(resp, err)
	var statusErr *storage.StatusError
	require.ErrorAs(t, err, &statusErr, "expected status error")
	require.Equal(t, "AccessDenied: Access Denied", statusErr.Message, "message")
}

func TestAWSClientTransportErrors(t *testing.T) {
	t.Parallel()

	mock := newMockS3Client()
	cause := errors.New("dial tcp: connection refused")
	mock.err = cause
	client := storage.NewAWSClientWithAPI("my-bucket", mock)

	resp, err := client.DeleteObject(t.Context(), "k")
	require.Nil(t, resp, "no response expected")

	var transportErr *storage.TransportError
	require.ErrorAs(t, err, &transportErr, "expected transport error")
	require.ErrorIs(t, err, cause, "cause should be wrapped")
}

func TestAWSClientDelete(t *testing.T) {
	t.Parallel()

	mock := newMockS3Client()
	mock.objects["k"] = []byte("x")
	client := storage.NewAWSClientWithAPI("my-bucket", mock)

	resp, err := client.DeleteObject(t.Context(), "k")
	require.NoError(t, storage.Check(resp, err, http.StatusOK, http.StatusNoContent), "DeleteObject error")
	require.NotContains(t, mock.objects, "k", "object should be removed")
}
