package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/dmitrijs2005/chunkvault/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects   map[string][]byte
	meta      map[string]map[string]string
	putErr    error
	headErr   error
	deleteErr error
	bucketErr error
	created   bool
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, meta: map[string]map[string]string{}}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	if int64(len(b)) != aws.ToInt64(in.ContentLength) {
		return nil, errors.New("content length mismatch")
	}
	f.objects[aws.ToString(in.Key)] = b
	f.meta[aws.ToString(in.Key)] = in.Metadata
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	if _, ok := f.objects[aws.ToString(in.Key)]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if f.bucketErr != nil {
		return nil, f.bucketErr
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeS3) CreateBucket(ctx context.Context, in *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	f.created = true
	return &s3.CreateBucketOutput{}, nil
}

// servePresigner presigns to an httptest server that serves fakeS3 objects.
type servePresigner struct {
	base string
	err  error
}

func (p *servePresigner) PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	if p.err != nil {
		return nil, p.err
	}
	var po s3.PresignOptions
	for _, fn := range optFns {
		fn(&po)
	}
	if po.Expires <= 0 {
		return nil, errors.New("expiry not set")
	}
	return &v4.PresignedHTTPRequest{URL: p.base + "/" + aws.ToString(in.Key), Method: http.MethodGet}, nil
}

func newTestS3Store(t *testing.T) (*S3Store, *fakeS3) {
	t.Helper()
	f := newFakeS3()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, ok := f.objects[strings.TrimPrefix(r.URL.Path, "/")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(b)
	}))
	t.Cleanup(srv.Close)
	s := newS3Store(f, &servePresigner{base: srv.URL}, S3Options{Bucket: "chunks", HTTPClient: srv.Client()})
	return s, f
}

func TestS3Store_UploadResolveDelete(t *testing.T) {
	ctx := context.Background()
	s, f := newTestS3Store(t)

	data := []byte("ciphertext bytes")
	ref, err := s.Upload(ctx, bytes.NewReader(data), int64(len(data)), "report q1.pdf#2")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "chunks/"))
	assert.Equal(t, url.PathEscape("report q1.pdf#2"), f.meta[ref]["label"])

	got, err := s.Resolve(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	require.NoError(t, s.Delete(ctx, ref))
	assert.Empty(t, f.objects)

	err = s.Delete(ctx, ref)
	assert.ErrorIs(t, err, common.ErrReferenceNotFound)

	_, err = s.Resolve(ctx, ref)
	assert.ErrorIs(t, err, common.ErrReferenceNotFound)
}

func TestS3Store_DistinctReferences(t *testing.T) {
	s, _ := newTestS3Store(t)
	a, err := s.Upload(context.Background(), bytes.NewReader([]byte("x")), 1, "same")
	require.NoError(t, err)
	b, err := s.Upload(context.Background(), bytes.NewReader([]byte("x")), 1, "same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestS3Store_ErrorMapping(t *testing.T) {
	ctx := context.Background()

	s, f := newTestS3Store(t)
	f.putErr = &smithy.GenericAPIError{Code: "AccessDenied", Message: "no"}
	_, err := s.Upload(ctx, bytes.NewReader([]byte("x")), 1, "l")
	assert.ErrorIs(t, err, common.ErrBackendRejected)

	f.putErr = errors.New("dial tcp: connection refused")
	_, err = s.Upload(ctx, bytes.NewReader([]byte("x")), 1, "l")
	assert.ErrorIs(t, err, common.ErrBackendUnavailable)

	f.putErr = &smithy.GenericAPIError{Code: "SlowDown"}
	_, err = s.Upload(ctx, bytes.NewReader([]byte("x")), 1, "l")
	assert.ErrorIs(t, err, common.ErrBackendUnavailable)

	f.putErr = context.DeadlineExceeded
	_, err = s.Upload(ctx, bytes.NewReader([]byte("x")), 1, "l")
	assert.ErrorIs(t, err, common.ErrBackendUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	f.headErr = &smithy.GenericAPIError{Code: "Forbidden"}
	assert.ErrorIs(t, s.Delete(ctx, "k"), common.ErrBackendRejected)
}

func TestS3Store_PresignError(t *testing.T) {
	f := newFakeS3()
	s := newS3Store(f, &servePresigner{err: errors.New("sign-fail")}, S3Options{Bucket: "b"})
	_, err := s.Resolve(context.Background(), "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sign-fail")
}

func TestS3Store_EnsureBucket(t *testing.T) {
	s, f := newTestS3Store(t)
	require.NoError(t, s.EnsureBucket(context.Background()))
	assert.False(t, f.created)

	f.bucketErr = &types.NotFound{}
	require.NoError(t, s.EnsureBucket(context.Background()))
	assert.True(t, f.created)

	f.created = false
	f.bucketErr = &smithy.GenericAPIError{Code: "AccessDenied"}
	assert.ErrorIs(t, s.EnsureBucket(context.Background()), common.ErrBackendRejected)
	assert.False(t, f.created)
}

func TestNewS3Store_ClientOptions(t *testing.T) {
	origLoad := loadDefaultAWSConfig
	origNewS3 := newS3ClientFromConfig
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNewS3
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			if err := fn(&lo); err != nil {
				t.Fatalf("load options fn error: %v", err)
			}
		}
		if lo.Region != "us-east-1" {
			t.Fatalf("region not applied: %q", lo.Region)
		}
		if lo.Credentials == nil {
			t.Fatalf("static credentials not applied")
		}
		return aws.Config{}, nil
	}

	var opts s3.Options
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		for _, fn := range optFns {
			fn(&opts)
		}
		return s3.New(s3.Options{Region: "us-east-1"})
	}

	s, err := NewS3Store(context.Background(), S3Options{
		Bucket: "b", Region: "us-east-1", AccessKey: "u", SecretKey: "p",
		BaseEndpoint: "http://127.0.0.1:9000", PresignTTL: time.Minute,
	})
	require.NoError(t, err)
	assert.Equal(t, time.Minute, s.ttl)
	require.NotNil(t, opts.BaseEndpoint)
	assert.Equal(t, "http://127.0.0.1:9000", *opts.BaseEndpoint)
	assert.True(t, opts.UsePathStyle)

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("load-fail")
	}
	_, err = NewS3Store(context.Background(), S3Options{})
	if err == nil || err.Error() != "load-fail" {
		t.Fatalf("want load-fail, got %v", err)
	}
}
