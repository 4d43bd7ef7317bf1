package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dmitrijs2005/habitsync/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssetKey(t *testing.T) {
	assert.Equal(t, "u1/Affirmations/r1/abc", AssetKey("u1", "Affirmations", "r1", "abc"))
}

func TestBillyStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Get(ctx, "u/z/r/sum")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	require.NoError(t, s.Put(ctx, "u/z/r/sum", []byte("audio")))
	got, err := s.Get(ctx, "u/z/r/sum")
	require.NoError(t, err)
	assert.Equal(t, []byte("audio"), got)

	require.NoError(t, s.Put(ctx, "u/z/r/sum", []byte("again")))
	got, err = s.Get(ctx, "u/z/r/sum")
	require.NoError(t, err)
	assert.Equal(t, []byte("again"), got)

	require.NoError(t, s.Delete(ctx, "u/z/r/sum"))
	require.NoError(t, s.Delete(ctx, "u/z/r/sum"), "deleting a missing blob is not an error")
	_, err = s.Get(ctx, "u/z/r/sum")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

type fakeS3 struct {
	objects map[string][]byte
	err     error
	opts    s3.Options
}

func newFakeS3() *fakeS3 { return &fakeS3{objects: map[string][]byte{}} }

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	delete(f.objects, aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func withFakeS3(t *testing.T) *fakeS3 {
	t.Helper()
	fake := newFakeS3()

	origLoad, origNew := loadDefaultAWSConfig, newS3ClientFromConfig
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*config.LoadOptions) error) (aws.Config, error) {
		var lo config.LoadOptions
		for _, fn := range optFns {
			if err := fn(&lo); err != nil {
				return aws.Config{}, err
			}
		}
		return aws.Config{Region: lo.Region, Credentials: lo.Credentials}, nil
	}
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) s3API {
		for _, fn := range optFns {
			fn(&fake.opts)
		}
		fake.opts.Region = cfg.Region
		fake.opts.Credentials = cfg.Credentials
		return fake
	}
	t.Cleanup(func() { loadDefaultAWSConfig, newS3ClientFromConfig = origLoad, origNew })
	return fake
}

func TestNewS3Store_Options(t *testing.T) {
	fake := withFakeS3(t)

	_, err := NewS3Store(context.Background(), S3Config{
		Bucket: "vault", Region: "eu-west-1", Endpoint: "http://127.0.0.1:9000/",
		AccessKeyID: "admin", SecretAccessKey: "secret",
	})
	require.NoError(t, err)

	assert.Equal(t, "eu-west-1", fake.opts.Region)
	assert.Equal(t, "http://127.0.0.1:9000/", aws.ToString(fake.opts.BaseEndpoint))
	assert.True(t, fake.opts.UsePathStyle)
	require.NotNil(t, fake.opts.Credentials)
	creds, err := fake.opts.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "admin", creds.AccessKeyID)
}

func TestNewS3Store_RequiresBucket(t *testing.T) {
	_, err := NewS3Store(context.Background(), S3Config{})
	assert.Error(t, err)
}

func TestS3Store_RoundTrip(t *testing.T) {
	fake := withFakeS3(t)
	ctx := context.Background()

	s, err := NewS3Store(ctx, S3Config{Bucket: "vault", Region: "us-east-1"})
	require.NoError(t, err)

	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	require.NoError(t, s.Put(ctx, "k", []byte("data")))
	assert.Equal(t, []byte("data"), fake.objects["vault/k"])

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), got)

	require.NoError(t, s.Delete(ctx, "k"))
	assert.Empty(t, fake.objects)
}

func TestS3Store_WrapsErrors(t *testing.T) {
	fake := withFakeS3(t)
	ctx := context.Background()
	s, err := NewS3Store(ctx, S3Config{Bucket: "vault"})
	require.NoError(t, err)

	fake.err = errors.New("network down")
	assert.ErrorContains(t, s.Put(ctx, "k", nil), `s3: put "k"`)
	_, err = s.Get(ctx, "k")
	assert.ErrorContains(t, err, "network down")
	assert.ErrorContains(t, s.Delete(ctx, "k"), `s3: delete "k"`)
}
