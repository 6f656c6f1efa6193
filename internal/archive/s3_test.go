package archive

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	in   *s3.PutObjectInput
	body []byte
	err  error
}

func (f *fakePutter) PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	if in.Body != nil {
		f.body, _ = io.ReadAll(in.Body)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestObjectKey(t *testing.T) {
	at := time.Date(2024, 3, 7, 23, 30, 0, 0, time.FixedZone("PST", -8*3600))
	// 23:30 PST is already the 8th in UTC
	assert.Equal(t, "users/u1/backups/2024/03/08/abc.json", ObjectKey("u1", at, "abc"))
}

func TestArchive_PutsObject(t *testing.T) {
	fake := &fakePutter{}
	a := newS3Archiver(fake, "backups")
	a.newID = func() string { return "fixed-id" }

	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	key, err := a.Archive(context.Background(), "u1", at, []byte(`{"version":"1.0"}`))
	require.NoError(t, err)

	assert.Equal(t, "users/u1/backups/2024/01/02/fixed-id.json", key)
	require.NotNil(t, fake.in)
	assert.Equal(t, "backups", aws.ToString(fake.in.Bucket))
	assert.Equal(t, key, aws.ToString(fake.in.Key))
	assert.Equal(t, "application/json", aws.ToString(fake.in.ContentType))
	assert.Equal(t, int64(17), aws.ToInt64(fake.in.ContentLength))
	assert.Equal(t, `{"version":"1.0"}`, string(fake.body))
}

func TestArchive_Error(t *testing.T) {
	fake := &fakePutter{err: errors.New("access denied")}
	a := newS3Archiver(fake, "backups")

	_, err := a.Archive(context.Background(), "u1", time.Now(), []byte("{}"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestArchive_UniqueKeys(t *testing.T) {
	a := newS3Archiver(&fakePutter{}, "backups")
	at := time.Now()

	k1, err := a.Archive(context.Background(), "u1", at, []byte("{}"))
	require.NoError(t, err)
	k2, err := a.Archive(context.Background(), "u1", at, []byte("{}"))
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2)
}

func TestNewS3_RequiresBucket(t *testing.T) {
	_, err := NewS3(context.Background(), Config{Region: "us-east-1"})
	assert.Error(t, err)
}

func TestNewS3_StaticCredentials(t *testing.T) {
	a, err := NewS3(context.Background(), Config{
		Bucket:       "backups",
		Region:       "us-east-1",
		Endpoint:     "http://localhost:9000",
		AccessKey:    "minio",
		SecretKey:    "minio123",
		UsePathStyle: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "backups", a.bucket)
}
