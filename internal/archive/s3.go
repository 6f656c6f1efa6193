// Package archive writes backup snapshots to S3-compatible object storage
// (AWS S3, MinIO, ...).
//
// Objects are laid out per user and per day:
//
//	users/<userID>/backups/<yyyy>/<mm>/<dd>/<uuid>.json
//
// so a bucket lifecycle rule can expire old backups by prefix.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// Config holds the object storage settings.
//
//   - Endpoint is only needed for non-AWS backends such as MinIO.
//   - AccessKey/SecretKey empty means "use the default AWS credential chain".
type Config struct {
	Bucket       string
	Region       string
	Endpoint     string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

// objectPutter is the one S3 call we make. *s3.Client satisfies it; tests
// pass a fake.
type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver uploads snapshots with PutObject.
type S3Archiver struct {
	client objectPutter
	bucket string
	newID  func() string
}

// NewS3 builds an S3 client from cfg.
func NewS3(ctx context.Context, cfg Config) (*S3Archiver, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("archive: bucket is required")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("archive: loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return newS3Archiver(client, cfg.Bucket), nil
}

func newS3Archiver(client objectPutter, bucket string) *S3Archiver {
	return &S3Archiver{
		client: client,
		bucket: bucket,
		newID:  func() string { return uuid.New().String() },
	}
}

// Archive stores body under a fresh key for userID and returns the key.
func (a *S3Archiver) Archive(ctx context.Context, userID string, at time.Time, body []byte) (string, error) {
	key := ObjectKey(userID, at, a.newID())

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String("application/json"),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		return "", fmt.Errorf("archive: putting %s: %w", key, err)
	}
	return key, nil
}

// ObjectKey builds the storage key for a backup taken at at (UTC date).
func ObjectKey(userID string, at time.Time, id string) string {
	at = at.UTC()
	return fmt.Sprintf("users/%s/backups/%04d/%02d/%02d/%s.json", userID, at.Year(), int(at.Month()), at.Day(), id)
}
