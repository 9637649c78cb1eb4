package media

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// S3Config holds S3/MinIO configuration.
type S3Config struct {
	Endpoint        string // e.g. "http://localhost:9000" for MinIO
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Region          string
	PublicURL       string // base URL objects are served from
}

// objectPutter is the slice of *s3.Client the uploader needs.
type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader stores payloads in an S3-compatible bucket.
type S3Uploader struct {
	client    objectPutter
	bucket    string
	publicURL string
	now       func() time.Time
}

// NewS3Uploader creates an uploader with static credentials and a custom endpoint.
func NewS3Uploader(cfg S3Config) (*S3Uploader, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	opts := s3.Options{
		Region: cfg.Region,
		Credentials: credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		),
		UsePathStyle: true, // MinIO
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}

	return newS3Uploader(s3.New(opts), cfg), nil
}

func newS3Uploader(client objectPutter, cfg S3Config) *S3Uploader {
	publicURL := cfg.PublicURL
	if publicURL == "" {
		publicURL = strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	}
	return &S3Uploader{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
		now:       time.Now,
	}
}

// Upload decodes the payload, stores it and returns the public URL.
func (u *S3Uploader) Upload(ctx context.Context, payload string, kind ResourceType) (string, error) {
	decoded, err := Decode(payload)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("%s/%s/%s%s",
		kind,
		u.now().UTC().Format("2006/01/02"),
		uuid.NewString(),
		extensionFor(decoded.ContentType),
	)

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(decoded.Data),
		ContentType:   aws.String(decoded.ContentType),
		ContentLength: aws.Int64(int64(len(decoded.Data))),
	})
	if err != nil {
		return "", fmt.Errorf("uploading to s3: %w", err)
	}

	return u.publicURL + "/" + key, nil
}
