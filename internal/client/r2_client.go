package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/config"
)

var ErrStorageNotConfigured = errors.New("object storage configuration incomplete")

// Object describes an artifact being handed to object storage
type Object struct {
	Key          string
	ContentType  string
	Size         int64
	DownloadName string // suggested filename for the browser, optional
}

// StorageClient is the object storage used by link delivery
type StorageClient interface {
	Upload(ctx context.Context, obj Object, body io.Reader) error
	Delete(ctx context.Context, key string) error
	GetSignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// R2Client talks to Cloudflare R2, or any S3-compatible endpoint when
// cfg.Endpoint is set
type R2Client struct {
	s3Client  *s3.Client
	presigner *s3.PresignClient
	bucket    string
}

func NewR2Client(ctx context.Context, cfg *config.R2Config) (*R2Client, error) {
	endpoint, pathStyle, err := endpointFor(cfg)
	if err != nil {
		return nil, err
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = pathStyle
	})

	return &R2Client{
		s3Client:  s3Client,
		presigner: s3.NewPresignClient(s3Client),
		bucket:    cfg.BucketName,
	}, nil
}

func endpointFor(cfg *config.R2Config) (endpoint string, pathStyle bool, err error) {
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" || cfg.BucketName == "" {
		return "", false, ErrStorageNotConfigured
	}
	if cfg.Endpoint != "" {
		return cfg.Endpoint, true, nil
	}
	if cfg.AccountID == "" {
		return "", false, ErrStorageNotConfigured
	}
	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID), false, nil
}

// Upload stores a private object. Delivered links are the only way to read it.
func (c *R2Client) Upload(ctx context.Context, obj Object, body io.Reader) error {
	input := &s3.PutObjectInput{
		Bucket:       aws.String(c.bucket),
		Key:          aws.String(obj.Key),
		Body:         body,
		ContentType:  aws.String(obj.ContentType),
		CacheControl: aws.String("private, no-store"),
	}
	if obj.Size > 0 {
		input.ContentLength = aws.Int64(obj.Size)
	}
	if d := attachmentDisposition(obj.DownloadName); d != "" {
		input.ContentDisposition = aws.String(d)
	}

	if _, err := c.s3Client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("failed to upload %s: %w", obj.Key, err)
	}
	return nil
}

func attachmentDisposition(name string) string {
	if name == "" {
		return ""
	}
	return mime.FormatMediaType("attachment", map[string]string{"filename": name})
}

func (c *R2Client) Delete(ctx context.Context, key string) error {
	_, err := c.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// GetSignedURL returns a GET link that expires after expiry
func (c *R2Client) GetSignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	req, err := c.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return req.URL, nil
}

// Ping checks that the bucket is reachable with the configured credentials
func (c *R2Client) Ping(ctx context.Context) error {
	if _, err := c.s3Client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.bucket)}); err != nil {
		return fmt.Errorf("bucket %s unavailable: %w", c.bucket, err)
	}
	return nil
}
