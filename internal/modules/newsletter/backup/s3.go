package backup

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stewart-lhc/silksong-nextjs-sub001/internal/config"
)

const defaultObjectKeyTemplate = "newsletter/{Y}/{m}/{filename}"

// Uploader ships a finished backup somewhere off the host.
type Uploader interface {
	Upload(ctx context.Context, filename string, payload []byte, contentType string, now time.Time) (location string, err error)
}

// S3Uploader puts backups into an S3 (or S3-compatible) bucket.
type S3Uploader struct {
	client   *s3.Client
	bucket   string
	template string
}

func NewS3Uploader(cfg config.S3Config) (*S3Uploader, error) {
	bucket := strings.TrimSpace(cfg.Bucket)
	accessKey := strings.TrimSpace(cfg.AccessKeyID)
	secretKey := strings.TrimSpace(cfg.SecretAccessKey)
	if bucket == "" || accessKey == "" || secretKey == "" {
		return nil, fmt.Errorf("incomplete s3 config: bucket/access_key_id/secret_access_key are required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	opts := s3.Options{
		Region:                     region,
		Credentials:                credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		UsePathStyle:               cfg.PathStyle,
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
	}
	if endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/"); endpoint != "" {
		if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
			endpoint = "https://" + endpoint
		}
		opts.BaseEndpoint = aws.String(endpoint)
		// custom endpoints (MinIO, R2) rarely resolve virtual-hosted buckets
		opts.UsePathStyle = true
	}

	return &S3Uploader{
		client:   s3.New(opts),
		bucket:   bucket,
		template: cfg.Prefix,
	}, nil
}

func (u *S3Uploader) Upload(ctx context.Context, filename string, payload []byte, contentType string, now time.Time) (string, error) {
	key := renderObjectKey(u.template, filename, now)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(payload),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(payload))),
	})
	if err != nil {
		return "", fmt.Errorf("s3 put %s: %w", key, err)
	}
	return "s3://" + u.bucket + "/" + key, nil
}

// renderObjectKey expands {Y} {m} {d} {H} {M} {s} and {filename}. A template
// without {filename} is treated as a directory.
func renderObjectKey(template, filename string, now time.Time) string {
	tpl := strings.TrimSpace(template)
	if tpl == "" {
		tpl = defaultObjectKeyTemplate
	}
	if !strings.Contains(tpl, "{filename}") {
		tpl = strings.TrimRight(tpl, "/") + "/{filename}"
	}

	replacer := strings.NewReplacer(
		"{Y}", now.Format("2006"),
		"{m}", now.Format("01"),
		"{d}", now.Format("02"),
		"{H}", now.Format("15"),
		"{M}", now.Format("04"),
		"{s}", now.Format("05"),
		"{filename}", filename,
	)

	key := replacer.Replace(tpl)
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimSpace(strings.TrimPrefix(key, "/"))
	for strings.Contains(key, "//") {
		key = strings.ReplaceAll(key, "//", "/")
	}
	if key == "" {
		return filename
	}
	return key
}
