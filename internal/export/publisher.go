package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/rewired-gh/powerprices/internal/models"
)

// Publisher stores an encoded export and returns where it can be fetched.
type Publisher interface {
	Publish(ctx context.Context, key string, body []byte) (string, error)
}

// ObjectKey is the bucket key of export id for view, partitioned by day.
func ObjectKey(id string, view models.View, at time.Time) string {
	return path.Join("exports", at.UTC().Format(models.DateLayout), string(view)+"-"+id+".csv")
}

// S3Options configures an S3-compatible bucket (AWS S3, Cloudflare R2, MinIO).
type S3Options struct {
	Endpoint      string
	Region        string
	Bucket        string
	AccessKey     string
	SecretKey     string
	PublicBaseURL string
}

// S3Publisher uploads exports with PutObject.
type S3Publisher struct {
	client  *s3.Client
	bucket  string
	baseURL string
}

// NewS3Publisher builds a client from static credentials. An empty endpoint uses AWS.
func NewS3Publisher(ctx context.Context, opts S3Options) (*S3Publisher, error) {
	if opts.Bucket == "" {
		return nil, errors.New("bucket must not be empty")
	}
	region := opts.Region
	if region == "" {
		region = "auto"
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load S3 config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Publisher{
		client:  client,
		bucket:  opts.Bucket,
		baseURL: strings.TrimRight(opts.PublicBaseURL, "/"),
	}, nil
}

// Publish uploads body under key. The returned URL is rooted at the public base URL when
// one is configured, otherwise it is an s3:// URI.
func (p *S3Publisher) Publish(ctx context.Context, key string, body []byte) (string, error) {
	_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:             aws.String(p.bucket),
		Key:                aws.String(key),
		Body:               bytes.NewReader(body),
		ContentType:        aws.String(ContentType),
		ContentDisposition: aws.String(`attachment; filename="` + FileName + `"`),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return p.url(key), nil
}

func (p *S3Publisher) url(key string) string {
	if p.baseURL != "" {
		return p.baseURL + "/" + key
	}
	return "s3://" + p.bucket + "/" + key
}
