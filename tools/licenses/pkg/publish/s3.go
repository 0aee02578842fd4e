// Package publish uploads rendered license reports as CI artifacts.
package publish

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Key             string `yaml:"key"`
	Region          string `yaml:"region"`
	EndpointURL     string `yaml:"endpoint_url"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// Enabled reports whether publication was requested at all.
func (c S3Config) Enabled() bool {
	return c.Bucket != "" || c.Key != ""
}

func (c S3Config) Validate() error {
	if !c.Enabled() {
		return nil
	}
	if c.Bucket == "" {
		return fmt.Errorf("s3 bucket cannot be empty when publishing")
	}
	if c.Key == "" {
		return fmt.Errorf("s3 key cannot be empty when publishing")
	}
	if (c.AccessKeyID == "") != (c.SecretAccessKey == "") {
		return fmt.Errorf("s3 access_key_id and secret_access_key must be set together")
	}
	return nil
}

// ObjectPutter is the subset of *s3.Client used here.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Publisher struct {
	client ObjectPutter
	cfg    S3Config
	log    *slog.Logger
}

func NewS3Publisher(ctx context.Context, log *slog.Logger, cfg S3Config) (*S3Publisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var client *s3.Client
	if cfg.EndpointURL != "" {
		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true
		})
		log.Info("Using custom S3 endpoint", "endpoint", cfg.EndpointURL)
	} else {
		client = s3.NewFromConfig(awsCfg)
	}

	return NewS3PublisherWithClient(log, cfg, client), nil
}

func NewS3PublisherWithClient(log *slog.Logger, cfg S3Config, client ObjectPutter) *S3Publisher {
	return &S3Publisher{client: client, cfg: cfg, log: log}
}

// Publish uploads data to the configured bucket and key and returns the
// object URL.
func (p *S3Publisher) Publish(ctx context.Context, data []byte, contentType string) (string, error) {
	p.log.Info("Operation started", "operation", "publish_s3", "bucket", p.cfg.Bucket, "key", p.cfg.Key, "bytes", len(data))

	_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.cfg.Bucket),
		Key:         aws.String(p.cfg.Key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		ContentMD5:  aws.String(contentMD5(data)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to put s3://%s/%s: %w", p.cfg.Bucket, p.cfg.Key, err)
	}

	url := p.objectURL()
	p.log.Info("Operation completed", "operation", "publish_s3", "url", url)
	return url, nil
}

func (p *S3Publisher) objectURL() string {
	if p.cfg.EndpointURL != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(p.cfg.EndpointURL, "/"), p.cfg.Bucket, p.cfg.Key)
	}
	if p.cfg.Region != "" {
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", p.cfg.Bucket, p.cfg.Region, p.cfg.Key)
	}
	return fmt.Sprintf("s3://%s/%s", p.cfg.Bucket, p.cfg.Key)
}

func contentMD5(data []byte) string {
	sum := md5.Sum(data)
	return base64.StdEncoding.EncodeToString(sum[:])
}
