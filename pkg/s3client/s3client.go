package s3client

import (
	"context"
	"fmt"
	"time"

	"github.com/andreyxaxa/Submission-Pipeline/pkg/connect"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const (
	_defaultConnAttempts = 10
	_defaultConnTimeout  = time.Second
	_defaultDialTimeout  = 10 * time.Second
	_defaultRegion       = "us-east-1"
)

type S3Client struct {
	connAttempts int
	connTimeout  time.Duration
	dialTimeout  time.Duration

	endpoint     string
	region       string
	accessKey    string
	secretKey    string
	usePathStyle bool
	bucket       string

	Client *s3.Client
}

func New(ctx context.Context, endpoint, accessKey, secretKey string, opts ...Option) (*S3Client, error) {
	s3c := &S3Client{
		connAttempts: _defaultConnAttempts,
		connTimeout:  _defaultConnTimeout,
		dialTimeout:  _defaultDialTimeout,
		region:       _defaultRegion,
		endpoint:     endpoint,
		accessKey:    accessKey,
		secretKey:    secretKey,
		usePathStyle: true,
	}

	for _, opt := range opts {
		opt(s3c)
	}

	cfg, err := config.LoadDefaultConfig(
		ctx,
		config.WithRegion(s3c.region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s3c.accessKey, s3c.secretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("S3Client - New - config.LoadDefaultConfig: %w", err)
	}

	s3c.Client = s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = s3c.usePathStyle
		if s3c.endpoint != "" {
			o.BaseEndpoint = aws.String(s3c.endpoint)
		}
	})

	if err = connect.Retry(ctx, "S3", s3c.connAttempts, s3c.connTimeout, s3c.ping); err != nil {
		return nil, fmt.Errorf("S3Client - New - connect.Retry: %w", err)
	}

	return s3c, nil
}

// ping checks the documents bucket, or lists buckets when none is configured.
func (s *S3Client) ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.dialTimeout)
	defer cancel()

	if s.bucket == "" {
		if _, err := s.Client.ListBuckets(ctx, &s3.ListBucketsInput{}); err != nil {
			return fmt.Errorf("s.Client.ListBuckets: %w", err)
		}

		return nil
	}

	if _, err := s.Client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return fmt.Errorf("s.Client.HeadBucket %s: %w", s.bucket, err)
	}

	return nil
}
