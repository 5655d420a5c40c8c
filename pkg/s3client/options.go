package s3client

import "time"

type Option func(c *S3Client)

func ConnAttempts(attempts int) Option {
	return func(c *S3Client) { c.connAttempts = attempts }
}

func ConnTimeout(timeout time.Duration) Option {
	return func(c *S3Client) { c.connTimeout = timeout }
}

// DialTimeout bounds each reachability check.
func DialTimeout(timeout time.Duration) Option {
	return func(c *S3Client) { c.dialTimeout = timeout }
}

func Region(region string) Option {
	return func(c *S3Client) { c.region = region }
}

func UsePathStyle(use bool) Option {
	return func(c *S3Client) { c.usePathStyle = use }
}

// Bucket makes New verify that the bucket is reachable instead of listing all buckets.
func Bucket(name string) Option {
	return func(c *S3Client) { c.bucket = name }
}
