package persistent

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/andreyxaxa/Submission-Pipeline/pkg/s3client"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/types/errs"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// DocumentRepo reads uploaded applicant documents from an S3 bucket.
type DocumentRepo struct {
	*s3client.S3Client
	bucket  string
	maxSize int64
}

func NewDocumentRepo(s3c *s3client.S3Client, bucket string, maxSize int64) *DocumentRepo {
	return &DocumentRepo{s3c, bucket, maxSize}
}

func (r *DocumentRepo) Size(ctx context.Context, key string) (int64, error) {
	out, err := r.Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return 0, fmt.Errorf("DocumentRepo - Size: %w", errs.ErrRecordNotFound)
		}
		return 0, fmt.Errorf("DocumentRepo - Size - r.Client.HeadObject: %w", err)
	}

	return aws.ToInt64(out.ContentLength), nil
}

// DownloadBytes reads at most maxSize+1 bytes so the caller can detect oversize objects.
func (r *DocumentRepo) DownloadBytes(ctx context.Context, key string) ([]byte, error) {
	result, err := r.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("DocumentRepo - DownloadBytes: %w", errs.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("DocumentRepo - DownloadBytes - r.Client.GetObject: %w", err)
	}
	defer result.Body.Close()

	b, err := io.ReadAll(io.LimitReader(result.Body, r.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("DocumentRepo - DownloadBytes - io.ReadAll: %w", err)
	}

	return b, nil
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	var nsk *types.NoSuchKey

	return errors.As(err, &nf) || errors.As(err, &nsk)
}
