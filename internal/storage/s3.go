package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// S3Store adapts an S3 client to the ObjectStore contract. Containers map to
// buckets, keys to object keys.
type S3Store struct {
	client *s3.Client
	logger *slog.Logger
}

func NewS3Store(client *s3.Client, logger *slog.Logger) *S3Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &S3Store{client: client, logger: logger}
}

// CreateIfAbsent relies on S3's conditional write: If-None-Match: * fails
// with 412 when the key already exists.
func (s *S3Store) CreateIfAbsent(ctx context.Context, ref Ref, body []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(ref.Container),
		Key:         aws.String(ref.Key),
		Body:        bytes.NewReader(body),
		IfNoneMatch: aws.String("*"),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "PreconditionFailed" {
			return ErrConflict
		}
		return fmt.Errorf("put %s/%s: %w", ref.Container, ref.Key, err)
	}
	return nil
}

func (s *S3Store) Delete(ctx context.Context, ref Ref) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(ref.Container),
		Key:    aws.String(ref.Key),
	})
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", ref.Container, ref.Key, err)
	}
	return nil
}

func (s *S3Store) Size(ctx context.Context, ref Ref) (int64, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(ref.Container),
		Key:    aws.String(ref.Key),
	})
	if err != nil {
		return 0, fmt.Errorf("head %s/%s: %w", ref.Container, ref.Key, err)
	}
	if out.ContentLength == nil {
		return 0, nil
	}
	return *out.ContentLength, nil
}

func (s *S3Store) Open(ctx context.Context, ref Ref) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(ref.Container),
		Key:    aws.String(ref.Key),
	})
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", ref.Container, ref.Key, err)
	}
	return out.Body, nil
}
