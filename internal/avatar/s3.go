package avatar

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// S3Store stores avatar objects in an S3 bucket. The key doubles as the
// public id, so Remove needs no extra lookup.
type S3Store struct {
	client  *s3.Client
	bucket  string
	baseURL string
}

// NewS3Store wraps an existing S3 client. baseURL is the public prefix
// objects are served from; when empty, the virtual-hosted S3 URL is used.
func NewS3Store(client *s3.Client, bucket, baseURL string) *S3Store {
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.s3.amazonaws.com", bucket)
	}
	return &S3Store{client: client, bucket: bucket, baseURL: baseURL}
}

// Upload writes the avatar bytes under a fresh per-user key.
func (s *S3Store) Upload(ctx context.Context, userID, contentType string, data []byte) (Object, error) {
	key := fmt.Sprintf("avatars/%s/%s", userID, uuid.New().String())

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return Object{}, fmt.Errorf("avatar: s3 upload: %w", err)
	}

	return Object{
		PublicID: key,
		URL:      s.baseURL + "/" + key,
	}, nil
}

// Remove deletes a previously uploaded object. S3 DeleteObject is a no-op
// for absent keys, which matches the best-effort contract here.
func (s *S3Store) Remove(ctx context.Context, publicID string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(publicID),
	})
	if err != nil {
		return fmt.Errorf("avatar: s3 remove: %w", err)
	}
	return nil
}
