// Package storage keeps citizen-uploaded images in S3-compatible object storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/spec-kit/direct-line/internal/config"
)

var (
	// ErrNotImage is returned for uploads whose content type is not image/*.
	ErrNotImage = errors.New("only image uploads are accepted")
	// ErrTooLarge is returned for uploads above the configured limit.
	ErrTooLarge = errors.New("image exceeds size limit")
)

// ImageStore persists ticket images and returns a URL for each.
type ImageStore interface {
	PutTicketImage(ctx context.Context, ticketID string, upload Upload) (StoredImage, error)
	RemoveTicketImage(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// StoredImage locates an uploaded object.
type StoredImage struct {
	Key string
	URL string
}

// Upload is an image received from the submission form. Body must be
// seekable so a failed attempt can be uploaded again.
type Upload struct {
	FileName    string
	ContentType string
	Size        int64
	Body        io.ReadSeeker
}

// Rewind moves Body back to its first byte.
func (u Upload) Rewind() error {
	if u.Body == nil {
		return nil
	}
	_, err := u.Body.Seek(0, io.SeekStart)
	return err
}

// Validate checks the content type and size against max bytes.
func (u Upload) Validate(max int64) error {
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(u.ContentType)), "image/") {
		return ErrNotImage
	}
	if u.Size <= 0 {
		return errors.New("empty image")
	}
	if max > 0 && u.Size > max {
		return fmt.Errorf("%w: %d > %d bytes", ErrTooLarge, u.Size, max)
	}
	return nil
}

// ObjectKey builds tickets/{ticketID}/{objectID}{ext}, keeping only the file extension from the client name.
func ObjectKey(ticketID, objectID, fileName string) string {
	ext := strings.ToLower(path.Ext(path.Base(strings.ReplaceAll(fileName, "\\", "/"))))
	if len(ext) < 2 || len(ext) > 8 {
		ext = ""
	}
	return fmt.Sprintf("tickets/%s/%s%s", ticketID, objectID, ext)
}

// MinioStore implements ImageStore on a MinIO / S3 bucket.
type MinioStore struct {
	client  *minio.Client
	bucket  string
	baseURL string
}

// NewMinioStore connects to the endpoint and ensures the bucket exists with public read access.
func NewMinioStore(ctx context.Context, cfg config.ObjectStoreConfig, logger *zap.Logger) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
		if err := client.SetBucketPolicy(ctx, cfg.Bucket, publicReadPolicy(cfg.Bucket)); err != nil {
			return nil, fmt.Errorf("set bucket policy: %w", err)
		}
		logger.Info("created image bucket", zap.String("bucket", cfg.Bucket))
	}

	baseURL := strings.TrimRight(cfg.PublicBaseURL, "/")
	if baseURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		baseURL = scheme + "://" + cfg.Endpoint
	}

	return &MinioStore{client: client, bucket: cfg.Bucket, baseURL: baseURL}, nil
}

// PutTicketImage uploads the image and returns its key and public URL.
func (s *MinioStore) PutTicketImage(ctx context.Context, ticketID string, upload Upload) (StoredImage, error) {
	key := ObjectKey(ticketID, uuid.NewString(), upload.FileName)
	_, err := s.client.PutObject(ctx, s.bucket, key, upload.Body, upload.Size, minio.PutObjectOptions{
		ContentType: upload.ContentType,
		UserMetadata: map[string]string{
			"ticket-id": ticketID,
		},
	})
	if err != nil {
		return StoredImage{}, fmt.Errorf("put object %s: %w", key, err)
	}
	return StoredImage{Key: key, URL: s.baseURL + "/" + s.bucket + "/" + key}, nil
}

// RemoveTicketImage deletes an object written by PutTicketImage.
func (s *MinioStore) RemoveTicketImage(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %s: %w", key, err)
	}
	return nil
}

// Ping checks that the bucket is reachable.
func (s *MinioStore) Ping(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("bucket %s missing", s.bucket)
	}
	return nil
}

func publicReadPolicy(bucket string) string {
	return `{
  "Version": "2012-10-17",
  "Statement": [
    {
      "Action": ["s3:GetObject"],
      "Effect": "Allow",
      "Principal": "*",
      "Resource": "arn:aws:s3:::` + bucket + `/*"
    }
  ]
}`
}
