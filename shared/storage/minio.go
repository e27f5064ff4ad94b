package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"backoffice-backend/shared/config"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"
)

type MinIOStore struct {
	client     *minio.Client
	bucketName string
	publicURL  string
}

func NewMinIOStore(ctx context.Context, opts config.MinIOOptions) (*MinIOStore, error) {
	// Parse endpoint URL to get host
	parsedURL, err := url.Parse(opts.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid MinIO endpoint: %w", err)
	}
	endpoint := parsedURL.Host
	if endpoint == "" {
		endpoint = opts.ServerURL
	}

	logrus.WithFields(logrus.Fields{"endpoint": endpoint, "ssl": opts.UseSSL}).Info("connecting to minio")

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.RootUser, opts.RootPassword, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	publicURL := opts.PublicURL
	if publicURL == "" {
		publicURL = opts.ServerURL
	}

	s := &MinIOStore{client: client, bucketName: opts.BucketName, publicURL: publicURL}
	if err := s.initializeBucket(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MinIOStore) initializeBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	logrus.WithField("bucket", s.bucketName).Info("minio bucket created")
	return nil
}

// Put uploads r under folder with a random name that keeps the extension of
// fileName, and returns the public URL of the object.
func (s *MinIOStore) Put(ctx context.Context, folder, fileName string, r io.Reader, size int64, contentType string) (string, error) {
	key := ObjectKey(folder, fileName)
	_, err := s.client.PutObject(ctx, s.bucketName, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}
	logrus.WithFields(logrus.Fields{"bucket": s.bucketName, "key": key, "size": size}).Info("object uploaded")
	return ObjectURL(s.publicURL, s.bucketName, key), nil
}

// Remove deletes the object behind an URL returned by Put.
func (s *MinIOStore) Remove(ctx context.Context, objectURL string) error {
	prefix := strings.TrimRight(s.publicURL, "/") + "/" + s.bucketName + "/"
	if !strings.HasPrefix(objectURL, prefix) {
		return nil
	}
	key := strings.TrimPrefix(objectURL, prefix)
	if err := s.client.RemoveObject(ctx, s.bucketName, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove file: %w", err)
	}
	return nil
}

// Ping lists buckets to test the connection.
func (s *MinIOStore) Ping(ctx context.Context) error {
	if _, err := s.client.ListBuckets(ctx); err != nil {
		return fmt.Errorf("failed to connect to MinIO: %w", err)
	}
	return nil
}

func ObjectKey(folder, fileName string) string {
	folder = strings.Trim(folder, "/")
	name := uuid.NewString() + strings.ToLower(path.Ext(fileName))
	if folder == "" {
		return name
	}
	return folder + "/" + name
}

func ObjectURL(publicURL, bucket, key string) string {
	return strings.TrimRight(publicURL, "/") + "/" + bucket + "/" + key
}
