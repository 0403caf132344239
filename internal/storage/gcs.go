package storage

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"
	"google.golang.org/api/option"

	"example.com/albaranes/config"
)

// GCSStore uploads artifacts to a Google Cloud Storage bucket
type GCSStore struct {
	client  *storage.Client
	bucket  string
	baseURL string
}

// NewGCSStore creates a GCS store. Explicit credentials JSON takes precedence
// over application default credentials.
func NewGCSStore(ctx context.Context, cfg config.StorageConfig) (*GCSStore, error) {
	var opts []option.ClientOption
	if strings.TrimSpace(cfg.CredentialsJSON) != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create GCS client")
	}

	baseURL := strings.TrimRight(cfg.PublicBaseURL, "/")
	if baseURL == "" || strings.HasPrefix(baseURL, "http://localhost") {
		baseURL = "https://storage.googleapis.com/" + cfg.Bucket
	}

	return &GCSStore{client: client, bucket: cfg.Bucket, baseURL: baseURL}, nil
}

// Store uploads data and returns the object's public URL
func (s *GCSStore) Store(ctx context.Context, data []byte, name string, contentType string) (string, error) {
	objectName := SafeName(name)

	wc := s.client.Bucket(s.bucket).Object(objectName).NewWriter(ctx)
	wc.ContentType = contentType
	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return "", errors.Wrapf(err, "failed to upload %s", objectName)
	}
	if err := wc.Close(); err != nil {
		return "", errors.Wrapf(err, "failed to finalize upload of %s", objectName)
	}

	return fmt.Sprintf("%s/%s", s.baseURL, objectName), nil
}

// Close closes the GCS client
func (s *GCSStore) Close() error {
	return s.client.Close()
}
