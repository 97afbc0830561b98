package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinioStore struct {
	rawEndpoint string
	accessKey   string
	secretKey   string
	bucket      string

	mu       sync.RWMutex
	client   *minio.Client
	endpoint string
	secure   bool
}

func NewMinioStore(endpoint, accessKey, secretKey, bucket string) *MinioStore {
	return &MinioStore{
		rawEndpoint: endpoint,
		accessKey:   accessKey,
		secretKey:   secretKey,
		bucket:      bucket,
	}
}

func (s *MinioStore) Name() string { return "minio" }

func normaliseEndpoint(raw string) (endpoint string, secure bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, fmt.Errorf("empty endpoint")
	}

	// Accept either "minio:9000" or "http://minio:9000" / "https://minio:9000".
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", false, err
		}
		if u.Host == "" {
			return "", false, fmt.Errorf("invalid endpoint")
		}
		if u.Path != "" && u.Path != "/" {
			return "", false, fmt.Errorf("endpoint must not contain a path")
		}
		return u.Host, u.Scheme == "https", nil
	}

	return raw, false, nil
}

func (s *MinioStore) Configure(ctx context.Context) error {
	if s.rawEndpoint == "" || s.accessKey == "" || s.secretKey == "" || s.bucket == "" {
		return fmt.Errorf("%w: minio endpoint, access key, secret key and bucket are required", ErrMissingCredentials)
	}

	endpoint, secure, err := normaliseEndpoint(s.rawEndpoint)
	if err != nil {
		return fmt.Errorf("invalid MINIO_ENDPOINT: %w", err)
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(s.accessKey, s.secretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return fmt.Errorf("failed to configure minio: %w", err)
	}

	// Sanity check: bucket must exist.
	exists, err := client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check minio bucket: %w", err)
	}
	if !exists {
		return fmt.Errorf("minio bucket does not exist: %s", s.bucket)
	}

	s.mu.Lock()
	s.client = client
	s.endpoint = endpoint
	s.secure = secure
	s.mu.Unlock()
	return nil
}

func (s *MinioStore) Configured() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client != nil
}

func (s *MinioStore) get() (*minio.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.client == nil {
		return nil, ErrNotConfigured
	}
	return s.client, nil
}

func (s *MinioStore) objectURL(key string) string {
	scheme := "http"
	if s.secure {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, s.endpoint, s.bucket, key)
}

func (s *MinioStore) Upload(ctx context.Context, name string, r io.Reader, size int64) (*Object, error) {
	client, err := s.get()
	if err != nil {
		return nil, err
	}

	key := name + ".pdf"
	info, err := client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: "application/pdf",
	})
	if err != nil {
		return nil, fmt.Errorf("minio upload failed: %w", err)
	}

	return &Object{
		Provider: s.Name(),
		PublicID: key,
		URL:      s.objectURL(key),
		Bytes:    info.Size,
	}, nil
}

func (s *MinioStore) Fetch(ctx context.Context, obj Object) (io.ReadCloser, error) {
	client, err := s.get()
	if err != nil {
		return nil, err
	}
	o, err := client.GetObject(ctx, s.bucket, obj.PublicID, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("minio download failed: %w", err)
	}
	return o, nil
}

func (s *MinioStore) Delete(ctx context.Context, publicID string) error {
	client, err := s.get()
	if err != nil {
		return err
	}
	if err := client.RemoveObject(ctx, s.bucket, publicID, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("minio delete failed: %w", err)
	}
	return nil
}
