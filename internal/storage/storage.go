// Package storage holds the media-storage clients PDFs are uploaded to.
// A Store is built unconfigured and becomes usable once Configure succeeds.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"pdf-query-system/internal/config"
)

var (
	ErrMissingCredentials = errors.New("storage: missing credentials")
	ErrNotConfigured      = errors.New("storage: client not configured")
)

// Object describes a stored file.
type Object struct {
	Provider string `bson:"provider" json:"provider"`
	PublicID string `bson:"public_id" json:"public_id"`
	URL      string `bson:"url" json:"url"`
	Bytes    int64  `bson:"bytes" json:"bytes"`
}

type Store interface {
	Name() string
	// Configure applies credentials once at startup.
	Configure(ctx context.Context) error
	Configured() bool
	Upload(ctx context.Context, name string, r io.Reader, size int64) (*Object, error)
	Fetch(ctx context.Context, obj Object) (io.ReadCloser, error)
	Delete(ctx context.Context, publicID string) error
}

// New returns the provider selected by STORAGE_PROVIDER.
func New(cfg *config.Config) (Store, error) {
	switch cfg.StorageProvider {
	case "cloudinary", "":
		return NewCloudinaryStore(Credentials{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
		}, cfg.CloudinaryFolder), nil
	case "minio":
		return NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket), nil
	default:
		return nil, fmt.Errorf("unknown storage provider: %s", cfg.StorageProvider)
	}
}
