package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// PDFs are not images, Cloudinary stores them as raw resources.
const cloudinaryResourceType = "raw"

// Credentials are the three Cloudinary account settings.
type Credentials struct {
	CloudName string
	APIKey    string
	APISecret string
}

func (c Credentials) validate() error {
	var missing []string
	if strings.TrimSpace(c.CloudName) == "" {
		missing = append(missing, "cloud name")
	}
	if strings.TrimSpace(c.APIKey) == "" {
		missing = append(missing, "api key")
	}
	if strings.TrimSpace(c.APISecret) == "" {
		missing = append(missing, "api secret")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: cloudinary %s", ErrMissingCredentials, strings.Join(missing, ", "))
	}
	return nil
}

type CloudinaryStore struct {
	creds  Credentials
	folder string
	http   *http.Client

	mu  sync.RWMutex
	cld *cloudinary.Cloudinary
}

func NewCloudinaryStore(creds Credentials, folder string) *CloudinaryStore {
	return &CloudinaryStore{creds: creds, folder: folder, http: http.DefaultClient}
}

func (s *CloudinaryStore) Name() string { return "cloudinary" }

func (s *CloudinaryStore) Configure(ctx context.Context) error {
	if err := s.creds.validate(); err != nil {
		return err
	}
	cld, err := cloudinary.NewFromParams(s.creds.CloudName, s.creds.APIKey, s.creds.APISecret)
	if err != nil {
		return fmt.Errorf("failed to configure cloudinary: %w", err)
	}

	s.mu.Lock()
	s.cld = cld
	s.mu.Unlock()
	return nil
}

func (s *CloudinaryStore) Configured() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cld != nil
}

func (s *CloudinaryStore) client() (*cloudinary.Cloudinary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cld == nil {
		return nil, ErrNotConfigured
	}
	return s.cld, nil
}

func (s *CloudinaryStore) Upload(ctx context.Context, name string, r io.Reader, size int64) (*Object, error) {
	cld, err := s.client()
	if err != nil {
		return nil, err
	}

	res, err := cld.Upload.Upload(ctx, r, uploader.UploadParams{
		PublicID:     name,
		Folder:       s.folder,
		ResourceType: cloudinaryResourceType,
	})
	if err != nil {
		return nil, fmt.Errorf("cloudinary upload failed: %w", err)
	}
	if res.Error.Message != "" {
		return nil, fmt.Errorf("cloudinary upload failed: %s", res.Error.Message)
	}

	bytes := int64(res.Bytes)
	if bytes == 0 {
		bytes = size
	}
	return &Object{
		Provider: s.Name(),
		PublicID: res.PublicID,
		URL:      res.SecureURL,
		Bytes:    bytes,
	}, nil
}

func (s *CloudinaryStore) Fetch(ctx context.Context, obj Object) (io.ReadCloser, error) {
	if _, err := s.client(); err != nil {
		return nil, err
	}
	if obj.URL == "" {
		return nil, fmt.Errorf("cloudinary object %s has no url", obj.PublicID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, obj.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cloudinary download failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("cloudinary download failed: status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

func (s *CloudinaryStore) Delete(ctx context.Context, publicID string) error {
	cld, err := s.client()
	if err != nil {
		return err
	}

	res, err := cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     publicID,
		ResourceType: cloudinaryResourceType,
	})
	if err != nil {
		return fmt.Errorf("cloudinary delete failed: %w", err)
	}
	if res.Error.Message != "" {
		return fmt.Errorf("cloudinary delete failed: %s", res.Error.Message)
	}
	// "not found" means it is already gone
	if res.Result != "ok" && res.Result != "not found" {
		return fmt.Errorf("cloudinary delete failed: %s", res.Result)
	}
	return nil
}
