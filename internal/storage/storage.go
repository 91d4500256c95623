package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/BerylCAtieno/forensic-docs-api/internal/config"
	"github.com/BerylCAtieno/forensic-docs-api/internal/utils"
)

// TenantsRoot is the top-level prefix every document path lives under.
const TenantsRoot = "tenants"

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Path        string    `json:"path"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
	ModifiedAt  time.Time `json:"modified_at"`
	ContentType string    `json:"content_type"`
}

// Provider is a file store addressed by slash separated relative paths.
// Implementations must be safe for concurrent use.
type Provider interface {
	// Initialize prepares the backend. Calling it more than once is harmless.
	Initialize(ctx context.Context) error

	// Save writes r to relativePath and returns the stored path. An empty
	// contentType is derived from the path extension.
	Save(ctx context.Context, r io.Reader, relativePath, contentType string) (string, error)

	// Get opens a stored object. A missing object yields utils.ErrNotFound.
	Get(ctx context.Context, p string) (io.ReadCloser, error)

	// Delete removes an object and reports whether it existed.
	Delete(ctx context.Context, p string) (bool, error)

	// List returns every object path under prefix, recursively and sorted.
	// Directory markers are not included.
	List(ctx context.Context, prefix string) ([]string, error)

	CreateDirectory(ctx context.Context, p string) error

	Metadata(ctx context.Context, p string) (*ObjectInfo, error)

	// PresignedURL returns a URL a client can fetch the object from. The
	// local backend returns an API relative path without expiry.
	PresignedURL(ctx context.Context, p string, ttl time.Duration) (string, error)

	Name() string
}

// New builds and initializes the provider selected by cfg.StorageProvider.
func New(ctx context.Context, cfg *config.Config, logger *utils.Logger) (Provider, error) {
	var (
		provider Provider
		err      error
	)

	switch strings.ToLower(cfg.StorageProvider) {
	case "local":
		provider = NewLocalStorage(cfg.StorageRootDir, logger)
	case "s3":
		provider, err = NewS3Storage(cfg, logger)
	case "gcs":
		provider, err = NewGCSStorage(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown storage provider: %q", cfg.StorageProvider)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("Initializing storage provider", "provider", provider.Name())
	if err := provider.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize %s storage: %w", provider.Name(), err)
	}

	return provider, nil
}

// cleanPath normalizes a relative object path and rejects anything that
// would escape the storage root.
func cleanPath(p string) (string, error) {
	p = strings.ReplaceAll(p, "\\", "/")
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", utils.Wrap(utils.ErrValidation, errors.New("path traversal"), "invalid storage path %q", p)
		}
	}
	cleaned := strings.TrimPrefix(path.Clean("/"+p), "/")
	if cleaned == "" {
		return "", utils.Wrap(utils.ErrValidation, errors.New("empty path"), "invalid storage path %q", p)
	}
	return cleaned, nil
}

// cleanPrefix is cleanPath for list prefixes, which may be empty.
func cleanPrefix(p string) (string, error) {
	if strings.Trim(p, "/") == "" {
		return "", nil
	}
	return cleanPath(p)
}

func contentTypeFor(p, contentType string) string {
	if contentType != "" {
		return contentType
	}
	if ct := mime.TypeByExtension(path.Ext(p)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// underPrefix reports whether key is prefix itself or lies below it.
func underPrefix(key, prefix string) bool {
	if prefix == "" {
		return true
	}
	return key == prefix || strings.HasPrefix(key, prefix+"/")
}
