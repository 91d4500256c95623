package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/BerylCAtieno/forensic-docs-api/internal/config"
	"github.com/BerylCAtieno/forensic-docs-api/internal/utils"
)

type gcsStorage struct {
	client     *storage.Client
	bucket     *storage.BucketHandle
	bucketName string
	logger     *utils.Logger
}

func NewGCSStorage(ctx context.Context, cfg *config.Config, logger *utils.Logger) (Provider, error) {
	var opts []option.ClientOption
	if cfg.GCSCredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.GCSCredentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &gcsStorage{
		client:     client,
		bucket:     client.Bucket(cfg.GCSBucketName),
		bucketName: cfg.GCSBucketName,
		logger:     logger.With("component", "storage", "provider", "gcs", "bucket", cfg.GCSBucketName),
	}, nil
}

func (s *gcsStorage) Name() string { return "gcs" }

// Initialize verifies the bucket is reachable. Buckets are provisioned
// outside the service because creation needs a project ID.
func (s *gcsStorage) Initialize(ctx context.Context) error {
	if _, err := s.bucket.Attrs(ctx); err != nil {
		if errors.Is(err, storage.ErrBucketNotExist) {
			return utils.Wrap(utils.ErrStorage, err, "bucket %s does not exist", s.bucketName)
		}
		return utils.Wrap(utils.ErrStorage, err, "failed to check bucket %s", s.bucketName)
	}
	return s.CreateDirectory(ctx, TenantsRoot)
}

func (s *gcsStorage) Save(ctx context.Context, r io.Reader, relativePath, contentType string) (string, error) {
	key, err := cleanPath(relativePath)
	if err != nil {
		return "", err
	}

	// Cancelling the writer context aborts the upload; Close would commit it.
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	writer := s.bucket.Object(key).NewWriter(wctx)
	writer.ContentType = contentTypeFor(key, contentType)

	if _, err := io.Copy(writer, r); err != nil {
		cancel()
		return "", utils.Wrap(utils.ErrStorage, err, "failed to write %s to GCS", key)
	}
	if err := writer.Close(); err != nil {
		return "", utils.Wrap(utils.ErrStorage, err, "failed to finalize GCS write for %s", key)
	}

	s.logger.Debug("File saved", "path", key)
	return key, nil
}

func (s *gcsStorage) Get(ctx context.Context, p string) (io.ReadCloser, error) {
	key, err := cleanPath(p)
	if err != nil {
		return nil, err
	}

	reader, err := s.bucket.Object(key).NewReader(ctx)
	if err != nil {
		return nil, objectErr(err, key, "failed to read object")
	}
	return reader, nil
}

func (s *gcsStorage) Delete(ctx context.Context, p string) (bool, error) {
	key, err := cleanPath(p)
	if err != nil {
		return false, err
	}

	err = s.bucket.Object(key).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		s.logger.Warn("File not found for deletion", "path", key)
		return false, nil
	}
	if err != nil {
		return false, utils.Wrap(utils.ErrStorage, err, "failed to delete %s from GCS", key)
	}

	s.logger.Debug("File deleted", "path", key)
	return true, nil
}

func (s *gcsStorage) List(ctx context.Context, prefix string) ([]string, error) {
	rel, err := cleanPrefix(prefix)
	if err != nil {
		return nil, err
	}

	it := s.bucket.Objects(ctx, &storage.Query{Prefix: rel})

	var names []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, utils.Wrap(utils.ErrStorage, err, "failed to list %s", rel)
		}
		if strings.HasSuffix(attrs.Name, "/") || !underPrefix(attrs.Name, rel) {
			continue
		}
		names = append(names, attrs.Name)
	}

	sort.Strings(names)
	return names, nil
}

func (s *gcsStorage) CreateDirectory(ctx context.Context, p string) error {
	key, err := cleanPath(p)
	if err != nil {
		return err
	}

	writer := s.bucket.Object(key + "/").NewWriter(ctx)
	if err := writer.Close(); err != nil {
		return utils.Wrap(utils.ErrStorage, err, "failed to create directory %s", key)
	}
	return nil
}

func (s *gcsStorage) Metadata(ctx context.Context, p string) (*ObjectInfo, error) {
	key, err := cleanPath(p)
	if err != nil {
		return nil, err
	}

	attrs, err := s.bucket.Object(key).Attrs(ctx)
	if err != nil {
		return nil, objectErr(err, key, "failed to stat object")
	}

	return &ObjectInfo{
		Path:        key,
		Size:        attrs.Size,
		CreatedAt:   attrs.Created,
		ModifiedAt:  attrs.Updated,
		ContentType: contentTypeFor(key, attrs.ContentType),
	}, nil
}

func (s *gcsStorage) PresignedURL(ctx context.Context, p string, ttl time.Duration) (string, error) {
	key, err := cleanPath(p)
	if err != nil {
		return "", err
	}

	u, err := s.bucket.SignedURL(key, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(ttl),
	})
	if err != nil {
		return "", utils.Wrap(utils.ErrStorage, err, "failed to sign URL for %s", key)
	}
	return u, nil
}

func objectErr(err error, key, msg string) error {
	if errors.Is(err, storage.ErrObjectNotExist) {
		return utils.Wrap(utils.ErrNotFound, err, "file not found: %s", key)
	}
	return utils.Wrap(utils.ErrStorage, err, "%s: %s", msg, key)
}
