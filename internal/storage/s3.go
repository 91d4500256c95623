package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/BerylCAtieno/forensic-docs-api/internal/config"
	"github.com/BerylCAtieno/forensic-docs-api/internal/utils"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type s3Storage struct {
	client     *minio.Client
	bucketName string
	region     string
	logger     *utils.Logger
}

func NewS3Storage(cfg *config.Config, logger *utils.Logger) (Provider, error) {
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, ""),
		Secure: cfg.S3UseSSL,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	return &s3Storage{
		client:     client,
		bucketName: cfg.S3BucketName,
		region:     cfg.S3Region,
		logger:     logger.With("component", "storage", "provider", "s3", "bucket", cfg.S3BucketName),
	}, nil
}

func (s *s3Storage) Name() string { return "s3" }

func (s *s3Storage) Initialize(ctx context.Context) error {
	// Ensure bucket exists
	exists, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return utils.Wrap(utils.ErrStorage, err, "failed to check bucket existence")
	}

	if !exists {
		err = s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{Region: s.region})
		if err != nil {
			return utils.Wrap(utils.ErrStorage, err, "failed to create bucket")
		}
		s.logger.Info("Created bucket")
	}

	return s.CreateDirectory(ctx, TenantsRoot)
}

func (s *s3Storage) Save(ctx context.Context, r io.Reader, relativePath, contentType string) (string, error) {
	key, err := cleanPath(relativePath)
	if err != nil {
		return "", err
	}

	size := int64(-1)
	if sized, ok := r.(interface{ Size() int64 }); ok {
		size = sized.Size()
	}

	_, err = s.client.PutObject(ctx, s.bucketName, key, r, size, minio.PutObjectOptions{
		ContentType: contentTypeFor(key, contentType),
	})
	if err != nil {
		return "", utils.Wrap(utils.ErrStorage, err, "failed to upload %s to S3", key)
	}

	s.logger.Debug("File saved", "path", key)
	return key, nil
}

func (s *s3Storage) Get(ctx context.Context, p string) (io.ReadCloser, error) {
	key, err := cleanPath(p)
	if err != nil {
		return nil, err
	}

	object, err := s.client.GetObject(ctx, s.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.objectError(err, key, "failed to get object from S3")
	}

	// GetObject is lazy; Stat surfaces a missing key before the caller reads.
	if _, err := object.Stat(); err != nil {
		object.Close()
		return nil, s.objectError(err, key, "failed to get object from S3")
	}

	return object, nil
}

func (s *s3Storage) Delete(ctx context.Context, p string) (bool, error) {
	key, err := cleanPath(p)
	if err != nil {
		return false, err
	}

	if _, err := s.client.StatObject(ctx, s.bucketName, key, minio.StatObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			s.logger.Warn("File not found for deletion", "path", key)
			return false, nil
		}
		return false, utils.Wrap(utils.ErrStorage, err, "failed to stat %s", key)
	}

	if err := s.client.RemoveObject(ctx, s.bucketName, key, minio.RemoveObjectOptions{}); err != nil {
		return false, utils.Wrap(utils.ErrStorage, err, "failed to delete %s from S3", key)
	}

	s.logger.Debug("File deleted", "path", key)
	return true, nil
}

func (s *s3Storage) List(ctx context.Context, prefix string) ([]string, error) {
	rel, err := cleanPrefix(prefix)
	if err != nil {
		return nil, err
	}

	var keys []string
	for obj := range s.client.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{
		Prefix:    rel,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, utils.Wrap(utils.ErrStorage, obj.Err, "failed to list %s", rel)
		}
		if strings.HasSuffix(obj.Key, "/") || !underPrefix(obj.Key, rel) {
			continue
		}
		keys = append(keys, obj.Key)
	}

	sort.Strings(keys)
	return keys, nil
}

// CreateDirectory writes an empty marker object, since S3 has no directories.
func (s *s3Storage) CreateDirectory(ctx context.Context, p string) error {
	key, err := cleanPath(p)
	if err != nil {
		return err
	}

	_, err = s.client.PutObject(ctx, s.bucketName, key+"/", bytes.NewReader(nil), 0, minio.PutObjectOptions{})
	if err != nil {
		return utils.Wrap(utils.ErrStorage, err, "failed to create directory %s", key)
	}
	return nil
}

func (s *s3Storage) Metadata(ctx context.Context, p string) (*ObjectInfo, error) {
	key, err := cleanPath(p)
	if err != nil {
		return nil, err
	}

	info, err := s.client.StatObject(ctx, s.bucketName, key, minio.StatObjectOptions{})
	if err != nil {
		return nil, s.objectError(err, key, "failed to stat object")
	}

	return &ObjectInfo{
		Path:        key,
		Size:        info.Size,
		CreatedAt:   info.LastModified,
		ModifiedAt:  info.LastModified,
		ContentType: contentTypeFor(key, info.ContentType),
	}, nil
}

func (s *s3Storage) PresignedURL(ctx context.Context, p string, ttl time.Duration) (string, error) {
	key, err := cleanPath(p)
	if err != nil {
		return "", err
	}

	u, err := s.client.PresignedGetObject(ctx, s.bucketName, key, ttl, url.Values{})
	if err != nil {
		return "", utils.Wrap(utils.ErrStorage, err, "failed to presign %s", key)
	}
	return u.String(), nil
}

func (s *s3Storage) objectError(err error, key, msg string) error {
	if isNoSuchKey(err) {
		return utils.Wrap(utils.ErrNotFound, err, "file not found: %s", key)
	}
	return utils.Wrap(utils.ErrStorage, err, "%s: %s", msg, key)
}

func isNoSuchKey(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}
