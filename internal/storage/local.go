package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BerylCAtieno/forensic-docs-api/internal/utils"
)

// FilesRoute is the API route that serves local objects.
const FilesRoute = "/api/files/"

const partialPrefix = ".upload-"

type localStorage struct {
	baseDir string
	logger  *utils.Logger
}

func NewLocalStorage(baseDir string, logger *utils.Logger) Provider {
	return &localStorage{
		baseDir: baseDir,
		logger:  logger.With("component", "storage", "provider", "local"),
	}
}

func (s *localStorage) Name() string { return "local" }

func (s *localStorage) Initialize(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Join(s.baseDir, TenantsRoot), 0o755); err != nil {
		return utils.Wrap(utils.ErrStorage, err, "failed to create storage root %s", s.baseDir)
	}
	s.logger.Info("Local storage initialized", "root", s.baseDir)
	return nil
}

func (s *localStorage) fullPath(p string) (string, string, error) {
	rel, err := cleanPath(p)
	if err != nil {
		return "", "", err
	}
	return rel, filepath.Join(s.baseDir, filepath.FromSlash(rel)), nil
}

func (s *localStorage) Save(ctx context.Context, r io.Reader, relativePath, contentType string) (string, error) {
	rel, full, err := s.fullPath(relativePath)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", utils.Wrap(utils.ErrStorage, err, "failed to create directory for %s", rel)
	}

	// Write to a sibling temp file so readers never observe a partial object.
	tmp, err := os.CreateTemp(dir, partialPrefix+"*")
	if err != nil {
		return "", utils.Wrap(utils.ErrStorage, err, "failed to create file for %s", rel)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", utils.Wrap(utils.ErrStorage, err, "failed to write %s", rel)
	}
	if err := tmp.Close(); err != nil {
		return "", utils.Wrap(utils.ErrStorage, err, "failed to write %s", rel)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return "", utils.Wrap(utils.ErrStorage, err, "failed to finalize %s", rel)
	}

	s.logger.Debug("File saved", "path", rel)
	return rel, nil
}

func (s *localStorage) Get(ctx context.Context, p string) (io.ReadCloser, error) {
	rel, full, err := s.fullPath(p)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, utils.Wrap(utils.ErrNotFound, err, "file not found: %s", rel)
	}
	if err != nil {
		return nil, utils.Wrap(utils.ErrStorage, err, "failed to open %s", rel)
	}
	if info, err := f.Stat(); err == nil && info.IsDir() {
		f.Close()
		return nil, utils.Wrap(utils.ErrNotFound, fmt.Errorf("%s is a directory", rel), "file not found: %s", rel)
	}
	return f, nil
}

func (s *localStorage) Delete(ctx context.Context, p string) (bool, error) {
	rel, full, err := s.fullPath(p)
	if err != nil {
		return false, err
	}
	err = os.Remove(full)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("File not found for deletion", "path", rel)
		return false, nil
	}
	if err != nil {
		return false, utils.Wrap(utils.ErrStorage, err, "failed to delete %s", rel)
	}
	s.logger.Debug("File deleted", "path", rel)
	return true, nil
}

func (s *localStorage) List(ctx context.Context, prefix string) ([]string, error) {
	rel, err := cleanPrefix(prefix)
	if err != nil {
		return nil, err
	}
	root := filepath.Join(s.baseDir, filepath.FromSlash(rel))

	var paths []string
	err = filepath.WalkDir(root, func(full string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), partialPrefix) {
			return nil
		}
		key, err := filepath.Rel(s.baseDir, full)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(key))
		return nil
	})
	if err != nil {
		return nil, utils.Wrap(utils.ErrStorage, err, "failed to list %s", rel)
	}

	sort.Strings(paths)
	return paths, nil
}

func (s *localStorage) CreateDirectory(ctx context.Context, p string) error {
	rel, full, err := s.fullPath(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(full, 0o755); err != nil {
		return utils.Wrap(utils.ErrStorage, err, "failed to create directory %s", rel)
	}
	return nil
}

func (s *localStorage) Metadata(ctx context.Context, p string) (*ObjectInfo, error) {
	rel, full, err := s.fullPath(p)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, utils.Wrap(utils.ErrNotFound, err, "file not found: %s", rel)
	}
	if err != nil {
		return nil, utils.Wrap(utils.ErrStorage, err, "failed to stat %s", rel)
	}

	// The filesystem exposes no portable creation time.
	return &ObjectInfo{
		Path:        rel,
		Size:        info.Size(),
		CreatedAt:   info.ModTime(),
		ModifiedAt:  info.ModTime(),
		ContentType: contentTypeFor(rel, ""),
	}, nil
}

func (s *localStorage) PresignedURL(ctx context.Context, p string, ttl time.Duration) (string, error) {
	rel, err := cleanPath(p)
	if err != nil {
		return "", err
	}
	u := url.URL{Path: FilesRoute + rel}
	return u.EscapedPath(), nil
}
