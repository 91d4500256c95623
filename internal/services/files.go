package services

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/BerylCAtieno/forensic-docs-api/internal/storage"
	"github.com/BerylCAtieno/forensic-docs-api/internal/utils"
)

type FileService interface {
	GetFile(ctx context.Context, p string) (io.ReadCloser, *storage.ObjectInfo, error)
}

type fileService struct {
	store  storage.Provider
	logger *utils.Logger
}

func NewFileService(store storage.Provider, logger *utils.Logger) FileService {
	return &fileService{store: store, logger: logger}
}

// GetFile opens a stored document artifact. Only paths under the tenants root
// are served.
func (s *fileService) GetFile(ctx context.Context, p string) (io.ReadCloser, *storage.ObjectInfo, error) {
	if !strings.HasPrefix(p, storage.TenantsRoot+"/") {
		return nil, nil, utils.NewNotFoundError("File not found")
	}

	info, err := s.store.Metadata(ctx, p)
	if err != nil {
		return nil, nil, s.fileError(err, p)
	}
	rc, err := s.store.Get(ctx, p)
	if err != nil {
		return nil, nil, s.fileError(err, p)
	}
	return rc, info, nil
}

func (s *fileService) fileError(err error, p string) error {
	appErr := utils.ToAppError(err, "Failed to get file")
	switch appErr.StatusCode {
	case http.StatusBadRequest, http.StatusNotFound:
		return utils.NewNotFoundError("File not found")
	}
	s.logger.Error("Failed to get file", "error", err, "path", p)
	return appErr
}
