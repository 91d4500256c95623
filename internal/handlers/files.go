package handlers

import (
	"io"
	"net/http"
	"path"
	"strconv"

	"github.com/BerylCAtieno/forensic-docs-api/internal/services"
	"github.com/BerylCAtieno/forensic-docs-api/internal/utils"
	"github.com/gorilla/mux"
)

type FileHandler struct {
	responder
	service services.FileService
}

func NewFileHandler(service services.FileService, logger *utils.Logger) *FileHandler {
	return &FileHandler{
		responder: responder{logger: logger},
		service:   service,
	}
}

// GetFile streams a stored artifact with its stored content type.
func (h *FileHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	p := mux.Vars(r)["path"]

	rc, info, err := h.service.GetFile(r.Context(), p)
	if err != nil {
		h.respondError(w, err)
		return
	}
	defer rc.Close()

	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `inline; filename="`+path.Base(p)+`"`)
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("Failed to stream file", "error", err, "path", p)
	}
}
