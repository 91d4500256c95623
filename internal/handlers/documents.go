package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/BerylCAtieno/forensic-docs-api/internal/models"
	"github.com/BerylCAtieno/forensic-docs-api/internal/services"
	"github.com/BerylCAtieno/forensic-docs-api/internal/utils"
	"github.com/gorilla/mux"
)

// multipartMemory is how much of a multipart form is held in memory before
// spilling to disk.
const multipartMemory = 32 << 20

type DocumentHandler struct {
	responder
	service     services.DocumentService
	maxFileSize int64
}

func NewDocumentHandler(service services.DocumentService, maxFileSize int64, logger *utils.Logger) *DocumentHandler {
	return &DocumentHandler{
		responder:   responder{logger: logger},
		service:     service,
		maxFileSize: maxFileSize,
	}
}

func (h *DocumentHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	tooLarge := utils.NewBadRequestError(fmt.Sprintf("File size exceeds %s limit", utils.FormatFileSize(h.maxFileSize)))

	// Check Content-Length header first to reject oversized requests early
	if r.ContentLength > h.maxFileSize+multipartMemory {
		h.respondError(w, tooLarge)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+multipartMemory)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.respondError(w, tooLarge)
			return
		}
		h.respondError(w, utils.NewBadRequestError("Invalid form data"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.respondError(w, utils.NewBadRequestError("No file provided"))
		return
	}
	defer file.Close()

	if header.Filename == "" {
		h.respondError(w, utils.NewBadRequestError("No file selected"))
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, h.maxFileSize+1))
	if err != nil {
		h.respondError(w, utils.NewInternalError("Failed to read file"))
		return
	}
	if int64(len(data)) > h.maxFileSize {
		h.respondError(w, tooLarge)
		return
	}
	if len(data) == 0 {
		h.respondError(w, utils.NewBadRequestError("Uploaded file is empty"))
		return
	}

	tags, err := parseTags(r.FormValue("tags"))
	if err != nil {
		h.respondError(w, err)
		return
	}

	analyze := false
	if v := r.FormValue("analyze"); v != "" {
		if analyze, err = strconv.ParseBool(v); err != nil {
			h.respondError(w, utils.NewBadRequestError("analyze must be true or false"))
			return
		}
	}

	h.logger.Info("File upload attempt",
		"filename", header.Filename,
		"size", utils.FormatFileSize(int64(len(data))),
		"reported_content_type", header.Header.Get("Content-Type"))

	req := &models.UploadRequest{
		File:        data,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		TenantID:    r.FormValue("tenant_id"),
		CaseID:      r.FormValue("case_id"),
		Description: r.FormValue("description"),
		Tags:        tags,
		CreatedBy:   r.FormValue("created_by"),
		Analyze:     analyze,
	}

	resp, err := h.service.UploadDocument(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, resp)
}

func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.service.GetDocument(r.Context(), mux.Vars(r)["id"], tenantID(r))
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, doc)
}

func (h *DocumentHandler) ListCaseDocuments(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.ListCaseDocuments(r.Context(), mux.Vars(r)["id"], tenantID(r))
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

func (h *DocumentHandler) GetPreview(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		h.respondError(w, err)
		return
	}

	preview, err := h.service.GetPreview(r.Context(), mux.Vars(r)["id"], tenantID(r), page)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, preview)
}

func (h *DocumentHandler) AnalyzeDocument(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.AnalyzeDocument(r.Context(), mux.Vars(r)["id"], tenantID(r))
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteDocument(r.Context(), mux.Vars(r)["id"], tenantID(r)); err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, messageResponse{Message: "Document deleted successfully"})
}

// parseTags accepts a JSON array or a comma separated list.
func parseTags(value string) ([]string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if strings.HasPrefix(value, "[") {
		var tags []string
		if err := json.Unmarshal([]byte(value), &tags); err != nil {
			return nil, utils.NewBadRequestError("tags must be a JSON array of strings")
		}
		return tags, nil
	}

	var tags []string
	for _, tag := range strings.Split(value, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags, nil
}
