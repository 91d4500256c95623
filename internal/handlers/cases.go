package handlers

import (
	"net/http"

	"github.com/BerylCAtieno/forensic-docs-api/internal/models"
	"github.com/BerylCAtieno/forensic-docs-api/internal/services"
	"github.com/BerylCAtieno/forensic-docs-api/internal/utils"
	"github.com/gorilla/mux"
)

type CaseHandler struct {
	responder
	service services.CaseService
}

func NewCaseHandler(service services.CaseService, logger *utils.Logger) *CaseHandler {
	return &CaseHandler{
		responder: responder{logger: logger},
		service:   service,
	}
}

type updateCaseRequest struct {
	TenantID string `json:"tenant_id"`
	models.CaseUpdate
}

func (h *CaseHandler) CreateCase(w http.ResponseWriter, r *http.Request) {
	var req models.CreateCaseRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if req.TenantID == "" {
		req.TenantID = tenantID(r)
	}

	c, err := h.service.CreateCase(r.Context(), &req)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, c)
}

func (h *CaseHandler) ListCases(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		h.respondError(w, err)
		return
	}
	skip, err := queryInt(r, "skip", 0)
	if err != nil {
		h.respondError(w, err)
		return
	}

	q := r.URL.Query()
	tags := q["tags"]
	if len(tags) == 0 {
		tags = q["tag"]
	}

	resp, err := h.service.ListCases(r.Context(), models.CaseFilter{
		TenantID: tenantID(r),
		Status:   q.Get("status"),
		Tags:     tags,
		Search:   q.Get("search"),
		Limit:    limit,
		Skip:     skip,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

func (h *CaseHandler) GetCase(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.GetCase(r.Context(), mux.Vars(r)["id"], tenantID(r))
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, c)
}

func (h *CaseHandler) UpdateCase(w http.ResponseWriter, r *http.Request) {
	var req updateCaseRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if req.TenantID == "" {
		req.TenantID = tenantID(r)
	}

	c, err := h.service.UpdateCase(r.Context(), mux.Vars(r)["id"], req.TenantID, req.CaseUpdate)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, c)
}

func (h *CaseHandler) DeleteCase(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteCase(r.Context(), mux.Vars(r)["id"], tenantID(r)); err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, messageResponse{Message: "Case deleted successfully"})
}
