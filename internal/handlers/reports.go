package handlers

import (
	"net/http"

	"github.com/BerylCAtieno/forensic-docs-api/internal/models"
	"github.com/BerylCAtieno/forensic-docs-api/internal/services"
	"github.com/BerylCAtieno/forensic-docs-api/internal/utils"
	"github.com/gorilla/mux"
)

type ReportHandler struct {
	responder
	service services.ReportService
}

func NewReportHandler(service services.ReportService, logger *utils.Logger) *ReportHandler {
	return &ReportHandler{
		responder: responder{logger: logger},
		service:   service,
	}
}

type updateReportRequest struct {
	TenantID string `json:"tenant_id"`
	models.ReportUpdate
}

type tenantRequest struct {
	TenantID string `json:"tenant_id"`
}

func (h *ReportHandler) CreateReport(w http.ResponseWriter, r *http.Request) {
	var req models.CreateReportRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if req.TenantID == "" {
		req.TenantID = tenantID(r)
	}

	report, err := h.service.CreateReport(r.Context(), &req)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, report)
}

func (h *ReportHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.GetReport(r.Context(), mux.Vars(r)["id"], tenantID(r))
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, report)
}

func (h *ReportHandler) ListCaseReports(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.ListCaseReports(r.Context(), mux.Vars(r)["id"], tenantID(r))
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

func (h *ReportHandler) UpdateReport(w http.ResponseWriter, r *http.Request) {
	var req updateReportRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if req.TenantID == "" {
		req.TenantID = tenantID(r)
	}

	report, err := h.service.UpdateReport(r.Context(), mux.Vars(r)["id"], req.TenantID, req.ReportUpdate)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, report)
}

func (h *ReportHandler) AnalyzeReport(w http.ResponseWriter, r *http.Request) {
	tenant := tenantID(r)
	if tenant == "" && r.ContentLength != 0 {
		var req tenantRequest
		if !h.decodeJSON(w, r, &req) {
			return
		}
		tenant = req.TenantID
	}

	resp, err := h.service.AnalyzeReport(r.Context(), mux.Vars(r)["id"], tenant)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}
