package handlers

import (
	"net/http"

	"github.com/BerylCAtieno/forensic-docs-api/internal/models"
	"github.com/BerylCAtieno/forensic-docs-api/internal/services"
	"github.com/BerylCAtieno/forensic-docs-api/internal/utils"
	"github.com/gorilla/mux"
)

type ClientHandler struct {
	responder
	service services.ClientService
}

func NewClientHandler(service services.ClientService, logger *utils.Logger) *ClientHandler {
	return &ClientHandler{
		responder: responder{logger: logger},
		service:   service,
	}
}

func (h *ClientHandler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req models.CreateClientRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	client, err := h.service.CreateClient(r.Context(), &req)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, client)
}

func (h *ClientHandler) ListClients(w http.ResponseWriter, r *http.Request) {
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

	resp, err := h.service.ListClients(r.Context(), limit, skip)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

func (h *ClientHandler) GetClient(w http.ResponseWriter, r *http.Request) {
	client, err := h.service.GetClient(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, client)
}
