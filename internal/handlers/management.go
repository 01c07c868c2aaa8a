package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/aotal/dicom-api-mcp-project/internal/models"
	"github.com/aotal/dicom-api-mcp-project/internal/repository"
	"github.com/aotal/dicom-api-mcp-project/internal/services"
)

type ManagementHandler struct {
	pacsService *services.PACSService
	auditRepo   *repository.AuditRepository
}

// NewManagementHandler creates the handler; auditRepo may be nil when
// the audit database is disabled.
func NewManagementHandler(pacsService *services.PACSService, auditRepo *repository.AuditRepository) *ManagementHandler {
	return &ManagementHandler{
		pacsService: pacsService,
		auditRepo:   auditRepo,
	}
}

// TestConnection runs a C-ECHO against the configured node, or against an
// ad hoc node given in the body
func (h *ManagementHandler) TestConnection(w http.ResponseWriter, r *http.Request) {
	var req models.ConnectionTestRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	status, err := h.pacsService.TestConnection(r.Context(), req)
	if err != nil {
		log.Warn().Err(err).Str("host", req.Host).Msg("Connection test failed")
		if status == nil {
			status = &models.ConnectionStatus{
				IsConnected:  false,
				LastChecked:  time.Now(),
				ErrorMessage: err.Error(),
			}
		}
	}

	// 200 either way; the body carries the verdict.
	writeJSON(w, http.StatusOK, status)
}

// ListNodes returns the PACS nodes this gateway talks to
func (h *ManagementHandler) ListNodes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, []models.PACSNode{h.pacsService.Node()})
}

// ListAudit returns recent audit entries, optionally filtered by
// resource UID
func (h *ManagementHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	if h.auditRepo == nil {
		http.Error(w, "Audit log is disabled", http.StatusNotFound)
		return
	}

	if uid := r.URL.Query().Get("resource_uid"); uid != "" {
		entries, err := h.auditRepo.GetByResourceUID(r.Context(), uid)
		if err != nil {
			log.Error().Err(err).Str("resource_uid", uid).Msg("Failed to list audit entries")
			http.Error(w, "Failed to list audit entries", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, entries)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	entries, err := h.auditRepo.ListRecent(r.Context(), limit, offset)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list audit entries")
		http.Error(w, "Failed to list audit entries", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
