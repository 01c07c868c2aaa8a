package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/aotal/dicom-api-mcp-project/internal/models"
	"github.com/aotal/dicom-api-mcp-project/internal/services"
)

type PACSHandler struct {
	pacsService *services.PACSService
}

func NewPACSHandler(pacsService *services.PACSService) *PACSHandler {
	return &PACSHandler{
		pacsService: pacsService,
	}
}

// QueryStudies handles STUDY level search
func (h *PACSHandler) QueryStudies(w http.ResponseWriter, r *http.Request) {
	req, err := parseQueryRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := h.pacsService.QueryStudies(r.Context(), req)
	if err != nil {
		if partial(resp) {
			log.Warn().Err(err).Int("count", resp.Count).Msg("Returning partial study results")
			writeJSON(w, http.StatusOK, resp)
			return
		}
		log.Error().Err(err).Msg("Failed to search studies")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// QuerySeries handles SERIES level search within a study
func (h *PACSHandler) QuerySeries(w http.ResponseWriter, r *http.Request) {
	req, err := parseQueryRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req.StudyInstanceUID = chi.URLParam(r, "studyUID")

	resp, err := h.pacsService.QuerySeries(r.Context(), req)
	if err != nil {
		if partial(resp) {
			log.Warn().Err(err).Str("study_uid", req.StudyInstanceUID).Msg("Returning partial series results")
			writeJSON(w, http.StatusOK, resp)
			return
		}
		log.Error().Err(err).Str("study_uid", req.StudyInstanceUID).Msg("Failed to search series")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// QueryInstances handles IMAGE level search within a series
func (h *PACSHandler) QueryInstances(w http.ResponseWriter, r *http.Request) {
	req, err := parseQueryRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req.StudyInstanceUID = chi.URLParam(r, "studyUID")
	req.SeriesInstanceUID = chi.URLParam(r, "seriesUID")

	resp, err := h.pacsService.QueryInstances(r.Context(), req)
	if err != nil {
		if partial(resp) {
			log.Warn().Err(err).Str("series_uid", req.SeriesInstanceUID).Msg("Returning partial instance results")
			writeJSON(w, http.StatusOK, resp)
			return
		}
		log.Error().Err(err).
			Str("study_uid", req.StudyInstanceUID).
			Str("series_uid", req.SeriesInstanceUID).
			Msg("Failed to search instances")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Retrieve handles C-MOVE requests toward the local receiver (or an
// explicit destination AE)
func (h *PACSHandler) Retrieve(w http.ResponseWriter, r *http.Request) {
	var req models.RetrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	outcome, err := h.pacsService.Retrieve(r.Context(), req)
	if err != nil {
		log.Error().Err(err).Str("study_uid", req.StudyInstanceUID).Msg("Retrieve failed")
		writeError(w, err)
		return
	}

	code := http.StatusOK
	if outcome.State == models.RetrieveFailure {
		code = http.StatusBadGateway
	}
	writeJSON(w, code, outcome)
}

// LocalInstanceMetadata returns the decoded header of a previously
// retrieved instance
func (h *PACSHandler) LocalInstanceMetadata(w http.ResponseWriter, r *http.Request) {
	sopUID := chi.URLParam(r, "sopInstanceUID")
	if sopUID == "" {
		http.Error(w, "SOP Instance UID is required", http.StatusBadRequest)
		return
	}

	meta, err := h.pacsService.LocalInstanceMetadata(r.Context(), sopUID)
	if err != nil {
		log.Error().Err(err).Str("sop_instance_uid", sopUID).Msg("Failed to read local metadata")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, meta)
}

// partial reports whether a failed query still produced usable results.
func partial(resp *models.QueryResponse) bool {
	return resp != nil && resp.Partial
}

// parseQueryRequest assembles a query from URL parameters: typed study
// filters by name, a "filters" JSON object for arbitrary attributes, and
// a comma-separated "fields" list of extra return keys.
func parseQueryRequest(r *http.Request) (models.QueryRequest, error) {
	q := r.URL.Query()

	var req models.QueryRequest
	req.Filters = models.StudyFilters{
		PatientID:         q.Get("PatientID"),
		PatientName:       q.Get("PatientName"),
		StudyDate:         q.Get("StudyDate"),
		AccessionNumber:   q.Get("AccessionNumber"),
		StudyDescription:  q.Get("StudyDescription"),
		ModalitiesInStudy: q.Get("ModalitiesInStudy"),
	}

	if raw := q.Get("filters"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.AdditionalFilters); err != nil {
			return req, err
		}
	}

	for _, fields := range q["fields"] {
		for _, f := range strings.Split(fields, ",") {
			if f = strings.TrimSpace(f); f != "" {
				req.AdditionalReturnKeys = append(req.AdditionalReturnKeys, f)
			}
		}
	}

	return req, nil
}
