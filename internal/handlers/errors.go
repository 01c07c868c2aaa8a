package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"

	"github.com/aotal/dicom-api-mcp-project/internal/query"
	"github.com/aotal/dicom-api-mcp-project/pkg/dimse"
)

type errorResponse struct {
	Error  string `json:"error"`
	Status string `json:"dimse_status,omitempty"`
}

// writeError maps service errors onto HTTP statuses. Bad identifiers are
// the caller's fault, PACS failures are upstream failures, and a missing
// local file is simply not found.
func writeError(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: err.Error()}
	code := http.StatusInternalServerError

	var validationErr *query.ValidationError
	var opErr *dimse.OperationError
	var assocErr *dimse.AssociationError
	switch {
	case errors.As(err, &validationErr):
		code = http.StatusBadRequest
	case errors.Is(err, fs.ErrNotExist):
		code = http.StatusNotFound
	case errors.As(err, &opErr):
		code = http.StatusBadGateway
		resp.Status = fmt.Sprintf("0x%04X", opErr.Status)
	case errors.As(err, &assocErr), errors.Is(err, context.DeadlineExceeded):
		code = http.StatusBadGateway
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(resp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
