package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/aotal/dicom-api-mcp-project/internal/adapters"
	"github.com/aotal/dicom-api-mcp-project/internal/cache"
	"github.com/aotal/dicom-api-mcp-project/internal/models"
	"github.com/aotal/dicom-api-mcp-project/internal/progress"
	"github.com/aotal/dicom-api-mcp-project/internal/query"
	"github.com/aotal/dicom-api-mcp-project/internal/services"
	"github.com/aotal/dicom-api-mcp-project/pkg/dimse"
)

type stubAdapter struct {
	lastQuery    *query.Descriptor
	queryResults []models.ResultRecord
	queryErr     error
	finalStatus  uint16
	echoStatus   *models.ConnectionStatus
	echoErr      error
}

func (a *stubAdapter) Query(ctx context.Context, desc *query.Descriptor) ([]models.ResultRecord, error) {
	a.lastQuery = desc
	return a.queryResults, a.queryErr
}

func (a *stubAdapter) Retrieve(ctx context.Context, destinationAET string, desc *query.Descriptor, observe func(progress.Report)) error {
	observe(progress.Report{Status: a.finalStatus, Completed: 3})
	return nil
}

func (a *stubAdapter) TestConnection(ctx context.Context) (*models.ConnectionStatus, error) {
	return a.echoStatus, a.echoErr
}

func (a *stubAdapter) Close() error { return nil }

func (a *stubAdapter) Type() models.PACSType { return models.PACSTypeDIMSE }

type stubProvider struct{ adapter *stubAdapter }

func (p *stubProvider) GetAdapter(node models.PACSNode) (adapters.PACSAdapter, error) {
	return p.adapter, nil
}

func (p *stubProvider) RemoveAdapter(id uuid.UUID) error { return nil }

func testRouter(t *testing.T, adapter *stubAdapter) *chi.Mux {
	t.Helper()
	node := models.PACSNode{ID: uuid.New(), Type: models.PACSTypeDIMSE, Host: "pacs.local", Port: 11112, AETitle: "PACS"}
	svc := services.NewPACSService(node, &stubProvider{adapter: adapter}, cache.NewMemoryCache(), time.Minute, nil, "GATEWAY_SCP", t.TempDir())

	pacsHandler := NewPACSHandler(svc)
	mgmtHandler := NewManagementHandler(svc, nil)

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/studies", pacsHandler.QueryStudies)
		r.Get("/studies/{studyUID}/series", pacsHandler.QuerySeries)
		r.Get("/studies/{studyUID}/series/{seriesUID}/instances", pacsHandler.QueryInstances)
		r.Post("/retrieve", pacsHandler.Retrieve)
		r.Get("/local/instances/{sopInstanceUID}/metadata", pacsHandler.LocalInstanceMetadata)
		r.Post("/pacs/test", mgmtHandler.TestConnection)
		r.Get("/nodes", mgmtHandler.ListNodes)
		r.Get("/audit", mgmtHandler.ListAudit)
	})
	return r
}

func TestQueryStudiesEndpoint(t *testing.T) {
	adapter := &stubAdapter{
		queryResults: []models.ResultRecord{{"PatientID": "123", "StudyInstanceUID": "1.2.3"}},
	}
	router := testRouter(t, adapter)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/studies?PatientID=123&fields=StudyTime", nil)
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp models.QueryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Level != models.LevelStudy || resp.Count != 1 {
		t.Errorf("level=%s count=%d, want STUDY/1", resp.Level, resp.Count)
	}
	if adapter.lastQuery == nil {
		t.Fatal("adapter never queried")
	}
	found := false
	for _, e := range adapter.lastQuery.Entries() {
		if e.Attr.Keyword == "StudyTime" && e.Value == "" {
			found = true
		}
	}
	if !found {
		t.Error("fields=StudyTime did not reach the identifier as a return key")
	}
}

func TestQueryStudiesBadFilters(t *testing.T) {
	router := testRouter(t, &stubAdapter{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/studies?filters=not-json", nil)
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestQueryStudiesUnknownKeywordSkipped(t *testing.T) {
	adapter := &stubAdapter{queryResults: []models.ResultRecord{}}
	router := testRouter(t, adapter)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, `/api/v1/studies?filters={"NoSuchKeyword":"x","PatientID":"123"}`, nil)
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 with the bad filter dropped, body %s", rec.Code, rec.Body.String())
	}
	if adapter.lastQuery == nil {
		t.Fatal("adapter never queried")
	}
	if v, _ := adapter.lastQuery.Get(tag.PatientID); v != "123" {
		t.Errorf("PatientID = %q, want 123", v)
	}
	for _, e := range adapter.lastQuery.Entries() {
		if e.Attr.Keyword == "NoSuchKeyword" {
			t.Error("unresolvable filter reached the identifier")
		}
	}
}

func TestQueryPartialResultsEndpoint(t *testing.T) {
	adapter := &stubAdapter{
		queryResults: []models.ResultRecord{{"StudyInstanceUID": "1.2.3"}},
		queryErr:     &dimse.OperationError{Operation: "c-find", Status: 0xA700},
	}
	router := testRouter(t, adapter)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/studies", nil)
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 with partial results, body %s", rec.Code, rec.Body.String())
	}
	var resp models.QueryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Partial || resp.Count != 1 {
		t.Errorf("partial=%v count=%d, want a one-record partial response", resp.Partial, resp.Count)
	}
	if resp.Error == "" || resp.DIMSEStatus != "0xA700" {
		t.Errorf("error=%q dimse_status=%q, want the failure surfaced", resp.Error, resp.DIMSEStatus)
	}
}

func TestQuerySeriesEndpoint(t *testing.T) {
	adapter := &stubAdapter{queryResults: []models.ResultRecord{}}
	router := testRouter(t, adapter)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/studies/1.2.3/series", nil)
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if adapter.lastQuery.Level != models.LevelSeries {
		t.Errorf("level = %s, want SERIES", adapter.lastQuery.Level)
	}
}

func TestQueryUpstreamFailure(t *testing.T) {
	adapter := &stubAdapter{
		queryErr: &dimse.OperationError{Operation: "c-find", Status: 0xA700},
	}
	router := testRouter(t, adapter)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/studies", nil)
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
	var resp struct {
		DIMSEStatus string `json:"dimse_status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if resp.DIMSEStatus != "0xA700" {
		t.Errorf("dimse_status = %q, want 0xA700", resp.DIMSEStatus)
	}
}

func TestRetrieveEndpoint(t *testing.T) {
	adapter := &stubAdapter{finalStatus: dimse.StatusSuccess}
	router := testRouter(t, adapter)

	body := `{"study_instance_uid":"1.2.3"}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/retrieve", strings.NewReader(body))
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var outcome models.RetrieveOutcome
	if err := json.Unmarshal(rec.Body.Bytes(), &outcome); err != nil {
		t.Fatalf("decode outcome: %v", err)
	}
	if outcome.State != models.RetrieveSuccess || outcome.Completed != 3 {
		t.Errorf("outcome = %+v, want SUCCESS with 3 completed", outcome)
	}
}

func TestRetrieveMissingStudyUID(t *testing.T) {
	router := testRouter(t, &stubAdapter{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/retrieve", strings.NewReader(`{}`))
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestLocalMetadataNotFound(t *testing.T) {
	router := testRouter(t, &stubAdapter{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/local/instances/1.2.3.999/metadata", nil)
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestPACSTestEndpoint(t *testing.T) {
	adapter := &stubAdapter{echoStatus: &models.ConnectionStatus{IsConnected: true}}
	router := testRouter(t, adapter)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/pacs/test", nil)
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var status models.ConnectionStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !status.IsConnected {
		t.Error("expected connected status")
	}
}

func TestListNodesEndpoint(t *testing.T) {
	router := testRouter(t, &stubAdapter{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/nodes", nil)
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var nodes []models.PACSNode
	if err := json.Unmarshal(rec.Body.Bytes(), &nodes); err != nil {
		t.Fatalf("decode nodes: %v", err)
	}
	if len(nodes) != 1 || nodes[0].AETitle != "PACS" {
		t.Errorf("nodes = %+v, want the configured PACS node", nodes)
	}
}

func TestAuditDisabled(t *testing.T) {
	router := testRouter(t, &stubAdapter{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/audit", nil)
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when audit storage is off", rec.Code)
	}
}
