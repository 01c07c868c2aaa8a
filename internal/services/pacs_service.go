package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/suyashkumar/dicom"

	"github.com/aotal/dicom-api-mcp-project/internal/adapters"
	"github.com/aotal/dicom-api-mcp-project/internal/cache"
	"github.com/aotal/dicom-api-mcp-project/internal/codec"
	"github.com/aotal/dicom-api-mcp-project/internal/metrics"
	"github.com/aotal/dicom-api-mcp-project/internal/models"
	"github.com/aotal/dicom-api-mcp-project/internal/progress"
	"github.com/aotal/dicom-api-mcp-project/internal/query"
	"github.com/aotal/dicom-api-mcp-project/internal/repository"
	"github.com/aotal/dicom-api-mcp-project/internal/scp"
	"github.com/aotal/dicom-api-mcp-project/pkg/dimse"
)

// AdapterProvider hands out adapters for PACS nodes. Implemented by
// adapters.AdapterFactory; tests substitute a stub.
type AdapterProvider interface {
	GetAdapter(node models.PACSNode) (adapters.PACSAdapter, error)
	RemoveAdapter(id uuid.UUID) error
}

// PACSService handles business logic for PACS operations
type PACSService struct {
	node      models.PACSNode
	provider  AdapterProvider
	cache     cache.Cache
	cacheTTL  time.Duration
	auditRepo *repository.AuditRepository

	// localAET is the gateway's own C-STORE receiver, the default
	// destination for retrieves.
	localAET   string
	storageDir string
}

// NewPACSService creates a new PACS service. auditRepo may be nil when
// the audit database is disabled.
func NewPACSService(
	node models.PACSNode,
	provider AdapterProvider,
	c cache.Cache,
	cacheTTL time.Duration,
	auditRepo *repository.AuditRepository,
	localAET string,
	storageDir string,
) *PACSService {
	return &PACSService{
		node:       node,
		provider:   provider,
		cache:      c,
		cacheTTL:   cacheTTL,
		auditRepo:  auditRepo,
		localAET:   localAET,
		storageDir: storageDir,
	}
}

// Node returns the configured remote PACS node.
func (s *PACSService) Node() models.PACSNode {
	return s.node
}

// QueryStudies executes a STUDY level query.
func (s *PACSService) QueryStudies(ctx context.Context, req models.QueryRequest) (*models.QueryResponse, error) {
	return s.runQuery(ctx, models.LevelStudy, req)
}

// QuerySeries executes a SERIES level query within a study.
func (s *PACSService) QuerySeries(ctx context.Context, req models.QueryRequest) (*models.QueryResponse, error) {
	return s.runQuery(ctx, models.LevelSeries, req)
}

// QueryInstances executes an IMAGE level query within a series.
func (s *PACSService) QueryInstances(ctx context.Context, req models.QueryRequest) (*models.QueryResponse, error) {
	return s.runQuery(ctx, models.LevelImage, req)
}

func (s *PACSService) runQuery(ctx context.Context, level models.QueryLevel, req models.QueryRequest) (*models.QueryResponse, error) {
	desc, err := query.Build(query.Params{
		Level:             level,
		StudyInstanceUID:  req.StudyInstanceUID,
		SeriesInstanceUID: req.SeriesInstanceUID,
		Named:             namedFilters(level, req.Filters),
		Generic:           req.AdditionalFilters,
		ExtraReturnKeys:   req.AdditionalReturnKeys,
	})
	if err != nil {
		return nil, err
	}

	key := s.queryCacheKey(desc)
	if cached, err := s.cache.Get(ctx, key); err == nil {
		var results []models.ResultRecord
		if err := json.Unmarshal(cached, &results); err == nil {
			metrics.CacheHits.Inc()
			log.Debug().Str("level", string(level)).Str("key", key).Msg("Query served from cache")
			return &models.QueryResponse{Level: level, Count: len(results), Results: results}, nil
		}
	}
	metrics.CacheMisses.Inc()

	adapter, err := s.provider.GetAdapter(s.node)
	if err != nil {
		return nil, fmt.Errorf("failed to get adapter: %w", err)
	}

	start := time.Now()
	results, err := adapter.Query(ctx, desc)
	duration := time.Since(start)

	metrics.DIMSEDuration.WithLabelValues("c-find").Observe(duration.Seconds())
	if err != nil {
		metrics.DIMSEOperations.WithLabelValues("c-find", "failure").Inc()
		s.audit(ctx, "c-find", string(level), req.StudyInstanceUID, "failure", len(results), err.Error(), duration)
		// A mid-stream failure keeps what the remote already returned.
		// Partial result sets are never cached.
		var opErr *dimse.OperationError
		if errors.As(err, &opErr) && len(results) > 0 {
			resp := &models.QueryResponse{
				Level:       level,
				Count:       len(results),
				Results:     results,
				Partial:     true,
				Error:       err.Error(),
				DIMSEStatus: fmt.Sprintf("0x%04X", opErr.Status),
			}
			return resp, err
		}
		return nil, err
	}
	metrics.DIMSEOperations.WithLabelValues("c-find", "success").Inc()
	metrics.QueryResults.WithLabelValues(string(level)).Observe(float64(len(results)))

	if payload, err := json.Marshal(results); err == nil {
		if err := s.cache.Set(ctx, key, payload, s.cacheTTL); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Failed to cache query results")
		}
	}

	s.audit(ctx, "c-find", string(level), req.StudyInstanceUID, "success", len(results), "", duration)

	return &models.QueryResponse{Level: level, Count: len(results), Results: results}, nil
}

// Retrieve asks the PACS to move the selected objects. An empty
// destination defaults to the gateway's own receiver.
func (s *PACSService) Retrieve(ctx context.Context, req models.RetrieveRequest) (*models.RetrieveOutcome, error) {
	desc, err := query.BuildMove(req.StudyInstanceUID, req.SeriesInstanceUID, req.SOPInstanceUID)
	if err != nil {
		return nil, err
	}

	destination := req.DestinationAET
	if destination == "" {
		destination = s.localAET
	}

	adapter, err := s.provider.GetAdapter(s.node)
	if err != nil {
		return nil, fmt.Errorf("failed to get adapter: %w", err)
	}

	log.Info().
		Str("level", string(desc.Level)).
		Str("study_uid", req.StudyInstanceUID).
		Str("destination_aet", destination).
		Msg("Starting retrieve")

	var agg progress.Aggregator
	start := time.Now()
	err = adapter.Retrieve(ctx, destination, desc, agg.Observe)
	duration := time.Since(start)

	metrics.DIMSEDuration.WithLabelValues("c-move").Observe(duration.Seconds())
	if err != nil {
		metrics.DIMSEOperations.WithLabelValues("c-move", "failure").Inc()
		s.audit(ctx, "c-move", string(desc.Level), req.StudyInstanceUID, "failure", 0, err.Error(), duration)
		// With no terminal report the aggregator classifies UNKNOWN,
		// which is what a broken association should look like.
		outcome := agg.Outcome(desc.Level)
		return &outcome, err
	}

	outcome := agg.Outcome(desc.Level)
	metrics.DIMSEOperations.WithLabelValues("c-move", string(outcome.State)).Inc()
	s.audit(ctx, "c-move", string(desc.Level), req.StudyInstanceUID, string(outcome.State), outcome.Completed, "", duration)

	log.Info().
		Str("state", string(outcome.State)).
		Int("completed", outcome.Completed).
		Int("failed", outcome.Failed).
		Dur("duration", duration).
		Msg("Retrieve finished")

	return &outcome, nil
}

// LocalInstanceMetadata decodes the header of an instance previously
// moved into the gateway's local store.
func (s *PACSService) LocalInstanceMetadata(ctx context.Context, sopInstanceUID string) (*models.InstanceMetadata, error) {
	path, err := scp.InstancePath(s.storageDir, sopInstanceUID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	ds, err := dicom.ParseFile(path, nil, dicom.SkipPixelData())
	if err != nil {
		s.audit(ctx, "local-metadata", "", sopInstanceUID, "failure", 0, err.Error(), time.Since(start))
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	attrs := codec.EncodeDataset(ds)
	s.audit(ctx, "local-metadata", "", sopInstanceUID, "success", len(attrs), "", time.Since(start))

	return &models.InstanceMetadata{
		SOPInstanceUID: sopInstanceUID,
		FilePath:       path,
		Pixel:          pixelSummary(attrs),
		Attributes:     attrs,
	}, nil
}

// pixelSummary reads the pixel module out of the encoded attributes.
// Single-frame objects often omit NumberOfFrames, so it defaults to 1
// when the image has pixel geometry at all.
func pixelSummary(attrs models.ResultRecord) models.PixelSummary {
	p := models.PixelSummary{
		Rows:          attrInt(attrs, "Rows"),
		Columns:       attrInt(attrs, "Columns"),
		BitsAllocated: attrInt(attrs, "BitsAllocated"),
		BitsStored:    attrInt(attrs, "BitsStored"),
	}
	if v, ok := attrs["PhotometricInterpretation"].(string); ok {
		p.PhotometricInterpretation = v
	}
	p.NumberOfFrames = attrInt(attrs, "NumberOfFrames")
	if p.NumberOfFrames == 0 && p.Rows > 0 {
		p.NumberOfFrames = 1
	}
	return p
}

func attrInt(attrs models.ResultRecord, keyword string) int {
	switch v := attrs[keyword].(type) {
	case int64:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

// TestConnection verifies reachability of a PACS node with C-ECHO (or
// the protocol equivalent). With a zero request the configured node is
// tested.
func (s *PACSService) TestConnection(ctx context.Context, req models.ConnectionTestRequest) (*models.ConnectionStatus, error) {
	node := s.node
	if req.Host != "" {
		node = models.PACSNode{
			ID:      uuid.New(),
			Type:    models.PACSTypeDIMSE,
			Host:    req.Host,
			Port:    req.Port,
			AETitle: req.AETitle,
		}
		// Ad hoc nodes are tested once, no point keeping the adapter.
		defer s.provider.RemoveAdapter(node.ID)
	}

	adapter, err := s.provider.GetAdapter(node)
	if err != nil {
		return nil, fmt.Errorf("failed to get adapter: %w", err)
	}

	start := time.Now()
	status, err := adapter.TestConnection(ctx)
	duration := time.Since(start)

	outcome := "success"
	errMsg := ""
	if err != nil {
		outcome = "failure"
		errMsg = err.Error()
	}
	metrics.DIMSEOperations.WithLabelValues("c-echo", outcome).Inc()
	s.audit(ctx, "c-echo", "", node.AETitle, outcome, 0, errMsg, duration)

	return status, err
}

// IsAssociationError reports whether err came from a failed association
// rather than a failed operation.
func IsAssociationError(err error) bool {
	var assocErr *dimse.AssociationError
	return errors.As(err, &assocErr)
}

func (s *PACSService) queryCacheKey(desc *query.Descriptor) string {
	entries := desc.Entries()
	parts := make([]string, 0, len(entries)*2)
	for _, e := range entries {
		parts = append(parts, e.Attr.Keyword, e.Value)
	}
	return cache.QueryKey(s.node.AETitle, string(desc.Level), cache.Fingerprint(parts))
}

func (s *PACSService) audit(ctx context.Context, operation, level, resourceUID, status string, count int, errMsg string, duration time.Duration) {
	if s.auditRepo == nil {
		return
	}
	entry := &models.AuditLog{
		Operation:    operation,
		Level:        level,
		ResourceUID:  resourceUID,
		RemoteAET:    s.node.AETitle,
		Status:       status,
		ResultCount:  count,
		ErrorMessage: errMsg,
		Duration:     duration.Milliseconds(),
	}
	if err := s.auditRepo.Create(ctx, entry); err != nil {
		log.Warn().Err(err).Str("operation", operation).Msg("Failed to write audit log")
	}
}

// namedFilters maps the typed request filters onto dictionary keywords.
// Study attributes only apply at STUDY level; deeper levels scope by the
// hierarchy UIDs instead.
func namedFilters(level models.QueryLevel, f models.StudyFilters) map[string]string {
	if level != models.LevelStudy {
		return nil
	}
	named := make(map[string]string)
	if f.PatientID != "" {
		named["PatientID"] = f.PatientID
	}
	if f.PatientName != "" {
		named["PatientName"] = f.PatientName
	}
	if f.StudyDate != "" {
		named["StudyDate"] = f.StudyDate
	}
	if f.AccessionNumber != "" {
		named["AccessionNumber"] = f.AccessionNumber
	}
	if f.StudyDescription != "" {
		named["StudyDescription"] = f.StudyDescription
	}
	if f.ModalitiesInStudy != "" {
		named["ModalitiesInStudy"] = f.ModalitiesInStudy
	}
	return named
}
