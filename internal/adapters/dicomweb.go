package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/aotal/dicom-api-mcp-project/internal/dict"
	"github.com/aotal/dicom-api-mcp-project/internal/models"
	"github.com/aotal/dicom-api-mcp-project/internal/progress"
	"github.com/aotal/dicom-api-mcp-project/internal/query"
)

// DICOMWebAdapter implements PACSAdapter over QIDO-RS. Retrieval is a
// DIMSE-only operation; a DICOMweb node cannot serve C-MOVE semantics.
type DICOMWebAdapter struct {
	client  *http.Client
	baseURL string
}

// NewDICOMWebAdapter creates a new DICOMweb adapter
func NewDICOMWebAdapter(node models.PACSNode) (*DICOMWebAdapter, error) {
	if node.Host == "" || node.Port == 0 {
		return nil, fmt.Errorf("host and port are required for DICOMweb connection")
	}

	scheme := "http"
	if node.Port == 443 {
		scheme = "https"
	}

	return &DICOMWebAdapter{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: fmt.Sprintf("%s://%s:%d/dicom-web", scheme, node.Host, node.Port),
	}, nil
}

func (d *DICOMWebAdapter) Type() models.PACSType {
	return models.PACSTypeDICOMWeb
}

// Query executes a QIDO-RS search equivalent to the descriptor. Entries
// with values become match parameters, empty entries become
// includefield requests, and the hierarchy UIDs select the resource
// path.
func (d *DICOMWebAdapter) Query(ctx context.Context, desc *query.Descriptor) ([]models.ResultRecord, error) {
	queryURL, err := d.searchURL(desc)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "GET", queryURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/dicom+json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	// QIDO returns 204 when nothing matches.
	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("PACS returned status %d: %s", resp.StatusCode, string(body))
	}

	var raw []map[string]qidoAttribute
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	records := make([]models.ResultRecord, 0, len(raw))
	for _, entry := range raw {
		records = append(records, recordFromQIDO(entry))
	}
	return records, nil
}

// Retrieve is not possible over QIDO-RS.
func (d *DICOMWebAdapter) Retrieve(ctx context.Context, destinationAET string, desc *query.Descriptor, observe func(progress.Report)) error {
	return fmt.Errorf("retrieve to an AE title requires a DIMSE node")
}

// TestConnection tests the PACS connection with a minimal study search
func (d *DICOMWebAdapter) TestConnection(ctx context.Context) (*models.ConnectionStatus, error) {
	start := time.Now()
	status := &models.ConnectionStatus{
		LastChecked: start,
	}

	req, err := http.NewRequestWithContext(ctx, "GET", d.baseURL+"/studies?limit=1", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/dicom+json")

	resp, err := d.client.Do(req)
	status.ResponseTime = time.Since(start).Milliseconds()
	if err != nil {
		status.ErrorMessage = err.Error()
		return status, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		status.ErrorMessage = fmt.Sprintf("PACS returned status %d", resp.StatusCode)
		return status, fmt.Errorf("PACS returned status %d", resp.StatusCode)
	}

	status.IsConnected = true
	return status, nil
}

// Close closes the adapter
func (d *DICOMWebAdapter) Close() error {
	d.client.CloseIdleConnections()
	return nil
}

var (
	tagStudyInstanceUID  = tag.Tag{Group: 0x0020, Element: 0x000D}
	tagSeriesInstanceUID = tag.Tag{Group: 0x0020, Element: 0x000E}
	tagQRLevel           = tag.Tag{Group: 0x0008, Element: 0x0052}
)

func (d *DICOMWebAdapter) searchURL(desc *query.Descriptor) (string, error) {
	var path string
	switch desc.Level {
	case models.LevelStudy:
		path = "/studies"
	case models.LevelSeries:
		studyUID, _ := desc.Get(tagStudyInstanceUID)
		path = fmt.Sprintf("/studies/%s/series", url.PathEscape(studyUID))
	case models.LevelImage:
		studyUID, _ := desc.Get(tagStudyInstanceUID)
		seriesUID, _ := desc.Get(tagSeriesInstanceUID)
		path = fmt.Sprintf("/studies/%s/series/%s/instances",
			url.PathEscape(studyUID), url.PathEscape(seriesUID))
	default:
		return "", fmt.Errorf("unsupported query level %q", desc.Level)
	}

	params := url.Values{}
	for _, e := range desc.Entries() {
		switch e.Attr.Tag {
		case tagQRLevel, tagStudyInstanceUID, tagSeriesInstanceUID:
			continue
		}
		token := e.Attr.Keyword
		if token == "" {
			token = fmt.Sprintf("%04X%04X", e.Attr.Tag.Group, e.Attr.Tag.Element)
		}
		if e.Value == "" {
			params.Add("includefield", token)
		} else {
			params.Add(token, e.Value)
		}
	}

	queryURL := d.baseURL + path
	if len(params) > 0 {
		queryURL += "?" + params.Encode()
	}
	return queryURL, nil
}

// qidoAttribute is one attribute of a QIDO-RS JSON response.
type qidoAttribute struct {
	VR    string `json:"vr"`
	Value []any  `json:"Value"`
}

// recordFromQIDO converts a tag-keyed QIDO entry into a keyword-keyed
// record. PN values arrive as objects with an Alphabetic component.
func recordFromQIDO(entry map[string]qidoAttribute) models.ResultRecord {
	rec := make(models.ResultRecord, len(entry))
	for key, attr := range entry {
		t, ok := parseQIDOTag(key)
		if !ok {
			continue
		}
		rec[dict.KeywordOf(t)] = qidoValue(attr)
	}
	return rec
}

func parseQIDOTag(key string) (tag.Tag, bool) {
	if len(key) != 8 {
		return tag.Tag{}, false
	}
	group, err1 := strconv.ParseUint(key[:4], 16, 16)
	element, err2 := strconv.ParseUint(key[4:], 16, 16)
	if err1 != nil || err2 != nil {
		return tag.Tag{}, false
	}
	return tag.Tag{Group: uint16(group), Element: uint16(element)}, true
}

func qidoValue(attr qidoAttribute) any {
	vals := make([]any, 0, len(attr.Value))
	for _, v := range attr.Value {
		if pn, ok := v.(map[string]any); ok {
			if alpha, ok := pn["Alphabetic"].(string); ok {
				vals = append(vals, alpha)
				continue
			}
		}
		vals = append(vals, v)
	}
	switch len(vals) {
	case 0:
		return nil
	case 1:
		return vals[0]
	}
	return vals
}
