package models

// QueryLevel identifies the Query/Retrieve information model level.
type QueryLevel string

const (
	LevelStudy  QueryLevel = "STUDY"
	LevelSeries QueryLevel = "SERIES"
	LevelImage  QueryLevel = "IMAGE"
)

// Valid reports whether the level is one of the three supported levels.
func (l QueryLevel) Valid() bool {
	switch l {
	case LevelStudy, LevelSeries, LevelImage:
		return true
	}
	return false
}

// StudyFilters are the named matching keys accepted by a study query.
// Empty values are sent as universal matches.
type StudyFilters struct {
	PatientID         string `json:"patient_id,omitempty"`
	PatientName       string `json:"patient_name,omitempty"`
	StudyDate         string `json:"study_date,omitempty"`
	AccessionNumber   string `json:"accession_number,omitempty"`
	StudyDescription  string `json:"study_description,omitempty"`
	ModalitiesInStudy string `json:"modalities_in_study,omitempty"`
}

// QueryRequest is the body of a query endpoint. AdditionalFilters carries
// arbitrary attribute filters keyed by keyword or "GGGG,EEEE" tag token,
// and AdditionalReturnKeys requests extra attributes in each result.
type QueryRequest struct {
	Filters              StudyFilters      `json:"filters"`
	StudyInstanceUID     string            `json:"study_instance_uid,omitempty"`
	SeriesInstanceUID    string            `json:"series_instance_uid,omitempty"`
	AdditionalFilters    map[string]string `json:"additional_filters,omitempty"`
	AdditionalReturnKeys []string          `json:"additional_return_keys,omitempty"`
}

// ResultRecord is one query match, keyed by attribute keyword. Values are
// JSON-ready: strings, numbers, lists, nested records, or nil.
type ResultRecord map[string]any

// QueryResponse wraps query results for the HTTP boundary. A partial
// response carries the records that arrived before the remote node
// reported a failure, alongside the failure itself.
type QueryResponse struct {
	Level       QueryLevel     `json:"level"`
	Count       int            `json:"count"`
	Results     []ResultRecord `json:"results"`
	Partial     bool           `json:"partial,omitempty"`
	Error       string         `json:"error,omitempty"`
	DIMSEStatus string         `json:"dimse_status,omitempty"`
}

// RetrieveRequest asks the PACS to move objects to a destination AE.
// The deepest UID present decides the retrieve level.
type RetrieveRequest struct {
	StudyInstanceUID  string `json:"study_instance_uid"`
	SeriesInstanceUID string `json:"series_instance_uid,omitempty"`
	SOPInstanceUID    string `json:"sop_instance_uid,omitempty"`
	DestinationAET    string `json:"destination_aet,omitempty"`
}

// RetrieveState summarizes how a retrieve concluded.
type RetrieveState string

const (
	RetrieveSuccess RetrieveState = "SUCCESS"
	RetrievePartial RetrieveState = "PARTIAL"
	RetrieveFailure RetrieveState = "FAILURE"
	RetrieveUnknown RetrieveState = "UNKNOWN"
)

// RetrieveOutcome is the final report of a C-MOVE: the last status seen and
// the cumulative sub-operation counters.
type RetrieveOutcome struct {
	State     RetrieveState `json:"state"`
	Status    string        `json:"status"` // hex DIMSE status, e.g. "0x0000"
	Level     QueryLevel    `json:"level"`
	Completed int           `json:"completed"`
	Failed    int           `json:"failed"`
	Warning   int           `json:"warning"`
}

// PixelSummary condenses the pixel module of a stored instance.
type PixelSummary struct {
	Rows                      int    `json:"rows"`
	Columns                   int    `json:"columns"`
	BitsAllocated             int    `json:"bits_allocated"`
	BitsStored                int    `json:"bits_stored"`
	PhotometricInterpretation string `json:"photometric_interpretation,omitempty"`
	NumberOfFrames            int    `json:"number_of_frames"`
}

// InstanceMetadata is the decoded header of a locally stored instance.
type InstanceMetadata struct {
	SOPInstanceUID string       `json:"sop_instance_uid"`
	FilePath       string       `json:"file_path"`
	Pixel          PixelSummary `json:"pixel"`
	Attributes     ResultRecord `json:"attributes"`
}
