package models

import "time"

// Analysis is a single measurement inside a patient record. Keys in
// PatientRecord.Analyses are raw identifiers until the resolver rewrites
// table metadata, after which downstream stages may also see catalog codes.
type Analysis struct {
	Value  interface{} `json:"value"`
	Unit   string      `json:"unit,omitempty"`
	Status string      `json:"status,omitempty"`
}

// PatientRecord is one patient-date row of an uploaded table. Date is an
// opaque string compared lexicographically, never parsed as a calendar date.
type PatientRecord struct {
	PatientID string              `json:"patient_id"`
	Date      string              `json:"date"`
	Analyses  map[string]Analysis `json:"analyses"`
}

// TableData is the normalized intermediate shape every upload is reduced to,
// regardless of source format (wide/long CSV, JSON).
type TableData struct {
	ID        string            `json:"id,omitempty"`
	Filename  string            `json:"filename,omitempty"`
	FileType  string            `json:"file_type,omitempty"`
	TestNames map[string]string `json:"test_names"`
	Patients  []PatientRecord   `json:"patients"`
	CreatedAt time.Time         `json:"created_at,omitempty"`
}

// ResolvedTable is TableData after identity resolution: column names mapped
// to catalog codes, display names replaced by catalog names, units filled in.
type ResolvedTable struct {
	ColumnNameToTestCode map[string]string `json:"column_name_to_test_code"`
	TestNames            map[string]string `json:"test_names"`
	Patients             []PatientRecord   `json:"patients"`
	MatchedCount         int               `json:"matched_count"`
	TotalCount           int               `json:"total_count"`
}

// TestRow is one flattened measurement used by grouping and abnormal
// detection (the long-form view of the cleaned table).
type TestRow struct {
	PatientID string  `json:"patient_id"`
	TestCode  string  `json:"test_code"`
	TestName  string  `json:"test_name"`
	Value     float64 `json:"value"`
	Unit      string  `json:"unit"`
	Date      string  `json:"date"`
}

// ResolvedTest is a grouped, conflict-resolved test entry shown per category,
// one per patient and test.
type ResolvedTest struct {
	PatientID   string   `json:"patient_id"`
	TestCode    string   `json:"test_code"`
	Name        string   `json:"name"`
	Value       *float64 `json:"value"`
	Unit        string   `json:"unit"`
	Date        string   `json:"date"`
	Status      string   `json:"status"`
	NormMin     *float64 `json:"norm_min"`
	NormMax     *float64 `json:"norm_max"`
	HasDynamics bool     `json:"has_dynamics"`
}

// AbnormalTest is a significantly out-of-range measurement (latest per code).
type AbnormalTest struct {
	TestCode string   `json:"test_code"`
	Name     string   `json:"name"`
	Value    float64  `json:"value"`
	Unit     string   `json:"unit"`
	Status   string   `json:"status"`
	NormMin  *float64 `json:"norm_min"`
	NormMax  *float64 `json:"norm_max"`
	Date     string   `json:"date"`
}

// CleanStats reports the empty/duplicate removal pass.
type CleanStats struct {
	RemovedEmpty      int `json:"removed_empty"`
	RemovedDuplicates int `json:"removed_duplicates"`
	TotalBefore       int `json:"total_before"`
	TotalAfter        int `json:"total_after"`
}

// OutlierBounds are the 3-sigma cutoffs computed for one test code.
type OutlierBounds struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// TestOutlierStats reports removals for one test code.
type TestOutlierStats struct {
	Count  int           `json:"count"`
	Bounds OutlierBounds `json:"bounds"`
	Mean   float64       `json:"mean"`
	Std    float64       `json:"std"`
}

// OutlierStats reports the whole outlier-filter pass.
type OutlierStats struct {
	OutliersByTest       map[string]TestOutlierStats `json:"outliers_by_test"`
	TotalOutliers        int                         `json:"total_outliers"`
	TotalRemovedPatients int                         `json:"total_removed_patients"`
}

// PreprocessStats aggregates both cleaning passes.
type PreprocessStats struct {
	EmptyAndDuplicates CleanStats   `json:"empty_and_duplicates"`
	Outliers           OutlierStats `json:"outliers"`
	TotalBefore        int          `json:"total_before"`
	TotalAfter         int          `json:"total_after"`
}

// PipelineResult is the full output of one processing run. Every stage's
// statistics ride along so callers can audit data loss.
type PipelineResult struct {
	RunID                string                    `json:"run_id"`
	TableID              string                    `json:"table_id,omitempty"`
	ColumnNameToTestCode map[string]string         `json:"column_name_to_test_code"`
	TestNames            map[string]string         `json:"test_names"`
	Patients             []PatientRecord           `json:"patients"`
	Groups               map[string][]ResolvedTest `json:"groups"`
	AbnormalTests        []AbnormalTest            `json:"abnormal_tests"`
	MatchedCount         int                       `json:"matched_count"`
	TotalCount           int                       `json:"total_count"`
	Preprocess           PreprocessStats           `json:"preprocess"`
	CompletedAt          time.Time                 `json:"completed_at"`
}

// Event Bus model (pipeline.completed and friends).
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}
