// Package tables ingests uploaded lab tables: it parses CSV and JSON
// payloads into the normalized intermediate shape the pipeline consumes,
// and stores parsed tables for later processing runs.
package tables

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ilfeza/Eritrocit-ne-vinovat/pkg/clean"
	"github.com/ilfeza/Eritrocit-ne-vinovat/pkg/common/models"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrMalformed         = errors.New("malformed table file")
)

// Long-form column detection, case-insensitive. First candidate found wins.
var (
	patientColumns = []string{"patient_id", "subjectguid", "subject_id", "patient", "id"}
	dateColumns    = []string{"date", "test_date"}
	testColumns    = []string{"test_code", "test_name", "test_short", "test", "analysis"}
	valueColumns   = []string{"value", "result"}
	unitColumns    = []string{"unit", "units"}
)

// Parse dispatches on the file extension. CSV tables may be wide (one
// column per test) or long (one row per measurement); JSON accepts both the
// native {test_names, patients} shape and a flat array of wide records.
func Parse(filename string, content []byte) (models.TableData, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	switch ext {
	case "csv":
		table, err := ParseCSV(content)
		if err != nil {
			return models.TableData{}, err
		}
		table.Filename = filename
		table.FileType = ext
		return table, nil
	case "json":
		table, err := ParseJSON(content)
		if err != nil {
			return models.TableData{}, err
		}
		table.Filename = filename
		table.FileType = ext
		return table, nil
	default:
		return models.TableData{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// ParseCSV reads a CSV table, detecting wide versus long form from the
// header row.
func ParseCSV(content []byte) (models.TableData, error) {
	reader := csv.NewReader(bytes.NewReader(content))
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return models.TableData{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(rows) == 0 {
		return models.TableData{}, fmt.Errorf("%w: empty file", ErrMalformed)
	}

	header := rows[0]
	testCol := findColumn(header, testColumns)
	valueCol := findColumn(header, valueColumns)
	if testCol >= 0 && valueCol >= 0 {
		return parseLongCSV(header, rows[1:])
	}
	return parseWideCSV(header, rows[1:])
}

func parseLongCSV(header []string, rows [][]string) (models.TableData, error) {
	patientCol := findColumn(header, patientColumns)
	dateCol := findColumn(header, dateColumns)
	testCol := findColumn(header, testColumns)
	valueCol := findColumn(header, valueColumns)
	unitCol := findColumn(header, unitColumns)
	nameCol := -1
	if strings.EqualFold(header[testCol], "test_code") {
		for i, h := range header {
			if i != testCol && strings.EqualFold(strings.TrimSpace(h), "test_name") {
				nameCol = i
			}
		}
	}

	table := models.TableData{TestNames: make(map[string]string)}
	index := make(map[string]int)

	for _, row := range rows {
		testID := cell(row, testCol)
		if testID == "" {
			continue
		}
		patientID := cell(row, patientCol)
		date := cell(row, dateCol)

		analysis := models.Analysis{Value: parseValue(cell(row, valueCol)), Unit: cell(row, unitCol)}
		key := patientID + "\x00" + date
		idx, ok := index[key]
		if !ok {
			idx = len(table.Patients)
			index[key] = idx
			table.Patients = append(table.Patients, models.PatientRecord{
				PatientID: patientID,
				Date:      date,
				Analyses:  make(map[string]models.Analysis),
			})
		}
		table.Patients[idx].Analyses[testID] = analysis

		name := cell(row, nameCol)
		if name == "" {
			name = testID
		}
		if _, ok := table.TestNames[testID]; !ok {
			table.TestNames[testID] = name
		}
	}

	return table, nil
}

func parseWideCSV(header []string, rows [][]string) (models.TableData, error) {
	patientCol := findColumn(header, patientColumns)
	dateCol := findColumn(header, dateColumns)

	table := models.TableData{TestNames: make(map[string]string)}
	for i, h := range header {
		if i == patientCol || i == dateCol {
			continue
		}
		name := strings.TrimSpace(h)
		if name == "" {
			continue
		}
		table.TestNames[name] = name
	}

	for _, row := range rows {
		record := models.PatientRecord{
			PatientID: cell(row, patientCol),
			Date:      cell(row, dateCol),
			Analyses:  make(map[string]models.Analysis),
		}
		for i, h := range header {
			if i == patientCol || i == dateCol {
				continue
			}
			name := strings.TrimSpace(h)
			raw := cell(row, i)
			if name == "" || raw == "" {
				continue
			}
			record.Analyses[name] = models.Analysis{Value: parseValue(raw)}
		}
		table.Patients = append(table.Patients, record)
	}

	return table, nil
}

// ParseJSON accepts the native {test_names, patients} document or a flat
// array of wide records ({patient_id, date, <test>: value, ...}).
func ParseJSON(content []byte) (models.TableData, error) {
	var native struct {
		TestNames map[string]json.RawMessage `json:"test_names"`
		Patients  []models.PatientRecord     `json:"patients"`
	}
	if err := json.Unmarshal(content, &native); err == nil && native.Patients != nil {
		table := models.TableData{
			TestNames: make(map[string]string, len(native.TestNames)),
			Patients:  native.Patients,
		}
		for code, raw := range native.TestNames {
			table.TestNames[code] = decodeTestName(code, raw)
		}
		return table, nil
	}

	var records []map[string]interface{}
	if err := json.Unmarshal(content, &records); err != nil {
		return models.TableData{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	table := models.TableData{TestNames: make(map[string]string)}
	for _, rec := range records {
		record := models.PatientRecord{Analyses: make(map[string]models.Analysis)}
		for key, value := range rec {
			switch strings.ToLower(key) {
			case "patient_id", "subjectguid", "subject_id":
				record.PatientID = fmt.Sprintf("%v", value)
			case "date":
				record.Date = fmt.Sprintf("%v", value)
			default:
				if value == nil {
					continue
				}
				record.Analyses[key] = models.Analysis{Value: value}
				if _, ok := table.TestNames[key]; !ok {
					table.TestNames[key] = key
				}
			}
		}
		table.Patients = append(table.Patients, record)
	}

	return table, nil
}

// decodeTestName tolerates both "name" and {"name": ..., "unit": ...}
// shapes in the test_names mapping.
func decodeTestName(code string, raw json.RawMessage) string {
	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return plain
	}
	var structured struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &structured); err == nil && structured.Name != "" {
		return structured.Name
	}
	return code
}

func findColumn(header []string, candidates []string) int {
	for _, candidate := range candidates {
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), candidate) {
				return i
			}
		}
	}
	return -1
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// parseValue keeps numeric cells as floats and everything else verbatim.
func parseValue(raw string) interface{} {
	if f, ok := clean.NumericValue(raw); ok {
		return f
	}
	return raw
}
