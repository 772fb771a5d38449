package clean

import (
	"math"
	"testing"

	"github.com/ilfeza/Eritrocit-ne-vinovat/pkg/common/models"
)

func rec(patientID, date string, analyses map[string]models.Analysis) models.PatientRecord {
	return models.PatientRecord{PatientID: patientID, Date: date, Analyses: analyses}
}

func TestNumericValue(t *testing.T) {
	cases := []struct {
		in   interface{}
		want float64
		ok   bool
	}{
		{5.2, 5.2, true},
		{90, 90, true},
		{"5.2", 5.2, true},
		{"5,2", 5.2, true},
		{" 88 ", 88, true},
		{"", 0, false},
		{"positive", 0, false},
		{nil, 0, false},
		{math.NaN(), 0, false},
		{math.Inf(1), 0, false},
	}
	for _, c := range cases {
		got, ok := NumericValue(c.in)
		if ok != c.ok || (ok && got != c.want) {
			t.Errorf("NumericValue(%v) = %v, %v; want %v, %v", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestRemoveEmptyAndDuplicates(t *testing.T) {
	records := []models.PatientRecord{
		rec("P1", "2024-01-01", map[string]models.Analysis{"chem.alt": {Value: 30.0}}),
		rec("P1", "2024-01-01", map[string]models.Analysis{"chem.alt": {Value: 30.0}}),
		rec("P2", "2024-01-01", nil),
		rec("P3", "2024-01-01", map[string]models.Analysis{"chem.alt": {Value: ""}}),
		rec("P1", "2024-01-02", map[string]models.Analysis{"chem.alt": {Value: 31.0}}),
	}

	kept, stats := RemoveEmptyAndDuplicates(records)

	if stats.RemovedDuplicates != 1 {
		t.Errorf("removed_duplicates = %d, want 1", stats.RemovedDuplicates)
	}
	if stats.RemovedEmpty != 2 {
		t.Errorf("removed_empty = %d, want 2", stats.RemovedEmpty)
	}
	if stats.TotalBefore != 5 || stats.TotalAfter != 2 {
		t.Errorf("totals = %d/%d, want 5/2", stats.TotalBefore, stats.TotalAfter)
	}
	if len(kept) != 2 || kept[0].Date != "2024-01-01" || kept[1].Date != "2024-01-02" {
		t.Errorf("kept order wrong: %+v", kept)
	}
}

func TestRemoveEmptyDropsRecordsWithoutFiniteValues(t *testing.T) {
	records := []models.PatientRecord{
		rec("P1", "2024-01-01", map[string]models.Analysis{"cmv.igg": {Value: "positive"}}),
		rec("P2", "2024-01-01", map[string]models.Analysis{"chem.alt": {Value: math.Inf(1)}}),
		rec("P3", "2024-01-01", map[string]models.Analysis{
			"cmv.igg":  {Value: "positive"},
			"chem.alt": {Value: 30.0},
		}),
	}
	kept, stats := RemoveEmptyAndDuplicates(records)
	if stats.RemovedEmpty != 2 {
		t.Errorf("removed_empty = %d, want 2", stats.RemovedEmpty)
	}
	if len(kept) != 1 || kept[0].PatientID != "P3" {
		t.Fatalf("only the record with a finite value survives: %+v", kept)
	}
}

func TestRemoveEmptyAndDuplicatesIdempotent(t *testing.T) {
	records := []models.PatientRecord{
		rec("P1", "2024-01-01", map[string]models.Analysis{"a": {Value: 1.0}}),
		rec("P1", "2024-01-01", map[string]models.Analysis{"a": {Value: 1.0}}),
		rec("P2", "2024-01-02", map[string]models.Analysis{"b": {Value: 2.0}}),
	}
	once, _ := RemoveEmptyAndDuplicates(records)
	twice, stats := RemoveEmptyAndDuplicates(once)
	if stats.RemovedEmpty != 0 || stats.RemovedDuplicates != 0 {
		t.Errorf("second pass removed records: %+v", stats)
	}
	if len(twice) != len(once) {
		t.Errorf("second pass changed length: %d vs %d", len(twice), len(once))
	}
}

func TestRemoveOutliers(t *testing.T) {
	records := make([]models.PatientRecord, 0, 12)
	for i := 0; i < 11; i++ {
		records = append(records, rec("P", "2024-01-01", map[string]models.Analysis{
			"chem.glucose": {Value: 90.0},
			"chem.alt":     {Value: 30.0 + float64(i)},
		}))
	}
	records = append(records, rec("PX", "2024-01-01", map[string]models.Analysis{
		"chem.glucose": {Value: 500.0},
	}))

	kept, stats := RemoveOutliers(records, 3)

	entry, ok := stats.OutliersByTest["chem.glucose"]
	if !ok || entry.Count != 1 {
		t.Fatalf("expected one glucose outlier, got %+v", stats.OutliersByTest)
	}
	if entry.Bounds.Upper >= 500 {
		t.Errorf("upper bound %v should exclude 500", entry.Bounds.Upper)
	}
	// The outlier was PX's only measurement, so the record goes too.
	if stats.TotalRemovedPatients != 1 {
		t.Errorf("total_removed_patients = %d, want 1", stats.TotalRemovedPatients)
	}
	if len(kept) != 11 {
		t.Fatalf("kept %d records, want 11", len(kept))
	}

	// No retained value may lie outside the pre-filter bounds.
	for _, r := range kept {
		if a, ok := r.Analyses["chem.glucose"]; ok {
			f, _ := NumericValue(a.Value)
			if f < entry.Bounds.Lower || f > entry.Bounds.Upper {
				t.Errorf("retained value %v outside bounds %+v", f, entry.Bounds)
			}
		}
	}
}

func TestRemoveOutliersSkipsSmallAndConstantSets(t *testing.T) {
	records := []models.PatientRecord{
		rec("P1", "2024-01-01", map[string]models.Analysis{"single": {Value: 1000.0}}),
		rec("P2", "2024-01-01", map[string]models.Analysis{"flat": {Value: 5.0}}),
		rec("P3", "2024-01-01", map[string]models.Analysis{"flat": {Value: 5.0}}),
		rec("P4", "2024-01-01", map[string]models.Analysis{"flat": {Value: 5.0}}),
	}
	kept, stats := RemoveOutliers(records, 3)
	if stats.TotalOutliers != 0 {
		t.Errorf("no outliers expected, got %+v", stats)
	}
	if len(kept) != 4 {
		t.Errorf("kept %d records, want 4", len(kept))
	}
}

func TestRemoveOutliersDoesNotMutateInput(t *testing.T) {
	original := map[string]models.Analysis{
		"a": {Value: 90.0},
		"b": {Value: 500.0},
	}
	records := []models.PatientRecord{rec("P1", "2024-01-01", original)}
	for i := 0; i < 11; i++ {
		records = append(records, rec("P", "2024-01-01", map[string]models.Analysis{"b": {Value: 10.0}}))
	}

	kept, stats := RemoveOutliers(records, 3)

	if stats.TotalOutliers != 1 {
		t.Fatalf("expected the 500 to be filtered: %+v", stats)
	}
	if _, ok := kept[0].Analyses["b"]; ok {
		t.Error("outlier survived in output")
	}
	if len(original) != 2 {
		t.Errorf("input analyses map was mutated: %v", original)
	}
}

func TestPreprocessChainsPasses(t *testing.T) {
	records := []models.PatientRecord{
		rec("P1", "2024-01-01", map[string]models.Analysis{"chem.alt": {Value: 30.0}}),
		rec("P1", "2024-01-01", map[string]models.Analysis{"chem.alt": {Value: 30.0}}),
		rec("P2", "2024-01-01", nil),
		rec("P3", "2024-01-01", map[string]models.Analysis{"chem.alt": {Value: 31.0}}),
	}
	kept, stats := Preprocess(records, 3)

	if stats.TotalBefore != 4 {
		t.Errorf("total_before = %d, want 4", stats.TotalBefore)
	}
	if stats.EmptyAndDuplicates.RemovedDuplicates != 1 || stats.EmptyAndDuplicates.RemovedEmpty != 1 {
		t.Errorf("clean stats wrong: %+v", stats.EmptyAndDuplicates)
	}
	if stats.TotalAfter != len(kept) || len(kept) != 2 {
		t.Errorf("total_after = %d, kept = %d, want 2", stats.TotalAfter, len(kept))
	}
}
