// Package clean prepares parsed patient records for grouping: it drops
// records carrying no measurements, collapses exact duplicates, and filters
// statistical outliers per test code. All passes rebuild their output and
// never mutate the input slice.
package clean

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ilfeza/Eritrocit-ne-vinovat/pkg/common/models"
)

// NumericValue extracts a finite float from an analysis value. String values
// are trimmed and accept a decimal comma. NaN, infinities and everything
// non-numeric report false.
func NumericValue(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case float32:
		f := float64(n)
		return f, !math.IsNaN(f) && !math.IsInf(f, 0)
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(n), ",", ".")
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
	default:
		return 0, false
	}
}

// RemoveEmptyAndDuplicates drops records carrying no usable measurement and
// collapses records that repeat an earlier patient/date/analyses triple.
// The first occurrence of a duplicate wins; relative order is preserved.
func RemoveEmptyAndDuplicates(records []models.PatientRecord) ([]models.PatientRecord, models.CleanStats) {
	stats := models.CleanStats{TotalBefore: len(records)}

	seen := make(map[string]bool, len(records))
	kept := make([]models.PatientRecord, 0, len(records))
	for _, rec := range records {
		if recordEmpty(rec) {
			stats.RemovedEmpty++
			continue
		}
		key := dedupKey(rec)
		if seen[key] {
			stats.RemovedDuplicates++
			continue
		}
		seen[key] = true
		kept = append(kept, rec)
	}

	stats.TotalAfter = len(kept)
	return kept, stats
}

// recordEmpty reports whether none of the record's analysis values parse
// to a finite number.
func recordEmpty(rec models.PatientRecord) bool {
	for _, a := range rec.Analyses {
		if _, ok := NumericValue(a.Value); ok {
			return false
		}
	}
	return true
}

// dedupKey serializes the analyses map with sorted keys, so two records with
// the same content in a different map iteration order collide.
func dedupKey(rec models.PatientRecord) string {
	payload, err := json.Marshal(rec.Analyses)
	if err != nil {
		payload = []byte(fmt.Sprintf("%v", rec.Analyses))
	}
	return rec.PatientID + "|" + rec.Date + "|" + string(payload)
}
