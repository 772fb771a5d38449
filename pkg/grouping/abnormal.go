package grouping

import (
	"sort"

	"github.com/ilfeza/Eritrocit-ne-vinovat/pkg/catalog"
	"github.com/ilfeza/Eritrocit-ne-vinovat/pkg/common/models"
)

const (
	StatusNormal = "NORMAL"
	StatusLow    = "LOW"
	StatusHigh   = "HIGH"
)

// significanceFraction is the relative deviation beyond the nearer norm
// bound a value must exceed to be surfaced as abnormal.
const significanceFraction = 0.1

// Status classifies a value against an optional norm range. A range with
// both bounds missing classifies everything as normal.
func Status(value float64, min, max *float64) string {
	if min != nil && value < *min {
		return StatusLow
	}
	if max != nil && value > *max {
		return StatusHigh
	}
	return StatusNormal
}

// Significant reports whether an out-of-range value deviates more than 10%
// beyond the violated bound.
func Significant(value float64, min, max *float64) bool {
	if min != nil && value < *min && *min != 0 {
		return (*min-value) / *min > significanceFraction
	}
	if max != nil && value > *max && *max != 0 {
		return (value-*max) / *max > significanceFraction
	}
	return false
}

// Abnormal collects significantly out-of-range measurements, keeping only
// the latest-dated one per test code. Output is sorted by code.
func Abnormal(rows []models.TestRow, cat *catalog.Catalog) []models.AbnormalTest {
	byCode := make(map[string]models.AbnormalTest)

	for _, row := range rows {
		norm, ok := cat.NormInfo(row.TestCode, row.TestName)
		if !ok || (norm.Min == nil && norm.Max == nil) {
			continue
		}
		status := Status(row.Value, norm.Min, norm.Max)
		if status == StatusNormal || !Significant(row.Value, norm.Min, norm.Max) {
			continue
		}

		entry := models.AbnormalTest{
			TestCode: row.TestCode,
			Name:     pick(norm.Name, row.TestName),
			Value:    row.Value,
			Unit:     pick(norm.Unit, row.Unit),
			Status:   status,
			NormMin:  norm.Min,
			NormMax:  norm.Max,
			Date:     row.Date,
		}
		if existing, ok := byCode[row.TestCode]; !ok || row.Date > existing.Date {
			byCode[row.TestCode] = entry
		}
	}

	out := make([]models.AbnormalTest, 0, len(byCode))
	for _, entry := range byCode {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TestCode < out[j].TestCode })
	return out
}

func pick(preferred, fallback string) string {
	if preferred != "" {
		return preferred
	}
	return fallback
}
