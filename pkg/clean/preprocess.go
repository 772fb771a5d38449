package clean

import "github.com/ilfeza/Eritrocit-ne-vinovat/pkg/common/models"

// Preprocess runs the full cleaning sequence: empty and duplicate removal
// first, then the sigma outlier filter over what survives.
func Preprocess(records []models.PatientRecord, sigma float64) ([]models.PatientRecord, models.PreprocessStats) {
	stats := models.PreprocessStats{TotalBefore: len(records)}

	deduped, cleanStats := RemoveEmptyAndDuplicates(records)
	stats.EmptyAndDuplicates = cleanStats

	filtered, outlierStats := RemoveOutliers(deduped, sigma)
	stats.Outliers = outlierStats

	stats.TotalAfter = len(filtered)
	return filtered, stats
}
